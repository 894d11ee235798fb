package catalog

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrUnknownField is returned for filter or sort keys outside the supported set.
	ErrUnknownField = errors.New("unknown field")
	// ErrBadOperator is returned for malformed or unsupported filter operators.
	ErrBadOperator = errors.New("bad operator")
)

// Field names a filterable/sortable goods attribute.
type Field string

const (
	FieldName           Field = "name"
	FieldStation        Field = "station"
	FieldSystem         Field = "system"
	FieldStationDist    Field = "station_dist"
	FieldMaxCap         Field = "max_cap"
	FieldMinSupply      Field = "min_supply"
	FieldMaxSupply      Field = "max_supply"
	FieldPrice          Field = "price"
	FieldExpectedSupply Field = "expected_supply"
	FieldMinValue       Field = "min_value"
	FieldMaxValue       Field = "max_value"
	FieldExpectedValue  Field = "expected_value"
	FieldX              Field = "x"
	FieldY              Field = "y"
	FieldZ              Field = "z"
)

// Table aliases used by SQLExpr: goods g JOIN station st JOIN system sy.
type fieldDef struct {
	text bool
	sql  string
	num  func(*Goods) float64
	str  func(*Goods) string
}

var fields = map[Field]fieldDef{
	FieldName:    {text: true, sql: "g.name", str: func(g *Goods) string { return g.Name }},
	FieldStation: {text: true, sql: "st.name", str: func(g *Goods) string { return g.Station.Name }},
	FieldSystem:  {text: true, sql: "sy.name", str: func(g *Goods) string { return g.Station.System.Name }},

	FieldStationDist: {sql: "st.dist", num: func(g *Goods) float64 { return g.Station.Dist }},
	FieldMaxCap:      {sql: "g.max_cap", num: func(g *Goods) float64 { return float64(g.MaxCap) }},
	FieldMinSupply:   {sql: "g.min_supply", num: func(g *Goods) float64 { return float64(g.MinSupply) }},
	FieldMaxSupply:   {sql: "g.max_supply", num: func(g *Goods) float64 { return float64(g.MaxSupply) }},
	FieldPrice:       {sql: "g.price", num: func(g *Goods) float64 { return float64(g.Price) }},

	// Integer division matches RoundHalfUp for non-negative supply sums.
	FieldExpectedSupply: {sql: "((g.min_supply + g.max_supply + 1) / 2)", num: func(g *Goods) float64 { return float64(g.ExpectedSupply()) }},
	FieldMinValue:       {sql: "(g.price * g.min_supply)", num: func(g *Goods) float64 { return float64(g.MinValue()) }},
	FieldMaxValue:       {sql: "(g.price * g.max_supply)", num: func(g *Goods) float64 { return float64(g.MaxValue()) }},
	FieldExpectedValue:  {sql: "(g.price * ((g.min_supply + g.max_supply + 1) / 2))", num: func(g *Goods) float64 { return float64(g.ExpectedValue()) }},

	FieldX: {sql: "sy.x", num: func(g *Goods) float64 { return g.Station.System.X }},
	FieldY: {sql: "sy.y", num: func(g *Goods) float64 { return g.Station.System.Y }},
	FieldZ: {sql: "sy.z", num: func(g *Goods) float64 { return g.Station.System.Z }},
}

// ParseField validates a field name (case-insensitive).
func ParseField(s string) (Field, error) {
	f := Field(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := fields[f]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownField, s)
	}
	return f, nil
}

// IsText reports whether the field compares as a string.
func (f Field) IsText() bool {
	return fields[f].text
}

// SQLExpr returns the SQL expression for the field over
// goods g JOIN station st JOIN system sy. Derived fields are
// translated to the same formulas as their Goods accessors.
func SQLExpr(f Field) (string, error) {
	def, ok := fields[f]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownField, f)
	}
	return def.sql, nil
}

// Fields lists all supported field names, sorted.
func Fields() []Field {
	out := make([]Field, 0, len(fields))
	for f := range fields {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
