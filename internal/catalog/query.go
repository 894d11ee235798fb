package catalog

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Op is a filter comparison operator.
type Op string

const (
	OpEq       Op = "="
	OpNe       Op = "!="
	OpLt       Op = "<"
	OpLe       Op = "<="
	OpGt       Op = ">"
	OpGe       Op = ">="
	OpContains Op = "~" // case-insensitive substring, text fields only
)

// FoldFunc is the SQL function a store must provide for OpContains.
// It has to fold case exactly like Fold.
const FoldFunc = "edrg_fold"

// Fold lower-cases s with full Unicode case mapping.
func Fold(s string) string {
	return strings.ToLower(s)
}

// two-character operators must be tried first
var parseOrder = []Op{OpGe, OpLe, OpNe, OpEq, OpLt, OpGt, OpContains}

// Filter is a single predicate over one field.
type Filter struct {
	Field Field
	Op    Op
	Num   float64 // numeric fields
	Text  string  // text fields
}

// ParseFilter parses "field<op>value", e.g. "price>=500" or "system~lave".
func ParseFilter(expr string) (Filter, error) {
	pos := strings.IndexAny(expr, "=!<>~")
	if pos <= 0 {
		return Filter{}, fmt.Errorf("%w: no operator in %q", ErrBadOperator, expr)
	}
	var op Op
	for _, candidate := range parseOrder {
		if strings.HasPrefix(expr[pos:], string(candidate)) {
			op = candidate
			break
		}
	}
	if op == "" {
		return Filter{}, fmt.Errorf("%w: %q", ErrBadOperator, expr)
	}
	field, err := ParseField(expr[:pos])
	if err != nil {
		return Filter{}, err
	}
	value := strings.TrimSpace(expr[pos+len(op):])
	if strings.ContainsAny(value, "=!<>~") {
		return Filter{}, fmt.Errorf("%w: %q", ErrBadOperator, expr)
	}
	return NewFilter(field, op, value)
}

// NewFilter builds a filter, converting value to the field's type.
func NewFilter(field Field, op Op, value string) (Filter, error) {
	if _, ok := fields[field]; !ok {
		return Filter{}, fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
	f := Filter{Field: field, Op: op}
	switch op {
	case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe:
	case OpContains:
		if !field.IsText() {
			return Filter{}, fmt.Errorf("%w: %s only applies to text fields, not %s", ErrBadOperator, op, field)
		}
	default:
		return Filter{}, fmt.Errorf("%w: %q", ErrBadOperator, op)
	}
	if field.IsText() {
		f.Text = value
		return f, nil
	}
	n, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return Filter{}, fmt.Errorf("filter %s: value %q is not a number", field, value)
	}
	f.Num = n
	return f, nil
}

// Match evaluates the filter against one goods record.
func (f Filter) Match(g *Goods) bool {
	def := fields[f.Field]
	if def.text {
		v := def.str(g)
		switch f.Op {
		case OpEq:
			return v == f.Text
		case OpNe:
			return v != f.Text
		case OpLt:
			return v < f.Text
		case OpLe:
			return v <= f.Text
		case OpGt:
			return v > f.Text
		case OpGe:
			return v >= f.Text
		case OpContains:
			return strings.Contains(Fold(v), Fold(f.Text))
		}
		return false
	}
	v := def.num(g)
	switch f.Op {
	case OpEq:
		return v == f.Num
	case OpNe:
		return v != f.Num
	case OpLt:
		return v < f.Num
	case OpLe:
		return v <= f.Num
	case OpGt:
		return v > f.Num
	case OpGe:
		return v >= f.Num
	}
	return false
}

func (f Filter) String() string {
	if f.Field.IsText() {
		return fmt.Sprintf("%s%s%s", f.Field, f.Op, f.Text)
	}
	return fmt.Sprintf("%s%s%s", f.Field, f.Op, strconv.FormatFloat(f.Num, 'f', -1, 64))
}

// Sort orders goods by one field.
type Sort struct {
	Field Field
	Desc  bool
}

// ParseSort parses "price" (ascending) or "-price" (descending).
func ParseSort(expr string) (Sort, error) {
	expr = strings.TrimSpace(expr)
	desc := strings.HasPrefix(expr, "-")
	field, err := ParseField(strings.TrimPrefix(expr, "-"))
	if err != nil {
		return Sort{}, err
	}
	return Sort{Field: field, Desc: desc}, nil
}

func (s Sort) less(a, b *Goods) bool {
	def := fields[s.Field]
	if def.text {
		if s.Desc {
			return def.str(a) > def.str(b)
		}
		return def.str(a) < def.str(b)
	}
	if s.Desc {
		return def.num(a) > def.num(b)
	}
	return def.num(a) < def.num(b)
}

// Query is a filter/sort/limit pipeline over goods. Build it with NewQuery:
// the zero value has Limit 0 and matches nothing.
type Query struct {
	Filters []Filter
	Sort    *Sort
	Limit   int // < 0 = no limit
}

// NewQuery returns an empty, unlimited query.
func NewQuery() *Query {
	return &Query{Limit: -1}
}

// Where adds a filter. All filters must match.
func (q *Query) Where(f Filter) *Query {
	q.Filters = append(q.Filters, f)
	return q
}

// OrderBy sets the sort key.
func (q *Query) OrderBy(s Sort) *Query {
	q.Sort = &s
	return q
}

// WithLimit caps the result size; n < 0 removes the cap.
func (q *Query) WithLimit(n int) *Query {
	q.Limit = n
	return q
}

// Match reports whether g passes every filter.
func (q *Query) Match(g *Goods) bool {
	for _, f := range q.Filters {
		if !f.Match(g) {
			return false
		}
	}
	return true
}

// Apply runs the query in memory. Sorting is stable, so ties keep input order.
// The input slice is not modified.
func (q *Query) Apply(goods []*Goods) []*Goods {
	out := make([]*Goods, 0, len(goods))
	for _, g := range goods {
		if q.Match(g) {
			out = append(out, g)
		}
	}
	if q.Sort != nil {
		s := *q.Sort
		sort.SliceStable(out, func(i, j int) bool { return s.less(out[i], out[j]) })
	}
	if q.Limit >= 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out
}

// SQL renders the query as WHERE / ORDER BY / LIMIT clauses (each with its
// keyword, or empty) plus bind arguments. Ties are broken by g.id so the
// result order matches Apply over goods in id order.
func (q *Query) SQL() (where, orderBy, limit string, args []interface{}, err error) {
	var conds []string
	for _, f := range q.Filters {
		expr, err := SQLExpr(f.Field)
		if err != nil {
			return "", "", "", nil, err
		}
		switch {
		case f.Op == OpContains:
			conds = append(conds, fmt.Sprintf("instr(%[1]s(%[2]s), %[1]s(?)) > 0", FoldFunc, expr))
			args = append(args, f.Text)
		case f.Field.IsText():
			conds = append(conds, fmt.Sprintf("%s %s ?", expr, sqlOp(f.Op)))
			args = append(args, f.Text)
		default:
			conds = append(conds, fmt.Sprintf("%s %s ?", expr, sqlOp(f.Op)))
			args = append(args, f.Num)
		}
	}
	if len(conds) > 0 {
		where = "WHERE " + strings.Join(conds, " AND ")
	}

	orderBy = "ORDER BY g.id"
	if q.Sort != nil {
		expr, err := SQLExpr(q.Sort.Field)
		if err != nil {
			return "", "", "", nil, err
		}
		dir := "ASC"
		if q.Sort.Desc {
			dir = "DESC"
		}
		orderBy = fmt.Sprintf("ORDER BY %s %s, g.id", expr, dir)
	}

	if q.Limit >= 0 {
		limit = "LIMIT ?"
		args = append(args, q.Limit)
	}
	return where, orderBy, limit, args, nil
}

func sqlOp(op Op) string {
	if op == OpNe {
		return "<>"
	}
	return string(op)
}
