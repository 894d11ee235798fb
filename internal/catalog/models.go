// Package catalog defines the rare-goods catalog records and the typed
// filter/sort/limit queries callers run over them before route search.
package catalog

import (
	"fmt"
	"math"

	"edrg/internal/graph"
)

// StarSystem is a star system with galactic coordinates.
type StarSystem struct {
	ID   int64   `db:"id" json:"-"`
	Name string  `db:"name" json:"name"`
	X    float64 `db:"x" json:"x"`
	Y    float64 `db:"y" json:"y"`
	Z    float64 `db:"z" json:"z"`
}

// Pos returns the system coordinates.
func (s *StarSystem) Pos() graph.Point {
	return graph.Point{X: s.X, Y: s.Y, Z: s.Z}
}

// DistanceTo returns the straight-line distance to another system.
func (s *StarSystem) DistanceTo(other *StarSystem) float64 {
	return graph.Distance(s.Pos(), other.Pos())
}

// Station is a dockable station inside one star system.
type Station struct {
	ID     int64       `db:"id" json:"-"`
	Name   string      `db:"name" json:"name"`
	Dist   float64     `db:"dist" json:"dist"` // distance from the system entry point
	System *StarSystem `db:"-" json:"-"`
}

// Goods is one rare commodity sold at one station.
type Goods struct {
	ID        int64    `db:"id" json:"-"`
	Name      string   `db:"name" json:"name"`
	MaxCap    int      `db:"max_cap" json:"max_cap"` // 0 = no data
	MinSupply int      `db:"min_supply" json:"min_supply"`
	MaxSupply int      `db:"max_supply" json:"max_supply"`
	Price     int      `db:"price" json:"price"`
	Station   *Station `db:"-" json:"-"`
}

// System returns the star system the goods are sold in.
func (g *Goods) System() *StarSystem {
	return g.Station.System
}

// ExpectedSupply is the midpoint of the supply bounds, rounded half up.
// Inverted bounds are not validated.
func (g *Goods) ExpectedSupply() int {
	return RoundHalfUp(float64(g.MinSupply+g.MaxSupply) / 2)
}

// MinValue is the purchase cost of the minimum supply.
func (g *Goods) MinValue() int {
	return g.Price * g.MinSupply
}

// MaxValue is the purchase cost of the maximum supply.
func (g *Goods) MaxValue() int {
	return g.Price * g.MaxSupply
}

// ExpectedValue is the purchase cost of the expected supply.
func (g *Goods) ExpectedValue() int {
	return g.Price * g.ExpectedSupply()
}

// Label formats the goods as "name @ station (system)".
func (g *Goods) Label() string {
	return fmt.Sprintf("%s @ %s (%s)", g.Name, g.Station.Name, g.Station.System.Name)
}

func (g *Goods) String() string {
	return fmt.Sprintf("%s (%s, %s): %d", g.Name, g.Station.Name, g.Station.System.Name, g.ExpectedValue())
}

// RoundHalfUp rounds to the nearest integer, with exact halves going up (2.5 -> 3).
func RoundHalfUp(x float64) int {
	return int(math.Floor(x + 0.5))
}
