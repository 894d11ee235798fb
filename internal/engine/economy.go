package engine

import (
	"math"

	"edrg/internal/catalog"
)

// Default sale-price curve parameters, fitted to observed rare-goods prices.
const (
	DefaultP1 = 16000.0 // price premium reached far from the source
	DefaultP2 = 0.0677  // steepness
	DefaultP3 = 101.0   // distance (ly) of the inflection point
)

// PriceCurve is the logistic sale-price model. A rare good sells for half its
// purchase price next to its source and approaches Price/2 + P1 far away,
// with the midpoint of the premium reached at P3 light years.
type PriceCurve struct {
	P1 float64 `yaml:"p1" json:"p1"`
	P2 float64 `yaml:"p2" json:"p2"`
	P3 float64 `yaml:"p3" json:"p3"`
}

// DefaultPriceCurve returns the calibrated default curve.
func DefaultPriceCurve() PriceCurve {
	return PriceCurve{P1: DefaultP1, P2: DefaultP2, P3: DefaultP3}
}

// PriceAt returns the sale price for goods bought at price, sold dist light years away.
func (c PriceCurve) PriceAt(price int, dist float64) float64 {
	return float64(price)/2 + c.P1/(1+math.Exp(-(c.P2*(dist-c.P3))))
}

// SalePrice returns the expected sale price of g in the dest system.
func (c PriceCurve) SalePrice(g *catalog.Goods, dest *catalog.StarSystem) float64 {
	return c.PriceAt(g.Price, g.System().DistanceTo(dest))
}
