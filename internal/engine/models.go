package engine

import "edrg/internal/catalog"

// Route is one scored round trip between two goods: buy Origin, haul it to
// Destination's system and sell, buy Destination, haul it back and sell.
type Route struct {
	Origin      *catalog.Goods
	Destination *catalog.Goods
	Distance    float64 // light years between the two systems
	OriginUnits int     // units bought at origin (expected supply, cargo capped)
	DestUnits   int     // units bought at destination
	ProfitOut   float64 // origin -> destination leg
	ProfitBack  float64 // destination -> origin leg
	Profit      float64 // ProfitOut + ProfitBack, may be negative
	ProfitPerLy float64 // Profit / Distance, 0 for co-located pairs
}

// RouteParams holds the input parameters for pairwise route search.
type RouteParams struct {
	TopN     int        // routes to return; <= 0 returns nothing
	MaxDist  float64    // 0 = no distance ceiling
	MaxCargo int        // 0 = no per-leg unit cap
	Curve    PriceCurve // zero value = DefaultPriceCurve
	Workers  int        // parallel search only; 0 = GOMAXPROCS
}

// DefaultRouteParams returns params for the single best route with no limits.
func DefaultRouteParams() RouteParams {
	return RouteParams{TopN: 1, Curve: DefaultPriceCurve()}
}

func (p RouteParams) curve() PriceCurve {
	if p.Curve == (PriceCurve{}) {
		return DefaultPriceCurve()
	}
	return p.Curve
}
