package engine

import (
	"context"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"edrg/internal/catalog"
)

// unitsFor returns the tradable units for g: expected supply, capped at maxCargo when set.
func unitsFor(g *catalog.Goods, maxCargo int) int {
	units := g.ExpectedSupply()
	if maxCargo > 0 && units > maxCargo {
		units = maxCargo
	}
	return units
}

// ScoreRoute computes the round-trip profit of origin and destination.
// Unprofitable pairs are scored, not rejected.
func ScoreRoute(origin, destination *catalog.Goods, maxCargo int, curve PriceCurve) Route {
	dist := origin.System().DistanceTo(destination.System())
	return scoreAt(origin, destination, dist, maxCargo, curve)
}

func scoreAt(origin, destination *catalog.Goods, dist float64, maxCargo int, curve PriceCurve) Route {
	r := Route{
		Origin:      origin,
		Destination: destination,
		Distance:    dist,
		OriginUnits: unitsFor(origin, maxCargo),
		DestUnits:   unitsFor(destination, maxCargo),
	}
	r.ProfitOut = float64(r.OriginUnits) * (curve.SalePrice(origin, destination.System()) - float64(origin.Price))
	r.ProfitBack = float64(r.DestUnits) * (curve.SalePrice(destination, origin.System()) - float64(destination.Price))
	r.Profit = r.ProfitOut + r.ProfitBack
	if dist > 0 {
		r.ProfitPerLy = r.Profit / dist
	}
	return r
}

// scanOrigin scores every pair (i, j) with j > i, in j order.
func scanOrigin(candidates []*catalog.Goods, i int, params RouteParams, curve PriceCurve) []Route {
	origin := candidates[i]
	var out []Route
	for j := i + 1; j < len(candidates); j++ {
		dest := candidates[j]
		dist := origin.System().DistanceTo(dest.System())
		if params.MaxDist > 0 && dist > params.MaxDist {
			continue
		}
		out = append(out, scoreAt(origin, dest, dist, params.MaxCargo, curve))
	}
	return out
}

// rankRoutes sorts by profit descending and keeps the first topN.
// The sort is stable: equal profits keep discovery order.
func rankRoutes(routes []Route, topN int) []Route {
	sort.SliceStable(routes, func(i, j int) bool {
		return routes[i].Profit > routes[j].Profit
	})
	if len(routes) > topN {
		routes = routes[:topN]
	}
	return routes
}

// FindBestRoutes scores every unordered pair of candidates exactly once and
// returns the topN most profitable, best first. Pairs farther apart than
// MaxDist are skipped without scoring. Candidates are taken by position,
// so duplicates are paired with each other like any other records.
func FindBestRoutes(candidates []*catalog.Goods, params RouteParams) []Route {
	if params.TopN <= 0 || len(candidates) < 2 {
		return []Route{}
	}
	curve := params.curve()

	var routes []Route
	for i := range candidates {
		routes = append(routes, scanOrigin(candidates, i, params, curve)...)
	}
	return rankRoutes(routes, params.TopN)
}

// FindBestRoutesParallel is FindBestRoutes with origins scored concurrently.
// Per-origin results are merged in origin order before the stable sort, so
// the output is identical to the sequential search.
func FindBestRoutesParallel(ctx context.Context, candidates []*catalog.Goods, params RouteParams) ([]Route, error) {
	if params.TopN <= 0 || len(candidates) < 2 {
		return []Route{}, nil
	}
	curve := params.curve()
	workers := params.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	rows := make([][]Route, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range candidates {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rows[i] = scanOrigin(candidates, i, params, curve)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	total := 0
	for _, row := range rows {
		total += len(row)
	}
	routes := make([]Route, 0, total)
	for _, row := range rows {
		routes = append(routes, row...)
	}
	return rankRoutes(routes, params.TopN), nil
}
