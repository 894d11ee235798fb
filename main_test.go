package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"edrg/internal/catalog"
	"edrg/internal/db"
	"edrg/internal/engine"
)

func TestParseNear(t *testing.T) {
	name, radius, err := parseNear("Alpha Centauri:150.5")
	if err != nil {
		t.Fatal(err)
	}
	if name != "Alpha Centauri" || radius != 150.5 {
		t.Errorf("parseNear = %q, %v", name, radius)
	}
	for _, bad := range []string{"Lave", ":20", "Lave:far", "Lave:-1"} {
		if _, _, err := parseNear(bad); err == nil {
			t.Errorf("parseNear(%q) = nil error", bad)
		}
	}
}

func TestBuildQuery(t *testing.T) {
	q, err := buildQuery([]string{"price>=100", "system~lave"}, "-expected_value")
	if err != nil {
		t.Fatal(err)
	}
	if len(q.Filters) != 2 {
		t.Errorf("filters = %d, want 2", len(q.Filters))
	}
	if q.Sort == nil || q.Sort.Field != catalog.FieldExpectedValue || !q.Sort.Desc {
		t.Errorf("sort = %+v", q.Sort)
	}
	if q.Limit != -1 {
		t.Errorf("limit = %d, want -1", q.Limit)
	}

	if _, err := buildQuery([]string{"__import__('os')"}, ""); err == nil {
		t.Error("arbitrary expression accepted")
	}
	if _, err := buildQuery(nil, "colour"); err == nil {
		t.Error("unknown sort key accepted")
	}
}

func TestFormatRoute(t *testing.T) {
	sysA := &catalog.StarSystem{Name: "Lave"}
	sysB := &catalog.StarSystem{Name: "Leesti", Z: 4.5}
	r := engine.Route{
		Origin:      &catalog.Goods{Name: "Lavian Brandy", Station: &catalog.Station{Name: "Lave Station", System: sysA}},
		Destination: &catalog.Goods{Name: "Evil Juice", Station: &catalog.Station{Name: "George Lucas", System: sysB}},
		Distance:    4.5,
		Profit:      1234567.5,
		ProfitPerLy: 1234567.5 / 4.5,
	}
	got := formatRoute(r)
	for _, want := range []string{"1,234,568 cr", "Lavian Brandy @ Lave Station (Lave)", "Evil Juice @ George Lucas (Leesti)", "4.50 ly", "274,348 cr/ly"} {
		if !strings.Contains(got, want) {
			t.Errorf("formatRoute = %q, missing %q", got, want)
		}
	}
}

// openCatalog opens an in-memory store with goods at three distances from Lave.
func openCatalog(t *testing.T) *db.DB {
	t.Helper()
	database, err := db.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { database.Close() })

	err = database.Update(func(tx *db.Tx) error {
		for _, s := range []catalog.StarSystem{
			{Name: "Lave"},
			{Name: "Leesti", Z: 10},
			{Name: "Far Away", Z: 500},
		} {
			if err := tx.AddSystem(s); err != nil {
				return err
			}
			if err := tx.AddStation(s.Name, catalog.Station{Name: s.Name + " Port"}); err != nil {
				return err
			}
		}
		for _, g := range []struct{ system, name string }{
			{"Lave", "Lavian Brandy"}, {"Lave", "Azure Milk"},
			{"Leesti", "Evil Juice"}, {"Far Away", "Mega Gin"},
		} {
			goods := catalog.Goods{Name: g.name, MinSupply: 4, MaxSupply: 8, Price: 500}
			if err := tx.AddGoods(g.system, g.system+" Port", goods); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return database
}

func TestCountMatching_Near(t *testing.T) {
	database := openCatalog(t)
	q := catalog.NewQuery().WithLimit(1)

	n, err := countMatching(database, q, "")
	if err != nil || n != 4 {
		t.Errorf("count = %d, %v, want 4", n, err)
	}
	n, err = countMatching(database, q, "Lave:20")
	if err != nil || n != 3 {
		t.Errorf("count near Lave = %d, %v, want 3", n, err)
	}

	f, _ := catalog.ParseFilter("name~milk")
	n, err = countMatching(database, catalog.NewQuery().Where(f), "Lave:20")
	if err != nil || n != 1 {
		t.Errorf("filtered count near Lave = %d, %v, want 1", n, err)
	}

	if _, err := countMatching(database, q, "Nowhere:20"); !errors.Is(err, db.ErrNotFound) {
		t.Errorf("unknown system err = %v", err)
	}
}

func TestShowRun(t *testing.T) {
	database := openCatalog(t)
	goods, err := database.Goods(catalog.NewQuery())
	if err != nil {
		t.Fatal(err)
	}
	p := engine.DefaultRouteParams()
	p.TopN = 2
	id, err := database.InsertRouteRun(len(goods), engine.FindBestRoutes(goods, p), time.Second, p)
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := showRun(&buf, database, id); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{id, "4 candidates", "2 routes", " 1. ", " 2. ", "settings {", "1000ms"} {
		if !strings.Contains(out, want) {
			t.Errorf("showRun output missing %q:\n%s", want, out)
		}
	}

	if err := showRun(&buf, database, "missing"); !errors.Is(err, db.ErrNotFound) {
		t.Errorf("showRun(missing) err = %v", err)
	}
}
