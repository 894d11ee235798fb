package db

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"edrg/internal/catalog"
	"edrg/internal/config"
	"edrg/internal/engine"
)

// openTestDB opens an in-memory SQLite DB and runs migrations (for testing only).
func openTestDB(t *testing.T) *DB {
	t.Helper()
	d, err := open(":memory:")
	if err != nil {
		t.Fatalf("open in-memory db: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

type seedGoods struct {
	system, station string
	goods           catalog.Goods
}

func seedCatalog(t *testing.T, d *DB) {
	t.Helper()
	err := d.Update(func(tx *Tx) error {
		for _, s := range []catalog.StarSystem{
			{Name: "Lave", X: 75.75, Y: 48.75, Z: 70.75},
			{Name: "Leesti", X: 72.75, Y: 48.75, Z: 68.25},
			{Name: "Alpha Centauri", X: 3.03, Y: -0.09, Z: 3.16},
		} {
			if err := tx.AddSystem(s); err != nil {
				return err
			}
		}
		for _, st := range []struct {
			system string
			st     catalog.Station
		}{
			{"Lave", catalog.Station{Name: "Lave Station", Dist: 302}},
			{"Leesti", catalog.Station{Name: "George Lucas", Dist: 255}},
			{"Alpha Centauri", catalog.Station{Name: "Hutton Orbital", Dist: 6784404}},
		} {
			if err := tx.AddStation(st.system, st.st); err != nil {
				return err
			}
		}
		for _, g := range []seedGoods{
			{"Lave", "Lave Station", catalog.Goods{Name: "Lavian Brandy", MaxCap: 16, MinSupply: 10, MaxSupply: 15, Price: 1036}},
			{"Leesti", "George Lucas", catalog.Goods{Name: "Leestian Evil Juice", MaxCap: 12, MinSupply: 8, MaxSupply: 12, Price: 450}},
			{"Alpha Centauri", "Hutton Orbital", catalog.Goods{Name: "Centauri Mega Gin", MaxCap: 0, MinSupply: 0, MaxSupply: 0, Price: 1420}},
			{"Lave", "Lave Station", catalog.Goods{Name: "Azure Milk", MaxCap: 14, MinSupply: 1, MaxSupply: 4, Price: 450}},
		} {
			if err := tx.AddGoods(g.system, g.station, g.goods); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seed catalog: %v", err)
	}
}

func TestDB_GoodsResolvesStationAndSystem(t *testing.T) {
	d := openTestDB(t)
	seedCatalog(t, d)

	goods, err := d.Goods(catalog.NewQuery())
	if err != nil {
		t.Fatal(err)
	}
	if len(goods) != 4 {
		t.Fatalf("len = %d, want 4", len(goods))
	}
	brandy := goods[0]
	if brandy.Name != "Lavian Brandy" || brandy.Price != 1036 || brandy.MaxCap != 16 {
		t.Errorf("goods[0] = %+v", brandy)
	}
	if brandy.Station.Name != "Lave Station" || brandy.Station.Dist != 302 {
		t.Errorf("station = %+v", brandy.Station)
	}
	if sys := brandy.System(); sys.Name != "Lave" || sys.X != 75.75 || sys.Z != 70.75 {
		t.Errorf("system = %+v", sys)
	}
	// Same station -> same pointer.
	if goods[3].Station != brandy.Station {
		t.Error("goods at the same station should share *Station")
	}
}

func TestDB_AddSystemKeepsExisting(t *testing.T) {
	d := openTestDB(t)
	seedCatalog(t, d)

	err := d.Update(func(tx *Tx) error {
		return tx.AddSystem(catalog.StarSystem{Name: "Lave", X: 1, Y: 2, Z: 3})
	})
	if err != nil {
		t.Fatal(err)
	}
	systems, err := d.Systems()
	if err != nil {
		t.Fatal(err)
	}
	if len(systems) != 3 {
		t.Fatalf("len = %d, want 3", len(systems))
	}
	for _, s := range systems {
		if s.Name == "Lave" && s.X != 75.75 {
			t.Errorf("Lave X = %v, want original 75.75", s.X)
		}
	}
}

func TestDB_AddGoodsUpserts(t *testing.T) {
	d := openTestDB(t)
	seedCatalog(t, d)

	err := d.Update(func(tx *Tx) error {
		return tx.AddGoods("Lave", "Lave Station", catalog.Goods{Name: "Lavian Brandy", MinSupply: 1, MaxSupply: 2, Price: 999})
	})
	if err != nil {
		t.Fatal(err)
	}
	f, _ := catalog.ParseFilter("name=Lavian Brandy")
	goods, err := d.Goods(catalog.NewQuery().Where(f))
	if err != nil {
		t.Fatal(err)
	}
	if len(goods) != 1 || goods[0].Price != 999 {
		t.Errorf("goods = %+v, want a single updated row", goods)
	}
}

func TestDB_UpdateRollsBackOnError(t *testing.T) {
	d := openTestDB(t)
	err := d.Update(func(tx *Tx) error {
		if err := tx.AddSystem(catalog.StarSystem{Name: "Orphan"}); err != nil {
			return err
		}
		return tx.AddStation("Nowhere", catalog.Station{Name: "Ghost"})
	})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	stats, err := d.Stats()
	if err != nil {
		t.Fatal(err)
	}
	if stats.Systems != 0 {
		t.Errorf("Systems = %d, want 0 after rollback", stats.Systems)
	}
}

func TestDB_AddGoodsUnknownStation(t *testing.T) {
	d := openTestDB(t)
	seedCatalog(t, d)
	err := d.Update(func(tx *Tx) error {
		return tx.AddGoods("Lave", "No Such Port", catalog.Goods{Name: "x", Price: 1})
	})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestDB_CountIgnoresLimit(t *testing.T) {
	d := openTestDB(t)
	seedCatalog(t, d)

	f, _ := catalog.ParseFilter("price<=1036")
	n, err := d.Count(catalog.NewQuery().Where(f).WithLimit(1))
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("Count = %d, want 3", n)
	}
}

func TestDB_StatsAndWipe(t *testing.T) {
	d := openTestDB(t)
	seedCatalog(t, d)

	stats, err := d.Stats()
	if err != nil {
		t.Fatal(err)
	}
	if stats != (CatalogStats{Systems: 3, Stations: 3, Goods: 4}) {
		t.Errorf("Stats = %+v", stats)
	}
	if err := d.Wipe(); err != nil {
		t.Fatal(err)
	}
	stats, _ = d.Stats()
	if stats != (CatalogStats{}) {
		t.Errorf("Stats after wipe = %+v", stats)
	}
}

// randomizedCatalog seeds goods with odd and even supply sums so the SQL
// rounding of expected_supply is exercised at exact halves.
func randomizedCatalog(t *testing.T, d *DB) {
	t.Helper()
	rng := rand.New(rand.NewSource(3))
	err := d.Update(func(tx *Tx) error {
		for s := 0; s < 4; s++ {
			sys := fmt.Sprintf("Sys%d", s)
			if err := tx.AddSystem(catalog.StarSystem{Name: sys, X: float64(s * 10), Y: float64(-s), Z: 0}); err != nil {
				return err
			}
			if err := tx.AddStation(sys, catalog.Station{Name: "Port", Dist: float64(s * 100)}); err != nil {
				return err
			}
			for g := 0; g < 10; g++ {
				min := rng.Intn(15)
				goods := catalog.Goods{
					Name:      fmt.Sprintf("Goods %c%d", 'a'+rng.Intn(5), g),
					MaxCap:    rng.Intn(3) * 8,
					MinSupply: min,
					MaxSupply: min + rng.Intn(9),
					Price:     50 + rng.Intn(40)*25,
				}
				if err := tx.AddGoods(sys, "Port", goods); err != nil {
					return err
				}
			}
		}
		for _, name := range []string{"Ëlixir Ärzte", "ëlixir", "Øl"} {
			g := catalog.Goods{Name: name, MinSupply: 3, MaxSupply: 6, Price: 400}
			if err := tx.AddGoods("Sys1", "Port", g); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
}

// The SQL translation of every field, derived ones included, must select and
// order exactly like the in-memory Goods accessors.
func TestDB_QueryMatchesInMemory(t *testing.T) {
	d := openTestDB(t)
	randomizedCatalog(t, d)

	all, err := d.Goods(catalog.NewQuery())
	if err != nil {
		t.Fatal(err)
	}

	filters := []string{
		"expected_supply>=7", "expected_supply=5", "expected_value>2000",
		"min_value<=500", "max_value!=0", "price<300", "max_cap=0",
		"station_dist>=100", "x<20", "y>-2", "z=0",
		"name~A", "system=Sys2", "station~port", "name>=Goods c",
		"min_supply>3", "max_supply<=10",
		"name~ëlixir", "name~ÄRZTE", "name~øl", "name>=Ë",
	}
	sorts := []string{"", "expected_supply", "-expected_value", "min_value", "-max_value", "name", "-system", "price"}

	for _, fexpr := range filters {
		for _, sexpr := range sorts {
			f, err := catalog.ParseFilter(fexpr)
			if err != nil {
				t.Fatalf("ParseFilter(%q): %v", fexpr, err)
			}
			q := catalog.NewQuery().Where(f).WithLimit(7)
			if sexpr != "" {
				s, err := catalog.ParseSort(sexpr)
				if err != nil {
					t.Fatalf("ParseSort(%q): %v", sexpr, err)
				}
				q.OrderBy(s)
			}

			got, err := d.Goods(q)
			if err != nil {
				t.Fatalf("%s / %s: %v", fexpr, sexpr, err)
			}
			want := q.Apply(all)
			if len(got) != len(want) {
				t.Errorf("%s / %s: sql %d rows, memory %d rows", fexpr, sexpr, len(got), len(want))
				continue
			}
			for i := range want {
				if got[i].ID != want[i].ID {
					t.Errorf("%s / %s: row %d sql id %d, memory id %d", fexpr, sexpr, i, got[i].ID, want[i].ID)
					break
				}
			}
		}
	}
}

func TestDB_ContainsFoldsNonASCII(t *testing.T) {
	d := openTestDB(t)
	randomizedCatalog(t, d)

	f, err := catalog.ParseFilter("name~ËLIXIR")
	if err != nil {
		t.Fatal(err)
	}
	got, err := d.Goods(catalog.NewQuery().Where(f))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d goods, want Ëlixir Ärzte and ëlixir", len(got))
	}
	for _, g := range got {
		if g.Name != "Ëlixir Ärzte" && g.Name != "ëlixir" {
			t.Errorf("unexpected match %q", g.Name)
		}
	}
	n, err := d.Count(catalog.NewQuery().Where(f))
	if err != nil || n != 2 {
		t.Errorf("Count = %d, %v, want 2", n, err)
	}
}

func TestDB_ConfigRoundTrip(t *testing.T) {
	d := openTestDB(t)

	base := config.Default()
	if got := d.LoadConfig(base); *got != *base {
		t.Errorf("empty store changed config: %+v", got)
	}

	saved := config.Default()
	saved.TopN = 7
	saved.MaxDist = 123.5
	saved.MaxCargo = 20
	saved.Limit = 40
	saved.Curve = engine.PriceCurve{P1: 15000, P2: 0.07, P3: 95}
	saved.Parallel = true
	saved.Workers = 4
	if err := d.SaveConfig(saved); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}

	got := d.LoadConfig(config.Default())
	if *got != *saved {
		t.Errorf("LoadConfig = %+v, want %+v", got, saved)
	}
	if base.TopN != 1 {
		t.Error("LoadConfig modified its base")
	}
}

func TestDB_RouteHistoryRoundTrip(t *testing.T) {
	d := openTestDB(t)
	seedCatalog(t, d)

	goods, err := d.Goods(catalog.NewQuery())
	if err != nil {
		t.Fatal(err)
	}
	p := engine.DefaultRouteParams()
	p.TopN = 3
	routes := engine.FindBestRoutes(goods, p)

	id, err := d.InsertRouteRun(len(goods), routes, 1500*time.Millisecond, p)
	if err != nil {
		t.Fatalf("InsertRouteRun: %v", err)
	}
	if id == "" {
		t.Fatal("empty run id")
	}

	runs, err := d.GetRouteRuns(5)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].ID != id {
		t.Fatalf("runs = %+v", runs)
	}
	if runs[0].Candidates != 4 || runs[0].RouteCount != 3 || runs[0].DurationMs != 1500 {
		t.Errorf("run = %+v", runs[0])
	}
	if runs[0].TopProfit != routes[0].Profit {
		t.Errorf("TopProfit = %v, want %v", runs[0].TopProfit, routes[0].Profit)
	}

	records, err := d.GetRouteResults(id)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 3 {
		t.Fatalf("records = %d, want 3", len(records))
	}
	for i, rec := range records {
		if rec.Rank != i+1 {
			t.Errorf("records[%d].Rank = %d", i, rec.Rank)
		}
		if rec.Origin != routes[i].Origin.Name || rec.DestSystem != routes[i].Destination.System().Name {
			t.Errorf("records[%d] = %+v", i, rec)
		}
		if rec.Profit != routes[i].Profit || rec.Distance != routes[i].Distance {
			t.Errorf("records[%d] profit/distance = %v/%v", i, rec.Profit, rec.Distance)
		}
	}

	one, err := d.GetRouteRun(id)
	if err != nil || one.ID != id {
		t.Errorf("GetRouteRun = %+v, %v", one, err)
	}
	if _, err := d.GetRouteRun("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetRouteRun(missing) err = %v", err)
	}
}

func TestDB_RouteRunsNewestFirst(t *testing.T) {
	d := openTestDB(t)
	first, err := d.InsertRouteRun(0, nil, 0, map[string]int{"n": 1})
	if err != nil {
		t.Fatal(err)
	}
	second, err := d.InsertRouteRun(0, nil, 0, map[string]int{"n": 2})
	if err != nil {
		t.Fatal(err)
	}
	runs, err := d.GetRouteRuns(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 || runs[0].ID != second || runs[1].ID != first {
		t.Errorf("order = %v, want [%s %s]", runs, second, first)
	}
	if runs[0].Params != `{"n":2}` {
		t.Errorf("Params = %s", runs[0].Params)
	}
}
