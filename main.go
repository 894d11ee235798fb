package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"edrg/internal/catalog"
	"edrg/internal/config"
	"edrg/internal/db"
	"edrg/internal/engine"
	"edrg/internal/graph"
	"edrg/internal/importer"
	"edrg/internal/logger"
)

var version = "dev"

// multiFlag collects a repeatable string flag.
type multiFlag []string

func (m *multiFlag) String() string     { return strings.Join(*m, ", ") }
func (m *multiFlag) Set(v string) error { *m = append(*m, v); return nil }

func main() {
	var filters multiFlag
	configPath := flag.String("config", "edrg.yaml", "YAML settings file (optional)")
	envFile := flag.String("env", ".env", "dotenv file with EDRG_* overrides (optional)")
	dbPath := flag.String("db", "", "SQLite catalog path (default from config)")
	wipe := flag.Bool("wipe", false, "Wipe the catalog and re-import it from the catalog directory")
	importDir := flag.String("import", "", "Import (or update) the catalog from `DIR`")
	count := flag.Bool("count", false, "Print the number of goods matching the filters and -near")
	display := flag.Bool("display", false, "List the goods matching the filters")
	optimize := flag.Bool("optimize", false, "Find the most profitable round trips among the matching goods")
	flag.Var(&filters, "filter", "Filter `EXPR` such as price>=500 or system~lave (repeatable)")
	sortKey := flag.String("sort", "", "Sort candidates by `FIELD` (prefix - for descending)")
	limit := flag.Int("limit", -1, "Act on only the first `N` matching goods")
	near := flag.String("near", "", "Only goods within `SYSTEM:LY` of a system")
	top := flag.Int("top", 1, "Number of routes to report")
	maxDist := flag.Float64("max-dist", 0, "Maximum distance between the two stops in ly (0 = any)")
	maxCargo := flag.Int("max-cargo", 0, "Maximum units bought per leg (0 = expected supply)")
	parallel := flag.Bool("parallel", false, "Score route pairs concurrently")
	last := flag.Bool("last", false, "Reuse the optimization settings of the previous run")
	history := flag.Int("history", 0, "Show the last `N` optimize runs")
	runID := flag.String("run", "", "Show the stored optimize run `ID` with its settings")
	quiet := flag.Bool("quiet", false, "Only print results and errors")
	flag.Parse()

	logger.SetQuiet(*quiet)
	logger.Banner(version)

	if !*wipe && *importDir == "" && !*count && !*display && !*optimize && *history <= 0 && *runID == "" {
		flag.Usage()
		return
	}

	cfg, err := config.Load(*configPath, *envFile)
	if err != nil {
		fatal("Config", err)
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		fatal("DB", err)
	}
	defer database.Close()

	if *last {
		cfg = database.LoadConfig(cfg)
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "top":
			cfg.TopN = *top
		case "max-dist":
			cfg.MaxDist = *maxDist
		case "max-cargo":
			cfg.MaxCargo = *maxCargo
		case "limit":
			cfg.Limit = *limit
		case "parallel":
			cfg.Parallel = *parallel
		}
	})
	if err := cfg.Validate(); err != nil {
		exit(database, "Config", err)
	}

	if *wipe {
		if err := database.Wipe(); err != nil {
			exit(database, "DB", err)
		}
		if *importDir == "" {
			*importDir = cfg.CatalogDir
		}
	}
	if *importDir != "" {
		if err := importCatalog(database, *importDir); err != nil {
			exit(database, "Import", err)
		}
	}

	if *history > 0 {
		if err := showHistory(os.Stdout, database, *history); err != nil {
			exit(database, "History", err)
		}
	}
	if *runID != "" {
		if err := showRun(os.Stdout, database, *runID); err != nil {
			exit(database, "History", err)
		}
	}

	if !*count && !*display && !*optimize {
		return
	}

	q, err := buildQuery(filters, *sortKey)
	if err != nil {
		exit(database, "Query", err)
	}

	if *count {
		n, err := countMatching(database, q, *near)
		if err != nil {
			exit(database, "Query", err)
		}
		fmt.Println(n)
		fmt.Println()
	}

	q.WithLimit(cfg.Limit)
	candidates, err := selectCandidates(database, q, *near)
	if err != nil {
		exit(database, "Query", err)
	}

	if *display {
		for _, g := range candidates {
			fmt.Println(g)
		}
	}

	if *optimize {
		if err := runOptimize(database, cfg, candidates); err != nil {
			exit(database, "Optimize", err)
		}
	}
}

// fatal logs err and exits. Deferred calls do not run.
func fatal(tag string, err error) {
	logger.Error(tag, err.Error())
	os.Exit(1)
}

// exit closes the database before exiting with an error.
func exit(database *db.DB, tag string, err error) {
	database.Close()
	fatal(tag, err)
}

func importCatalog(database *db.DB, dir string) error {
	c, err := importer.Load(dir)
	if err != nil {
		return err
	}
	if err := database.Update(func(tx *db.Tx) error { return c.Write(tx) }); err != nil {
		return err
	}
	stats, err := database.Stats()
	if err != nil {
		return err
	}
	logger.Success("Import", fmt.Sprintf("Catalog holds %d goods at %d stations in %d systems",
		stats.Goods, stats.Stations, stats.Systems))
	return nil
}

func buildQuery(filters []string, sortKey string) (*catalog.Query, error) {
	q := catalog.NewQuery()
	for _, expr := range filters {
		f, err := catalog.ParseFilter(expr)
		if err != nil {
			return nil, err
		}
		q.Where(f)
	}
	if sortKey != "" {
		s, err := catalog.ParseSort(sortKey)
		if err != nil {
			return nil, err
		}
		q.OrderBy(s)
	}
	return q, nil
}

// selectCandidates runs q in the store. With a -near restriction the limit
// is applied after the distance filter so it still bounds the candidate count.
func selectCandidates(database *db.DB, q *catalog.Query, near string) ([]*catalog.Goods, error) {
	if near == "" {
		return database.Goods(q)
	}
	origin, radius, err := parseNear(near)
	if err != nil {
		return nil, err
	}
	systems, err := database.Systems()
	if err != nil {
		return nil, err
	}
	u := graph.NewUniverse()
	for _, s := range systems {
		u.AddSystem(s.Name, s.Pos())
	}
	within := u.SystemsWithinRadius(origin, radius)
	if within == nil {
		return nil, fmt.Errorf("near: unknown system %q: %w", origin, db.ErrNotFound)
	}

	limit := q.Limit
	all, err := database.Goods(&catalog.Query{Filters: q.Filters, Sort: q.Sort, Limit: -1})
	if err != nil {
		return nil, err
	}
	out := make([]*catalog.Goods, 0, len(all))
	for _, g := range all {
		if _, ok := within[g.System().Name]; ok {
			out = append(out, g)
		}
	}
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	logger.Info("Query", fmt.Sprintf("%d goods within %g ly of %s", len(out), radius, origin))
	return out, nil
}

// countMatching counts the goods matching q and the -near restriction.
// The limit is ignored.
func countMatching(database *db.DB, q *catalog.Query, near string) (int, error) {
	if near == "" {
		return database.Count(q)
	}
	goods, err := selectCandidates(database, &catalog.Query{Filters: q.Filters, Limit: -1}, near)
	if err != nil {
		return 0, err
	}
	return len(goods), nil
}

func parseNear(s string) (string, float64, error) {
	i := strings.LastIndex(s, ":")
	if i <= 0 {
		return "", 0, errors.New("near: want SYSTEM:LY")
	}
	radius, err := strconv.ParseFloat(s[i+1:], 64)
	if err != nil || radius < 0 {
		return "", 0, fmt.Errorf("near: bad radius %q", s[i+1:])
	}
	return strings.TrimSpace(s[:i]), radius, nil
}

func runOptimize(database *db.DB, cfg *config.Config, candidates []*catalog.Goods) error {
	params := cfg.RouteParams()
	logger.Info("Optimize", fmt.Sprintf("Scoring %d pairs from %d candidates", len(candidates)*(len(candidates)-1)/2, len(candidates)))

	start := time.Now()
	var routes []engine.Route
	if cfg.Parallel {
		var err error
		if routes, err = engine.FindBestRoutesParallel(context.Background(), candidates, params); err != nil {
			return err
		}
	} else {
		routes = engine.FindBestRoutes(candidates, params)
	}
	elapsed := time.Since(start)

	if len(routes) == 0 {
		logger.Warn("Optimize", "No routes found")
	}
	for i, r := range routes {
		logger.Route(i+1, formatRoute(r))
	}

	if _, err := database.InsertRouteRun(len(candidates), routes, elapsed, params); err != nil {
		logger.Warn("History", err.Error())
	}
	if err := database.SaveConfig(cfg); err != nil {
		logger.Warn("Config", fmt.Sprintf("Failed to save settings: %v", err))
	}
	return nil
}

func formatRoute(r engine.Route) string {
	return fmt.Sprintf("%s cr  %s  <->  %s  %.2f ly  %s cr/ly",
		humanize.Comma(int64(math.Round(r.Profit))), r.Origin.Label(), r.Destination.Label(), r.Distance,
		humanize.Comma(int64(math.Round(r.ProfitPerLy))))
}

func showHistory(w io.Writer, database *db.DB, n int) error {
	runs, err := database.GetRouteRuns(n)
	if err != nil {
		return err
	}
	logger.Section("Route history")
	for _, run := range runs {
		records, err := database.GetRouteResults(run.ID)
		if err != nil {
			return err
		}
		printRun(w, run, records)
	}
	return nil
}

func showRun(w io.Writer, database *db.DB, id string) error {
	run, err := database.GetRouteRun(id)
	if err != nil {
		return err
	}
	records, err := database.GetRouteResults(run.ID)
	if err != nil {
		return err
	}
	logger.Section("Route run")
	printRun(w, *run, records)
	fmt.Fprintf(w, "    settings %s\n", run.Params)
	return nil
}

func printRun(w io.Writer, run db.RouteRun, records []db.RouteRecord) {
	fmt.Fprintf(w, "%s  %s  %d candidates  %d routes  top %s cr  %dms\n",
		run.Timestamp, run.ID, run.Candidates, run.RouteCount,
		humanize.Comma(int64(math.Round(run.TopProfit))), run.DurationMs)
	for _, rec := range records {
		fmt.Fprintf(w, "    %2d. %s cr  %s @ %s (%s)  <->  %s @ %s (%s)  %.2f ly\n",
			rec.Rank, humanize.Comma(int64(math.Round(rec.Profit))),
			rec.Origin, rec.OriginStation, rec.OriginSystem,
			rec.Dest, rec.DestStation, rec.DestSystem, rec.Distance)
	}
}
