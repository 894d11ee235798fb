package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"edrg/internal/engine"
)

// Fixed-width so timestamps sort lexically.
const timestampLayout = "2006-01-02T15:04:05.000000000Z"

// RouteRun is one optimize invocation in the route history.
type RouteRun struct {
	ID         string  `db:"id" json:"id"`
	Timestamp  string  `db:"timestamp" json:"timestamp"`
	Candidates int     `db:"candidates" json:"candidates"`
	RouteCount int     `db:"route_count" json:"route_count"`
	TopProfit  float64 `db:"top_profit" json:"top_profit"`
	DurationMs int64   `db:"duration_ms" json:"duration_ms"`
	Params     string  `db:"params_json" json:"params"`
}

// RouteRecord is one stored route of a run, flattened to names.
type RouteRecord struct {
	Rank          int     `db:"rank" json:"rank"`
	Origin        string  `db:"origin" json:"origin"`
	OriginStation string  `db:"origin_station" json:"origin_station"`
	OriginSystem  string  `db:"origin_system" json:"origin_system"`
	Dest          string  `db:"dest" json:"dest"`
	DestStation   string  `db:"dest_station" json:"dest_station"`
	DestSystem    string  `db:"dest_system" json:"dest_system"`
	Distance      float64 `db:"distance" json:"distance"`
	OriginUnits   int     `db:"origin_units" json:"origin_units"`
	DestUnits     int     `db:"dest_units" json:"dest_units"`
	Profit        float64 `db:"profit" json:"profit"`
}

// InsertRouteRun stores an optimize run and its ranked routes, returning the run ID.
func (d *DB) InsertRouteRun(candidates int, routes []engine.Route, duration time.Duration, params interface{}) (string, error) {
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("marshal params: %w", err)
	}
	run := RouteRun{
		ID:         uuid.NewString(),
		Timestamp:  time.Now().UTC().Format(timestampLayout),
		Candidates: candidates,
		RouteCount: len(routes),
		DurationMs: duration.Milliseconds(),
		Params:     string(paramsJSON),
	}
	if len(routes) > 0 {
		run.TopProfit = routes[0].Profit
	}

	tx, err := d.sql.Beginx()
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	_, err = tx.Exec(
		`INSERT INTO route_run (id, timestamp, candidates, route_count, top_profit, duration_ms, params_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Timestamp, run.Candidates, run.RouteCount, run.TopProfit, run.DurationMs, run.Params)
	if err != nil {
		tx.Rollback()
		return "", fmt.Errorf("insert route run: %w", err)
	}

	for i, r := range routes {
		rec := recordFromRoute(i+1, r)
		_, err := tx.NamedExec(
			`INSERT INTO route_result (run_id, rank, origin, origin_station, origin_system,
				dest, dest_station, dest_system, distance, origin_units, dest_units, profit)
			 VALUES (:run_id, :rank, :origin, :origin_station, :origin_system,
				:dest, :dest_station, :dest_system, :distance, :origin_units, :dest_units, :profit)`,
			struct {
				RunID string `db:"run_id"`
				RouteRecord
			}{run.ID, rec})
		if err != nil {
			tx.Rollback()
			return "", fmt.Errorf("insert route result: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit route run: %w", err)
	}
	return run.ID, nil
}

func recordFromRoute(rank int, r engine.Route) RouteRecord {
	return RouteRecord{
		Rank:          rank,
		Origin:        r.Origin.Name,
		OriginStation: r.Origin.Station.Name,
		OriginSystem:  r.Origin.System().Name,
		Dest:          r.Destination.Name,
		DestStation:   r.Destination.Station.Name,
		DestSystem:    r.Destination.System().Name,
		Distance:      r.Distance,
		OriginUnits:   r.OriginUnits,
		DestUnits:     r.DestUnits,
		Profit:        r.Profit,
	}
}

// GetRouteRuns returns the last N runs (newest first).
func (d *DB) GetRouteRuns(limit int) ([]RouteRun, error) {
	if limit <= 0 {
		limit = 20
	}
	runs := []RouteRun{}
	err := d.sql.Select(&runs,
		`SELECT id, timestamp, candidates, route_count, top_profit, duration_ms, params_json
		 FROM route_run ORDER BY timestamp DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query route runs: %w", err)
	}
	return runs, nil
}

// GetRouteRun returns a single run.
func (d *DB) GetRouteRun(id string) (*RouteRun, error) {
	var run RouteRun
	err := d.sql.Get(&run,
		`SELECT id, timestamp, candidates, route_count, top_profit, duration_ms, params_json
		 FROM route_run WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("route run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query route run: %w", err)
	}
	return &run, nil
}

// GetRouteResults returns the stored routes of a run in rank order.
func (d *DB) GetRouteResults(runID string) ([]RouteRecord, error) {
	records := []RouteRecord{}
	err := d.sql.Select(&records,
		`SELECT rank, origin, origin_station, origin_system, dest, dest_station, dest_system,
			distance, origin_units, dest_units, profit
		 FROM route_result WHERE run_id = ? ORDER BY rank`, runID)
	if err != nil {
		return nil, fmt.Errorf("query route results: %w", err)
	}
	return records, nil
}
