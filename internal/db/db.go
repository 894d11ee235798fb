package db

import (
	"database/sql/driver"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"modernc.org/sqlite"

	"edrg/internal/catalog"
	"edrg/internal/logger"
)

func init() {
	// SQLite lower() only folds ASCII; contains filters must fold like catalog.Fold.
	if err := sqlite.RegisterDeterministicScalarFunction(catalog.FoldFunc, 1, fold); err != nil {
		panic(err)
	}
}

func fold(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	switch v := args[0].(type) {
	case nil:
		return nil, nil
	case string:
		return catalog.Fold(v), nil
	case []byte:
		return catalog.Fold(string(v)), nil
	}
	return nil, fmt.Errorf("%s: unsupported argument %T", catalog.FoldFunc, args[0])
}

// ErrNotFound is returned when a referenced system or station does not exist.
var ErrNotFound = errors.New("not found")

// DB wraps a SQLite database connection holding the goods catalog,
// persisted settings and route history.
type DB struct {
	sql *sqlx.DB
}

// Open opens (or creates) the SQLite database at path and runs migrations.
// Use ":memory:" for a throwaway database. The caller must Close it.
func Open(path string) (*DB, error) {
	d, err := open(path)
	if err != nil {
		return nil, err
	}
	logger.Success("DB", fmt.Sprintf("Opened %s", path))
	return d, nil
}

func open(path string) (*DB, error) {
	sqlDB, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and
	// serializes writes from the importer.
	sqlDB.SetMaxOpenConns(1)
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	d := &DB{sql: sqlDB}
	if err := d.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate db: %w", err)
	}
	return d, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.sql.Close()
}

func (d *DB) migrate() error {
	version := 0
	// Missing table on a fresh database leaves version at 0.
	d.sql.Get(&version, "SELECT version FROM schema_version ORDER BY version DESC LIMIT 1")

	if version < 1 {
		_, err := d.sql.Exec(`
			CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY);

			CREATE TABLE IF NOT EXISTS config (
				key   TEXT PRIMARY KEY,
				value TEXT NOT NULL
			);

			CREATE TABLE IF NOT EXISTS system (
				id   INTEGER PRIMARY KEY AUTOINCREMENT,
				name TEXT NOT NULL UNIQUE,
				x    REAL NOT NULL,
				y    REAL NOT NULL,
				z    REAL NOT NULL
			);

			CREATE TABLE IF NOT EXISTS station (
				id        INTEGER PRIMARY KEY AUTOINCREMENT,
				name      TEXT NOT NULL,
				dist      REAL NOT NULL DEFAULT 0,
				system_id INTEGER NOT NULL REFERENCES system(id),
				UNIQUE(name, system_id)
			);
			CREATE INDEX IF NOT EXISTS idx_station_system ON station(system_id);

			CREATE TABLE IF NOT EXISTS goods (
				id         INTEGER PRIMARY KEY AUTOINCREMENT,
				name       TEXT NOT NULL,
				max_cap    INTEGER NOT NULL DEFAULT 0,
				min_supply INTEGER NOT NULL DEFAULT 0,
				max_supply INTEGER NOT NULL DEFAULT 0,
				price      INTEGER NOT NULL,
				station_id INTEGER NOT NULL REFERENCES station(id),
				UNIQUE(name, station_id)
			);
			CREATE INDEX IF NOT EXISTS idx_goods_station ON goods(station_id);

			INSERT OR IGNORE INTO schema_version (version) VALUES (1);
		`)
		if err != nil {
			return fmt.Errorf("migration v1: %w", err)
		}
		logger.Info("DB", "Applied migration v1")
	}

	if version < 2 {
		_, err := d.sql.Exec(`
			CREATE TABLE IF NOT EXISTS route_run (
				id          TEXT PRIMARY KEY,
				timestamp   TEXT NOT NULL,
				candidates  INTEGER NOT NULL,
				route_count INTEGER NOT NULL,
				top_profit  REAL NOT NULL,
				duration_ms INTEGER NOT NULL DEFAULT 0,
				params_json TEXT NOT NULL DEFAULT '{}'
			);
			CREATE INDEX IF NOT EXISTS idx_route_run_ts ON route_run(timestamp);

			CREATE TABLE IF NOT EXISTS route_result (
				id             INTEGER PRIMARY KEY AUTOINCREMENT,
				run_id         TEXT NOT NULL REFERENCES route_run(id),
				rank           INTEGER NOT NULL,
				origin         TEXT NOT NULL,
				origin_station TEXT NOT NULL,
				origin_system  TEXT NOT NULL,
				dest           TEXT NOT NULL,
				dest_station   TEXT NOT NULL,
				dest_system    TEXT NOT NULL,
				distance       REAL NOT NULL,
				origin_units   INTEGER NOT NULL,
				dest_units     INTEGER NOT NULL,
				profit         REAL NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_route_result_run ON route_result(run_id);

			INSERT OR IGNORE INTO schema_version (version) VALUES (2);
		`)
		if err != nil {
			return fmt.Errorf("migration v2: %w", err)
		}
		logger.Info("DB", "Applied migration v2 (route history)")
	}

	return nil
}

// Wipe deletes all catalog rows. Settings and route history are kept.
func (d *DB) Wipe() error {
	_, err := d.sql.Exec(`
		DELETE FROM goods;
		DELETE FROM station;
		DELETE FROM system;
	`)
	if err != nil {
		return fmt.Errorf("wipe catalog: %w", err)
	}
	logger.Info("DB", "Catalog wiped")
	return nil
}
