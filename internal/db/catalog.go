package db

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"edrg/internal/catalog"
)

// Tx is a catalog write transaction.
type Tx struct {
	tx *sqlx.Tx
}

// Update runs fn in a single transaction, committing if it returns nil
// and rolling back otherwise.
func (d *DB) Update(fn func(*Tx) error) error {
	tx, err := d.sql.Beginx()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(&Tx{tx: tx}); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// AddSystem inserts a star system. Existing systems (by name) are left unchanged.
func (t *Tx) AddSystem(s catalog.StarSystem) error {
	_, err := t.tx.NamedExec(
		`INSERT INTO system (name, x, y, z) VALUES (:name, :x, :y, :z)
		 ON CONFLICT(name) DO NOTHING`, s)
	if err != nil {
		return fmt.Errorf("add system %q: %w", s.Name, err)
	}
	return nil
}

// AddStation inserts or updates a station in an existing system.
func (t *Tx) AddStation(systemName string, st catalog.Station) error {
	systemID, err := t.systemID(systemName)
	if err != nil {
		return fmt.Errorf("add station %q: %w", st.Name, err)
	}
	_, err = t.tx.Exec(
		`INSERT INTO station (name, dist, system_id) VALUES (?, ?, ?)
		 ON CONFLICT(name, system_id) DO UPDATE SET dist = excluded.dist`,
		st.Name, st.Dist, systemID)
	if err != nil {
		return fmt.Errorf("add station %q: %w", st.Name, err)
	}
	return nil
}

// AddGoods inserts or updates goods at an existing station.
func (t *Tx) AddGoods(systemName, stationName string, g catalog.Goods) error {
	systemID, err := t.systemID(systemName)
	if err != nil {
		return fmt.Errorf("add goods %q: %w", g.Name, err)
	}
	var stationID int64
	err = t.tx.Get(&stationID, "SELECT id FROM station WHERE name = ? AND system_id = ?", stationName, systemID)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("add goods %q: station %q in %q: %w", g.Name, stationName, systemName, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("add goods %q: %w", g.Name, err)
	}
	_, err = t.tx.Exec(
		`INSERT INTO goods (name, max_cap, min_supply, max_supply, price, station_id)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(name, station_id) DO UPDATE SET
			max_cap = excluded.max_cap,
			min_supply = excluded.min_supply,
			max_supply = excluded.max_supply,
			price = excluded.price`,
		g.Name, g.MaxCap, g.MinSupply, g.MaxSupply, g.Price, stationID)
	if err != nil {
		return fmt.Errorf("add goods %q: %w", g.Name, err)
	}
	return nil
}

func (t *Tx) systemID(name string) (int64, error) {
	var id int64
	err := t.tx.Get(&id, "SELECT id FROM system WHERE name = ?", name)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("system %q: %w", name, ErrNotFound)
	}
	return id, err
}

// goodsRow is one row of the goods/station/system join.
type goodsRow struct {
	ID        int64   `db:"id"`
	Name      string  `db:"name"`
	MaxCap    int     `db:"max_cap"`
	MinSupply int     `db:"min_supply"`
	MaxSupply int     `db:"max_supply"`
	Price     int     `db:"price"`
	StationID int64   `db:"station_id"`
	Station   string  `db:"station_name"`
	Dist      float64 `db:"station_dist"`
	SystemID  int64   `db:"system_id"`
	System    string  `db:"system_name"`
	X         float64 `db:"x"`
	Y         float64 `db:"y"`
	Z         float64 `db:"z"`
}

const goodsSelect = `
	SELECT g.id, g.name, g.max_cap, g.min_supply, g.max_supply, g.price,
		st.id AS station_id, st.name AS station_name, st.dist AS station_dist,
		sy.id AS system_id, sy.name AS system_name, sy.x, sy.y, sy.z
	FROM goods g
	JOIN station st ON st.id = g.station_id
	JOIN system sy ON sy.id = st.system_id`

// Goods runs q against the catalog and returns the matching goods with their
// station and system resolved. Goods sharing a station share the same
// *Station (likewise systems).
func (d *DB) Goods(q *catalog.Query) ([]*catalog.Goods, error) {
	where, orderBy, limit, args, err := q.SQL()
	if err != nil {
		return nil, err
	}
	var rows []goodsRow
	if err := d.sql.Select(&rows, fmt.Sprintf("%s %s %s %s", goodsSelect, where, orderBy, limit), args...); err != nil {
		return nil, fmt.Errorf("query goods: %w", err)
	}

	systems := make(map[int64]*catalog.StarSystem)
	stations := make(map[int64]*catalog.Station)
	out := make([]*catalog.Goods, 0, len(rows))
	for _, r := range rows {
		sys, ok := systems[r.SystemID]
		if !ok {
			sys = &catalog.StarSystem{ID: r.SystemID, Name: r.System, X: r.X, Y: r.Y, Z: r.Z}
			systems[r.SystemID] = sys
		}
		st, ok := stations[r.StationID]
		if !ok {
			st = &catalog.Station{ID: r.StationID, Name: r.Station, Dist: r.Dist, System: sys}
			stations[r.StationID] = st
		}
		out = append(out, &catalog.Goods{
			ID:        r.ID,
			Name:      r.Name,
			MaxCap:    r.MaxCap,
			MinSupply: r.MinSupply,
			MaxSupply: r.MaxSupply,
			Price:     r.Price,
			Station:   st,
		})
	}
	return out, nil
}

// Count returns how many goods match q's filters. Sort and Limit are ignored.
func (d *DB) Count(q *catalog.Query) (int, error) {
	where, _, _, args, err := (&catalog.Query{Filters: q.Filters, Limit: -1}).SQL()
	if err != nil {
		return 0, err
	}
	var n int
	query := `SELECT COUNT(*) FROM goods g
		JOIN station st ON st.id = g.station_id
		JOIN system sy ON sy.id = st.system_id ` + where
	if err := d.sql.Get(&n, query, args...); err != nil {
		return 0, fmt.Errorf("count goods: %w", err)
	}
	return n, nil
}

// Systems returns all star systems ordered by name.
func (d *DB) Systems() ([]*catalog.StarSystem, error) {
	var out []*catalog.StarSystem
	if err := d.sql.Select(&out, "SELECT id, name, x, y, z FROM system ORDER BY name"); err != nil {
		return nil, fmt.Errorf("query systems: %w", err)
	}
	return out, nil
}

// CatalogStats holds row counts per catalog table.
type CatalogStats struct {
	Systems  int `db:"systems"`
	Stations int `db:"stations"`
	Goods    int `db:"goods"`
}

// Stats returns catalog row counts.
func (d *DB) Stats() (CatalogStats, error) {
	var s CatalogStats
	err := d.sql.Get(&s, `SELECT
		(SELECT COUNT(*) FROM system) AS systems,
		(SELECT COUNT(*) FROM station) AS stations,
		(SELECT COUNT(*) FROM goods) AS goods`)
	if err != nil {
		return s, fmt.Errorf("catalog stats: %w", err)
	}
	return s, nil
}
