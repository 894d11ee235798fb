package db

import (
	"fmt"
	"strconv"

	"edrg/internal/config"
)

// LoadConfig returns a copy of base with the last saved optimization
// settings applied. Keys that were never saved keep base's values.
func (d *DB) LoadConfig(base *config.Config) *config.Config {
	cfg := *base

	type kv struct {
		Key   string `db:"key"`
		Value string `db:"value"`
	}
	var rows []kv
	if err := d.sql.Select(&rows, "SELECT key, value FROM config"); err != nil {
		return &cfg
	}
	m := make(map[string]string, len(rows))
	for _, r := range rows {
		m[r.Key] = r.Value
	}

	if v, ok := m["top_n"]; ok {
		cfg.TopN, _ = strconv.Atoi(v)
	}
	if v, ok := m["max_dist"]; ok {
		cfg.MaxDist, _ = strconv.ParseFloat(v, 64)
	}
	if v, ok := m["max_cargo"]; ok {
		cfg.MaxCargo, _ = strconv.Atoi(v)
	}
	if v, ok := m["limit"]; ok {
		cfg.Limit, _ = strconv.Atoi(v)
	}
	if v, ok := m["curve_p1"]; ok {
		cfg.Curve.P1, _ = strconv.ParseFloat(v, 64)
	}
	if v, ok := m["curve_p2"]; ok {
		cfg.Curve.P2, _ = strconv.ParseFloat(v, 64)
	}
	if v, ok := m["curve_p3"]; ok {
		cfg.Curve.P3, _ = strconv.ParseFloat(v, 64)
	}
	if v, ok := m["parallel"]; ok {
		cfg.Parallel, _ = strconv.ParseBool(v)
	}
	if v, ok := m["workers"]; ok {
		cfg.Workers, _ = strconv.Atoi(v)
	}
	return &cfg
}

// SaveConfig writes the optimization settings to SQLite (upsert all fields).
func (d *DB) SaveConfig(cfg *config.Config) error {
	pairs := map[string]string{
		"top_n":     strconv.Itoa(cfg.TopN),
		"max_dist":  fmt.Sprintf("%g", cfg.MaxDist),
		"max_cargo": strconv.Itoa(cfg.MaxCargo),
		"limit":     strconv.Itoa(cfg.Limit),
		"curve_p1":  fmt.Sprintf("%g", cfg.Curve.P1),
		"curve_p2":  fmt.Sprintf("%g", cfg.Curve.P2),
		"curve_p3":  fmt.Sprintf("%g", cfg.Curve.P3),
		"parallel":  strconv.FormatBool(cfg.Parallel),
		"workers":   strconv.Itoa(cfg.Workers),
	}

	tx, err := d.sql.Beginx()
	if err != nil {
		return err
	}
	stmt, err := tx.Preparex("INSERT OR REPLACE INTO config (key, value) VALUES (?, ?)")
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for k, v := range pairs {
		if _, err := stmt.Exec(k, v); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}
