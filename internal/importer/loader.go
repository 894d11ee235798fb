// Package importer loads a rare-goods catalog from line-delimited JSON files
// and writes it to the catalog store.
package importer

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"edrg/internal/catalog"
	"edrg/internal/logger"
)

// ErrInvalidRecord is returned for malformed or incomplete catalog lines.
var ErrInvalidRecord = errors.New("invalid catalog record")

// Catalog file names inside the catalog directory.
const (
	SystemsFile  = "systems.jsonl"
	StationsFile = "stations.jsonl"
	GoodsFile    = "goods.jsonl"
)

// StationRecord is a station plus the name of its system.
type StationRecord struct {
	System  string
	Station catalog.Station
}

// GoodsRecord is a goods entry plus the names of its station and system.
type GoodsRecord struct {
	System  string
	Station string
	Goods   catalog.Goods
}

// Catalog is a parsed, validated catalog ready to be written.
type Catalog struct {
	Systems  []catalog.StarSystem
	Stations []StationRecord
	Goods    []GoodsRecord
}

// Writer receives catalog records; *db.Tx implements it.
type Writer interface {
	AddSystem(s catalog.StarSystem) error
	AddStation(systemName string, st catalog.Station) error
	AddGoods(systemName, stationName string, g catalog.Goods) error
}

// Load parses and validates the three catalog files in dir.
func Load(dir string) (*Catalog, error) {
	c := &Catalog{}

	logger.Info("Import", "Loading systems...")
	if err := readJSONL(filepath.Join(dir, SystemsFile), c.addSystem); err != nil {
		return nil, err
	}
	logger.Info("Import", "Loading stations...")
	if err := readJSONL(filepath.Join(dir, StationsFile), c.addStation); err != nil {
		return nil, err
	}
	logger.Info("Import", "Loading goods...")
	if err := readJSONL(filepath.Join(dir, GoodsFile), c.addGoods); err != nil {
		return nil, err
	}

	logger.Section("Catalog")
	logger.Stats("Systems", len(c.Systems))
	logger.Stats("Stations", len(c.Stations))
	logger.Stats("Goods", len(c.Goods))
	return c, nil
}

// Write sends all records to w: systems, then stations, then goods.
// References to unknown systems or stations fail with ErrInvalidRecord.
func (c *Catalog) Write(w Writer) error {
	for _, s := range c.Systems {
		if err := w.AddSystem(s); err != nil {
			return err
		}
	}
	for _, st := range c.Stations {
		if err := w.AddStation(st.System, st.Station); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidRecord, err)
		}
	}
	for _, g := range c.Goods {
		if err := w.AddGoods(g.System, g.Station, g.Goods); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidRecord, err)
		}
	}
	return nil
}

func (c *Catalog) addSystem(raw json.RawMessage) error {
	var s struct {
		Name string   `json:"name"`
		X    *float64 `json:"x"`
		Y    *float64 `json:"y"`
		Z    *float64 `json:"z"`
	}
	if err := json.Unmarshal(raw, &s); err != nil {
		return err
	}
	name := strings.TrimSpace(s.Name)
	if name == "" {
		return errors.New("system without name")
	}
	if s.X == nil || s.Y == nil || s.Z == nil {
		return fmt.Errorf("system %q: missing coordinates", name)
	}
	if err := finite("coordinates", *s.X, *s.Y, *s.Z); err != nil {
		return fmt.Errorf("system %q: %w", name, err)
	}
	c.Systems = append(c.Systems, catalog.StarSystem{Name: name, X: *s.X, Y: *s.Y, Z: *s.Z})
	return nil
}

func (c *Catalog) addStation(raw json.RawMessage) error {
	var st struct {
		Name   string  `json:"name"`
		System string  `json:"system"`
		Dist   float64 `json:"dist"`
	}
	if err := json.Unmarshal(raw, &st); err != nil {
		return err
	}
	name, system := strings.TrimSpace(st.Name), strings.TrimSpace(st.System)
	if name == "" || system == "" {
		return errors.New("station needs name and system")
	}
	if err := finite("dist", st.Dist); err != nil || st.Dist < 0 {
		return fmt.Errorf("station %q: bad dist %v", name, st.Dist)
	}
	c.Stations = append(c.Stations, StationRecord{
		System:  system,
		Station: catalog.Station{Name: name, Dist: st.Dist},
	})
	return nil
}

func (c *Catalog) addGoods(raw json.RawMessage) error {
	var g struct {
		Name       string          `json:"name"`
		Station    string          `json:"station"`
		System     string          `json:"system"`
		MaxCap     json.RawMessage `json:"max_cap"`
		SupplyRate string          `json:"supply_rate"`
		MinSupply  *float64        `json:"min_supply"`
		MaxSupply  *float64        `json:"max_supply"`
		Price      *float64        `json:"price"`
	}
	if err := json.Unmarshal(raw, &g); err != nil {
		return err
	}
	name := strings.TrimSpace(g.Name)
	station, system := strings.TrimSpace(g.Station), strings.TrimSpace(g.System)
	if name == "" || station == "" || system == "" {
		return errors.New("goods needs name, station and system")
	}

	maxCap, err := parseMaxCap(g.MaxCap)
	if err != nil {
		return fmt.Errorf("goods %q: %w", name, err)
	}
	if g.Price == nil {
		return fmt.Errorf("goods %q: missing price", name)
	}
	price, err := roundNonNegative(*g.Price, "price")
	if err != nil {
		return fmt.Errorf("goods %q: %w", name, err)
	}

	// "ND" supply rate means no supply data: both bounds are zero.
	var minSupply, maxSupply int
	if !strings.EqualFold(strings.TrimSpace(g.SupplyRate), "ND") {
		if g.MinSupply == nil || g.MaxSupply == nil {
			return fmt.Errorf("goods %q: missing supply bounds", name)
		}
		if minSupply, err = roundNonNegative(*g.MinSupply, "min_supply"); err != nil {
			return fmt.Errorf("goods %q: %w", name, err)
		}
		if maxSupply, err = roundNonNegative(*g.MaxSupply, "max_supply"); err != nil {
			return fmt.Errorf("goods %q: %w", name, err)
		}
	}

	c.Goods = append(c.Goods, GoodsRecord{
		System:  system,
		Station: station,
		Goods: catalog.Goods{
			Name:      name,
			MaxCap:    maxCap,
			MinSupply: minSupply,
			MaxSupply: maxSupply,
			Price:     price,
		},
	})
	return nil
}

// readJSONL calls fn for every line of path, skipping blanks and # comments.
// The first bad line aborts the load.
func readJSONL(path string, fn func(json.RawMessage) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open catalog file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if err := fn(json.RawMessage(line)); err != nil {
			return fmt.Errorf("%w: %s:%d: %v", ErrInvalidRecord, filepath.Base(path), lineNo, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	return nil
}
