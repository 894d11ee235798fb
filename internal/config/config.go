package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"edrg/internal/engine"
)

// Config holds tool settings (in-memory representation).
// Last-used optimization settings are also persisted by internal/db.
type Config struct {
	DBPath     string `yaml:"db_path" json:"db_path"`
	CatalogDir string `yaml:"catalog_dir" json:"catalog_dir"`

	// Optimization defaults, overridable per run from the command line.
	TopN     int               `yaml:"top_n" json:"top_n"`
	MaxDist  float64           `yaml:"max_dist" json:"max_dist"`   // 0 = no ceiling
	MaxCargo int               `yaml:"max_cargo" json:"max_cargo"` // 0 = no cap
	Limit    int               `yaml:"limit" json:"limit"`         // -1 = all candidates
	Curve    engine.PriceCurve `yaml:"curve" json:"curve"`
	Parallel bool              `yaml:"parallel" json:"parallel"`
	Workers  int               `yaml:"workers" json:"workers"` // 0 = GOMAXPROCS
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		DBPath:     "edrg.sqlite",
		CatalogDir: "catalog",
		TopN:       1,
		Limit:      -1,
		Curve:      engine.DefaultPriceCurve(),
	}
}

// Load builds the config from defaults, an optional YAML file (with ${VAR}
// expansion), an optional .env file and EDRG_* environment variables, in
// that order. An empty path or a missing file skips that layer.
func Load(path, envFile string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config file: %w", err)
		default:
			expanded := os.ExpandEnv(string(data))
			if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
				return nil, fmt.Errorf("parse config yaml: %w", err)
			}
		}
	}

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load env file: %w", err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v, ok := os.LookupEnv("EDRG_DB"); ok {
		c.DBPath = v
	}
	if v, ok := os.LookupEnv("EDRG_CATALOG"); ok {
		c.CatalogDir = v
	}
	ints := map[string]*int{
		"EDRG_TOP_N":     &c.TopN,
		"EDRG_MAX_CARGO": &c.MaxCargo,
		"EDRG_LIMIT":     &c.Limit,
		"EDRG_WORKERS":   &c.Workers,
	}
	for key, dst := range ints {
		if v, ok := os.LookupEnv(key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = n
		}
	}
	floats := map[string]*float64{
		"EDRG_MAX_DIST": &c.MaxDist,
		"EDRG_P1":       &c.Curve.P1,
		"EDRG_P2":       &c.Curve.P2,
		"EDRG_P3":       &c.Curve.P3,
	}
	for key, dst := range floats {
		if v, ok := os.LookupEnv(key); ok {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = f
		}
	}
	if v, ok := os.LookupEnv("EDRG_PARALLEL"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("EDRG_PARALLEL: %w", err)
		}
		c.Parallel = b
	}
	return nil
}

// Validate rejects settings the optimizer cannot use.
func (c *Config) Validate() error {
	if c.DBPath == "" {
		return errors.New("db_path is required")
	}
	if c.TopN < 0 {
		return fmt.Errorf("top_n must be >= 0, got %d", c.TopN)
	}
	if c.MaxDist < 0 {
		return fmt.Errorf("max_dist must be >= 0, got %v", c.MaxDist)
	}
	if c.MaxCargo < 0 {
		return fmt.Errorf("max_cargo must be >= 0, got %d", c.MaxCargo)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must be >= 0, got %d", c.Workers)
	}
	if c.Curve.P2 <= 0 {
		return fmt.Errorf("curve p2 must be > 0, got %v", c.Curve.P2)
	}
	return nil
}

// RouteParams converts the optimization settings for the engine.
func (c *Config) RouteParams() engine.RouteParams {
	return engine.RouteParams{
		TopN:     c.TopN,
		MaxDist:  c.MaxDist,
		MaxCargo: c.MaxCargo,
		Curve:    c.Curve,
		Workers:  c.Workers,
	}
}
