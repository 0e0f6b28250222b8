/*
Package config loads runtime configuration from the environment (with a
.env file for development, loaded via godotenv) and, optionally, a TOML
plan-table file that overrides the built-in default plans.

ENVIRONMENT:
  PORT             HTTP port (default 8080)
  STORE_DRIVER     "sqlite" or "postgres" (default sqlite)
  SQLITE_PATH      SQLite database path (default ./data/invest.db)
  POSTGRES_DSN     DSN for the hosted backend (required when driver=postgres)
  CACHE_PATH       Local fallback cache file (default ./data/cache.json)
  AUTH_SECRET      Shared secret with the identity provider (required)
  TICK_INTERVAL    Accrual interval, Go duration (default 10s)
  MIN_TICK         Minimum per-investment elapsed time (default = TICK_INTERVAL)
  PLAN_FILE        Optional TOML plan table
  LOG_LEVEL        logrus level (default info)
*/
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/oakline/invest-engine/domain"
)

type Config struct {
	Port         int
	StoreDriver  string
	SQLitePath   string
	PostgresDSN  string
	CachePath    string
	AuthSecret   string
	TickInterval time.Duration
	MinTick      time.Duration
	PlanFile     string
	LogLevel     string
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// Load reads .env (if present) and the environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		StoreDriver: getenv("STORE_DRIVER", "sqlite"),
		SQLitePath:  getenv("SQLITE_PATH", "./data/invest.db"),
		PostgresDSN: os.Getenv("POSTGRES_DSN"),
		CachePath:   getenv("CACHE_PATH", "./data/cache.json"),
		AuthSecret:  os.Getenv("AUTH_SECRET"),
		PlanFile:    os.Getenv("PLAN_FILE"),
		LogLevel:    getenv("LOG_LEVEL", "info"),
	}

	port, err := strconv.Atoi(getenv("PORT", "8080"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid PORT: %w", err)
	}
	cfg.Port = port

	cfg.TickInterval, err = time.ParseDuration(getenv("TICK_INTERVAL", "10s"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid TICK_INTERVAL: %w", err)
	}
	cfg.MinTick, err = time.ParseDuration(getenv("MIN_TICK", cfg.TickInterval.String()))
	if err != nil {
		return Config{}, fmt.Errorf("invalid MIN_TICK: %w", err)
	}

	switch cfg.StoreDriver {
	case "sqlite":
	case "postgres":
		if cfg.PostgresDSN == "" {
			return Config{}, fmt.Errorf("POSTGRES_DSN required when STORE_DRIVER=postgres")
		}
	default:
		return Config{}, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}

	if cfg.AuthSecret == "" {
		return Config{}, fmt.Errorf("AUTH_SECRET is required")
	}
	return cfg, nil
}

// =============================================================================
// PLAN FILE - Optional TOML rate table
// =============================================================================

type planFile struct {
	Plans []planEntry `toml:"plans"`
}

type planEntry struct {
	ID          string  `toml:"id"`
	Name        string  `toml:"name"`
	MinAmount   float64 `toml:"min_amount"`
	MaxAmount   float64 `toml:"max_amount"`
	Duration    int     `toml:"duration_hours"`
	TotalReturn float64 `toml:"total_return"`
	Featured    bool    `toml:"featured"`
}

// LoadPlans returns the plan table from the TOML file at path. Entries
// pass through the domain validation layer, so a malformed entry fails
// the load loudly instead of seeding a broken rate table.
func LoadPlans(path string) ([]domain.InvestmentPlan, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var pf planFile
	if err := toml.Unmarshal(raw, &pf); err != nil {
		return nil, fmt.Errorf("parse plan file: %w", err)
	}
	if len(pf.Plans) == 0 {
		return nil, fmt.Errorf("plan file %s defines no plans", path)
	}

	out := make([]domain.InvestmentPlan, 0, len(pf.Plans))
	for _, e := range pf.Plans {
		p, err := domain.ParsePlan(domain.PlanRecord{
			ID:          e.ID,
			Name:        e.Name,
			MinAmount:   strconv.FormatFloat(e.MinAmount, 'f', -1, 64),
			MaxAmount:   strconv.FormatFloat(e.MaxAmount, 'f', -1, 64),
			Duration:    e.Duration,
			TotalReturn: strconv.FormatFloat(e.TotalReturn, 'f', -1, 64),
			Featured:    e.Featured,
		})
		if err != nil {
			return nil, fmt.Errorf("plan %q: %w", e.ID, err)
		}
		out = append(out, p)
	}
	return out, nil
}
