/*
main.go - Application entry point

STARTUP SEQUENCE:
  1. Load configuration (.env + environment; -port/-db flags override)
  2. Configure logging (logrus)
  3. Open the durable store (SQLite or Postgres) and the local file cache
  4. Wrap both in the failover adapter
  5. Seed the plan table (TOML plan file if configured, defaults otherwise)
  6. Start the HTTP server with graceful shutdown

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections (30s drain)
  2. Stop every running accrual engine
  3. Close the stores

SEE ALSO:
  - config/config.go: Environment reference
  - api/server.go: Router configuration
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/oakline/invest-engine/api"
	"github.com/oakline/invest-engine/config"
	"github.com/oakline/invest-engine/domain"
	"github.com/oakline/invest-engine/identity"
	"github.com/oakline/invest-engine/store/failover"
	"github.com/oakline/invest-engine/store/filecache"
	"github.com/oakline/invest-engine/store/postgres"
	"github.com/oakline/invest-engine/store/sqlite"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	port := flag.Int("port", 0, "HTTP server port (overrides PORT)")
	dbPath := flag.String("db", "", "SQLite database path (overrides SQLITE_PATH)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("configuration: %v", err)
	}
	if *port != 0 {
		cfg.Port = *port
	}
	if *dbPath != "" {
		cfg.SQLitePath = *dbPath
	}
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	} else {
		log.Warnf("unknown LOG_LEVEL %q, using info", cfg.LogLevel)
	}

	// Durable store.
	var durable interface {
		domain.Adapter
		Close() error
	}
	switch cfg.StoreDriver {
	case "postgres":
		durable, err = postgres.New(cfg.PostgresDSN, log)
	default:
		if dir := filepath.Dir(cfg.SQLitePath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				log.Fatalf("create data dir: %v", err)
			}
		}
		durable, err = sqlite.New(cfg.SQLitePath, log)
	}
	if err != nil {
		log.Fatalf("open %s store: %v", cfg.StoreDriver, err)
	}
	defer durable.Close()

	// Local cache keeps the app usable when the durable store degrades.
	if dir := filepath.Dir(cfg.CachePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Fatalf("create cache dir: %v", err)
		}
	}
	cache, err := filecache.Open(cfg.CachePath, log)
	if err != nil {
		log.Fatalf("open file cache: %v", err)
	}
	defer cache.Close()

	store := failover.New(durable, cache, log)

	// Rate table: optional TOML file, falling back to the built-in plans.
	plans := domain.DefaultPlans()
	if cfg.PlanFile != "" {
		plans, err = config.LoadPlans(cfg.PlanFile)
		if err != nil {
			log.Fatalf("load plan file: %v", err)
		}
		log.WithField("plans", len(plans)).Info("plan table loaded from file")
	}
	if err := store.SeedPlans(context.Background(), plans); err != nil {
		log.Fatalf("seed plans: %v", err)
	}

	handler := api.NewHandler(store, identity.NewVerifier(cfg.AuthSecret), log)
	handler.TickInterval = cfg.TickInterval
	handler.MinTick = cfg.MinTick

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      api.NewRouter(handler),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.WithFields(logrus.Fields{
			"port":  cfg.Port,
			"store": cfg.StoreDriver,
			"tick":  cfg.TickInterval.String(),
		}).Info("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Errorf("forced shutdown: %v", err)
	}
	handler.Shutdown()

	log.Info("server stopped")
}
