/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the commission engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration from the environment, then apply flags
  2. Build the zap logger
  3. Open the SQLite store
  4. Seed plans from COMMISSION_PLANS_FILE, if set
  5. Configure HTTP router and start the server

COMMAND-LINE FLAGS (override the environment):
  -port     HTTP server port            (COMMISSION_PORT, default 8080)
  -db       SQLite database path        (COMMISSION_DB, default ./data/commission.db)
            Use ":memory:" for an in-memory database
  -plans    Plan seed file, YAML or JSON (COMMISSION_PLANS_FILE)
  -workers  Concurrent agent batches    (COMMISSION_WORKERS, 0 = GOMAXPROCS)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests (COMMISSION_SHUTDOWN_TIMEOUT, default 30s)
  3. Close database connection
  4. Exit

EXAMPLES:
  ./server -db=":memory:" -plans=./plans.yaml
  LOG_LEVEL=debug ./server -port=3000

SEE ALSO:
  - config/config.go: Environment variables
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/warp/commission-engine/api"
	"github.com/warp/commission-engine/config"
	"github.com/warp/commission-engine/factory"
	"github.com/warp/commission-engine/observability"
	"github.com/warp/commission-engine/store/sqlite"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "commission-engine: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	flag.StringVar(&cfg.Server.Port, "port", cfg.Server.Port, "HTTP server port")
	flag.StringVar(&cfg.Storage.DBPath, "db", cfg.Storage.DBPath, "SQLite database path")
	flag.StringVar(&cfg.Storage.PlansFile, "plans", cfg.Storage.PlansFile, "plan seed file (YAML or JSON)")
	flag.IntVar(&cfg.Engine.Workers, "workers", cfg.Engine.Workers, "concurrent agent batches")
	flag.Parse()
	if err := config.Validate(cfg); err != nil {
		return err
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	if cfg.Storage.DBPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Storage.DBPath), 0o755); err != nil {
			return fmt.Errorf("create data directory: %w", err)
		}
	}
	store, err := sqlite.New(cfg.Storage.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	if cfg.Storage.PlansFile != "" {
		if err := seedPlans(ctx, store, cfg.Storage.PlansFile, logger); err != nil {
			return err
		}
	}

	handler := api.NewHandler(store, logger, cfg.Engine.Workers)
	router := api.NewRouter(handler, logger, cfg.Server.CORSOrigins)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.String("addr", server.Addr),
			zap.String("db", cfg.Storage.DBPath),
			zap.Int("workers", cfg.Engine.Workers),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case sig := <-quit:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}

// seedPlans saves every plan in path, replacing plans with the same ID.
func seedPlans(ctx context.Context, store *sqlite.Store, path string, logger *zap.Logger) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read plans file: %w", err)
	}
	plans, err := factory.ParsePlanSet(data)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	for _, p := range plans {
		if err := store.SavePlan(ctx, p); err != nil {
			return fmt.Errorf("seed plan %s: %w", p.ID, err)
		}
	}
	logger.Info("plans seeded", zap.String("file", path), zap.Int("plans", len(plans)))
	return nil
}
