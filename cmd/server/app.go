package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/phrazzld/connkeeper/internal/config"
	"github.com/phrazzld/connkeeper/internal/dbpool"
	"github.com/phrazzld/connkeeper/internal/platform/postgres"
	"github.com/phrazzld/connkeeper/internal/platform/sqldb"
	"github.com/phrazzld/connkeeper/internal/store"
)

// application holds the shared dependencies and ensures they are released
// on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger

	manager  *dbpool.Manager
	executor *store.Executor

	// health is nil when no health check schedule is configured
	health *dbpool.HealthMonitor
}

// newApplication wires the pool manager, executor and optional health monitor
// for cfg. No database connection is opened here; the first query does that.
func newApplication(cfg *config.Config, logger *slog.Logger) (*application, error) {
	connector, mapError, err := newConnector(cfg.Database, logger)
	if err != nil {
		return nil, err
	}

	app := &application{
		config:  cfg,
		logger:  logger,
		manager: dbpool.NewManager(connector, dbpool.WithLogger(logger)),
	}

	execOpts := []store.ExecutorOption{
		store.WithRetryPolicy(store.RetryPolicy{
			MaxAttempts: cfg.Retry.MaxAttempts,
			BaseDelay:   cfg.Retry.BaseDelay,
			MaxDelay:    cfg.Retry.MaxDelay,
		}),
		store.WithExecutorLogger(logger),
	}
	if mapError != nil {
		execOpts = append(execOpts, store.WithErrorMapper(mapError))
	}
	app.executor = store.NewExecutor(app.manager, execOpts...)

	if cfg.Health.Schedule != "" {
		app.health, err = dbpool.NewHealthMonitor(app.manager, cfg.Health.Schedule, cfg.Health.PingTimeout)
		if err != nil {
			app.manager.Close()
			return nil, fmt.Errorf("failed to create health monitor: %w", err)
		}
	}

	logger.Info("application initialized",
		"driver", cfg.Database.Driver,
		"pool_max", cfg.Database.PoolMax,
		"max_attempts", cfg.Retry.MaxAttempts,
		"health_schedule", cfg.Health.Schedule)
	return app, nil
}

// newConnector selects the backend for cfg.Driver, along with the error
// mapper the executor applies to its statement errors.
func newConnector(
	cfg config.DatabaseConfig,
	logger *slog.Logger,
) (dbpool.Connector, func(error) error, error) {
	switch cfg.Driver {
	case "postgres":
		return postgres.NewConnector(cfg, logger), postgres.MapError, nil
	case "sqlite":
		return sqldb.NewSQLiteConnector(cfg, logger), nil, nil
	default:
		return nil, nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// Run serves the operational endpoints until ctx is canceled, then shuts
// down and releases the database pool.
func (app *application) Run(ctx context.Context) error {
	defer app.cleanup()

	if app.health != nil {
		app.health.Start()
	}

	router := app.setupRouter()
	if err := app.startHTTPServer(ctx, router); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// cleanup handles graceful shutdown of application resources.
func (app *application) cleanup() {
	if app.health != nil {
		app.health.Stop()
	}
	app.manager.Close()
	app.logger.Info("application shutdown completed")
}
