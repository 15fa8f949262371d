package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/B-Step62/mlflow-sub000/db"
	"github.com/B-Step62/mlflow-sub000/internal/api"
	"github.com/B-Step62/mlflow-sub000/internal/config"
	"github.com/B-Step62/mlflow-sub000/internal/generator"
	"github.com/B-Step62/mlflow-sub000/internal/log"
	"github.com/B-Step62/mlflow-sub000/internal/observability"
	"github.com/B-Step62/mlflow-sub000/internal/security"
	"github.com/B-Step62/mlflow-sub000/internal/store/memory"
	"github.com/B-Step62/mlflow-sub000/internal/store/postgres"
)

// Setup creates and initializes the application.
// Returns an App with embedded cleanup — call Close() to release.
func Setup(ctx context.Context, cfg *config.Config) (_ *App, retErr error) {
	if cfg == nil {
		return nil, config.ErrConfigNil
	}

	a := &App{Config: cfg}

	// On error, clean up everything already initialized
	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				slog.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	a.Logger = provideLogger(cfg)
	// Install as process default so packages that log through slog.Default
	// follow the configured level and format.
	slog.SetDefault(a.Logger)

	a.otelCleanup = provideOtelShutdown(ctx, cfg)

	store, pool, dbCleanup, err := provideStore(ctx, cfg, a.Logger)
	if err != nil {
		return nil, err
	}
	a.Store = store
	a.Pool = pool
	a.dbCleanup = dbCleanup

	srv, err := api.NewServer(api.ServerConfig{
		Logger:             a.Logger.With("component", "api"),
		Store:              store,
		Policy:             security.NewDenyList(),
		AllowedExperiments: cfg.AllowedExperiments,
		Pool:               pool,
		CORSOrigins:        cfg.CORSOrigins,
		TrustProxy:         cfg.TrustProxy,
		RateBurst:          cfg.RateLimitBurst,
	})
	if err != nil {
		return nil, fmt.Errorf("creating API server: %w", err)
	}
	a.Server = srv

	a.workers = provideWorkers(store, cfg, a.Logger)

	return a, nil
}

// provideLogger builds the root logger from the log_level and log_format
// keys. Validation has already vetted both values, so unknown levels
// fall back to info rather than erroring twice.
func provideLogger(cfg *config.Config) log.Logger {
	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	return log.New(log.Config{
		Level: level,
		JSON:  cfg.LogFormat == "json",
	})
}

// provideOtelShutdown starts OTLP trace export when observability.enabled
// is set. Returns a cleanup that flushes pending spans with a bounded
// timeout; disabled tracing returns a no-op so Close never branches.
func provideOtelShutdown(ctx context.Context, cfg *config.Config) func() {
	if !cfg.Observability.Enabled {
		return func() {}
	}

	shutdown, err := observability.Init(ctx, observability.Config{
		Endpoint:    cfg.Observability.Endpoint,
		Environment: cfg.Observability.Environment,
		ServiceName: cfg.Observability.ServiceName,
		SampleRatio: cfg.Observability.SampleRatio,
	})
	if err != nil {
		slog.Warn("tracing setup failed, continuing without traces", "error", err)
		return func() {}
	}

	//nolint:contextcheck // Independent context: shutdown runs during teardown when parent is canceled
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			slog.Warn("shutting down tracer provider", "error", err)
		}
	}
}

// provideStore builds the persistence backend selected by store_backend.
// The postgres path runs migrations and opens a pool; the memory path
// needs neither, so its cleanup is a no-op and the returned pool is nil.
func provideStore(ctx context.Context, cfg *config.Config, logger log.Logger) (Store, *pgxpool.Pool, func(), error) {
	ttl := time.Duration(cfg.RequestTTLMinutes) * time.Minute

	switch cfg.StoreBackend {
	case config.BackendPostgres:
		pool, cleanup, err := provideDBPool(ctx, cfg)
		if err != nil {
			return nil, nil, nil, err
		}
		return postgres.New(pool, ttl, logger.With("component", "store")), pool, cleanup, nil

	default: // "memory"
		return memory.New(ttl), nil, func() {}, nil
	}
}

// provideDBPool creates a PostgreSQL connection pool and runs migrations.
// Pool is configured with sensible defaults for connection management.
func provideDBPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, func(), error) {
	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return nil, nil, fmt.Errorf("running migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresConnectionString())
	if err != nil {
		return nil, nil, fmt.Errorf("parsing connection config: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("pinging database: %w", err)
	}

	cleanup := func() {
		pool.Close()
	}

	return pool, cleanup, nil
}

// provideWorkers builds the configured number of queue workers sharing
// one mock generator. Claiming is atomic in both store backends, so
// multiple workers never pick up the same request.
func provideWorkers(store Store, cfg *config.Config, logger log.Logger) []*generator.Worker {
	gen := generator.NewMock(cfg.Generator.Latency())

	workers := make([]*generator.Worker, cfg.Generator.Workers)
	for i := range workers {
		workers[i] = generator.NewWorker(store, gen, generator.Config{
			Interval: cfg.Generator.Interval(),
			Timeout:  cfg.Generator.Timeout(),
		}, logger.With("component", "worker", "worker_id", i))
	}
	return workers
}
