// Package app provides application initialization and dependency injection.
//
// App is the container that wires configuration, logging, persistence,
// the generation worker pool, and the HTTP API together for the serve
// entry point. Components receive their dependencies through constructors;
// nothing reaches for globals.
package app

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/B-Step62/mlflow-sub000/internal/api"
	"github.com/B-Step62/mlflow-sub000/internal/config"
	"github.com/B-Step62/mlflow-sub000/internal/generator"
	"github.com/B-Step62/mlflow-sub000/internal/log"
)

// Store is the full persistence surface the serve entry point wires up.
// Both backends (memory, postgres) satisfy it. The interface lives here
// because app is the only consumer that needs the API and worker halves
// at once.
type Store interface {
	api.Store
	generator.Store
}

// App is the core application container.
type App struct {
	Config *config.Config
	Logger log.Logger

	// Persistence. Pool is nil for the memory backend.
	Store Store
	Pool  *pgxpool.Pool

	// HTTP surface.
	Server *api.Server

	workers []*generator.Worker

	otelCleanup func()
	dbCleanup   func()
}

// Close gracefully releases all resources. Safe to call after a partial
// Setup failure.
func (a *App) Close() error {
	if a.Logger != nil {
		a.Logger.Info("shutting down application")
	}

	if a.dbCleanup != nil {
		a.dbCleanup()
	}

	// Last so the shutdown above is still traced.
	if a.otelCleanup != nil {
		a.otelCleanup()
	}

	return nil
}

// StartWorkers launches every configured queue worker. The returned stop
// function cancels them and waits until in-flight generations finish.
func (a *App) StartWorkers(ctx context.Context) (stop func()) {
	stops := make([]func(), 0, len(a.workers))
	for _, w := range a.workers {
		stops = append(stops, w.Start(ctx))
	}
	return func() {
		for _, s := range stops {
			s()
		}
	}
}
