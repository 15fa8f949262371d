package generator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/B-Step62/mlflow-sub000/internal/chartgen"
	"github.com/B-Step62/mlflow-sub000/internal/log"
)

const (
	// DefaultInterval is the queue polling interval.
	DefaultInterval = time.Second
	// DefaultTimeout bounds a single generation attempt.
	DefaultTimeout = 30 * time.Second
)

// Config tunes the worker. Zero values fall back to the defaults.
type Config struct {
	Interval time.Duration
	Timeout  time.Duration
}

// Worker drains the pending request queue in the background. Each tick
// it claims pending records one at a time, runs the generator, records
// the outcome, and prunes expired requests.
type Worker struct {
	store    Store
	gen      Generator
	interval time.Duration
	timeout  time.Duration
	logger   log.Logger
}

// NewWorker creates a worker over store and gen.
func NewWorker(store Store, gen Generator, cfg Config, logger log.Logger) *Worker {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		store:    store,
		gen:      gen,
		interval: cfg.Interval,
		timeout:  cfg.Timeout,
		logger:   logger,
	}
}

// Run blocks until ctx is canceled, processing the queue on each tick.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

// Start runs the worker in a goroutine. The returned stop function
// cancels it and waits for the current attempt to finish.
func (w *Worker) Start(ctx context.Context) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.Run(ctx)
	}()
	return func() {
		cancel()
		wg.Wait()
	}
}

// runOnce drains everything pending, then prunes expired requests.
func (w *Worker) runOnce(ctx context.Context) {
	for {
		rec, err := w.store.ClaimPending(ctx)
		if err != nil {
			w.logger.Warn("failed to claim pending request", "error", err)
			return
		}
		if rec == nil {
			break
		}
		w.process(ctx, rec)
		if ctx.Err() != nil {
			return
		}
	}

	if _, err := w.store.DeleteExpired(ctx); err != nil {
		w.logger.Warn("failed to prune expired requests", "error", err)
	}
}

// process runs one generation attempt with the configured timeout.
// A claimed record always reaches a terminal status unless the store
// rejects the transition, in which case the record is left to expire.
func (w *Worker) process(ctx context.Context, rec *chartgen.Record) {
	genCtx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	start := time.Now()
	res, err := w.gen.Generate(genCtx, chartgen.Request{
		Prompt:       rec.Prompt,
		RunID:        rec.RunID,
		ExperimentID: rec.ExperimentID,
	})
	if err != nil {
		w.logger.Warn("chart generation failed",
			"request_id", rec.RequestID, "error", err, "duration", time.Since(start))
		if err := w.store.FailRequest(ctx, rec.RequestID, err.Error()); err != nil {
			w.logger.Warn("failed to record generation failure",
				"request_id", rec.RequestID, "error", err)
		}
		return
	}

	if err := w.store.CompleteRequest(ctx, rec.RequestID, res); err != nil {
		w.logger.Warn("failed to record generation result",
			"request_id", rec.RequestID, "error", err)
		return
	}
	w.logger.Info("chart generated",
		"request_id", rec.RequestID, "title", res.ChartTitle, "duration", time.Since(start))
}
