// Package generator turns queued chart requests into chart code.
//
// A Generator produces the chart source for one request. The Worker
// drains the pending queue in the background, runs the generator with a
// per-request timeout, and records the outcome. Mock is the built-in
// generator: it needs no external service and produces deterministic,
// self-contained React components.
package generator

import (
	"context"

	"github.com/B-Step62/mlflow-sub000/internal/chartgen"
)

// Generator produces a chart for a generation request.
//
// Implementations must honor ctx cancellation: the worker bounds each
// attempt with a timeout, and abandoned requests are canceled.
type Generator interface {
	Generate(ctx context.Context, req chartgen.Request) (*chartgen.Result, error)
}

// Store is the request storage the worker drives. Both the in-memory
// and the PostgreSQL stores satisfy it.
type Store interface {
	// ClaimPending atomically moves the oldest pending record to
	// processing and returns it, or (nil, nil) when the queue is empty.
	ClaimPending(ctx context.Context) (*chartgen.Record, error)
	CompleteRequest(ctx context.Context, id string, res *chartgen.Result) error
	FailRequest(ctx context.Context, id string, msg string) error
	// DeleteExpired prunes requests past their retention window and
	// returns how many were removed.
	DeleteExpired(ctx context.Context) (int, error)
}
