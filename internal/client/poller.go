package client

import (
	"context"
	"time"

	"github.com/B-Step62/mlflow-sub000/internal/chartgen"
)

// Polling defaults, overridable through Config.
const (
	DefaultPollInterval = time.Second
	DefaultMaxAttempts  = 30
)

// Progress text reported while a request is in flight.
const (
	ProgressQueued     = "queued"
	ProgressGenerating = "generating"
)

// PollUntilTerminal polls the request's status at the configured
// interval until it reaches a terminal state, invoking onProgress with
// human-readable text after each non-terminal observation.
//
// The loop performs at most MaxAttempts status calls. Reaching the
// ceiling without a terminal status synthesizes a failed Status whose
// message comes from TimeoutError; a transport or server error ends
// the loop the same way, carrying that error's message. Neither is
// retried. The only error return is ctx.Err() when the context is
// canceled, so callers can distinguish "generation failed" from
// "caller gave up".
func (c *Client) PollUntilTerminal(ctx context.Context, requestID string, onProgress func(string)) (*Status, error) {
	if onProgress == nil {
		onProgress = func(string) {}
	}

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		st, err := c.Status(ctx, requestID)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.logger.Warn("status poll failed",
				"request_id", requestID,
				"attempt", attempt,
				"error", err)
			return &Status{
				RequestID:    requestID,
				State:        chartgen.StatusFailed,
				ErrorMessage: err.Error(),
			}, nil
		}

		switch st.State {
		case chartgen.StatusCompleted, chartgen.StatusFailed:
			return st, nil
		case chartgen.StatusProcessing:
			onProgress(ProgressGenerating)
		default:
			onProgress(ProgressQueued)
		}

		if attempt == c.maxAttempts {
			break
		}

		timer := time.NewTimer(c.pollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	timeout := &TimeoutError{Attempts: c.maxAttempts}
	return &Status{
		RequestID:    requestID,
		State:        chartgen.StatusFailed,
		ErrorMessage: timeout.Error(),
	}, nil
}
