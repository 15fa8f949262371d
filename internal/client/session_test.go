package client

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/B-Step62/mlflow-sub000/internal/chartgen"
	"github.com/B-Step62/mlflow-sub000/internal/log"
)

// fakeBackend scripts the session's view of the API client.
type fakeBackend struct {
	submit func(ctx context.Context, req chartgen.Request) (string, error)
	poll   func(ctx context.Context, requestID string, onProgress func(string)) (*Status, error)
}

func (f *fakeBackend) Submit(ctx context.Context, req chartgen.Request) (string, error) {
	if f.submit == nil {
		return "req_test", nil
	}
	return f.submit(ctx, req)
}

func (f *fakeBackend) PollUntilTerminal(ctx context.Context, requestID string, onProgress func(string)) (*Status, error) {
	if f.poll == nil {
		return &Status{RequestID: requestID, State: chartgen.StatusCompleted, Result: &chartgen.Result{}}, nil
	}
	return f.poll(ctx, requestID, onProgress)
}

func completedStatus(requestID, code, title string) *Status {
	return &Status{
		RequestID: requestID,
		State:     chartgen.StatusCompleted,
		Result:    &chartgen.Result{ChartCode: code, ChartTitle: title},
	}
}

func TestSession_Generate_Completed(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{
		poll: func(_ context.Context, requestID string, onProgress func(string)) (*Status, error) {
			onProgress(ProgressGenerating)
			return completedStatus(requestID, "the code", "Loss over Steps"), nil
		},
	}
	sess := NewSession(backend, log.NewNop())

	if err := sess.Generate(context.Background(), "plot loss", "run-1", ""); err != nil {
		t.Fatalf("Generate() error: %v", err)
	}

	st := sess.State()
	if st.Generating {
		t.Error("Generating = true after a terminal state")
	}
	if st.RequestID != "req_test" {
		t.Errorf("RequestID = %q, want %q", st.RequestID, "req_test")
	}
	if st.ChartCode != "the code" {
		t.Errorf("ChartCode = %q, want the completed payload", st.ChartCode)
	}
	if st.ChartTitle != "Loss over Steps" {
		t.Errorf("ChartTitle = %q, want %q", st.ChartTitle, "Loss over Steps")
	}
	if st.ErrorMessage != "" {
		t.Errorf("ErrorMessage = %q, want empty", st.ErrorMessage)
	}
	if st.Progress != "" {
		t.Errorf("Progress = %q, want cleared after terminal state", st.Progress)
	}
}

func TestSession_Generate_ServerFailure(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{
		poll: func(_ context.Context, requestID string, _ func(string)) (*Status, error) {
			return &Status{
				RequestID:    requestID,
				State:        chartgen.StatusFailed,
				ErrorMessage: "X",
			}, nil
		},
	}
	sess := NewSession(backend, log.NewNop())

	// A server-side failure is a terminal outcome, not a Generate error.
	if err := sess.Generate(context.Background(), "plot loss", "run-1", ""); err != nil {
		t.Fatalf("Generate() error: %v", err)
	}

	st := sess.State()
	if st.Generating {
		t.Error("Generating = true after a terminal state")
	}
	if st.ErrorMessage != "X" {
		t.Errorf("ErrorMessage = %q, want %q", st.ErrorMessage, "X")
	}
	if st.ChartCode != "" {
		t.Errorf("ChartCode = %q, want empty on failure", st.ChartCode)
	}
}

func TestSession_Generate_SubmitError(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{
		submit: func(_ context.Context, req chartgen.Request) (string, error) {
			return "", chartgen.ValidateRequest(req)
		},
	}
	sess := NewSession(backend, log.NewNop())

	err := sess.Generate(context.Background(), "", "", "")

	var vErr *chartgen.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("Generate() error = %v, want *chartgen.ValidationError", err)
	}

	st := sess.State()
	if st.Generating {
		t.Error("Generating = true after a submission failure")
	}
	if st.ErrorMessage == "" {
		t.Error("ErrorMessage empty after a submission failure")
	}
}

func TestSession_Reset(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{
		poll: func(_ context.Context, requestID string, _ func(string)) (*Status, error) {
			return completedStatus(requestID, "code", "Title"), nil
		},
	}
	sess := NewSession(backend, log.NewNop())

	if err := sess.Generate(context.Background(), "plot loss", "run-1", ""); err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	sess.Reset()

	if got, want := sess.State(), (SessionState{}); got != want {
		t.Errorf("State() after Reset = %+v, want zero state", got)
	}
}

func TestSession_ProgressTransitions(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{
		poll: func(_ context.Context, requestID string, onProgress func(string)) (*Status, error) {
			onProgress(ProgressGenerating)
			return completedStatus(requestID, "code", "Title"), nil
		},
	}
	sess := NewSession(backend, log.NewNop())

	var mu sync.Mutex
	var progression []string
	sess.OnChange(func(st SessionState) {
		mu.Lock()
		progression = append(progression, st.Progress)
		mu.Unlock()
	})

	if err := sess.Generate(context.Background(), "plot loss", "run-1", ""); err != nil {
		t.Fatalf("Generate() error: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	want := []string{ProgressAnalyzing, ProgressQueued, ProgressGenerating, ""}
	if len(progression) != len(want) {
		t.Fatalf("progress transitions = %v, want %v", progression, want)
	}
	for i := range want {
		if progression[i] != want[i] {
			t.Fatalf("progress transitions = %v, want %v", progression, want)
		}
	}
}

func TestSession_SupersededFlowDiscarded(t *testing.T) {
	t.Parallel()

	firstPolling := make(chan struct{})
	releaseFirst := make(chan struct{})

	var submits int
	var mu sync.Mutex
	backend := &fakeBackend{
		submit: func(_ context.Context, _ chartgen.Request) (string, error) {
			mu.Lock()
			submits++
			n := submits
			mu.Unlock()
			if n == 1 {
				return "req_first", nil
			}
			return "req_second", nil
		},
		poll: func(_ context.Context, requestID string, _ func(string)) (*Status, error) {
			if requestID == "req_first" {
				close(firstPolling)
				<-releaseFirst
				return completedStatus(requestID, "stale code", "Stale"), nil
			}
			return completedStatus(requestID, "fresh code", "Fresh"), nil
		},
	}
	sess := NewSession(backend, log.NewNop())

	done := make(chan struct{})
	go func() {
		defer close(done)
		// The first flow parks inside its poll; its eventual result must
		// not clobber the second flow's.
		_ = sess.Generate(context.Background(), "first prompt", "run-1", "")
	}()

	<-firstPolling
	if err := sess.Generate(context.Background(), "second prompt", "run-1", ""); err != nil {
		t.Fatalf("second Generate() error: %v", err)
	}

	close(releaseFirst)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("first Generate() did not return")
	}

	st := sess.State()
	if st.ChartCode != "fresh code" {
		t.Errorf("ChartCode = %q, want the superseding flow's result", st.ChartCode)
	}
	if st.RequestID != "req_second" {
		t.Errorf("RequestID = %q, want %q", st.RequestID, "req_second")
	}
}

func TestSession_ResetCancelsInFlight(t *testing.T) {
	t.Parallel()

	polling := make(chan struct{})
	backend := &fakeBackend{
		poll: func(ctx context.Context, _ string, _ func(string)) (*Status, error) {
			close(polling)
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	sess := NewSession(backend, log.NewNop())

	errCh := make(chan error, 1)
	go func() {
		errCh <- sess.Generate(context.Background(), "plot loss", "run-1", "")
	}()

	<-polling
	sess.Reset()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Generate() error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Generate() did not return after Reset")
	}

	// The canceled flow's terminal write carries a stale token, so the
	// session stays zeroed.
	if got, want := sess.State(), (SessionState{}); got != want {
		t.Errorf("State() after Reset = %+v, want zero state", got)
	}
}
