package client

import (
	"context"
	"sync"

	"github.com/B-Step62/mlflow-sub000/internal/chartgen"
	"github.com/B-Step62/mlflow-sub000/internal/log"
)

// ProgressAnalyzing is reported between submission and the first poll.
const ProgressAnalyzing = "analyzing request"

// Backend is the slice of the API client a Session drives.
// *Client satisfies it; tests substitute a scripted fake.
type Backend interface {
	Submit(ctx context.Context, req chartgen.Request) (string, error)
	PollUntilTerminal(ctx context.Context, requestID string, onProgress func(string)) (*Status, error)
}

// SessionState is a point-in-time snapshot of one generation session.
type SessionState struct {
	Generating   bool
	RequestID    string
	ChartCode    string
	ChartTitle   string
	ErrorMessage string
	Progress     string
}

// Session tracks a single generation flow for an interactive caller.
//
// Overlapping Generate calls are resolved last-request-wins: each call
// takes a monotonically increasing token and every state write checks
// that its token is still current, so a superseded flow's late writes
// are discarded rather than interleaved. Starting a new Generate also
// cancels the previous call's context, and Reset cancels whatever is
// in flight before clearing the state. A stale poll can therefore
// never write into a freshly reset session.
//
// Session is safe for concurrent use.
type Session struct {
	backend Backend
	logger  log.Logger

	mu       sync.Mutex
	state    SessionState
	token    uint64
	cancel   context.CancelFunc
	onChange func(SessionState)
}

// NewSession creates a Session over the given backend.
func NewSession(backend Backend, logger log.Logger) *Session {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Session{backend: backend, logger: logger}
}

// OnChange registers a callback invoked with a state snapshot after
// every state change. The callback runs outside the session lock and
// may be invoked from the goroutine that called Generate or Reset.
func (s *Session) OnChange(fn func(SessionState)) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// State returns a snapshot of the current session state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Generate runs the full submit-then-poll flow, updating session state
// at each transition. It blocks until the flow reaches a terminal
// state or the context is canceled.
//
// The returned error covers aborts before a terminal status existed:
// validation and transport failures during submission, and context
// cancellation. A server-side generation failure is not an error here;
// it lands in the session's ErrorMessage.
func (s *Session) Generate(ctx context.Context, prompt, runID, experimentID string) error {
	s.mu.Lock()
	s.token++
	token := s.token
	if s.cancel != nil {
		// Supersede the previous flow.
		s.cancel()
	}
	genCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.state = SessionState{Generating: true, Progress: ProgressAnalyzing}
	snapshot := s.state
	cb := s.onChange
	s.mu.Unlock()
	if cb != nil {
		cb(snapshot)
	}

	req := chartgen.Request{Prompt: prompt, RunID: runID, ExperimentID: experimentID}

	requestID, err := s.backend.Submit(genCtx, req)
	if err != nil {
		s.write(token, func(st *SessionState) {
			st.Generating = false
			st.Progress = ""
			st.ErrorMessage = err.Error()
		})
		return err
	}

	s.write(token, func(st *SessionState) {
		st.RequestID = requestID
		st.Progress = ProgressQueued
	})

	status, err := s.backend.PollUntilTerminal(genCtx, requestID, func(progress string) {
		s.write(token, func(st *SessionState) {
			st.Progress = progress
		})
	})
	if err != nil {
		// Canceled, either by the caller or by a superseding flow. The
		// token guard makes the superseded write a no-op.
		s.write(token, func(st *SessionState) {
			st.Generating = false
			st.Progress = ""
			st.ErrorMessage = err.Error()
		})
		return err
	}

	s.write(token, func(st *SessionState) {
		st.Generating = false
		st.Progress = ""
		if status.State == chartgen.StatusCompleted && status.Result != nil {
			st.ChartCode = status.Result.ChartCode
			st.ChartTitle = status.Result.ChartTitle
			return
		}
		st.ErrorMessage = status.ErrorMessage
	})

	s.logger.Debug("generation flow finished",
		"request_id", requestID,
		"status", status.State)
	return nil
}

// Reset cancels any in-flight generation and clears the session to its
// zero state.
func (s *Session) Reset() {
	s.mu.Lock()
	s.token++ // invalidate in-flight writers
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.state = SessionState{}
	snapshot := s.state
	cb := s.onChange
	s.mu.Unlock()
	if cb != nil {
		cb(snapshot)
	}
}

// write applies mutate to the state if token is still current, then
// notifies the observer outside the lock. Stale tokens are discarded.
func (s *Session) write(token uint64, mutate func(*SessionState)) {
	s.mu.Lock()
	if token != s.token {
		s.mu.Unlock()
		return
	}
	mutate(&s.state)
	snapshot := s.state
	cb := s.onChange
	s.mu.Unlock()
	if cb != nil {
		cb(snapshot)
	}
}
