package client

import "fmt"

// TransportError reports a network-level failure during submission or
// polling. The server was never reached or the response never arrived
// intact.
type TransportError struct {
	Op  string // "POST /api/2.0/charts/generate" etc.
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ServerError is a non-2xx response decoded from the error envelope.
type ServerError struct {
	HTTPStatus int
	Code       string // "NOT_FOUND", "RATE_LIMITED", ...
	Message    string
}

func (e *ServerError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("server returned %d %s: %s", e.HTTPStatus, e.Code, e.Message)
	}
	return fmt.Sprintf("server returned %d: %s", e.HTTPStatus, e.Message)
}

// TimeoutError is synthesized locally when polling reaches its attempt
// ceiling without observing a terminal status. It is a policy decision
// of the poller, not a server signal.
type TimeoutError struct {
	Attempts int
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("generation did not complete after %d status checks", e.Attempts)
}
