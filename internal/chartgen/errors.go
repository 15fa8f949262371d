package chartgen

import "errors"

var (
	// ErrRequestNotFound is returned when the generation request does not
	// exist or has expired.
	ErrRequestNotFound = errors.New("generation request not found")

	// ErrChartNotFound is returned when the saved chart does not exist.
	ErrChartNotFound = errors.New("chart not found")

	// ErrInvalidTransition is returned when a record is moved to a state
	// its current status does not allow (for example, completing a record
	// that was never claimed).
	ErrInvalidTransition = errors.New("invalid status transition")
)

// ValidationError reports input rejected before any network or storage
// call. Its message is user-facing and stable: tests and UI copy rely
// on the exact text.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}
