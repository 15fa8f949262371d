package render

import (
	"fmt"
	"strings"
)

// Stage identifies where in the render pipeline a failure occurred.
type Stage string

const (
	// StageConfirm rejects renders attempted without user acknowledgment.
	StageConfirm Stage = "confirm"
	// StageScan rejects code the safety policy denied.
	StageScan Stage = "scan"
	// StageCompile rejects code that is empty or unusable after module
	// syntax is stripped.
	StageCompile Stage = "compile"
	// StageDocument reports a failure building the sandbox document.
	StageDocument Stage = "document"
)

// Error is a render failure. It is always caught at the render
// boundary: callers receive it as a value, never as a panic.
type Error struct {
	Stage    Stage
	Message  string
	Patterns []string // denylisted constructs, set for StageScan
}

func (e *Error) Error() string {
	if len(e.Patterns) > 0 {
		return fmt.Sprintf("%s: %s (%s)", e.Stage, e.Message, strings.Join(e.Patterns, ", "))
	}
	return fmt.Sprintf("%s: %s", e.Stage, e.Message)
}
