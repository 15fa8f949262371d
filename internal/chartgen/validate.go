package chartgen

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// MaxPromptLen is the maximum generation prompt length in characters
// (runes). The limit is deliberately defined once; every surface that
// rejects an over-length prompt references this constant.
const MaxPromptLen = 1000

// maxChartNameLen bounds saved chart names.
const maxChartNameLen = 255

// ValidateRequest checks a generation submission before it leaves the
// caller. It returns a *ValidationError describing the first problem
// found, or nil.
func ValidateRequest(req Request) error {
	if strings.TrimSpace(req.Prompt) == "" {
		return &ValidationError{Message: "Prompt is required"}
	}
	if utf8.RuneCountInString(req.Prompt) > MaxPromptLen {
		return &ValidationError{
			Message: fmt.Sprintf("Prompt exceeds the maximum length of %d characters", MaxPromptLen),
		}
	}
	return nil
}

// ValidateChart checks a chart save payload.
func ValidateChart(c Chart) error {
	if strings.TrimSpace(c.ChartCode) == "" {
		return &ValidationError{Message: "Chart code is required"}
	}
	if strings.TrimSpace(c.Name) == "" {
		return &ValidationError{Message: "Chart name is required"}
	}
	if utf8.RuneCountInString(c.Name) > maxChartNameLen {
		return &ValidationError{
			Message: fmt.Sprintf("Chart name exceeds the maximum length of %d characters", maxChartNameLen),
		}
	}
	if strings.TrimSpace(c.ExperimentID) == "" {
		return &ValidationError{Message: "Experiment ID is required"}
	}
	return nil
}
