package security

import (
	"strings"
	"unicode"
)

// Verdict is the result of a code safety evaluation.
type Verdict struct {
	Allowed  bool     // True if no denylisted constructs were found
	Patterns []string // Denylisted constructs found (empty if allowed)
}

// CodePolicy decides whether generated chart source may be evaluated.
// The renderer consults the policy before any other processing; a
// rejection must prevent evaluation entirely.
//
// Implementations must be safe for concurrent use.
type CodePolicy interface {
	Evaluate(code string) Verdict
}

// DenyList is the default CodePolicy: a substring scan over constructs
// that reach dynamic code execution, ambient browser/global state, or
// persistent client storage.
//
// Note: a textual denylist is inherently incomplete. It catches the
// common constructs but obfuscated code can bypass substring matching
// (computed member access, string concatenation building "eval", and
// similar). A parser-based policy can replace this behind the same
// interface without touching call sites.
type DenyList struct {
	patterns []string
}

// NewDenyList creates a DenyList with the default patterns.
func NewDenyList() *DenyList {
	return &DenyList{
		patterns: []string{
			// Dynamic code execution
			"eval(",
			"Function(",
			"new Function",

			// Ambient globals and DOM access
			"document.",
			"window.",
			"globalThis",

			// Persistent client storage
			"localStorage",
			"sessionStorage",
			"indexedDB",

			// Module and network escapes
			"import(",
			"require(",
			"XMLHttpRequest",
			"fetch(",
		},
	}
}

// Evaluate scans code for denylisted constructs.
//
// Matching is case-sensitive: the listed identifiers only reach the
// dangerous construct with their exact casing. The input is normalized
// first so zero-width characters cannot split a pattern; code mangled
// that way would not run as the original construct either, so a match
// after normalization fails closed.
func (d *DenyList) Evaluate(code string) Verdict {
	normalized := normalizeCode(code)

	var detected []string
	for _, p := range d.patterns {
		if strings.Contains(normalized, p) {
			detected = append(detected, p)
		}
	}

	return Verdict{
		Allowed:  len(detected) == 0,
		Patterns: detected,
	}
}

// Patterns returns the denylist entries, for error messages and tests.
func (d *DenyList) Patterns() []string {
	out := make([]string, len(d.patterns))
	copy(out, d.patterns)
	return out
}

// normalizeCode prepares source text for pattern matching.
//   - Removes zero-width and format characters that could split a match
//   - Collapses whitespace runs so "new   Function" still matches
func normalizeCode(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.Is(unicode.Cf, r) {
			continue
		}
		if unicode.IsSpace(r) {
			b.WriteRune(' ')
			continue
		}
		b.WriteRune(r)
	}

	return strings.Join(strings.Fields(b.String()), " ")
}
