// Package security decides whether AI-generated chart source is safe
// to evaluate.
//
// # Overview
//
// Generated chart code is untrusted input: it originates from a model
// responding to a free-form prompt and is eventually evaluated in a
// browser realm. This package provides the policy consulted before any
// evaluation:
//
//	policy := security.NewDenyList()
//	if v := policy.Evaluate(chartCode); !v.Allowed {
//	    return fmt.Errorf("unsafe operations: %v", v.Patterns)
//	}
//
// The default DenyList rejects constructs that reach dynamic code
// execution (eval, the Function constructor), ambient browser/global
// state (document, window, globalThis), persistent client storage
// (localStorage, sessionStorage, indexedDB), and module or network
// escapes (dynamic import, require, XMLHttpRequest, fetch).
//
// # Design Philosophy
//
//   - Fail-secure: reject before evaluating, never after
//   - Policy behind an interface: CodePolicy lets a parse-based
//     implementation replace the substring scan without touching the
//     reject-before-evaluate call sites
//   - Honest scope: a substring denylist is a first line of defense,
//     not a guarantee; the renderer additionally confines evaluation to
//     an isolated realm with an explicit capability set
//
// # Testing
//
// Tests cover each denylist entry individually, safe look-alikes that
// must pass, and zero-width evasion attempts.
package security
