// Package render turns vetted chart source into a self-contained
// sandbox document.
//
// The pipeline is confirm -> scan -> strip -> document:
//
//  1. Rendering is refused until the caller passes an explicit user
//     acknowledgment (Context.Confirmed). The acknowledgment is caller
//     policy, collected at the UI boundary; this package only enforces
//     that it happened.
//  2. The safety policy is consulted before anything else touches the
//     source. Rejected code never reaches evaluation in any form.
//  3. Declarative import/export syntax is stripped so the remainder is
//     a plain function body.
//  4. The body is embedded in a standalone HTML document that evaluates
//     it in its own browser realm with a fixed capability set (a
//     minimal element factory plus state/effect primitives) and the
//     contextual runId/experimentId. The document realm has no access
//     to the host application's globals, and evaluation errors inside
//     it are caught and shown inline rather than thrown at the host.
package render

import (
	"regexp"
	"strings"

	"github.com/B-Step62/mlflow-sub000/internal/log"
	"github.com/B-Step62/mlflow-sub000/internal/security"
)

// Capabilities are the only names the evaluated chart body receives, in
// argument order. Everything else resolves against the empty sandbox
// realm.
var Capabilities = []string{"React", "useState", "useEffect", "runId", "experimentId"}

// Context carries per-render inputs.
type Context struct {
	RunID        string
	ExperimentID string
	Title        string

	// Confirmed records the explicit user acknowledgment. Render fails
	// with StageConfirm while it is false.
	Confirmed bool
}

// RenderedChart is the ephemeral product of one confirmed render.
type RenderedChart struct {
	Title        string
	Source       string   // sanitized body actually evaluated
	Capabilities []string // names granted to the body
	Document     string   // standalone sandbox HTML document
}

// Renderer vets chart source against a safety policy and builds the
// sandbox document.
type Renderer struct {
	policy security.CodePolicy
	logger log.Logger
}

// New creates a Renderer. policy must not be nil.
func New(policy security.CodePolicy, logger log.Logger) *Renderer {
	return &Renderer{policy: policy, logger: logger}
}

// Render runs the full pipeline on code. It returns a *Error for every
// failure mode; it does not panic on malformed input.
func (r *Renderer) Render(code string, rctx Context) (*RenderedChart, error) {
	if !rctx.Confirmed {
		return nil, &Error{
			Stage:   StageConfirm,
			Message: "rendering requires explicit user confirmation",
		}
	}

	if v := r.policy.Evaluate(code); !v.Allowed {
		r.logger.Warn("chart code rejected by safety policy",
			"patterns", v.Patterns,
			"run_id", rctx.RunID,
			"experiment_id", rctx.ExperimentID)
		return nil, &Error{
			Stage:    StageScan,
			Message:  "generated code contains unsafe operations",
			Patterns: v.Patterns,
		}
	}

	body := stripModuleSyntax(code)
	if strings.TrimSpace(body) == "" {
		return nil, &Error{
			Stage:   StageCompile,
			Message: "no renderable code remains after removing module syntax",
		}
	}

	title := rctx.Title
	if title == "" {
		title = "Generated Chart"
	}

	doc, err := buildDocument(documentData{
		Title:        title,
		Body:         body,
		RunID:        rctx.RunID,
		ExperimentID: rctx.ExperimentID,
	})
	if err != nil {
		return nil, &Error{
			Stage:   StageDocument,
			Message: err.Error(),
		}
	}

	caps := make([]string, len(Capabilities))
	copy(caps, Capabilities)

	return &RenderedChart{
		Title:        title,
		Source:       body,
		Capabilities: caps,
		Document:     doc,
	}, nil
}

var (
	// Whole-line import statements and export lists are removed; export
	// keywords on declarations are unwrapped so the declaration stays.
	importLineRe  = regexp.MustCompile(`(?m)^[ \t]*import\b[^\n]*\n?`)
	exportListRe  = regexp.MustCompile(`(?m)^[ \t]*export[ \t]*\{[^}]*\}[ \t]*;?[ \t]*\n?`)
	exportDefault = regexp.MustCompile(`\bexport[ \t]+default[ \t]+`)
	exportDeclRe  = regexp.MustCompile(`\bexport[ \t]+(const|let|var|function|class)\b`)
)

// stripModuleSyntax converts module-style chart source into a plain
// function body. "export default X" becomes "return X" so the body
// yields its component when evaluated.
func stripModuleSyntax(code string) string {
	out := importLineRe.ReplaceAllString(code, "")
	out = exportListRe.ReplaceAllString(out, "")
	out = exportDefault.ReplaceAllString(out, "return ")
	out = exportDeclRe.ReplaceAllString(out, "$1")
	return strings.TrimSpace(out)
}
