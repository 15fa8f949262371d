package chartgen

import (
	"time"
)

// Status represents the lifecycle state of a generation request.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether the status is final. Terminal records never
// transition again.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Valid reports whether s is one of the defined lifecycle states.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Request is a chart generation submission.
//
// Prompt is required; RunID and ExperimentID give the generator context
// about which experiment data the chart should read. Neither identifier
// is mandatory, but a request carrying neither produces charts with no
// data binding, so callers log a warning (see HasContext).
type Request struct {
	Prompt       string `json:"prompt"`
	RunID        string `json:"run_id,omitempty"`
	ExperimentID string `json:"experiment_id,omitempty"`
}

// HasContext reports whether the request names at least one of a run or
// an experiment.
func (r Request) HasContext() bool {
	return r.RunID != "" || r.ExperimentID != ""
}

// DataSource identifies the metric series a generated chart reads.
type DataSource struct {
	RunID     string `json:"run_id"`
	MetricKey string `json:"metric_key"`
}

// Result is the payload of a completed generation: the chart source
// text, a display title, and the metric series the chart consumes.
type Result struct {
	ChartCode   string       `json:"chart_code"`
	ChartTitle  string       `json:"chart_title,omitempty"`
	DataSources []DataSource `json:"data_sources,omitempty"`
}

// Record is the server-side state of one generation request.
//
// Zero values:
//   - RequestID: "" (invalid, assigned by NewRecord)
//   - Status: "" (invalid, NewRecord sets StatusPending)
//   - Result: nil (set only when Status is StatusCompleted)
//   - ErrorMessage: "" (set only when Status is StatusFailed)
type Record struct {
	RequestID    string
	Prompt       string
	RunID        string
	ExperimentID string
	Status       Status
	Result       *Result
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewRecord creates a pending record for req with a fresh request id.
func NewRecord(req Request) *Record {
	now := time.Now().UTC()
	return &Record{
		RequestID:    NewRequestID(),
		Prompt:       req.Prompt,
		RunID:        req.RunID,
		ExperimentID: req.ExperimentID,
		Status:       StatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// ChartFilter narrows a saved chart listing. Empty fields match
// everything; set fields are ANDed.
type ChartFilter struct {
	RunID        string
	ExperimentID string
}

// Matches reports whether c satisfies the filter.
func (f ChartFilter) Matches(c Chart) bool {
	if f.RunID != "" && c.RunID != f.RunID {
		return false
	}
	if f.ExperimentID != "" && c.ExperimentID != f.ExperimentID {
		return false
	}
	return true
}

// Chart is a saved chart. Unlike generation records, charts are durable
// and survive request expiry.
type Chart struct {
	ChartID      string       `json:"chart_id"`
	Name         string       `json:"name"`
	ChartCode    string       `json:"chart_code"`
	ExperimentID string       `json:"experiment_id"`
	RunID        string       `json:"run_id,omitempty"`
	DataSources  []DataSource `json:"data_sources,omitempty"`
	ArtifactURI  string       `json:"artifact_uri"`
	CreatedAt    time.Time    `json:"created_at"`
}
