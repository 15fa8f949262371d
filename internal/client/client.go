// Package client implements the Go client for the chart generation
// service: request submission, status polling, and saved-chart
// management against the HTTP API, plus a session store that tracks
// one generation flow at a time for interactive callers.
//
// The client validates prompts before any network call, so malformed
// requests fail fast with the same [chartgen.ValidationError] the
// server would return. Transport failures, non-2xx envelopes, and
// poll timeouts are distinguished by error type (TransportError,
// ServerError, TimeoutError).
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/B-Step62/mlflow-sub000/internal/chartgen"
	"github.com/B-Step62/mlflow-sub000/internal/log"
)

// basePath is the root of the chart generation API.
const basePath = "/api/2.0/charts"

// maxErrorBody bounds how much of an error response we read.
const maxErrorBody = 1 << 20

// Doer abstracts the HTTP transport so tests can substitute a fake.
// *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config configures a Client.
type Config struct {
	// BaseURL is the server root, e.g. "http://localhost:8080".
	BaseURL string

	// HTTPClient is the transport. Defaults to an *http.Client with a
	// 30 second timeout.
	HTTPClient Doer

	// PollInterval is the delay between status polls.
	// Defaults to DefaultPollInterval.
	PollInterval time.Duration

	// MaxAttempts caps how many status polls one PollUntilTerminal
	// call performs. Defaults to DefaultMaxAttempts.
	MaxAttempts int

	// Logger for request warnings. Defaults to a no-op logger.
	Logger log.Logger
}

// Client talks to the chart generation API.
type Client struct {
	baseURL      string
	http         Doer
	pollInterval time.Duration
	maxAttempts  int
	logger       log.Logger
}

// New creates a Client. BaseURL is required.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("base URL is required")
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", cfg.BaseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid base URL %q: scheme must be http or https", cfg.BaseURL)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultMaxAttempts
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}

	return &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		http:         httpClient,
		pollInterval: interval,
		maxAttempts:  attempts,
		logger:       logger,
	}, nil
}

// Status is one observation of a generation request.
type Status struct {
	RequestID    string           `json:"request_id"`
	State        chartgen.Status  `json:"status"`
	Result       *chartgen.Result `json:"result,omitempty"`
	ErrorMessage string           `json:"error_message,omitempty"`
}

// Terminal reports whether the request has finished, successfully or
// not.
func (s *Status) Terminal() bool {
	return s.State == chartgen.StatusCompleted || s.State == chartgen.StatusFailed
}

// SaveChartInput is the payload for saving a generated chart.
type SaveChartInput struct {
	Name         string                `json:"name"`
	ChartCode    string                `json:"chart_code"`
	ExperimentID string                `json:"experiment_id"`
	RunID        string                `json:"run_id,omitempty"`
	DataSources  []chartgen.DataSource `json:"data_sources,omitempty"`
}

// SavedChart is the server's acknowledgment of a save.
type SavedChart struct {
	ChartID     string `json:"chart_id"`
	ArtifactURI string `json:"artifact_uri"`
}

// Submit validates the request and issues it to the generation
// endpoint, returning the opaque request id the poller consumes.
//
// Validation failures surface as *chartgen.ValidationError before any
// network call. A missing run/experiment context is allowed but logged,
// since the generator then has nothing to anchor the chart to. No
// retries happen at this layer.
func (c *Client) Submit(ctx context.Context, req chartgen.Request) (string, error) {
	if err := chartgen.ValidateRequest(req); err != nil {
		return "", err
	}
	if !req.HasContext() {
		c.logger.Warn("generation request has no run or experiment context",
			"prompt_len", len(req.Prompt))
	}

	var resp struct {
		RequestID string          `json:"request_id"`
		Status    chartgen.Status `json:"status"`
	}
	if err := c.doJSON(ctx, http.MethodPost, basePath+"/generate", req, &resp); err != nil {
		return "", err
	}
	if resp.RequestID == "" {
		return "", &TransportError{
			Op:  "POST " + basePath + "/generate",
			Err: errors.New("response carried no request id"),
		}
	}
	return resp.RequestID, nil
}

// Status fetches the current state of a generation request.
func (c *Client) Status(ctx context.Context, requestID string) (*Status, error) {
	if requestID == "" {
		return nil, errors.New("request id is required")
	}

	var st Status
	if err := c.doJSON(ctx, http.MethodGet, basePath+"/status/"+url.PathEscape(requestID), nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// SaveChart persists a confirmed chart to the server.
func (c *Client) SaveChart(ctx context.Context, input SaveChartInput) (*SavedChart, error) {
	var saved SavedChart
	if err := c.doJSON(ctx, http.MethodPost, basePath+"/save", input, &saved); err != nil {
		return nil, err
	}
	return &saved, nil
}

// ListCharts returns saved charts matching the filter. Empty filter
// fields are not applied.
func (c *Client) ListCharts(ctx context.Context, filter chartgen.ChartFilter) ([]chartgen.Chart, error) {
	q := url.Values{}
	if filter.RunID != "" {
		q.Set("run_id", filter.RunID)
	}
	if filter.ExperimentID != "" {
		q.Set("experiment_id", filter.ExperimentID)
	}
	path := basePath + "/list"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var resp struct {
		Charts     []chartgen.Chart `json:"charts"`
		TotalCount int              `json:"total_count"`
	}
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Charts, nil
}

// DeleteChart removes a saved chart.
func (c *Client) DeleteChart(ctx context.Context, chartID string) error {
	if chartID == "" {
		return errors.New("chart id is required")
	}
	return c.doJSON(ctx, http.MethodDelete, basePath+"/"+url.PathEscape(chartID), nil, nil)
}

// doJSON performs one request/response cycle. Network failures and
// undecodable 2xx bodies become *TransportError; non-2xx responses
// become *ServerError decoded from the envelope.
func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	op := method + " " + path

	var rdr io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		rdr = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeServerError(resp)
	}

	if out == nil {
		// Drain so the transport can reuse the connection.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &TransportError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// decodeServerError turns a non-2xx response into a *ServerError,
// falling back to the HTTP status text when the envelope is absent or
// malformed.
func decodeServerError(resp *http.Response) error {
	srvErr := &ServerError{HTTPStatus: resp.StatusCode}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err == nil && len(data) > 0 {
		var envelope struct {
			ErrorCode string `json:"error_code"`
			Message   string `json:"message"`
		}
		if json.Unmarshal(data, &envelope) == nil && envelope.Message != "" {
			srvErr.Code = envelope.ErrorCode
			srvErr.Message = envelope.Message
			return srvErr
		}
	}

	srvErr.Message = http.StatusText(resp.StatusCode)
	return srvErr
}
