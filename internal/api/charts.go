package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/B-Step62/mlflow-sub000/internal/chartgen"
	"github.com/B-Step62/mlflow-sub000/internal/log"
	"github.com/B-Step62/mlflow-sub000/internal/security"
)

// maxBodySize bounds request bodies. Chart code is text, so 1MB is
// generous.
const maxBodySize = 1 << 20

// Store is the persistence the chart endpoints need. Both the
// in-memory and the PostgreSQL stores satisfy it.
type Store interface {
	CreateRequest(ctx context.Context, rec *chartgen.Record) error
	GetRequest(ctx context.Context, id string) (*chartgen.Record, error)
	SaveChart(ctx context.Context, c *chartgen.Chart) error
	GetChart(ctx context.Context, id string) (*chartgen.Chart, error)
	ListCharts(ctx context.Context, f chartgen.ChartFilter) ([]chartgen.Chart, error)
	DeleteChart(ctx context.Context, id string) error
}

// chartHandler serves the /api/2.0/charts endpoints.
type chartHandler struct {
	store   Store
	policy  security.CodePolicy
	allowed map[string]struct{} // experiment allowlist; empty admits all
	logger  log.Logger
}

func newChartHandler(store Store, policy security.CodePolicy, allowedExperiments []string, logger log.Logger) *chartHandler {
	allowed := make(map[string]struct{}, len(allowedExperiments))
	for _, id := range allowedExperiments {
		allowed[id] = struct{}{}
	}
	return &chartHandler{
		store:   store,
		policy:  policy,
		allowed: allowed,
		logger:  logger,
	}
}

type generateResponse struct {
	RequestID string          `json:"request_id"`
	Status    chartgen.Status `json:"status"`
}

// generate accepts a chart generation request and queues it.
// POST /api/2.0/charts/generate
func (h *chartHandler) generate(w http.ResponseWriter, r *http.Request) {
	var req chartgen.Request
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, "Invalid request body")
		return
	}

	if err := chartgen.ValidateRequest(req); err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, err.Error())
		return
	}

	rec := chartgen.NewRecord(req)
	if err := h.store.CreateRequest(r.Context(), rec); err != nil {
		h.logger.Error("failed to create generation request", "error", err)
		writeError(w, http.StatusInternalServerError, CodeInternalError, "Failed to create generation request")
		return
	}

	if !req.HasContext() {
		h.logger.Warn("generation request carries no run or experiment context",
			"request_id", rec.RequestID)
	}
	h.logger.Info("generation request accepted", "request_id", rec.RequestID)

	writeJSON(w, http.StatusAccepted, generateResponse{
		RequestID: rec.RequestID,
		Status:    rec.Status,
	})
}

type statusResponse struct {
	RequestID    string           `json:"request_id"`
	Status       chartgen.Status  `json:"status"`
	Result       *chartgen.Result `json:"result,omitempty"`
	ErrorMessage string           `json:"error_message,omitempty"`
}

// status reports the lifecycle state of a generation request.
// GET /api/2.0/charts/status/{request_id}
func (h *chartHandler) status(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("request_id")

	rec, err := h.store.GetRequest(r.Context(), id)
	if err != nil {
		if errors.Is(err, chartgen.ErrRequestNotFound) {
			writeError(w, http.StatusNotFound, CodeNotFound, fmt.Sprintf("Request %s not found", id))
			return
		}
		h.logger.Error("failed to load generation request", "request_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, CodeInternalError, "Failed to load generation request")
		return
	}

	writeJSON(w, http.StatusOK, statusResponse{
		RequestID:    rec.RequestID,
		Status:       rec.Status,
		Result:       rec.Result,
		ErrorMessage: rec.ErrorMessage,
	})
}

type saveRequest struct {
	Name         string                `json:"name"`
	ChartCode    string                `json:"chart_code"`
	ExperimentID string                `json:"experiment_id"`
	RunID        string                `json:"run_id"`
	DataSources  []chartgen.DataSource `json:"data_sources"`
}

type saveResponse struct {
	ChartID     string `json:"chart_id"`
	ArtifactURI string `json:"artifact_uri"`
}

// save persists a generated chart after vetting its code again.
// POST /api/2.0/charts/save
func (h *chartHandler) save(w http.ResponseWriter, r *http.Request) {
	var req saveRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, "Invalid request body")
		return
	}

	chart := chartgen.Chart{
		ChartID:      chartgen.NewChartID(),
		Name:         req.Name,
		ChartCode:    req.ChartCode,
		ExperimentID: req.ExperimentID,
		RunID:        req.RunID,
		DataSources:  req.DataSources,
		CreatedAt:    time.Now().UTC(),
	}
	chart.ArtifactURI = chartgen.ArtifactURI(chart.ChartID)

	if err := chartgen.ValidateChart(chart); err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, err.Error())
		return
	}

	if len(h.allowed) > 0 {
		if _, ok := h.allowed[chart.ExperimentID]; !ok {
			writeError(w, http.StatusForbidden, CodePermissionDenied,
				fmt.Sprintf("Saving charts to experiment %s is not permitted", chart.ExperimentID))
			return
		}
	}

	// Saved code is served back to viewers, so it is vetted on the way
	// in regardless of what the client already checked.
	if verdict := h.policy.Evaluate(chart.ChartCode); !verdict.Allowed {
		h.logger.Warn("rejected unsafe chart code",
			"experiment_id", chart.ExperimentID, "patterns", verdict.Patterns)
		writeError(w, http.StatusBadRequest, CodeInvalidRequest,
			fmt.Sprintf("Chart code contains unsafe operations (%s)", strings.Join(verdict.Patterns, ", ")))
		return
	}

	if err := h.store.SaveChart(r.Context(), &chart); err != nil {
		h.logger.Error("failed to save chart", "error", err)
		writeError(w, http.StatusInternalServerError, CodeInternalError, "Failed to save chart")
		return
	}

	h.logger.Info("chart saved",
		"chart_id", chart.ChartID, "experiment_id", chart.ExperimentID, "name", chart.Name)

	writeJSON(w, http.StatusOK, saveResponse{
		ChartID:     chart.ChartID,
		ArtifactURI: chart.ArtifactURI,
	})
}

type listResponse struct {
	Charts     []chartgen.Chart `json:"charts"`
	TotalCount int              `json:"total_count"`
}

// list returns saved charts, optionally filtered by run or experiment.
// GET /api/2.0/charts/list?run_id=&experiment_id=
func (h *chartHandler) list(w http.ResponseWriter, r *http.Request) {
	filter := chartgen.ChartFilter{
		RunID:        r.URL.Query().Get("run_id"),
		ExperimentID: r.URL.Query().Get("experiment_id"),
	}

	charts, err := h.store.ListCharts(r.Context(), filter)
	if err != nil {
		h.logger.Error("failed to list charts", "error", err)
		writeError(w, http.StatusInternalServerError, CodeInternalError, "Failed to list charts")
		return
	}
	if charts == nil {
		charts = []chartgen.Chart{}
	}

	writeJSON(w, http.StatusOK, listResponse{Charts: charts, TotalCount: len(charts)})
}

// delete removes a saved chart.
// DELETE /api/2.0/charts/{chart_id}
func (h *chartHandler) delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("chart_id")

	if err := h.store.DeleteChart(r.Context(), id); err != nil {
		if errors.Is(err, chartgen.ErrChartNotFound) {
			writeError(w, http.StatusNotFound, CodeNotFound, fmt.Sprintf("Chart %s not found", id))
			return
		}
		h.logger.Error("failed to delete chart", "chart_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, CodeInternalError, "Failed to delete chart")
		return
	}

	h.logger.Info("chart deleted", "chart_id", id)
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
