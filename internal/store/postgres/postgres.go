// Package postgres provides the durable store used when chartgen runs
// against a database. Schema is owned by the embedded migrations in
// the db package.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/B-Step62/mlflow-sub000/internal/chartgen"
	"github.com/B-Step62/mlflow-sub000/internal/log"
)

const recordColumns = "request_id, prompt, run_id, experiment_id, status, chart_code, chart_title, data_sources, error_message, created_at, updated_at"

const chartColumns = "chart_id, name, chart_code, experiment_id, run_id, data_sources, artifact_uri, created_at"

// Store persists generation requests and saved charts in PostgreSQL.
// Safe for concurrent use; claim exclusivity is enforced by the
// database (FOR UPDATE SKIP LOCKED), so multiple workers and multiple
// server instances can share one schema.
type Store struct {
	pool       *pgxpool.Pool
	requestTTL time.Duration
	logger     log.Logger
}

// New creates a Store on an existing pool. requestTTL bounds how long
// generation requests are retained; non-positive disables pruning.
func New(pool *pgxpool.Pool, requestTTL time.Duration, logger log.Logger) *Store {
	return &Store{
		pool:       pool,
		requestTTL: requestTTL,
		logger:     logger,
	}
}

// CreateRequest inserts a new generation record.
func (s *Store) CreateRequest(ctx context.Context, rec *chartgen.Record) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO generation_requests (request_id, prompt, run_id, experiment_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rec.RequestID, rec.Prompt, rec.RunID, rec.ExperimentID, string(rec.Status), rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create generation request: %w", err)
	}
	return nil
}

// GetRequest returns the record for id, or ErrRequestNotFound.
func (s *Store) GetRequest(ctx context.Context, id string) (*chartgen.Record, error) {
	row := s.pool.QueryRow(ctx,
		"SELECT "+recordColumns+" FROM generation_requests WHERE request_id = $1", id)

	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, chartgen.ErrRequestNotFound
		}
		return nil, fmt.Errorf("failed to get generation request %s: %w", id, err)
	}
	return rec, nil
}

// ClaimPending atomically claims the oldest pending record, moving it
// to processing. It returns (nil, nil) when nothing is pending.
func (s *Store) ClaimPending(ctx context.Context) (*chartgen.Record, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE generation_requests
		SET status = 'processing', updated_at = now()
		WHERE request_id = (
			SELECT request_id FROM generation_requests
			WHERE status = 'pending'
			ORDER BY created_at
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+recordColumns)

	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to claim pending request: %w", err)
	}
	return rec, nil
}

// CompleteRequest moves a processing record to completed with its
// result.
func (s *Store) CompleteRequest(ctx context.Context, id string, res *chartgen.Result) error {
	dataSources, err := marshalDataSources(res.DataSources)
	if err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE generation_requests
		SET status = 'completed', chart_code = $2, chart_title = $3, data_sources = $4, error_message = '', updated_at = now()
		WHERE request_id = $1 AND status = 'processing'`,
		id, res.ChartCode, res.ChartTitle, dataSources)
	if err != nil {
		return fmt.Errorf("failed to complete generation request %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return s.transitionError(ctx, id)
	}
	return nil
}

// FailRequest moves a processing record to failed with an error
// message.
func (s *Store) FailRequest(ctx context.Context, id string, msg string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE generation_requests
		SET status = 'failed', chart_code = '', chart_title = '', data_sources = NULL, error_message = $2, updated_at = now()
		WHERE request_id = $1 AND status = 'processing'`,
		id, msg)
	if err != nil {
		return fmt.Errorf("failed to fail generation request %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return s.transitionError(ctx, id)
	}
	return nil
}

// transitionError distinguishes a missing record from one whose status
// forbids the attempted transition.
func (s *Store) transitionError(ctx context.Context, id string) error {
	var status string
	err := s.pool.QueryRow(ctx,
		"SELECT status FROM generation_requests WHERE request_id = $1", id).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return chartgen.ErrRequestNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to inspect generation request %s: %w", id, err)
	}
	return chartgen.ErrInvalidTransition
}

// DeleteExpired removes generation requests older than the configured
// TTL and returns how many were pruned.
func (s *Store) DeleteExpired(ctx context.Context) (int, error) {
	if s.requestTTL <= 0 {
		return 0, nil
	}

	cutoff := time.Now().UTC().Add(-s.requestTTL)
	tag, err := s.pool.Exec(ctx,
		"DELETE FROM generation_requests WHERE updated_at < $1", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired requests: %w", err)
	}

	pruned := int(tag.RowsAffected())
	if pruned > 0 {
		s.logger.Debug("pruned expired generation requests", "count", pruned)
	}
	return pruned, nil
}

// SaveChart inserts a saved chart.
func (s *Store) SaveChart(ctx context.Context, c *chartgen.Chart) error {
	dataSources, err := marshalDataSources(c.DataSources)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO saved_charts (chart_id, name, chart_code, experiment_id, run_id, data_sources, artifact_uri, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		c.ChartID, c.Name, c.ChartCode, c.ExperimentID, c.RunID, dataSources, c.ArtifactURI, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save chart: %w", err)
	}
	return nil
}

// GetChart returns the chart for id, or ErrChartNotFound.
func (s *Store) GetChart(ctx context.Context, id string) (*chartgen.Chart, error) {
	row := s.pool.QueryRow(ctx,
		"SELECT "+chartColumns+" FROM saved_charts WHERE chart_id = $1", id)

	c, err := scanChart(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, chartgen.ErrChartNotFound
		}
		return nil, fmt.Errorf("failed to get chart %s: %w", id, err)
	}
	return c, nil
}

// ListCharts returns saved charts matching the filter, newest first.
func (s *Store) ListCharts(ctx context.Context, f chartgen.ChartFilter) ([]chartgen.Chart, error) {
	query := "SELECT " + chartColumns + " FROM saved_charts"
	var conds []string
	var args []any
	if f.RunID != "" {
		args = append(args, f.RunID)
		conds = append(conds, fmt.Sprintf("run_id = $%d", len(args)))
	}
	if f.ExperimentID != "" {
		args = append(args, f.ExperimentID)
		conds = append(conds, fmt.Sprintf("experiment_id = $%d", len(args)))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC, chart_id"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list charts: %w", err)
	}
	defer rows.Close()

	var out []chartgen.Chart
	for rows.Next() {
		c, err := scanChart(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan chart: %w", err)
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list charts: %w", err)
	}
	return out, nil
}

// DeleteChart removes a saved chart, or returns ErrChartNotFound.
func (s *Store) DeleteChart(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, "DELETE FROM saved_charts WHERE chart_id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete chart %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return chartgen.ErrChartNotFound
	}
	return nil
}

// row is the subset of pgx.Row and pgx.Rows the scanners need.
type row interface {
	Scan(dest ...any) error
}

func scanRecord(r row) (*chartgen.Record, error) {
	var (
		rec         chartgen.Record
		status      string
		chartCode   string
		chartTitle  string
		dataSources []byte
	)
	err := r.Scan(&rec.RequestID, &rec.Prompt, &rec.RunID, &rec.ExperimentID, &status,
		&chartCode, &chartTitle, &dataSources, &rec.ErrorMessage, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}

	rec.Status = chartgen.Status(status)
	if rec.Status == chartgen.StatusCompleted {
		sources, err := unmarshalDataSources(dataSources)
		if err != nil {
			return nil, err
		}
		rec.Result = &chartgen.Result{
			ChartCode:   chartCode,
			ChartTitle:  chartTitle,
			DataSources: sources,
		}
	}
	return &rec, nil
}

func scanChart(r row) (*chartgen.Chart, error) {
	var (
		c           chartgen.Chart
		dataSources []byte
	)
	err := r.Scan(&c.ChartID, &c.Name, &c.ChartCode, &c.ExperimentID, &c.RunID,
		&dataSources, &c.ArtifactURI, &c.CreatedAt)
	if err != nil {
		return nil, err
	}

	sources, err := unmarshalDataSources(dataSources)
	if err != nil {
		return nil, err
	}
	c.DataSources = sources
	return &c, nil
}

func marshalDataSources(sources []chartgen.DataSource) ([]byte, error) {
	if len(sources) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(sources)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal data sources: %w", err)
	}
	return b, nil
}

func unmarshalDataSources(b []byte) ([]chartgen.DataSource, error) {
	if len(b) == 0 {
		return nil, nil
	}
	var sources []chartgen.DataSource
	if err := json.Unmarshal(b, &sources); err != nil {
		return nil, fmt.Errorf("failed to unmarshal data sources: %w", err)
	}
	return sources, nil
}
