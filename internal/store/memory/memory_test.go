package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/B-Step62/mlflow-sub000/internal/chartgen"
)

func newRecord(prompt string) *chartgen.Record {
	return chartgen.NewRecord(chartgen.Request{Prompt: prompt, RunID: "run-1"})
}

func TestRequestRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := New(0)

	rec := newRecord("Show accuracy over time")
	if err := s.CreateRequest(ctx, rec); err != nil {
		t.Fatalf("CreateRequest() error: %v", err)
	}

	got, err := s.GetRequest(ctx, rec.RequestID)
	if err != nil {
		t.Fatalf("GetRequest() error: %v", err)
	}
	if got.Prompt != rec.Prompt || got.Status != chartgen.StatusPending {
		t.Errorf("GetRequest() = %+v, want pending record with prompt %q", got, rec.Prompt)
	}

	// Mutating the returned record must not leak into the store.
	got.Status = chartgen.StatusFailed
	again, err := s.GetRequest(ctx, rec.RequestID)
	if err != nil {
		t.Fatalf("GetRequest() error: %v", err)
	}
	if again.Status != chartgen.StatusPending {
		t.Error("store state changed through a returned pointer")
	}
}

func TestGetRequestNotFound(t *testing.T) {
	t.Parallel()
	s := New(0)

	_, err := s.GetRequest(context.Background(), "req_missing")
	if !errors.Is(err, chartgen.ErrRequestNotFound) {
		t.Errorf("GetRequest() error = %v, want ErrRequestNotFound", err)
	}
}

func TestClaimPending(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := New(0)

	claimed, err := s.ClaimPending(ctx)
	if err != nil {
		t.Fatalf("ClaimPending() error: %v", err)
	}
	if claimed != nil {
		t.Fatalf("ClaimPending() on empty store = %+v, want nil", claimed)
	}

	first := newRecord("first")
	first.CreatedAt = time.Now().UTC().Add(-2 * time.Minute)
	second := newRecord("second")
	second.CreatedAt = time.Now().UTC().Add(-1 * time.Minute)
	for _, rec := range []*chartgen.Record{second, first} {
		if err := s.CreateRequest(ctx, rec); err != nil {
			t.Fatalf("CreateRequest() error: %v", err)
		}
	}

	claimed, err = s.ClaimPending(ctx)
	if err != nil {
		t.Fatalf("ClaimPending() error: %v", err)
	}
	if claimed.RequestID != first.RequestID {
		t.Errorf("ClaimPending() = %q, want oldest pending %q", claimed.RequestID, first.RequestID)
	}
	if claimed.Status != chartgen.StatusProcessing {
		t.Errorf("ClaimPending() status = %q, want processing", claimed.Status)
	}

	// The claim must be visible and exclusive.
	got, err := s.GetRequest(ctx, first.RequestID)
	if err != nil {
		t.Fatalf("GetRequest() error: %v", err)
	}
	if got.Status != chartgen.StatusProcessing {
		t.Errorf("claimed record status = %q, want processing", got.Status)
	}

	claimed, err = s.ClaimPending(ctx)
	if err != nil {
		t.Fatalf("ClaimPending() error: %v", err)
	}
	if claimed.RequestID != second.RequestID {
		t.Errorf("second ClaimPending() = %q, want %q", claimed.RequestID, second.RequestID)
	}

	claimed, err = s.ClaimPending(ctx)
	if err != nil {
		t.Fatalf("ClaimPending() error: %v", err)
	}
	if claimed != nil {
		t.Errorf("third ClaimPending() = %+v, want nil", claimed)
	}
}

func TestCompleteRequest(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := New(0)

	rec := newRecord("complete me")
	if err := s.CreateRequest(ctx, rec); err != nil {
		t.Fatalf("CreateRequest() error: %v", err)
	}

	res := &chartgen.Result{
		ChartCode:   "return React.createElement('div');",
		ChartTitle:  "Accuracy",
		DataSources: []chartgen.DataSource{{RunID: "run-1", MetricKey: "accuracy"}},
	}

	// Completing before a claim is an invalid transition.
	if err := s.CompleteRequest(ctx, rec.RequestID, res); !errors.Is(err, chartgen.ErrInvalidTransition) {
		t.Fatalf("CompleteRequest() before claim = %v, want ErrInvalidTransition", err)
	}

	if _, err := s.ClaimPending(ctx); err != nil {
		t.Fatalf("ClaimPending() error: %v", err)
	}
	if err := s.CompleteRequest(ctx, rec.RequestID, res); err != nil {
		t.Fatalf("CompleteRequest() error: %v", err)
	}

	got, err := s.GetRequest(ctx, rec.RequestID)
	if err != nil {
		t.Fatalf("GetRequest() error: %v", err)
	}
	if got.Status != chartgen.StatusCompleted {
		t.Errorf("status = %q, want completed", got.Status)
	}
	if got.Result == nil || got.Result.ChartCode != res.ChartCode {
		t.Errorf("result = %+v, want chart code carried", got.Result)
	}

	if err := s.CompleteRequest(ctx, "req_missing", res); !errors.Is(err, chartgen.ErrRequestNotFound) {
		t.Errorf("CompleteRequest(missing) = %v, want ErrRequestNotFound", err)
	}
}

func TestFailRequest(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := New(0)

	rec := newRecord("fail me")
	if err := s.CreateRequest(ctx, rec); err != nil {
		t.Fatalf("CreateRequest() error: %v", err)
	}
	if _, err := s.ClaimPending(ctx); err != nil {
		t.Fatalf("ClaimPending() error: %v", err)
	}
	if err := s.FailRequest(ctx, rec.RequestID, "model unavailable"); err != nil {
		t.Fatalf("FailRequest() error: %v", err)
	}

	got, err := s.GetRequest(ctx, rec.RequestID)
	if err != nil {
		t.Fatalf("GetRequest() error: %v", err)
	}
	if got.Status != chartgen.StatusFailed || got.ErrorMessage != "model unavailable" {
		t.Errorf("failed record = %+v, want failed with message", got)
	}

	// Terminal records cannot transition again.
	if err := s.FailRequest(ctx, rec.RequestID, "again"); !errors.Is(err, chartgen.ErrInvalidTransition) {
		t.Errorf("FailRequest() on terminal = %v, want ErrInvalidTransition", err)
	}
}

func TestRequestExpiry(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := New(30 * time.Millisecond)

	rec := newRecord("short lived")
	if err := s.CreateRequest(ctx, rec); err != nil {
		t.Fatalf("CreateRequest() error: %v", err)
	}

	time.Sleep(80 * time.Millisecond)

	if _, err := s.GetRequest(ctx, rec.RequestID); !errors.Is(err, chartgen.ErrRequestNotFound) {
		t.Errorf("GetRequest() after TTL = %v, want ErrRequestNotFound", err)
	}
}

func TestChartsDoNotExpire(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := New(30 * time.Millisecond)

	c := &chartgen.Chart{
		ChartID:      chartgen.NewChartID(),
		Name:         "Accuracy",
		ChartCode:    "return null;",
		ExperimentID: "exp-1",
		ArtifactURI:  chartgen.ArtifactURI("chart_x"),
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.SaveChart(ctx, c); err != nil {
		t.Fatalf("SaveChart() error: %v", err)
	}

	time.Sleep(80 * time.Millisecond)

	if _, err := s.GetChart(ctx, c.ChartID); err != nil {
		t.Errorf("GetChart() after request TTL = %v, want chart retained", err)
	}
}

func TestChartLifecycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := New(0)

	base := time.Now().UTC()
	charts := []*chartgen.Chart{
		{ChartID: chartgen.NewChartID(), Name: "loss", ChartCode: "c1", ExperimentID: "exp-1", RunID: "run-1", CreatedAt: base.Add(-2 * time.Minute)},
		{ChartID: chartgen.NewChartID(), Name: "accuracy", ChartCode: "c2", ExperimentID: "exp-1", RunID: "run-2", CreatedAt: base.Add(-1 * time.Minute)},
		{ChartID: chartgen.NewChartID(), Name: "latency", ChartCode: "c3", ExperimentID: "exp-2", RunID: "run-1", CreatedAt: base},
	}
	for _, c := range charts {
		if err := s.SaveChart(ctx, c); err != nil {
			t.Fatalf("SaveChart() error: %v", err)
		}
	}

	tests := []struct {
		name   string
		filter chartgen.ChartFilter
		want   []string
	}{
		{"no filter newest first", chartgen.ChartFilter{}, []string{"latency", "accuracy", "loss"}},
		{"by experiment", chartgen.ChartFilter{ExperimentID: "exp-1"}, []string{"accuracy", "loss"}},
		{"by run", chartgen.ChartFilter{RunID: "run-1"}, []string{"latency", "loss"}},
		{"by both", chartgen.ChartFilter{RunID: "run-1", ExperimentID: "exp-1"}, []string{"loss"}},
		{"no match", chartgen.ChartFilter{ExperimentID: "exp-404"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ListCharts(ctx, tt.filter)
			if err != nil {
				t.Fatalf("ListCharts() error: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("ListCharts() returned %d charts, want %d", len(got), len(tt.want))
			}
			for i, name := range tt.want {
				if got[i].Name != name {
					t.Errorf("ListCharts()[%d] = %q, want %q", i, got[i].Name, name)
				}
			}
		})
	}

	if err := s.DeleteChart(ctx, charts[0].ChartID); err != nil {
		t.Fatalf("DeleteChart() error: %v", err)
	}
	if err := s.DeleteChart(ctx, charts[0].ChartID); !errors.Is(err, chartgen.ErrChartNotFound) {
		t.Errorf("second DeleteChart() = %v, want ErrChartNotFound", err)
	}
	if _, err := s.GetChart(ctx, charts[0].ChartID); !errors.Is(err, chartgen.ErrChartNotFound) {
		t.Errorf("GetChart() after delete = %v, want ErrChartNotFound", err)
	}
}
