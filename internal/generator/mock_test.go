package generator

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/B-Step62/mlflow-sub000/internal/chartgen"
	"github.com/B-Step62/mlflow-sub000/internal/log"
	"github.com/B-Step62/mlflow-sub000/internal/render"
	"github.com/B-Step62/mlflow-sub000/internal/security"
)

func TestMock_Generate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		req          chartgen.Request
		wantTitle    string
		wantCodeHint string
		wantSources  []chartgen.DataSource
	}{
		{
			name:         "line chart by default",
			req:          chartgen.Request{Prompt: "plot training progress", RunID: "run-1"},
			wantTitle:    "Metric over Steps",
			wantCodeHint: "MetricLineChart",
			wantSources:  []chartgen.DataSource{{RunID: "run-1", MetricKey: "metric"}},
		},
		{
			name:         "accuracy line chart",
			req:          chartgen.Request{Prompt: "show accuracy over epochs", RunID: "run-2"},
			wantTitle:    "Accuracy over Steps",
			wantCodeHint: "MetricLineChart",
			wantSources:  []chartgen.DataSource{{RunID: "run-2", MetricKey: "accuracy"}},
		},
		{
			name:         "bar chart keyword",
			req:          chartgen.Request{Prompt: "compare loss as a bar chart", ExperimentID: "exp-1"},
			wantTitle:    "Loss by Run",
			wantCodeHint: "MetricBarChart",
		},
		{
			name:         "scatter keyword",
			req:          chartgen.Request{Prompt: "scatter of rmse", RunID: "run-3"},
			wantTitle:    "Rmse Scatter",
			wantCodeHint: "MetricScatterChart",
			wantSources:  []chartgen.DataSource{{RunID: "run-3", MetricKey: "rmse"}},
		},
		{
			name:         "learning rate keyword",
			req:          chartgen.Request{Prompt: "learning rate schedule", RunID: "run-4"},
			wantTitle:    "Learning Rate over Steps",
			wantCodeHint: "MetricLineChart",
			wantSources:  []chartgen.DataSource{{RunID: "run-4", MetricKey: "learning_rate"}},
		},
		{
			name:         "no run context means no data sources",
			req:          chartgen.Request{Prompt: "plot loss"},
			wantTitle:    "Loss over Steps",
			wantCodeHint: "MetricLineChart",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			mock := NewMock(0)
			res, err := mock.Generate(context.Background(), tt.req)
			if err != nil {
				t.Fatalf("Generate() error = %v", err)
			}
			if res.ChartTitle != tt.wantTitle {
				t.Errorf("ChartTitle = %q, want %q", res.ChartTitle, tt.wantTitle)
			}
			if !strings.Contains(res.ChartCode, tt.wantCodeHint) {
				t.Errorf("ChartCode missing %q", tt.wantCodeHint)
			}
			if len(res.DataSources) != len(tt.wantSources) {
				t.Fatalf("DataSources = %v, want %v", res.DataSources, tt.wantSources)
			}
			for i, want := range tt.wantSources {
				if res.DataSources[i] != want {
					t.Errorf("DataSources[%d] = %v, want %v", i, res.DataSources[i], want)
				}
			}
		})
	}
}

func TestMock_Generate_FailMarker(t *testing.T) {
	t.Parallel()

	mock := NewMock(0)
	_, err := mock.Generate(context.Background(), chartgen.Request{Prompt: "plot loss [fail]"})
	if err == nil {
		t.Fatal("Generate() with fail marker should error")
	}
}

func TestMock_Generate_ContextCanceled(t *testing.T) {
	t.Parallel()

	mock := NewMock(time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := mock.Generate(ctx, chartgen.Request{Prompt: "plot loss"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Generate() error = %v, want context.Canceled", err)
	}
}

// Every canned component must survive the full vetting and rendering
// pipeline, otherwise the built-in generator produces charts nobody can
// view.
func TestMock_TemplatesRender(t *testing.T) {
	t.Parallel()

	prompts := []string{
		"plot accuracy",
		"accuracy as bar chart",
		"scatter of accuracy",
	}
	renderer := render.New(security.NewDenyList(), log.NewNop())

	for _, prompt := range prompts {
		res, err := NewMock(0).Generate(context.Background(), chartgen.Request{Prompt: prompt, RunID: "run-9"})
		if err != nil {
			t.Fatalf("Generate(%q) error = %v", prompt, err)
		}

		rendered, err := renderer.Render(res.ChartCode, render.Context{
			RunID:     "run-9",
			Title:     res.ChartTitle,
			Confirmed: true,
		})
		if err != nil {
			t.Fatalf("Render(%q) error = %v", prompt, err)
		}
		if !strings.Contains(rendered.Document, "chart-root") {
			t.Errorf("Render(%q) document missing chart container", prompt)
		}
	}
}

func TestDisplayName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		metric string
		want   string
	}{
		{"accuracy", "Accuracy"},
		{"learning_rate", "Learning Rate"},
		{"f1_score", "F1 Score"},
		{"metric", "Metric"},
	}
	for _, tt := range tests {
		if got := displayName(tt.metric); got != tt.want {
			t.Errorf("displayName(%q) = %q, want %q", tt.metric, got, tt.want)
		}
	}
}
