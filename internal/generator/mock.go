package generator

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/B-Step62/mlflow-sub000/internal/chartgen"
)

// FailMarker in a prompt forces a generation error. It exists so the
// failure path can be exercised end to end against the mock backend.
const FailMarker = "[fail]"

// Mock is a deterministic generator. It picks a canned React component
// from keywords in the prompt, binds it to the request's run context,
// and optionally sleeps to simulate generation latency.
type Mock struct {
	delay time.Duration
}

// NewMock creates a mock generator. delay is the simulated generation
// time per request; zero means immediate.
func NewMock(delay time.Duration) *Mock {
	return &Mock{delay: delay}
}

// Generate implements Generator.
func (m *Mock) Generate(ctx context.Context, req chartgen.Request) (*chartgen.Result, error) {
	if m.delay > 0 {
		timer := time.NewTimer(m.delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	prompt := strings.ToLower(req.Prompt)
	if strings.Contains(prompt, FailMarker) {
		return nil, errors.New("the model could not produce a chart for this prompt")
	}

	metric := inferMetric(prompt)
	tmpl := pickTemplate(prompt)
	label := displayName(metric)

	res := &chartgen.Result{
		ChartCode:  strings.ReplaceAll(tmpl.code, "METRIC_LABEL", label),
		ChartTitle: label + " " + tmpl.titleSuffix,
	}
	if req.RunID != "" {
		res.DataSources = []chartgen.DataSource{{RunID: req.RunID, MetricKey: metric}}
	}
	return res, nil
}

// metricKeywords maps prompt words to metric keys, first match wins.
// Multi-word entries come before their substrings.
var metricKeywords = []struct {
	word   string
	metric string
}{
	{"learning rate", "learning_rate"},
	{"accuracy", "accuracy"},
	{"precision", "precision"},
	{"recall", "recall"},
	{"loss", "loss"},
	{"rmse", "rmse"},
	{"f1", "f1_score"},
}

func inferMetric(prompt string) string {
	for _, kw := range metricKeywords {
		if strings.Contains(prompt, kw.word) {
			return kw.metric
		}
	}
	return "metric"
}

type chartTemplate struct {
	code        string
	titleSuffix string
}

func pickTemplate(prompt string) chartTemplate {
	switch {
	case strings.Contains(prompt, "bar"):
		return chartTemplate{code: barChartCode, titleSuffix: "by Run"}
	case strings.Contains(prompt, "scatter"):
		return chartTemplate{code: scatterChartCode, titleSuffix: "Scatter"}
	default:
		return chartTemplate{code: lineChartCode, titleSuffix: "over Steps"}
	}
}

// displayName turns a metric key into a chart title fragment, e.g.
// "learning_rate" into "Learning Rate".
func displayName(metric string) string {
	words := strings.Split(metric, "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// The canned components are plain React.createElement trees over SVG,
// written as ES modules. They use only the capabilities the sandbox
// grants, so they pass the code policy scan unchanged.

const lineChartCode = `import React from 'react';

export default function MetricLineChart({ runId, experimentId }) {
  const width = 560;
  const height = 320;
  const pad = 44;
  const steps = 30;
  const series = [];
  for (let i = 0; i < steps; i += 1) {
    const t = i / (steps - 1);
    series.push(1 - Math.exp(-3 * t) + 0.04 * Math.sin(12 * t));
  }
  const lo = Math.min(...series);
  const hi = Math.max(...series);
  const x = (i) => pad + (i / (steps - 1)) * (width - 2 * pad);
  const y = (v) => height - pad - ((v - lo) / (hi - lo || 1)) * (height - 2 * pad);
  const points = series.map((v, i) => x(i).toFixed(1) + ',' + y(v).toFixed(1)).join(' ');
  const caption = runId ? 'METRIC_LABEL for run ' + runId : 'METRIC_LABEL';
  return React.createElement(
    'svg',
    { width: width, height: height, viewBox: '0 0 ' + width + ' ' + height, role: 'img' },
    React.createElement('line', { x1: pad, y1: height - pad, x2: width - pad, y2: height - pad, stroke: '#8c8c8c' }),
    React.createElement('line', { x1: pad, y1: pad, x2: pad, y2: height - pad, stroke: '#8c8c8c' }),
    React.createElement('polyline', { points: points, fill: 'none', stroke: '#2272b4', strokeWidth: 2 }),
    React.createElement('text', { x: width / 2, y: height - 10, textAnchor: 'middle', fontSize: 12, fill: '#444444' }, caption)
  );
}
`

const barChartCode = `import React from 'react';

export default function MetricBarChart({ runId, experimentId }) {
  const width = 560;
  const height = 320;
  const pad = 44;
  const values = [0.62, 0.74, 0.81, 0.79, 0.88];
  const hi = Math.max(...values);
  const slot = (width - 2 * pad) / values.length;
  const bars = values.map((v, i) => {
    const barHeight = (v / hi) * (height - 2 * pad);
    return React.createElement('rect', {
      x: pad + i * slot + slot * 0.15,
      y: height - pad - barHeight,
      width: slot * 0.7,
      height: barHeight,
      fill: '#2272b4'
    });
  });
  const ticks = values.map((v, i) => React.createElement(
    'text',
    { x: pad + i * slot + slot * 0.5, y: height - pad + 16, textAnchor: 'middle', fontSize: 11, fill: '#444444' },
    'run ' + (i + 1)
  ));
  const caption = experimentId ? 'METRIC_LABEL in experiment ' + experimentId : 'METRIC_LABEL';
  return React.createElement(
    'svg',
    { width: width, height: height, viewBox: '0 0 ' + width + ' ' + height, role: 'img' },
    React.createElement('line', { x1: pad, y1: height - pad, x2: width - pad, y2: height - pad, stroke: '#8c8c8c' }),
    bars,
    ticks,
    React.createElement('text', { x: width / 2, y: 24, textAnchor: 'middle', fontSize: 13, fill: '#222222' }, caption)
  );
}
`

const scatterChartCode = `import React from 'react';

export default function MetricScatterChart({ runId, experimentId }) {
  const width = 560;
  const height = 320;
  const pad = 44;
  const count = 40;
  const dots = [];
  for (let i = 0; i < count; i += 1) {
    const t = i / (count - 1);
    const v = 0.15 + 0.6 * t + 0.18 * Math.sin(73 * (i + 1));
    dots.push(React.createElement('circle', {
      cx: pad + t * (width - 2 * pad),
      cy: height - pad - v * (height - 2 * pad),
      r: 3.5,
      fill: '#2272b4',
      fillOpacity: 0.75
    }));
  }
  const caption = runId ? 'METRIC_LABEL for run ' + runId : 'METRIC_LABEL';
  return React.createElement(
    'svg',
    { width: width, height: height, viewBox: '0 0 ' + width + ' ' + height, role: 'img' },
    React.createElement('line', { x1: pad, y1: height - pad, x2: width - pad, y2: height - pad, stroke: '#8c8c8c' }),
    React.createElement('line', { x1: pad, y1: pad, x2: pad, y2: height - pad, stroke: '#8c8c8c' }),
    dots,
    React.createElement('text', { x: width / 2, y: height - 10, textAnchor: 'middle', fontSize: 12, fill: '#444444' }, caption)
  );
}
`
