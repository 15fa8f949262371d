package config

import "time"

// GeneratorConfig tunes the background chart generation worker pool.
//
// Durations are configured in milliseconds to keep the YAML plain integers.
type GeneratorConfig struct {
	// LatencyMS is the simulated generation time per request (default: 1500)
	LatencyMS int `mapstructure:"latency_ms" json:"latency_ms"`
	// TimeoutMS bounds a single generation attempt (default: 30000)
	TimeoutMS int `mapstructure:"timeout_ms" json:"timeout_ms"`
	// IntervalMS is the queue polling interval (default: 1000)
	IntervalMS int `mapstructure:"interval_ms" json:"interval_ms"`
	// Workers is the number of concurrent queue workers (default: 1)
	Workers int `mapstructure:"workers" json:"workers"`
}

// Latency returns the simulated generation time as a duration.
func (g GeneratorConfig) Latency() time.Duration {
	return time.Duration(g.LatencyMS) * time.Millisecond
}

// Timeout returns the per-request generation timeout as a duration.
func (g GeneratorConfig) Timeout() time.Duration {
	return time.Duration(g.TimeoutMS) * time.Millisecond
}

// Interval returns the queue polling interval as a duration.
func (g GeneratorConfig) Interval() time.Duration {
	return time.Duration(g.IntervalMS) * time.Millisecond
}
