package config

import "time"

// ClientConfig points CLI commands at a running chart generation server.
type ClientConfig struct {
	// BaseURL is the server base URL (default: http://127.0.0.1:5000)
	BaseURL string `mapstructure:"base_url" json:"base_url"`
	// PollIntervalMS is the delay between status polls (default: 1000)
	PollIntervalMS int `mapstructure:"poll_interval_ms" json:"poll_interval_ms"`
	// MaxAttempts caps status polls per generation (default: 30)
	MaxAttempts int `mapstructure:"max_attempts" json:"max_attempts"`
}

// PollInterval returns the delay between status polls as a duration.
func (c ClientConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}
