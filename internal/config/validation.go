package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"slices"
)

// Validate validates configuration values.
// Returns sentinel errors that can be checked with errors.Is().
func (c *Config) Validate() error {
	// 0. Check for nil config (defensive programming)
	if c == nil {
		return ErrConfigNil
	}

	// 1. Server validation
	if c.ServerAddr == "" {
		return fmt.Errorf("%w: server_addr cannot be empty", ErrInvalidServerAddr)
	}

	if c.RateLimitBurst < 1 || c.RateLimitBurst > 10000 {
		return fmt.Errorf("%w: rate_limit_burst must be between 1 and 10000, got %d",
			ErrInvalidRateLimit, c.RateLimitBurst)
	}

	// 2. Store validation
	validBackends := []string{BackendMemory, BackendPostgres}
	if !slices.Contains(validBackends, c.StoreBackend) {
		return fmt.Errorf("%w: %q is not valid, must be one of: %v",
			ErrInvalidStoreBackend, c.StoreBackend, validBackends)
	}

	// One week ceiling keeps the memory backend bounded
	if c.RequestTTLMinutes < 1 || c.RequestTTLMinutes > 10080 {
		return fmt.Errorf("%w: request_ttl_minutes must be between 1 and 10080, got %d",
			ErrInvalidRequestTTL, c.RequestTTLMinutes)
	}

	// 3. PostgreSQL validation (only checked when the postgres backend is selected)
	if c.StoreBackend == BackendPostgres {
		if err := c.validatePostgres(); err != nil {
			return err
		}
	}

	// 4. Generator validation
	if c.Generator.Workers < 1 || c.Generator.Workers > 32 {
		return fmt.Errorf("%w: generator.workers must be between 1 and 32, got %d",
			ErrInvalidWorkerCount, c.Generator.Workers)
	}

	if c.Generator.TimeoutMS < 1 {
		return fmt.Errorf("%w: generator.timeout_ms must be positive, got %d",
			ErrInvalidGeneratorTimeout, c.Generator.TimeoutMS)
	}

	if c.Generator.IntervalMS < 1 {
		return fmt.Errorf("%w: generator.interval_ms must be positive, got %d",
			ErrInvalidGeneratorInterval, c.Generator.IntervalMS)
	}

	// Zero latency means immediate generation, useful for tests
	if c.Generator.LatencyMS < 0 {
		return fmt.Errorf("%w: generator.latency_ms cannot be negative, got %d",
			ErrInvalidGeneratorLatency, c.Generator.LatencyMS)
	}

	// 5. Client validation
	u, err := url.Parse(c.Client.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: %q is not an absolute URL", ErrInvalidClientBaseURL, c.Client.BaseURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: scheme must be http or https, got %q",
			ErrInvalidClientBaseURL, u.Scheme)
	}

	if c.Client.PollIntervalMS < 1 {
		return fmt.Errorf("%w: client.poll_interval_ms must be positive, got %d",
			ErrInvalidPollInterval, c.Client.PollIntervalMS)
	}

	if c.Client.MaxAttempts < 1 || c.Client.MaxAttempts > 1000 {
		return fmt.Errorf("%w: client.max_attempts must be between 1 and 1000, got %d",
			ErrInvalidMaxAttempts, c.Client.MaxAttempts)
	}

	// 6. Observability validation
	if c.Observability.SampleRatio < 0 || c.Observability.SampleRatio > 1 {
		return fmt.Errorf("%w: observability.sample_ratio must be between 0.0 and 1.0, got %.2f",
			ErrInvalidSampleRatio, c.Observability.SampleRatio)
	}

	// 7. Logging validation
	validLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLevels, c.LogLevel) {
		return fmt.Errorf("%w: %q is not valid, must be one of: %v",
			ErrInvalidLogLevel, c.LogLevel, validLevels)
	}

	validFormats := []string{"text", "json"}
	if !slices.Contains(validFormats, c.LogFormat) {
		return fmt.Errorf("%w: %q is not valid, must be one of: %v",
			ErrInvalidLogFormat, c.LogFormat, validFormats)
	}

	return nil
}

// validatePostgres checks the postgres_* fields. Called only when the
// postgres backend is selected, so a memory-backed deployment never has
// to carry valid database settings.
func (c *Config) validatePostgres() error {
	if c.PostgresHost == "" {
		return fmt.Errorf("%w: host cannot be empty", ErrInvalidPostgresHost)
	}

	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: must be between 1 and 65535, got %d",
			ErrInvalidPostgresPort, c.PostgresPort)
	}

	if c.PostgresDBName == "" {
		return fmt.Errorf("%w: database name cannot be empty", ErrInvalidPostgresDBName)
	}

	if c.PostgresPassword == "" {
		return fmt.Errorf("%w: postgres_password must be set in config.yaml",
			ErrInvalidPostgresPassword)
	}

	// Warn on the default dev password but don't block - user might be in dev
	if c.PostgresPassword == "chartgen_dev_password" {
		slog.Warn("Using default development password for PostgreSQL",
			"warning", "Change postgres_password in config.yaml for production deployments")
	}

	// Validate password strength (minimum 8 characters)
	if len(c.PostgresPassword) < 8 {
		return fmt.Errorf("%w: postgres_password must be at least 8 characters (got %d)",
			ErrInvalidPostgresPassword, len(c.PostgresPassword))
	}

	// Modern SSL modes only - exclude deprecated allow/prefer (MITM vulnerable)
	// Reference: https://www.postgresql.org/docs/current/libpq-ssl.html
	validSSLModes := []string{"disable", "require", "verify-ca", "verify-full"}
	if c.PostgresSSLMode == "" {
		return fmt.Errorf("%w: postgres_ssl_mode is empty (should have default from setDefaults)",
			ErrInvalidPostgresSSLMode)
	}

	if !slices.Contains(validSSLModes, c.PostgresSSLMode) {
		return fmt.Errorf("%w: %q is not valid, must be one of: %v\n"+
			"Note: 'allow' and 'prefer' modes are deprecated (vulnerable to MITM attacks)",
			ErrInvalidPostgresSSLMode, c.PostgresSSLMode, validSSLModes)
	}

	return nil
}
