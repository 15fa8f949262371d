// Package config provides application configuration management with multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.chartgen/config.yaml)
//  3. Default values (sensible defaults for quick start)
//
// Main configuration categories:
//   - Server: HTTP listen address, rate limiting, CORS, experiment allowlist
//   - Store: request/chart persistence backend (see storage.go for DSN helpers)
//   - Generator: background worker tuning (see generator.go)
//   - Client: CLI-to-server connection settings (see client.go)
//   - Observability: OTLP trace export (see observability.go)
//
// Security: Sensitive data (passwords) are never logged; config directory uses 0750 permissions.
// Validation: Comprehensive range checks in validation.go with clear error messages.
//
// Error Handling:
//   - Uses sentinel errors for Go-idiomatic error checking with errors.Is()
//   - Wrap with context using fmt.Errorf("%w: details", ErrXxx)
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrInvalidServerAddr indicates the server listen address is invalid.
	ErrInvalidServerAddr = errors.New("invalid server address")

	// ErrInvalidRateLimit indicates the rate limit burst is out of range.
	ErrInvalidRateLimit = errors.New("invalid rate limit")

	// ErrInvalidStoreBackend indicates the store backend is not supported.
	ErrInvalidStoreBackend = errors.New("invalid store backend")

	// ErrInvalidRequestTTL indicates the request retention period is out of range.
	ErrInvalidRequestTTL = errors.New("invalid request TTL")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is invalid.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidPostgresPassword indicates the PostgreSQL password is invalid.
	ErrInvalidPostgresPassword = errors.New("invalid PostgreSQL password")

	// ErrInvalidPostgresSSLMode indicates the PostgreSQL SSL mode is invalid.
	ErrInvalidPostgresSSLMode = errors.New("invalid PostgreSQL SSL mode")

	// ErrInvalidWorkerCount indicates the generator worker count is out of range.
	ErrInvalidWorkerCount = errors.New("invalid worker count")

	// ErrInvalidGeneratorTimeout indicates the per-request generation timeout is invalid.
	ErrInvalidGeneratorTimeout = errors.New("invalid generator timeout")

	// ErrInvalidGeneratorInterval indicates the queue polling interval is invalid.
	ErrInvalidGeneratorInterval = errors.New("invalid generator interval")

	// ErrInvalidGeneratorLatency indicates the simulated generation latency is invalid.
	ErrInvalidGeneratorLatency = errors.New("invalid generator latency")

	// ErrInvalidClientBaseURL indicates the client base URL is invalid.
	ErrInvalidClientBaseURL = errors.New("invalid client base URL")

	// ErrInvalidPollInterval indicates the status poll interval is invalid.
	ErrInvalidPollInterval = errors.New("invalid poll interval")

	// ErrInvalidMaxAttempts indicates the poll attempt ceiling is out of range.
	ErrInvalidMaxAttempts = errors.New("invalid max attempts")

	// ErrInvalidSampleRatio indicates the trace sample ratio is out of range.
	ErrInvalidSampleRatio = errors.New("invalid sample ratio")

	// ErrInvalidLogLevel indicates the log level is not recognized.
	ErrInvalidLogLevel = errors.New("invalid log level")

	// ErrInvalidLogFormat indicates the log format is not recognized.
	ErrInvalidLogFormat = errors.New("invalid log format")
)

// Store backend identifiers used in Config.StoreBackend.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
)

// Config stores application configuration.
// SECURITY: Sensitive fields are explicitly masked in MarshalJSON().
// When adding new sensitive fields (passwords, API keys, tokens), update MarshalJSON.
type Config struct {
	// HTTP server configuration (serve mode)
	ServerAddr         string   `mapstructure:"server_addr" json:"server_addr"`
	RateLimitBurst     int      `mapstructure:"rate_limit_burst" json:"rate_limit_burst"`
	CORSOrigins        []string `mapstructure:"cors_origins" json:"cors_origins"`
	AllowedExperiments []string `mapstructure:"allowed_experiments" json:"allowed_experiments"` // Experiments that accept saved charts (empty = all)
	TrustProxy         bool     `mapstructure:"trust_proxy" json:"trust_proxy"`                 // Trust X-Real-IP/X-Forwarded-For headers (set true behind reverse proxy)

	// Store configuration (see storage.go for the DSN helpers)
	StoreBackend      string `mapstructure:"store_backend" json:"store_backend"` // "memory" (default) or "postgres"
	RequestTTLMinutes int    `mapstructure:"request_ttl_minutes" json:"request_ttl_minutes"`
	PostgresHost      string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort      int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser      string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword  string `mapstructure:"postgres_password" json:"postgres_password" sensitive:"true"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName    string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode   string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// Generator configuration (see generator.go for type definition)
	Generator GeneratorConfig `mapstructure:"generator" json:"generator"`

	// Client configuration (see client.go for type definition)
	Client ClientConfig `mapstructure:"client" json:"client"`

	// Observability configuration (see observability.go for type definition)
	Observability ObservabilityConfig `mapstructure:"observability" json:"observability"`

	// Logging configuration
	LogLevel  string `mapstructure:"log_level" json:"log_level"`   // "debug", "info" (default), "warn", "error"
	LogFormat string `mapstructure:"log_format" json:"log_format"` // "text" (default) or "json"
}

// Load loads configuration.
// Priority: Environment variables > Configuration file > Default values
func Load() (*Config, error) {
	// Configuration directory: ~/.chartgen/
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".chartgen")

	// Ensure directory exists (use 0750 permission for better security)
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	// Configure Viper
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".") // Also support current directory

	// Set default values
	setDefaults()

	// Bind environment variables
	bindEnvVariables()

	// Read configuration file (if exists)
	if err := viper.ReadInConfig(); err != nil {
		// Configuration file not found is not an error, use default values
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{configDir, "."},
			"config_name", "config.yaml")
	}

	// Use Unmarshal to automatically map to struct (type-safe)
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// Parse DATABASE_URL if set (highest priority for PostgreSQL config)
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	// CRITICAL: Validate immediately (fail-fast)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults() {
	// Server defaults (MLflow-compatible port)
	viper.SetDefault("server_addr", "127.0.0.1:5000")
	viper.SetDefault("rate_limit_burst", 60)

	// CORS defaults (React dev server)
	viper.SetDefault("cors_origins", []string{"http://localhost:3000"})

	// Experiment allowlist (empty = every experiment accepts saved charts)
	viper.SetDefault("allowed_experiments", []string{})

	// Proxy trust (default: false — safe for direct exposure; set true behind reverse proxy)
	viper.SetDefault("trust_proxy", false)

	// Store defaults
	viper.SetDefault("store_backend", BackendMemory)
	viper.SetDefault("request_ttl_minutes", 60)

	// PostgreSQL defaults (matching docker-compose.yml)
	viper.SetDefault("postgres_host", "localhost")
	viper.SetDefault("postgres_port", 5432)
	viper.SetDefault("postgres_user", "chartgen")
	viper.SetDefault("postgres_password", "chartgen_dev_password")
	viper.SetDefault("postgres_db_name", "chartgen")
	viper.SetDefault("postgres_ssl_mode", "disable")

	// Generator defaults
	viper.SetDefault("generator.latency_ms", 1500)
	viper.SetDefault("generator.timeout_ms", 30000)
	viper.SetDefault("generator.interval_ms", 1000)
	viper.SetDefault("generator.workers", 1)

	// Client defaults
	viper.SetDefault("client.base_url", "http://127.0.0.1:5000")
	viper.SetDefault("client.poll_interval_ms", 1000)
	viper.SetDefault("client.max_attempts", 30)

	// Observability defaults (tracing off unless opted in)
	viper.SetDefault("observability.enabled", false)
	viper.SetDefault("observability.endpoint", "localhost:4318")
	viper.SetDefault("observability.environment", "dev")
	viper.SetDefault("observability.service_name", "chartgen")
	viper.SetDefault("observability.sample_ratio", 1.0)

	// Logging defaults
	viper.SetDefault("log_level", "info")
	viper.SetDefault("log_format", "text")
}

// bindEnvVariables binds override environment variables explicitly.
// Automatic env binding is intentionally avoided: every override has to be
// listed here so the override surface stays auditable.
func bindEnvVariables() {
	// Helper to panic on unexpected bind errors (hardcoded strings can't fail)
	// If this panics, it's a BUG in our code, not a runtime error
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	// Serve mode
	mustBind("server_addr", "CHARTGEN_SERVER_ADDR")
	mustBind("cors_origins", "CHARTGEN_CORS_ORIGINS")
	mustBind("trust_proxy", "CHARTGEN_TRUST_PROXY")
	mustBind("allowed_experiments", "CHARTGEN_ALLOWED_EXPERIMENTS")

	// Store selection and credentials
	mustBind("store_backend", "CHARTGEN_STORE_BACKEND")
	mustBind("postgres_password", "CHARTGEN_POSTGRES_PASSWORD")

	// Client commands
	mustBind("client.base_url", "CHARTGEN_BASE_URL")

	// Observability (endpoint uses the standard OTel variable)
	mustBind("observability.enabled", "CHARTGEN_OTEL_ENABLED")
	mustBind("observability.endpoint", "OTEL_EXPORTER_OTLP_ENDPOINT")

	// Logging
	mustBind("log_level", "CHARTGEN_LOG_LEVEL")
	mustBind("log_format", "CHARTGEN_LOG_FORMAT")

	// NOTE: DATABASE_URL is parsed separately in parseDatabaseURL, not via Viper.
	// It overrides the individual postgres_* settings and selects the postgres backend.
}

// maskedValue is the placeholder for masked sensitive data.
// Full-width blocks (U+2588) cannot collide with any substring of a real
// secret, unlike "****" or "[REDACTED]".
const maskedValue = "████████"

// maskSecret masks a secret string for safe logging.
// Secrets of 8 bytes or fewer are fully masked so no substring of the
// original survives; longer secrets keep the first and last 2 bytes for
// debug utility, e.g. "my_long_secret_key_123" → "my<████████>23".
//
// THREAT MODEL: This defends against accidental logging of real secrets.
// It is NOT cryptographically secure - if logs are compromised, rotate secrets.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON implements json.Marshaler with explicit sensitive field masking.
//
// Sensitive fields masked:
//   - PostgresPassword
//
// When adding new sensitive fields, mask them here and tag them sensitive:"true".
// The reflection test on the sensitive tag will remind you.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.PostgresPassword = maskSecret(a.PostgresPassword)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}
