package config

// ObservabilityConfig holds OTLP trace export configuration.
//
// Tracing is disabled unless Enabled is set. See internal/observability
// for the exporter pipeline.
type ObservabilityConfig struct {
	// Enabled turns trace export on (default: false)
	Enabled bool `mapstructure:"enabled" json:"enabled"`
	// Endpoint is the OTLP/HTTP collector endpoint (default: localhost:4318)
	Endpoint string `mapstructure:"endpoint" json:"endpoint"`
	// Environment is the deployment environment tag (default: dev)
	Environment string `mapstructure:"environment" json:"environment"`
	// ServiceName is the service name on exported spans (default: chartgen)
	ServiceName string `mapstructure:"service_name" json:"service_name"`
	// SampleRatio is the fraction of root traces kept (default: 1.0)
	SampleRatio float64 `mapstructure:"sample_ratio" json:"sample_ratio"`
}
