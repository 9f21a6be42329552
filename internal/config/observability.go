package config

// OtelConfig holds OpenTelemetry trace export configuration.
//
// Traces are exported over OTLP/HTTP to a local collector.
// See internal/observability for the provider setup.
type OtelConfig struct {
	// Enabled turns trace export on. Default: false (no-op provider)
	Enabled bool `mapstructure:"enabled"`
	// Endpoint is the OTLP/HTTP collector endpoint (default: localhost:4318)
	Endpoint string `mapstructure:"endpoint"`
	// Environment is the deployment environment tag (default: dev)
	Environment string `mapstructure:"environment"`
	// ServiceName is the service name attached to spans (default: ragchat)
	ServiceName string `mapstructure:"service_name"`
}
