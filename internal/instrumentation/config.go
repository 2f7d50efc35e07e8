package instrumentation

import (
	"fmt"
	"io"
	"os"
	"strconv"
)

// Config holds the configuration for OpenTelemetry instrumentation.
type Config struct {
	// ServiceName is the name of the service (default: gapi)
	ServiceName string

	// ServiceVersion is the version of the service
	ServiceVersion string

	// ServiceInstanceID is the unique instance identifier (default: hostname)
	ServiceInstanceID string

	// Enabled determines if instrumentation is active (default: true)
	Enabled bool

	// MetricsExporter is "prometheus", "otlp" or "stdout" (default: "prometheus")
	MetricsExporter string

	// TracingExporter is "otlp", "stdout" or "none" (default: "none")
	TracingExporter string

	// OTLPEndpoint is the OTLP collector endpoint without scheme, e.g. "localhost:4318"
	OTLPEndpoint string

	// OTLPInsecure disables TLS for OTLP export. Development only.
	OTLPInsecure bool

	// TraceSamplingRate is the sampling rate for traces (0.0 to 1.0, default: 0.1)
	TraceSamplingRate float64

	// DetailedLabels adds the account label to tool metrics.
	DetailedLabels bool

	// StdoutWriter receives the stdout exporters' output (default: os.Stderr).
	StdoutWriter io.Writer

	// AuditLogging configures audit logging behavior.
	AuditLogging AuditLoggingConfig
}

// AuditLoggingConfig holds configuration for audit logging.
type AuditLoggingConfig struct {
	// Enabled determines if audit logging is active (default: true)
	Enabled bool

	// IncludePII logs full email addresses instead of anonymized identifiers.
	IncludePII bool
}

// DefaultConfig returns a Config populated from environment variables.
func DefaultConfig() Config {
	return Config{
		ServiceName:       getEnvOrDefault("OTEL_SERVICE_NAME", "gapi"),
		ServiceVersion:    "unknown",
		ServiceInstanceID: getEnvOrDefault("OTEL_SERVICE_INSTANCE_ID", ""),
		Enabled:           getEnvBoolOrDefault("INSTRUMENTATION_ENABLED", true),
		MetricsExporter:   getEnvOrDefault("METRICS_EXPORTER", ExporterPrometheus),
		TracingExporter:   getEnvOrDefault("TRACING_EXPORTER", ExporterNone),
		OTLPEndpoint:      getEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTLPInsecure:      getEnvBoolOrDefault("OTEL_EXPORTER_OTLP_INSECURE", false),
		TraceSamplingRate: getEnvFloatOrDefault("OTEL_TRACES_SAMPLER_ARG", 0.1),
		DetailedLabels:    getEnvBoolOrDefault("METRICS_DETAILED_LABELS", false),
		AuditLogging: AuditLoggingConfig{
			Enabled:    getEnvBoolOrDefault("AUDIT_LOGGING_ENABLED", true),
			IncludePII: getEnvBoolOrDefault("AUDIT_LOGGING_INCLUDE_PII", false),
		},
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.TraceSamplingRate < 0 || c.TraceSamplingRate > 1 {
		return fmt.Errorf("trace sampling rate must be between 0.0 and 1.0, got %f", c.TraceSamplingRate)
	}

	switch c.MetricsExporter {
	case "", ExporterPrometheus, ExporterOTLP, ExporterStdout:
	default:
		return fmt.Errorf("invalid metrics exporter %q, must be one of: prometheus, otlp, stdout", c.MetricsExporter)
	}

	switch c.TracingExporter {
	case "", ExporterOTLP, ExporterStdout, ExporterNone:
	default:
		return fmt.Errorf("invalid tracing exporter %q, must be one of: otlp, stdout, none", c.TracingExporter)
	}

	if (c.TracingExporter == ExporterOTLP || c.MetricsExporter == ExporterOTLP) && c.OTLPEndpoint == "" {
		return fmt.Errorf("OTLP endpoint is required when using an OTLP exporter")
	}

	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return defaultValue
		}
		return parsed
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return defaultValue
		}
		return parsed
	}
	return defaultValue
}

// Constants for metric label values.
const (
	StatusSuccess = "success"
	StatusError   = "error"

	// Results for oauth_auth_total and oauth_token_refresh_total.
	OAuthResultSuccess = "success"
	OAuthResultFailure = "failure"
	OAuthResultMissing = "missing"

	// Google services.
	ServiceCalendar = "calendar"
	ServiceTasks    = "tasks"

	ExporterPrometheus = "prometheus"
	ExporterOTLP       = "otlp"
	ExporterStdout     = "stdout"
	ExporterNone       = "none"
)
