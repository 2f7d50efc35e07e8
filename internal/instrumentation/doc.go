// Package instrumentation provides OpenTelemetry metrics, tracing and audit
// logging for the gapi MCP server.
//
// # Metrics
//
//   - http_requests_total / http_request_duration_seconds: HTTP transport
//   - active_sessions: streamable HTTP sessions currently open
//   - google_api_operations_total / google_api_operation_duration_seconds:
//     Calendar and Tasks API calls by service, operation and status
//   - oauth_auth_total: bearer token validations by result
//   - oauth_token_refresh_total: credential refreshes by result
//   - mcp_tool_invocations_total / mcp_tool_duration_seconds: tool calls
//
// Metrics are exported through Prometheus (served from a registry private to
// the Provider), OTLP over HTTP, or stdout. Traces use OTLP or stdout. The
// stdout exporters write to stderr because stdout is the MCP stdio channel.
//
// # Configuration
//
// DefaultConfig reads INSTRUMENTATION_ENABLED, METRICS_EXPORTER,
// TRACING_EXPORTER, OTEL_EXPORTER_OTLP_ENDPOINT, OTEL_EXPORTER_OTLP_INSECURE,
// OTEL_TRACES_SAMPLER_ARG, METRICS_DETAILED_LABELS, AUDIT_LOGGING_ENABLED and
// AUDIT_LOGGING_INCLUDE_PII.
package instrumentation
