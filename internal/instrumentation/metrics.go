package instrumentation

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	attrMethod    = "method"
	attrPath      = "path"
	attrStatus    = "status"
	attrOperation = "operation"
	attrService   = "service"
	attrResult    = "result"
	attrTool      = "tool"
	attrAccount   = "account"
)

// Metrics records gapi's metrics. A nil *Metrics is valid and records nothing.
type Metrics struct {
	httpRequestsTotal   metric.Int64Counter
	httpRequestDuration metric.Float64Histogram
	activeSessions      metric.Int64UpDownCounter

	googleAPIOperationsTotal   metric.Int64Counter
	googleAPIOperationDuration metric.Float64Histogram

	oauthAuthTotal         metric.Int64Counter
	oauthTokenRefreshTotal metric.Int64Counter

	toolInvocationsTotal metric.Int64Counter
	toolDuration         metric.Float64Histogram

	// detailedLabels adds the account label to tool metrics.
	detailedLabels bool
}

// NewMetrics creates all instruments on meter.
func NewMetrics(meter metric.Meter, detailedLabels bool) (*Metrics, error) {
	m := &Metrics{detailedLabels: detailedLabels}

	var err error
	if m.httpRequestsTotal, err = meter.Int64Counter("http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}")); err != nil {
		return nil, fmt.Errorf("failed to create http_requests_total counter: %w", err)
	}
	if m.httpRequestDuration, err = meter.Float64Histogram("http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.01, 0.1, 0.5, 1.0, 2.5, 5.0, 10.0)); err != nil {
		return nil, fmt.Errorf("failed to create http_request_duration_seconds histogram: %w", err)
	}
	if m.activeSessions, err = meter.Int64UpDownCounter("active_sessions",
		metric.WithDescription("Number of open MCP sessions"),
		metric.WithUnit("{session}")); err != nil {
		return nil, fmt.Errorf("failed to create active_sessions counter: %w", err)
	}
	if m.googleAPIOperationsTotal, err = meter.Int64Counter("google_api_operations_total",
		metric.WithDescription("Total number of Google API operations"),
		metric.WithUnit("{operation}")); err != nil {
		return nil, fmt.Errorf("failed to create google_api_operations_total counter: %w", err)
	}
	if m.googleAPIOperationDuration, err = meter.Float64Histogram("google_api_operation_duration_seconds",
		metric.WithDescription("Google API operation duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0)); err != nil {
		return nil, fmt.Errorf("failed to create google_api_operation_duration_seconds histogram: %w", err)
	}
	if m.oauthAuthTotal, err = meter.Int64Counter("oauth_auth_total",
		metric.WithDescription("Total number of bearer token validations"),
		metric.WithUnit("{attempt}")); err != nil {
		return nil, fmt.Errorf("failed to create oauth_auth_total counter: %w", err)
	}
	if m.oauthTokenRefreshTotal, err = meter.Int64Counter("oauth_token_refresh_total",
		metric.WithDescription("Total number of credential refreshes"),
		metric.WithUnit("{attempt}")); err != nil {
		return nil, fmt.Errorf("failed to create oauth_token_refresh_total counter: %w", err)
	}
	if m.toolInvocationsTotal, err = meter.Int64Counter("mcp_tool_invocations_total",
		metric.WithDescription("Total number of MCP tool invocations"),
		metric.WithUnit("{invocation}")); err != nil {
		return nil, fmt.Errorf("failed to create mcp_tool_invocations_total counter: %w", err)
	}
	if m.toolDuration, err = meter.Float64Histogram("mcp_tool_duration_seconds",
		metric.WithDescription("MCP tool execution duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0)); err != nil {
		return nil, fmt.Errorf("failed to create mcp_tool_duration_seconds histogram: %w", err)
	}

	return m, nil
}

// RecordHTTPRequest records one HTTP request.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, path string, statusCode int, duration time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String(attrMethod, method),
		attribute.String(attrPath, path),
		attribute.String(attrStatus, strconv.Itoa(statusCode)),
	)
	m.httpRequestsTotal.Add(ctx, 1, attrs)
	m.httpRequestDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordGoogleAPIOperation records one Calendar or Tasks API call.
func (m *Metrics) RecordGoogleAPIOperation(ctx context.Context, service, operation, status string, duration time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String(attrService, service),
		attribute.String(attrOperation, operation),
		attribute.String(attrStatus, status),
	)
	m.googleAPIOperationsTotal.Add(ctx, 1, attrs)
	m.googleAPIOperationDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordOAuthAuth records a bearer token validation outcome.
func (m *Metrics) RecordOAuthAuth(ctx context.Context, result string) {
	if m == nil {
		return
	}
	m.oauthAuthTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrResult, result)))
}

// RecordOAuthTokenRefresh records a credential refresh outcome.
func (m *Metrics) RecordOAuthTokenRefresh(ctx context.Context, result string) {
	if m == nil {
		return
	}
	m.oauthTokenRefreshTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrResult, result)))
}

// RecordToolInvocation records a tool call. The account label is only
// attached when detailed labels are enabled.
func (m *Metrics) RecordToolInvocation(ctx context.Context, toolName, status, account string, duration time.Duration) {
	if m == nil {
		return
	}
	kv := []attribute.KeyValue{
		attribute.String(attrTool, toolName),
		attribute.String(attrStatus, status),
	}
	if m.detailedLabels && account != "" {
		kv = append(kv, attribute.String(attrAccount, account))
	}
	attrs := metric.WithAttributes(kv...)
	m.toolInvocationsTotal.Add(ctx, 1, attrs)
	m.toolDuration.Record(ctx, duration.Seconds(), attrs)
}

// IncrementActiveSessions increments the active session count.
func (m *Metrics) IncrementActiveSessions(ctx context.Context) {
	if m == nil {
		return
	}
	m.activeSessions.Add(ctx, 1)
}

// DecrementActiveSessions decrements the active session count.
func (m *Metrics) DecrementActiveSessions(ctx context.Context) {
	if m == nil {
		return
	}
	m.activeSessions.Add(ctx, -1)
}
