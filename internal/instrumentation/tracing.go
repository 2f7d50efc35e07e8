package instrumentation

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName names the tracer used for all gapi spans.
const TracerName = "github.com/teemow/gapi"

// Span attribute keys.
const (
	SpanAttrTool       = "mcp.tool"
	SpanAttrAccount    = "mcp.account"
	SpanAttrReadOnly   = "mcp.read_only"
	SpanAttrService    = "google.service"
	SpanAttrOperation  = "google.operation"
	SpanAttrCalendarID = "google.calendar_id"
	SpanAttrTaskListID = "google.tasklist_id"
)

// ToolSpanAttributes returns the common attributes for a tool span.
func ToolSpanAttributes(account string, readOnly bool) []attribute.KeyValue {
	attrs := []attribute.KeyValue{attribute.Bool(SpanAttrReadOnly, readOnly)}
	if account != "" {
		attrs = append(attrs, attribute.String(SpanAttrAccount, account))
	}
	return attrs
}

// StartToolSpan starts a server span named "tool.<name>".
func StartToolSpan(ctx context.Context, toolName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	all := append([]attribute.KeyValue{attribute.String(SpanAttrTool, toolName)}, attrs...)
	return otel.GetTracerProvider().Tracer(TracerName).Start(ctx, "tool."+toolName,
		trace.WithAttributes(all...),
		trace.WithSpanKind(trace.SpanKindServer),
	)
}

// StartGoogleAPISpan starts a client span named "google.<service>.<operation>".
func StartGoogleAPISpan(ctx context.Context, service, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	all := append([]attribute.KeyValue{
		attribute.String(SpanAttrService, service),
		attribute.String(SpanAttrOperation, operation),
	}, attrs...)
	return otel.GetTracerProvider().Tracer(TracerName).Start(ctx, "google."+service+"."+operation,
		trace.WithAttributes(all...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}

// SetSpanError records err on span. A nil err is a no-op.
func SetSpanError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// SetSpanSuccess marks span OK.
func SetSpanSuccess(span trace.Span) {
	span.SetStatus(codes.Ok, "")
}

// GetTraceID returns the trace ID of the span in ctx, or "".
func GetTraceID(ctx context.Context) string {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return ""
	}
	return sc.TraceID().String()
}

// GetSpanID returns the span ID of the span in ctx, or "".
func GetSpanID(ctx context.Context) string {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return ""
	}
	return sc.SpanID().String()
}
