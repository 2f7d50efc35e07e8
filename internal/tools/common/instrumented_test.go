package common

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"golang.org/x/oauth2"

	"github.com/teemow/gapi/internal/instrumentation"
	"github.com/teemow/gapi/internal/server"
)

type fakeProvider struct{}

func (fakeProvider) TokenSourceForAccount(context.Context, string) (oauth2.TokenSource, error) {
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "tok"}), nil
}

func (fakeProvider) HasTokenForAccount(string) bool { return true }

type harness struct {
	sc     *server.ServerContext
	reader *sdkmetric.ManualReader
	audit  *bytes.Buffer
}

func newHarness(t *testing.T, opts ...server.Option) *harness {
	t.Helper()
	sc, err := server.NewServerContext(context.Background(), fakeProvider{}, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sc.Shutdown() })

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	metrics, err := instrumentation.NewMetrics(mp.Meter("test"), true)
	require.NoError(t, err)
	sc.SetMetrics(metrics)

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	sc.SetAuditLogger(instrumentation.NewAuditLogger(logger, instrumentation.AuditLoggingConfig{Enabled: true}))

	return &harness{sc: sc, reader: reader, audit: &buf}
}

func (h *harness) toolCounts(t *testing.T) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, h.reader.Collect(context.Background(), &rm))

	counts := make(map[string]int64)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "mcp_tool_invocations_total" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			for _, dp := range sum.DataPoints {
				status, _ := dp.Attributes.Value(attribute.Key("status"))
				counts[status.AsString()] += dp.Value
			}
		}
	}
	return counts
}

func (h *harness) auditRecord(t *testing.T) map[string]any {
	t.Helper()
	var record map[string]any
	require.NoError(t, json.Unmarshal(h.audit.Bytes(), &record))
	return record
}

func callRequest(args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

func TestInstrumentedToolHandlerSuccess(t *testing.T) {
	h := newHarness(t)

	called := false
	wrapped := InstrumentedToolHandler("list_calendars", instrumentation.ServiceCalendar, "list", h.sc,
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			called = true
			return mcp.NewToolResultText("ok"), nil
		})

	result, err := wrapped(context.Background(), callRequest(map[string]any{"account": "work"}))
	require.NoError(t, err)
	assert.True(t, called)
	assert.False(t, result.IsError)

	assert.Equal(t, map[string]int64{instrumentation.StatusSuccess: 1}, h.toolCounts(t))

	record := h.auditRecord(t)
	assert.Equal(t, "tool_executed", record["msg"])
	assert.Equal(t, "list_calendars", record["tool"])
	assert.Equal(t, "work", record["account"])
	assert.Equal(t, true, record["success"])
}

func TestInstrumentedToolHandlerErrorResult(t *testing.T) {
	h := newHarness(t)

	wrapped := InstrumentedToolHandler("get_task", instrumentation.ServiceTasks, "get", h.sc,
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return mcp.NewToolResultError("Google API error 404: Not Found"), nil
		})

	result, err := wrapped(context.Background(), callRequest(nil))
	require.NoError(t, err)
	assert.True(t, result.IsError)

	assert.Equal(t, map[string]int64{instrumentation.StatusError: 1}, h.toolCounts(t))

	record := h.auditRecord(t)
	assert.Equal(t, "tool_failed", record["msg"])
	assert.Equal(t, "default", record["account"])
	assert.Equal(t, "Google API error 404: Not Found", record["error"])
}

func TestInstrumentedToolHandlerPassesErrors(t *testing.T) {
	h := newHarness(t)
	expected := errors.New("protocol failure")

	wrapped := InstrumentedToolHandler("freebusy", instrumentation.ServiceCalendar, "freebusy", h.sc,
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return nil, expected
		})

	_, err := wrapped(context.Background(), callRequest(nil))
	assert.ErrorIs(t, err, expected)
	assert.Equal(t, map[string]int64{instrumentation.StatusError: 1}, h.toolCounts(t))
}

func TestInstrumentedToolHandlerWithoutInstrumentation(t *testing.T) {
	sc, err := server.NewServerContext(context.Background(), fakeProvider{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = sc.Shutdown() })

	wrapped := InstrumentedToolHandler("list_task_lists", instrumentation.ServiceTasks, "list", sc,
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return mcp.NewToolResultText("ok"), nil
		})
	result, err := wrapped(context.Background(), callRequest(nil))
	require.NoError(t, err)
	assert.False(t, result.IsError)
}

func TestServerToolsHidesWriteToolsWhenReadOnly(t *testing.T) {
	noop := func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return mcp.NewToolResultText(""), nil
	}
	tools := []Tool{
		{Tool: mcp.NewTool("get_events"), Handler: noop, Service: instrumentation.ServiceCalendar, Operation: "list"},
		{Tool: mcp.NewTool("create_event"), Handler: noop, Service: instrumentation.ServiceCalendar, Operation: "create", Write: true},
	}

	names := func(sc *server.ServerContext) []string {
		var out []string
		for _, st := range ServerTools(sc, tools) {
			out = append(out, st.Tool.Name)
		}
		return out
	}

	assert.Equal(t, []string{"get_events", "create_event"}, names(newHarness(t).sc))
	assert.Equal(t, []string{"get_events"}, names(newHarness(t, server.WithReadOnly(true)).sc))
}

func TestTraceGoogleCall(t *testing.T) {
	err := TraceGoogleCall(context.Background(), instrumentation.ServiceCalendar, "get", func(ctx context.Context) error {
		return nil
	})
	assert.NoError(t, err)

	expected := errors.New("boom")
	err = TraceGoogleCall(context.Background(), instrumentation.ServiceCalendar, "get", func(ctx context.Context) error {
		return expected
	})
	assert.ErrorIs(t, err, expected)
}
