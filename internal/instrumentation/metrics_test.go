package instrumentation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func newTestMetrics(t *testing.T, detailed bool) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp.Meter("test"), detailed)
	require.NoError(t, err)
	return m, reader
}

func TestRecordToolInvocation(t *testing.T) {
	tests := []struct {
		name        string
		detailed    bool
		wantAccount bool
	}{
		{name: "default labels", detailed: false, wantAccount: false},
		{name: "detailed labels", detailed: true, wantAccount: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, reader := newTestMetrics(t, tt.detailed)
			m.RecordToolInvocation(context.Background(), "list_events", StatusSuccess, "work", 20*time.Millisecond)
			m.RecordToolInvocation(context.Background(), "list_events", StatusSuccess, "work", 30*time.Millisecond)

			got := collect(t, reader)
			sum, ok := got["mcp_tool_invocations_total"].Data.(metricdata.Sum[int64])
			require.True(t, ok)
			require.Len(t, sum.DataPoints, 1)
			dp := sum.DataPoints[0]
			assert.Equal(t, int64(2), dp.Value)

			tool, _ := dp.Attributes.Value(attribute.Key(attrTool))
			assert.Equal(t, "list_events", tool.AsString())
			_, hasAccount := dp.Attributes.Value(attribute.Key(attrAccount))
			assert.Equal(t, tt.wantAccount, hasAccount)

			_, ok = got["mcp_tool_duration_seconds"].Data.(metricdata.Histogram[float64])
			assert.True(t, ok)
		})
	}
}

func TestRecordGoogleAPIOperation(t *testing.T) {
	m, reader := newTestMetrics(t, false)
	m.RecordGoogleAPIOperation(context.Background(), ServiceTasks, "list_tasks", StatusError, time.Second)

	sum, ok := collect(t, reader)["google_api_operations_total"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, sum.DataPoints, 1)
	svc, _ := sum.DataPoints[0].Attributes.Value(attribute.Key(attrService))
	status, _ := sum.DataPoints[0].Attributes.Value(attribute.Key(attrStatus))
	assert.Equal(t, ServiceTasks, svc.AsString())
	assert.Equal(t, StatusError, status.AsString())
}

func TestActiveSessions(t *testing.T) {
	m, reader := newTestMetrics(t, false)
	ctx := context.Background()
	m.IncrementActiveSessions(ctx)
	m.IncrementActiveSessions(ctx)
	m.DecrementActiveSessions(ctx)

	sum, ok := collect(t, reader)["active_sessions"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, sum.DataPoints, 1)
	assert.Equal(t, int64(1), sum.DataPoints[0].Value)
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	ctx := context.Background()
	assert.NotPanics(t, func() {
		m.RecordHTTPRequest(ctx, "GET", "/mcp", 200, time.Millisecond)
		m.RecordGoogleAPIOperation(ctx, ServiceCalendar, "list_events", StatusSuccess, time.Millisecond)
		m.RecordOAuthAuth(ctx, OAuthResultSuccess)
		m.RecordOAuthTokenRefresh(ctx, OAuthResultFailure)
		m.RecordToolInvocation(ctx, "get_task", StatusError, "", time.Millisecond)
		m.IncrementActiveSessions(ctx)
		m.DecrementActiveSessions(ctx)
	})
}
