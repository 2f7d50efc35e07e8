package server

import (
	"context"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/teemow/gapi/internal/instrumentation"
)

func TestNewMetricsServerRequiresPrometheus(t *testing.T) {
	disabled, err := instrumentation.NewProvider(context.Background(), instrumentation.Config{Enabled: false})
	require.NoError(t, err)

	_, err = NewMetricsServer("", disabled)
	assert.Error(t, err)

	_, err = NewMetricsServer("", nil)
	assert.Error(t, err)
}

func newPrometheusProvider(t *testing.T) *instrumentation.Provider {
	t.Helper()
	provider, err := instrumentation.NewProvider(context.Background(), instrumentation.Config{
		Enabled:           true,
		ServiceName:       "gapi-test",
		ServiceInstanceID: "test",
		MetricsExporter:   instrumentation.ExporterPrometheus,
		TracingExporter:   instrumentation.ExporterNone,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
	return provider
}

func TestMetricsServerServesMetrics(t *testing.T) {
	provider := newPrometheusProvider(t)
	provider.Metrics().RecordHTTPRequest(context.Background(), http.MethodPost, "/mcp", 200, time.Millisecond)

	ms, err := NewMetricsServer("127.0.0.1:0", provider)
	require.NoError(t, err)

	ready := make(chan struct{})
	done := make(chan error, 1)
	go func() { done <- ms.StartWithReadySignal(ready) }()

	select {
	case <-ready:
	case err := <-done:
		t.Fatalf("metrics server exited early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("metrics server did not start")
	}

	resp, err := http.Get("http://" + ms.Addr() + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "http_requests")

	require.NoError(t, ms.Shutdown(context.Background()))
	assert.NoError(t, <-done)
}

func TestMetricsServerShutdownBeforeStart(t *testing.T) {
	ms, err := NewMetricsServer("127.0.0.1:0", newPrometheusProvider(t))
	require.NoError(t, err)

	require.NoError(t, ms.Shutdown(context.Background()))

	done := make(chan error, 1)
	go func() { done <- ms.Start() }()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Start kept serving after Shutdown")
	}
}

// A failing sibling listener cancels the group; the metrics server must stop
// whichever of Start and Shutdown runs first.
func TestMetricsServerStopsWhenSiblingFails(t *testing.T) {
	provider := newPrometheusProvider(t)

	busy, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer busy.Close()

	for i := 0; i < 50; i++ {
		ms, err := NewMetricsServer("127.0.0.1:0", provider)
		require.NoError(t, err)

		g, gctx := errgroup.WithContext(context.Background())
		g.Go(func() error { return ms.Start() })
		g.Go(func() error {
			<-gctx.Done()
			return ms.Shutdown(context.Background())
		})
		g.Go(func() error {
			_, err := net.Listen("tcp", busy.Addr().String())
			return err
		})

		done := make(chan error, 1)
		go func() { done <- g.Wait() }()
		select {
		case err := <-done:
			require.Error(t, err)
		case <-time.After(5 * time.Second):
			t.Fatalf("run %d: group did not return after a listener failed", i)
		}
	}
}
