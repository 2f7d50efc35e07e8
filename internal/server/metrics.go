package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/teemow/gapi/internal/instrumentation"
)

const (
	// DefaultMetricsAddr is the default address for the metrics server.
	DefaultMetricsAddr = ":9090"

	DefaultMetricsReadTimeout  = 10 * time.Second
	DefaultMetricsWriteTimeout = 10 * time.Second
	DefaultMetricsIdleTimeout  = 60 * time.Second

	// DefaultShutdownTimeout bounds graceful shutdown of the HTTP servers.
	DefaultShutdownTimeout = 30 * time.Second
)

// MetricsServer serves Prometheus metrics on a dedicated listener, away from
// the MCP endpoint.
type MetricsServer struct {
	handler http.Handler

	// mu guards the fields below; Start and Shutdown run on different
	// goroutines and either may come first.
	mu         sync.Mutex
	addr       string
	httpServer *http.Server
	closed     bool
}

// NewMetricsServer creates a metrics server for provider, which must have
// the prometheus exporter configured.
func NewMetricsServer(addr string, provider *instrumentation.Provider) (*MetricsServer, error) {
	if addr == "" {
		addr = DefaultMetricsAddr
	}
	if provider == nil || !provider.Enabled() {
		return nil, fmt.Errorf("instrumentation provider is not enabled")
	}
	handler := provider.PrometheusHandler()
	if handler == nil {
		return nil, fmt.Errorf("metrics server requires the prometheus exporter")
	}
	return &MetricsServer{addr: addr, handler: handler}, nil
}

// Start serves until Shutdown. It returns nil after a graceful shutdown.
func (s *MetricsServer) Start() error {
	return s.StartWithReadySignal(nil)
}

// StartWithReadySignal is Start, closing ready once the listener is bound.
func (s *MetricsServer) StartWithReadySignal(ready chan<- struct{}) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", s.handler)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: DefaultMetricsReadTimeout,
		WriteTimeout:      DefaultMetricsWriteTimeout,
		IdleTimeout:       DefaultMetricsIdleTimeout,
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = ln.Close()
		return nil
	}
	s.addr = ln.Addr().String()
	s.httpServer = srv
	s.mu.Unlock()

	slog.Info("starting metrics server", "addr", ln.Addr().String())
	if ready != nil {
		close(ready)
	}
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server. Called before Start, it makes Start
// return immediately.
func (s *MetricsServer) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	srv := s.httpServer
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	slog.Info("shutting down metrics server")
	return srv.Shutdown(ctx)
}

// Addr returns the listen address; after start it is the bound address.
func (s *MetricsServer) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}
