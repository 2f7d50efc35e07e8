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

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/gapi/internal/instrumentation"
	"github.com/teemow/gapi/internal/logging"
	"github.com/teemow/gapi/internal/mcp/oauth"
)

const (
	// MCPEndpointPath is where the streamable HTTP transport is served.
	MCPEndpointPath = "/mcp"

	// DefaultHTTPAddr is the default listen address of the HTTP transport.
	DefaultHTTPAddr = ":8080"

	defaultHeartbeatInterval = 30 * time.Second
)

// HTTPServerConfig configures an HTTPServer.
type HTTPServerConfig struct {
	Addr    string
	BaseURL string

	// TLS is enabled when both files are set.
	TLSCertFile string
	TLSKeyFile  string

	OAuth          *oauth.Handler
	Health         *HealthChecker
	Metrics        *instrumentation.Metrics
	SessionTimeout time.Duration
	Logger         *slog.Logger
}

// HTTPServer serves the MCP streamable HTTP transport behind Google bearer
// authentication.
type HTTPServer struct {
	config     HTTPServerConfig
	streamable *mcpserver.StreamableHTTPServer
	sessions   *SessionIDManager

	// mu guards the fields below; Start and Shutdown run on different
	// goroutines and either may come first.
	mu         sync.Mutex
	httpServer *http.Server
	addr       string
	closed     bool
}

// NewHTTPServer wires mcpServer into an HTTP server. BaseURL must use HTTPS
// unless it points at a loopback host.
func NewHTTPServer(mcpServer *mcpserver.MCPServer, config HTTPServerConfig) (*HTTPServer, error) {
	if err := oauth.ValidateResourceURL(config.BaseURL); err != nil {
		return nil, err
	}
	if config.OAuth == nil {
		return nil, fmt.Errorf("OAuth handler is required")
	}
	if (config.TLSCertFile == "") != (config.TLSKeyFile == "") {
		return nil, fmt.Errorf("both TLS certificate and key files must be provided")
	}
	if config.Addr == "" {
		config.Addr = DefaultHTTPAddr
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	sessions := NewSessionIDManager(config.SessionTimeout, config.Metrics, config.Logger)
	streamable := mcpserver.NewStreamableHTTPServer(mcpServer,
		mcpserver.WithEndpointPath(MCPEndpointPath),
		mcpserver.WithSessionIdManager(sessions),
		mcpserver.WithHeartbeatInterval(defaultHeartbeatInterval),
	)

	return &HTTPServer{
		config:     config,
		streamable: streamable,
		sessions:   sessions,
		addr:       config.Addr,
	}, nil
}

// Handler returns the routed handler.
func (s *HTTPServer) Handler() http.Handler {
	h := s.config.OAuth
	mux := http.NewServeMux()

	metadata := h.RateLimitMiddleware(http.HandlerFunc(h.ServeProtectedResourceMetadata))
	mux.Handle(oauth.ProtectedResourcePath, metadata)
	mux.Handle(oauth.ProtectedResourcePath+MCPEndpointPath, metadata)

	mux.Handle(MCPEndpointPath, h.RateLimitMiddleware(h.ValidateGoogleToken(s.streamable)))

	if s.config.Health != nil {
		s.config.Health.RegisterHealthEndpoints(mux)
	}

	return instrumentationMiddleware(s.config.Metrics, mux)
}

// Start serves until Shutdown.
func (s *HTTPServer) Start() error {
	return s.StartWithReadySignal(nil)
}

// StartWithReadySignal is Start, closing ready once the listener is bound.
func (s *HTTPServer) StartWithReadySignal(ready chan<- struct{}) error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Addr, err)
	}
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
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

	tls := s.config.TLSCertFile != ""
	s.config.Logger.Info("starting MCP HTTP server",
		slog.String(logging.KeyTransport, "streamable-http"),
		"addr", ln.Addr().String(),
		"endpoint", s.config.BaseURL+MCPEndpointPath,
		"tls", tls)
	if ready != nil {
		close(ready)
	}

	if tls {
		err = srv.ServeTLS(ln, s.config.TLSCertFile, s.config.TLSKeyFile)
	} else {
		err = srv.Serve(ln)
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown closes MCP sessions and stops the listener. Called before Start,
// it makes Start return immediately.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	srv := s.httpServer
	s.mu.Unlock()

	s.sessions.Stop()
	s.config.OAuth.Close()

	var errs []error
	if err := s.streamable.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("failed to shut down MCP transport: %w", err))
	}
	if srv != nil {
		if err := srv.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shut down HTTP server: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Addr returns the listen address; after start it is the bound address.
func (s *HTTPServer) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Sessions returns the session manager.
func (s *HTTPServer) Sessions() *SessionIDManager {
	return s.sessions
}

// responseWriter records the status code written by a handler.
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	if rw.status == 0 {
		rw.status = code
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if rw.status == 0 {
		rw.status = http.StatusOK
	}
	return rw.ResponseWriter.Write(b)
}

// Flush keeps server-sent event streams working through the wrapper.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

func instrumentationMiddleware(metrics *instrumentation.Metrics, next http.Handler) http.Handler {
	if metrics == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w}
		next.ServeHTTP(rw, r)

		status := rw.status
		if status == 0 {
			status = http.StatusOK
		}
		metrics.RecordHTTPRequest(r.Context(), r.Method, routeLabel(r.URL.Path), status, time.Since(start))
	})
}

// routeLabel keeps the path label bounded to the routes this server serves.
func routeLabel(path string) string {
	switch path {
	case MCPEndpointPath, oauth.ProtectedResourcePath, oauth.ProtectedResourcePath + MCPEndpointPath,
		"/healthz", "/readyz", "/healthz/detailed":
		return path
	}
	return "other"
}
