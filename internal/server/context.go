package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"google.golang.org/api/option"

	"github.com/teemow/gapi/internal/calendar"
	"github.com/teemow/gapi/internal/google"
	"github.com/teemow/gapi/internal/instrumentation"
	"github.com/teemow/gapi/internal/logging"
	"github.com/teemow/gapi/internal/tasks"
)

// ErrShutdown is returned for client requests after Shutdown.
var ErrShutdown = errors.New("server is shutting down")

// ServerContext holds the context for the MCP server
type ServerContext struct {
	ctx    context.Context
	cancel context.CancelFunc

	tokenProvider google.TokenProvider
	clientOptions []option.ClientOption
	debug         bool
	readOnly      bool
	cacheClients  bool
	account       string
	logger        *slog.Logger

	metrics *instrumentation.Metrics
	audit   *instrumentation.AuditLogger

	mu              sync.RWMutex
	calendarClients map[string]*calendar.Client
	tasksClients    map[string]*tasks.Client
	shutdown        bool
}

// Option configures a ServerContext.
type Option func(*ServerContext)

// WithClientOptions appends Google API client options, e.g. an endpoint
// override in tests.
func WithClientOptions(opts ...option.ClientOption) Option {
	return func(sc *ServerContext) {
		sc.clientOptions = append(sc.clientOptions, opts...)
	}
}

// WithDebug logs every Google API request and response.
func WithDebug(debug bool) Option {
	return func(sc *ServerContext) {
		sc.debug = debug
	}
}

// WithReadOnly records that write tools are disabled.
func WithReadOnly(readOnly bool) Option {
	return func(sc *ServerContext) {
		sc.readOnly = readOnly
	}
}

// WithClientCache controls whether clients are reused across calls. Token
// providers whose tokens change per request (bearer tokens) should disable it.
func WithClientCache(enabled bool) Option {
	return func(sc *ServerContext) {
		sc.cacheClients = enabled
	}
}

// WithDefaultAccount sets the account used by tool calls that name none.
func WithDefaultAccount(account string) Option {
	return func(sc *ServerContext) {
		if account != "" {
			sc.account = account
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(sc *ServerContext) {
		sc.logger = logger
	}
}

// NewServerContext creates a new server context
func NewServerContext(ctx context.Context, provider google.TokenProvider, opts ...Option) (*ServerContext, error) {
	if provider == nil {
		return nil, fmt.Errorf("token provider is required")
	}

	shutdownCtx, cancel := context.WithCancel(ctx)
	sc := &ServerContext{
		ctx:             shutdownCtx,
		cancel:          cancel,
		tokenProvider:   provider,
		cacheClients:    true,
		account:         google.DefaultAccount,
		logger:          slog.Default(),
		calendarClients: make(map[string]*calendar.Client),
		tasksClients:    make(map[string]*tasks.Client),
	}
	for _, opt := range opts {
		opt(sc)
	}
	return sc, nil
}

// Context returns the server context
func (sc *ServerContext) Context() context.Context {
	return sc.ctx
}

// Logger returns the server logger.
func (sc *ServerContext) Logger() *slog.Logger {
	return sc.logger
}

// ReadOnly reports whether write tools are disabled.
func (sc *ServerContext) ReadOnly() bool {
	return sc.readOnly
}

// DefaultAccount returns the account used when a tool call names none.
func (sc *ServerContext) DefaultAccount() string {
	return sc.account
}

// TokenProvider returns the token provider.
func (sc *ServerContext) TokenProvider() google.TokenProvider {
	return sc.tokenProvider
}

// SetMetrics sets the metrics recorder. A nil recorder disables metrics.
func (sc *ServerContext) SetMetrics(m *instrumentation.Metrics) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.metrics = m
}

// Metrics returns the metrics recorder, possibly nil.
func (sc *ServerContext) Metrics() *instrumentation.Metrics {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.metrics
}

// SetAuditLogger sets the audit logger.
func (sc *ServerContext) SetAuditLogger(al *instrumentation.AuditLogger) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.audit = al
}

// AuditLogger returns the audit logger, possibly nil.
func (sc *ServerContext) AuditLogger() *instrumentation.AuditLogger {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.audit
}

// CalendarClient returns the Calendar client for account, creating it on
// first use.
func (sc *ServerContext) CalendarClient(ctx context.Context, account string) (*calendar.Client, error) {
	sc.mu.RLock()
	client, ok := sc.calendarClients[account]
	sc.mu.RUnlock()
	if ok {
		return client, nil
	}

	httpClient, err := sc.httpClient(ctx, account)
	if err != nil {
		return nil, err
	}
	client, err = calendar.NewClient(sc.ctx, account, httpClient, sc.clientOptions...)
	if err != nil {
		return nil, err
	}

	if sc.cacheClients {
		sc.mu.Lock()
		sc.calendarClients[account] = client
		sc.mu.Unlock()
	}
	return client, nil
}

// TasksClient returns the Tasks client for account, creating it on first use.
func (sc *ServerContext) TasksClient(ctx context.Context, account string) (*tasks.Client, error) {
	sc.mu.RLock()
	client, ok := sc.tasksClients[account]
	sc.mu.RUnlock()
	if ok {
		return client, nil
	}

	httpClient, err := sc.httpClient(ctx, account)
	if err != nil {
		return nil, err
	}
	client, err = tasks.NewClient(sc.ctx, account, httpClient, sc.clientOptions...)
	if err != nil {
		return nil, err
	}

	if sc.cacheClients {
		sc.mu.Lock()
		sc.tasksClients[account] = client
		sc.mu.Unlock()
	}
	return client, nil
}

func (sc *ServerContext) httpClient(ctx context.Context, account string) (*http.Client, error) {
	if sc.IsShutdown() {
		return nil, ErrShutdown
	}
	ts, err := sc.tokenProvider.TokenSourceForAccount(ctx, account)
	if err != nil {
		return nil, err
	}
	return google.NewHTTPClient(ts, sc.debug), nil
}

// InvalidateAccount drops the cached clients of account so the next call
// reloads its credentials.
func (sc *ServerContext) InvalidateAccount(account string) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	_, hadCalendar := sc.calendarClients[account]
	_, hadTasks := sc.tasksClients[account]
	delete(sc.calendarClients, account)
	delete(sc.tasksClients, account)
	if hadCalendar || hadTasks {
		sc.logger.Info("dropped cached clients", logging.Account(account))
	}
}

// IsShutdown returns whether the server has been shutdown
func (sc *ServerContext) IsShutdown() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.shutdown
}

// Shutdown shuts down the server context
func (sc *ServerContext) Shutdown() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.shutdown {
		return nil
	}
	sc.shutdown = true
	sc.calendarClients = make(map[string]*calendar.Client)
	sc.tasksClients = make(map[string]*tasks.Client)
	sc.cancel()
	return nil
}
