package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/giantswarm/mcp-oauth/storage/memory"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/teemow/gapi/internal/google"
	"github.com/teemow/gapi/internal/instrumentation"
	"github.com/teemow/gapi/internal/logging"
	"github.com/teemow/gapi/internal/mcp/oauth"
	"github.com/teemow/gapi/internal/resources"
	"github.com/teemow/gapi/internal/server"
	"github.com/teemow/gapi/internal/tools/calendar_tools"
	"github.com/teemow/gapi/internal/tools/tasks_tools"
)

const (
	transportStdio          = "stdio"
	transportStreamableHTTP = "streamable-http"

	shutdownTimeout = 10 * time.Second
)

const serverInstructions = `Tools for Google Calendar and Google Tasks.
Times are RFC3339 (2024-01-15T09:00:00Z); a plain date (2024-01-15) means an all-day event or midnight UTC.
Every tool accepts an optional "account" selecting which stored Google account to use.`

// serveOptions holds the resolved configuration of the serve command.
type serveOptions struct {
	transport      string
	httpAddr       string
	readOnly       bool
	account        string
	noBrowser      bool
	baseURL        string
	tlsCertFile    string
	tlsKeyFile     string
	metricsEnabled bool
	metricsAddr    string
	sessionTimeout time.Duration
}

func newServeCmd(root *rootOptions) *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server",
		Long: `Start the Model Context Protocol (MCP) server exposing the Google Calendar
and Google Tasks tools.

Supports two transports:
  - stdio: Standard input/output (default). Credentials come from the
    credentials directory; a missing account starts the browser login.
  - streamable-http: Streamable HTTP on /mcp. Every request must carry a
    Google OAuth access token as bearer token; tools act on behalf of the
    authenticated Google user.

Write tools (create, modify, delete) are hidden with --read-only.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.complete(cmd, root.file.Serve); err != nil {
				return err
			}
			return runServe(cmd.Context(), root, *opts)
		},
	}

	bindServeFlags(cmd, opts)
	return cmd
}

func bindServeFlags(cmd *cobra.Command, opts *serveOptions) {
	flags := cmd.Flags()
	flags.StringVar(&opts.transport, "transport", transportStdio, "Transport type: stdio or streamable-http. Can also use GAPI_TRANSPORT env var.")
	flags.StringVar(&opts.httpAddr, "http-addr", server.DefaultHTTPAddr, "HTTP server address (for streamable-http transport). Can also use GAPI_HTTP_ADDR env var.")
	flags.BoolVar(&opts.readOnly, "read-only", false, "Only register tools that do not modify calendars or tasks. Can also use GAPI_READ_ONLY env var.")
	flags.StringVar(&opts.account, "account", google.DefaultAccount, "Account used by tool calls that do not name one (stdio transport). Can also use GAPI_ACCOUNT env var.")
	flags.BoolVar(&opts.noBrowser, "no-browser", false, "Print the login URL instead of opening a browser. Can also use GAPI_NO_BROWSER env var.")
	flags.StringVar(&opts.baseURL, "base-url", "", "Public base URL of the server (HTTP transport only). Required for deployed instances. Can also use MCP_BASE_URL env var. Example: https://mcp.example.com")
	flags.StringVar(&opts.tlsCertFile, "tls-cert-file", "", "Path to TLS certificate file (PEM format). If provided with --tls-key-file, enables HTTPS. Can also use TLS_CERT_FILE env var.")
	flags.StringVar(&opts.tlsKeyFile, "tls-key-file", "", "Path to TLS private key file (PEM format). If provided with --tls-cert-file, enables HTTPS. Can also use TLS_KEY_FILE env var.")
	flags.BoolVar(&opts.metricsEnabled, "metrics-enabled", true, "Enable the metrics server on a dedicated port (HTTP transport only). Can also use METRICS_ENABLED env var.")
	flags.StringVar(&opts.metricsAddr, "metrics-addr", server.DefaultMetricsAddr, "Metrics server address. Can also use METRICS_ADDR env var.")
	flags.DurationVar(&opts.sessionTimeout, "session-timeout", server.DefaultSessionTimeout, "Idle timeout of streamable HTTP sessions. Can also use GAPI_SESSION_TIMEOUT env var.")
}

// complete applies env vars and the config file to every flag that was not
// set on the command line, then validates the result.
func (o *serveOptions) complete(cmd *cobra.Command, file serveFileConfig) error {
	resolveString(cmd, "transport", "GAPI_TRANSPORT", file.Transport, &o.transport)
	resolveString(cmd, "http-addr", "GAPI_HTTP_ADDR", file.HTTPAddr, &o.httpAddr)
	resolveString(cmd, "account", "GAPI_ACCOUNT", file.Account, &o.account)
	resolveString(cmd, "base-url", "MCP_BASE_URL", file.BaseURL, &o.baseURL)
	resolveString(cmd, "tls-cert-file", "TLS_CERT_FILE", file.TLSCertFile, &o.tlsCertFile)
	resolveString(cmd, "tls-key-file", "TLS_KEY_FILE", file.TLSKeyFile, &o.tlsKeyFile)
	resolveString(cmd, "metrics-addr", "METRICS_ADDR", file.MetricsAddr, &o.metricsAddr)

	bools := []struct {
		flag, env string
		file      *bool
		target    *bool
	}{
		{"read-only", "GAPI_READ_ONLY", file.ReadOnly, &o.readOnly},
		{"no-browser", "GAPI_NO_BROWSER", file.NoBrowser, &o.noBrowser},
		{"metrics-enabled", "METRICS_ENABLED", file.MetricsEnabled, &o.metricsEnabled},
	}
	for _, b := range bools {
		if err := resolveBool(cmd, b.flag, b.env, b.file, b.target); err != nil {
			return err
		}
	}

	var timeout string
	resolveString(cmd, "session-timeout", "GAPI_SESSION_TIMEOUT", file.SessionTimeout, &timeout)
	if timeout != "" {
		d, err := time.ParseDuration(timeout)
		if err != nil {
			return fmt.Errorf("invalid session timeout %q: %w", timeout, err)
		}
		o.sessionTimeout = d
	}

	return o.validate()
}

func (o *serveOptions) validate() error {
	o.transport = strings.ToLower(strings.TrimSpace(o.transport))
	switch o.transport {
	case transportStdio, transportStreamableHTTP:
	default:
		return fmt.Errorf("unsupported transport type: %s (supported: %s, %s)", o.transport, transportStdio, transportStreamableHTTP)
	}
	if err := google.ValidateAccountName(o.account); err != nil {
		return err
	}
	if (o.tlsCertFile == "") != (o.tlsKeyFile == "") {
		return fmt.Errorf("both --tls-cert-file and --tls-key-file must be provided")
	}
	return nil
}

// resolvedBaseURL falls back to a loopback URL derived from the listen
// address, which is only suitable for local development.
func (o *serveOptions) resolvedBaseURL() string {
	if o.baseURL != "" {
		return strings.TrimSuffix(o.baseURL, "/")
	}
	scheme := "http"
	if o.tlsCertFile != "" {
		scheme = "https"
	}
	if strings.HasPrefix(o.httpAddr, ":") {
		return fmt.Sprintf("%s://localhost%s", scheme, o.httpAddr)
	}
	return fmt.Sprintf("%s://%s", scheme, o.httpAddr)
}

func runServe(ctx context.Context, root *rootOptions, opts serveOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger := root.logger.With(slog.String(logging.KeyTransport, opts.transport))

	instrConfig := instrumentation.DefaultConfig()
	instrConfig.ServiceVersion = version
	provider, err := instrumentation.NewProvider(ctx, instrConfig)
	if err != nil {
		return fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logger.Warn("error during instrumentation shutdown", logging.Err(err))
		}
	}()

	if opts.readOnly {
		logger.Info("starting in read-only mode, write tools are disabled")
	}

	switch opts.transport {
	case transportStdio:
		return runStdioServer(ctx, root, opts, provider, instrConfig, logger)
	default:
		return runStreamableHTTPServer(ctx, root, opts, provider, instrConfig, logger)
	}
}

// newMCPServer creates the MCP server and registers every tool and resource
// for sc.
func newMCPServer(sc *server.ServerContext) *mcpserver.MCPServer {
	mcpSrv := mcpserver.NewMCPServer("gapi", version,
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithResourceCapabilities(false, false),
		mcpserver.WithInstructions(serverInstructions),
		mcpserver.WithRecovery(),
	)
	registerAllTools(mcpSrv, sc)
	return mcpSrv
}

func registerAllTools(mcpSrv *mcpserver.MCPServer, sc *server.ServerContext) {
	calendar_tools.RegisterCalendarTools(mcpSrv, sc)
	tasks_tools.RegisterTasksTools(mcpSrv, sc)
	resources.RegisterUserResources(mcpSrv, sc)
}

func instrumentServerContext(sc *server.ServerContext, provider *instrumentation.Provider, config instrumentation.Config, logger *slog.Logger) {
	if !provider.Enabled() {
		return
	}
	sc.SetMetrics(provider.Metrics())
	sc.SetAuditLogger(instrumentation.NewAuditLogger(logger, config.AuditLogging))
}

func runStdioServer(ctx context.Context, root *rootOptions, opts serveOptions, provider *instrumentation.Provider, instrConfig instrumentation.Config, logger *slog.Logger) error {
	store := root.store()
	metrics := provider.Metrics()

	flow := &google.LoopbackFlow{
		OpenBrowser: !opts.noBrowser,
		Out:         os.Stderr,
	}
	tokenProvider := google.NewFileTokenProvider(store,
		google.WithLogin(flow.Run),
		google.WithLogger(logger),
		google.WithRefreshHook(func(err error) {
			result := instrumentation.OAuthResultSuccess
			if err != nil {
				result = instrumentation.OAuthResultFailure
			}
			metrics.RecordOAuthTokenRefresh(ctx, result)
		}),
	)

	sc, err := server.NewServerContext(ctx, tokenProvider,
		server.WithDebug(root.debug),
		server.WithReadOnly(opts.readOnly),
		server.WithDefaultAccount(opts.account),
		server.WithLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("failed to create server context: %w", err)
	}
	defer func() {
		if err := sc.Shutdown(); err != nil {
			logger.Warn("error during server context shutdown", logging.Err(err))
		}
	}()
	instrumentServerContext(sc, provider, instrConfig, logger)

	if !store.HasClientSecret() && !store.Has(opts.account) {
		logger.Warn("no credentials found; tool calls will fail until you run 'gapi auth login'",
			"dir", store.Dir(), logging.Account(opts.account))
	}

	mcpSrv := newMCPServer(sc)

	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	g, gctx := errgroup.WithContext(runCtx)

	g.Go(func() error {
		if err := sc.WatchCredentials(gctx, store); err != nil {
			logger.Warn("credentials watcher stopped", logging.Err(err))
		}
		return nil
	})

	g.Go(func() error {
		// The watcher exits once stdin is closed.
		defer stop()

		stdio := mcpserver.NewStdioServer(mcpSrv)
		stdio.SetErrorLogger(slog.NewLogLogger(logger.Handler(), slog.LevelError))

		logger.Debug("serving MCP over stdio", logging.Account(opts.account))
		err := stdio.Listen(gctx, os.Stdin, os.Stdout)
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("server stopped with error: %w", err)
		}
		return nil
	})

	return g.Wait()
}

func runStreamableHTTPServer(ctx context.Context, root *rootOptions, opts serveOptions, provider *instrumentation.Provider, instrConfig instrumentation.Config, logger *slog.Logger) error {
	baseURL := opts.resolvedBaseURL()
	if opts.baseURL == "" {
		logger.Info("no base URL configured, using auto-detected value", "base_url", baseURL)
		logger.Info("for deployed instances, set --base-url flag or MCP_BASE_URL env var")
	}

	// Tokens of authenticated callers, keyed by their email.
	tokenStore := memory.New()
	defer tokenStore.Stop()

	sc, err := server.NewServerContext(ctx, oauth.NewTokenProvider(tokenStore),
		server.WithDebug(root.debug),
		server.WithReadOnly(opts.readOnly),
		server.WithDefaultAccount(opts.account),
		server.WithLogger(logger),
		// Access tokens rotate hourly; a cached client would keep the old one.
		server.WithClientCache(false),
	)
	if err != nil {
		return fmt.Errorf("failed to create server context: %w", err)
	}
	defer func() {
		if err := sc.Shutdown(); err != nil {
			logger.Warn("error during server context shutdown", logging.Err(err))
		}
	}()
	instrumentServerContext(sc, provider, instrConfig, logger)

	oauthHandler, err := oauth.NewHandler(oauth.Config{
		Resource: baseURL,
		Store:    tokenStore,
		Logger:   logger,
		Metrics:  sc.Metrics(),
	})
	if err != nil {
		return fmt.Errorf("failed to create OAuth handler: %w", err)
	}

	health := server.NewHealthChecker(sc, version, opts.transport)
	health.SetReady(false)
	httpSrv, err := server.NewHTTPServer(newMCPServer(sc), server.HTTPServerConfig{
		Addr:           opts.httpAddr,
		BaseURL:        baseURL,
		TLSCertFile:    opts.tlsCertFile,
		TLSKeyFile:     opts.tlsKeyFile,
		OAuth:          oauthHandler,
		Health:         health,
		Metrics:        sc.Metrics(),
		SessionTimeout: opts.sessionTimeout,
		Logger:         logger,
	})
	if err != nil {
		oauthHandler.Close()
		return fmt.Errorf("failed to create HTTP server: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	if opts.metricsEnabled && provider.Enabled() {
		metricsSrv, err := server.NewMetricsServer(opts.metricsAddr, provider)
		if err != nil {
			// Only the prometheus exporter can be scraped.
			logger.Warn("metrics server disabled", logging.Err(err))
		} else {
			g.Go(func() error { return metricsSrv.Start() })
			g.Go(func() error {
				<-gctx.Done()
				return shutdownWithTimeout(metricsSrv.Shutdown)
			})
		}
	}

	ready := make(chan struct{})
	g.Go(func() error {
		return httpSrv.StartWithReadySignal(ready)
	})
	g.Go(func() error {
		select {
		case <-ready:
			health.SetReady(true)
		case <-gctx.Done():
		}
		<-gctx.Done()
		health.SetReady(false)
		logger.Info("shutting down MCP HTTP server")
		return shutdownWithTimeout(httpSrv.Shutdown)
	})

	return g.Wait()
}

func shutdownWithTimeout(shutdown func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return shutdown(ctx)
}
