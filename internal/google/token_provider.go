package google

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/teemow/gapi/internal/logging"
)

// TokenProvider supplies OAuth token sources for Google API clients.
// This abstraction allows different token sources (credentials files, bearer
// tokens from HTTP clients) behind the same tool handlers.
type TokenProvider interface {
	// TokenSourceForAccount returns a token source for the given account.
	TokenSourceForAccount(ctx context.Context, account string) (oauth2.TokenSource, error)

	// HasTokenForAccount reports whether a token exists for the account.
	HasTokenForAccount(account string) bool
}

// loginTimeout bounds an interactive login started from a tool call.
const loginTimeout = 5 * time.Minute

// LoginFunc runs an interactive authorization for conf and returns the
// resulting token.
type LoginFunc func(ctx context.Context, conf *oauth2.Config) (*oauth2.Token, error)

// FileTokenProvider serves tokens from a Store. Refreshed tokens are written
// back so that the next process start reuses them.
type FileTokenProvider struct {
	store     *Store
	login     LoginFunc
	logger    *slog.Logger
	onRefresh func(err error)

	// loginMu serializes interactive logins so concurrent tool calls do not
	// open several browser windows.
	loginMu sync.Mutex
}

// FileTokenProviderOption configures a FileTokenProvider.
type FileTokenProviderOption func(*FileTokenProvider)

// WithLogin enables an interactive login when an account has no usable
// credentials.
func WithLogin(fn LoginFunc) FileTokenProviderOption {
	return func(p *FileTokenProvider) {
		p.login = fn
	}
}

// WithLogger sets the logger used for refresh and login events.
func WithLogger(logger *slog.Logger) FileTokenProviderOption {
	return func(p *FileTokenProvider) {
		p.logger = logger
	}
}

// WithRefreshHook registers fn to be called after every refresh attempt of
// an expired access token; err is nil on success.
func WithRefreshHook(fn func(err error)) FileTokenProviderOption {
	return func(p *FileTokenProvider) {
		p.onRefresh = fn
	}
}

// NewFileTokenProvider creates a token provider backed by store.
func NewFileTokenProvider(store *Store, opts ...FileTokenProviderOption) *FileTokenProvider {
	p := &FileTokenProvider{
		store:  store,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Store returns the underlying credentials store.
func (p *FileTokenProvider) Store() *Store {
	return p.store
}

// HasTokenForAccount reports whether a credentials file exists for account.
func (p *FileTokenProvider) HasTokenForAccount(account string) bool {
	return p.store.Has(account)
}

// TokenSourceForAccount loads the account's credentials, refreshing them when
// expired. Without usable credentials it falls back to the interactive login,
// which requires client_secret.json.
func (p *FileTokenProvider) TokenSourceForAccount(ctx context.Context, account string) (oauth2.TokenSource, error) {
	if err := ValidateAccountName(account); err != nil {
		return nil, err
	}

	creds, err := p.store.Load(account)
	switch {
	case err == nil && usable(creds):
		ts := p.persisting(account, creds)
		if _, err := ts.Token(); err != nil {
			if p.login == nil {
				return nil, err
			}
			p.logger.Warn("stored credentials could not be refreshed",
				logging.Account(account), logging.Err(err))
			return p.authorize(ctx, account)
		}
		return ts, nil
	case err != nil && !errors.Is(err, fs.ErrNotExist):
		p.logger.Warn("ignoring unreadable credentials", logging.Account(account), logging.Err(err))
	}

	return p.authorize(ctx, account)
}

// Login forces an interactive authorization for account, replacing any
// stored credentials.
func (p *FileTokenProvider) Login(ctx context.Context, account string, login LoginFunc) (*Credentials, error) {
	if err := ValidateAccountName(account); err != nil {
		return nil, err
	}
	conf, err := p.clientConfig()
	if err != nil {
		return nil, err
	}

	p.loginMu.Lock()
	defer p.loginMu.Unlock()

	tok, err := login(ctx, conf)
	if err != nil {
		return nil, fmt.Errorf("failed to authorize account %s: %w", account, err)
	}
	creds := NewCredentials(conf, tok)
	if err := p.store.Save(account, creds); err != nil {
		return nil, err
	}
	p.logger.Info("stored credentials", logging.Account(account))
	return creds, nil
}

// authorize runs the interactive login bound to ctx and loginTimeout.
func (p *FileTokenProvider) authorize(ctx context.Context, account string) (oauth2.TokenSource, error) {
	if _, err := p.clientConfig(); err != nil {
		return nil, err
	}
	if p.login == nil {
		return nil, fmt.Errorf("%w for account %s; run 'gapi auth login --account %s'", ErrNoCredentials, account, account)
	}

	ctx, cancel := context.WithTimeout(ctx, loginTimeout)
	defer cancel()

	creds, err := p.Login(ctx, account, p.login)
	if err != nil {
		return nil, err
	}
	return p.persisting(account, creds), nil
}

func (p *FileTokenProvider) clientConfig() (*oauth2.Config, error) {
	path := p.store.ClientSecretPath()
	conf, err := LoadClientSecret(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w at %s", ErrNoClientSecret, path)
	}
	return conf, err
}

// persisting returns a source that outlives the request that created it.
func (p *FileTokenProvider) persisting(account string, creds *Credentials) oauth2.TokenSource {
	tok := creds.OAuthToken()
	return &persistingTokenSource{
		src:     creds.OAuthConfig().TokenSource(context.Background(), tok),
		creds:   creds,
		last:    tok.AccessToken,
		account: account,
		store:   p.store,
		logger:  p.logger,
		hook:    p.onRefresh,
	}
}

func usable(c *Credentials) bool {
	return c.OAuthToken().Valid() || c.RefreshToken != ""
}

// persistingTokenSource saves every newly issued access token.
type persistingTokenSource struct {
	src     oauth2.TokenSource
	account string
	store   *Store
	logger  *slog.Logger
	hook    func(error)

	mu    sync.Mutex
	creds *Credentials
	last  string
}

func (s *persistingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.src.Token()
	if err != nil {
		s.notify(err)
		return nil, fmt.Errorf("failed to refresh credentials for account %s: %w", s.account, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if tok.AccessToken != s.last {
		s.creds.Update(tok)
		if err := s.store.Save(s.account, s.creds); err != nil {
			s.logger.Warn("failed to persist refreshed token", logging.Account(s.account), logging.Err(err))
		} else {
			s.logger.Debug("persisted refreshed token", logging.Account(s.account))
		}
		s.last = tok.AccessToken
		s.notify(nil)
	}
	return tok, nil
}

func (s *persistingTokenSource) notify(err error) {
	if s.hook != nil {
		s.hook(err)
	}
}
