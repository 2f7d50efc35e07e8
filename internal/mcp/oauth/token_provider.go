package oauth

import (
	"context"
	"fmt"

	"github.com/giantswarm/mcp-oauth/storage"
	"golang.org/x/oauth2"
)

// TokenProvider serves Google tokens captured by ValidateGoogleToken.
type TokenProvider struct {
	store storage.TokenStore
}

// NewTokenProvider creates a TokenProvider over store.
func NewTokenProvider(store storage.TokenStore) *TokenProvider {
	return &TokenProvider{store: store}
}

// TokenSourceForAccount returns the authenticated caller's token when ctx
// carries a user, otherwise the token stored under account.
func (p *TokenProvider) TokenSourceForAccount(ctx context.Context, account string) (oauth2.TokenSource, error) {
	if user, ok := UserFromContext(ctx); ok {
		if token, err := p.store.GetToken(ctx, user.Email); err == nil {
			return oauth2.StaticTokenSource(token), nil
		}
	}

	token, err := p.store.GetToken(ctx, account)
	if err != nil {
		return nil, fmt.Errorf("no Google token found for account %s; authenticate with Google through your MCP client", account)
	}
	return oauth2.StaticTokenSource(token), nil
}

// HasTokenForAccount reports whether a token is stored under account.
func (p *TokenProvider) HasTokenForAccount(account string) bool {
	_, err := p.store.GetToken(context.Background(), account)
	return err == nil
}
