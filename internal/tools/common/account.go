package common

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/teemow/gapi/internal/google"
	"github.com/teemow/gapi/internal/mcp/oauth"
)

// AccountArg is the argument every tool accepts to select credentials.
const AccountArg = "account"

// GetAccountFromArgs resolves the account a tool call acts on.
//
// Priority order:
//  1. email of the bearer token owner (HTTP transport)
//  2. explicit "account" argument
//  3. fallback, or google.DefaultAccount when fallback is empty
func GetAccountFromArgs(ctx context.Context, args map[string]any, fallback string) string {
	if user, ok := oauth.UserFromContext(ctx); ok && user.Email != "" {
		return user.Email
	}
	if account, ok := args[AccountArg].(string); ok && account != "" {
		return account
	}
	if fallback != "" {
		return fallback
	}
	return google.DefaultAccount
}

// WithAccount adds the optional account parameter to a tool definition.
func WithAccount() mcp.ToolOption {
	return mcp.WithString(AccountArg,
		mcp.Description("Account name selecting the stored credentials (default: 'default'). Ignored when the caller is authenticated over HTTP."),
	)
}
