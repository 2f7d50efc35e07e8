package oauth

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/giantswarm/mcp-oauth/storage"
	"golang.org/x/time/rate"

	"github.com/teemow/gapi/internal/google"
	"github.com/teemow/gapi/internal/instrumentation"
)

const (
	// DefaultUserInfoURL is Google's OpenID Connect userinfo endpoint.
	DefaultUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"

	// GoogleIssuer is advertised as the authorization server.
	GoogleIssuer = "https://accounts.google.com"

	// ProtectedResourcePath is the RFC 9728 well-known path.
	ProtectedResourcePath = "/.well-known/oauth-protected-resource"

	// DefaultRateLimit and DefaultRateBurst bound requests per client IP.
	DefaultRateLimit = 10
	DefaultRateBurst = 20

	// defaultValidationTTL is how long a validated bearer token is trusted
	// before userinfo is queried again.
	defaultValidationTTL = 5 * time.Minute
)

// Config configures a Handler.
type Config struct {
	// Resource is the public base URL of the server, e.g. https://gapi.example.com.
	// HTTP is only accepted for loopback hosts.
	Resource string

	// Store receives every validated Google token, keyed by email.
	Store storage.TokenStore

	// UserInfoURL overrides DefaultUserInfoURL.
	UserInfoURL string

	// Scopes advertised in the metadata (default: google.Scopes()).
	Scopes []string

	// RateLimit is requests per second per client IP; zero uses
	// DefaultRateLimit, negative disables limiting.
	RateLimit rate.Limit
	RateBurst int

	// TrustProxy makes the rate limiter honour X-Forwarded-For and X-Real-IP.
	TrustProxy bool

	// ValidationTTL caches successful validations (default five minutes).
	ValidationTTL time.Duration

	HTTPClient *http.Client
	Logger     *slog.Logger
	Metrics    *instrumentation.Metrics
}

func (c *Config) setDefaults() {
	if c.UserInfoURL == "" {
		c.UserInfoURL = DefaultUserInfoURL
	}
	if len(c.Scopes) == 0 {
		c.Scopes = google.Scopes()
	}
	if c.RateLimit == 0 {
		c.RateLimit = DefaultRateLimit
	}
	if c.RateBurst == 0 {
		c.RateBurst = DefaultRateBurst
	}
	if c.ValidationTTL == 0 {
		c.ValidationTTL = defaultValidationTTL
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// ValidateResourceURL requires HTTPS unless the host is a loopback address.
func ValidateResourceURL(resource string) error {
	if resource == "" {
		return fmt.Errorf("resource is required")
	}
	u, err := url.Parse(resource)
	if err != nil {
		return fmt.Errorf("invalid resource URL: %w", err)
	}
	if u.Scheme == "https" {
		return nil
	}
	if u.Scheme != "http" {
		return fmt.Errorf("resource must be an http(s) URL (got %q)", resource)
	}
	switch u.Hostname() {
	case "localhost", "127.0.0.1", "::1":
		return nil
	}
	return fmt.Errorf("resource must use HTTPS for non-loopback hosts (got %s://)", u.Scheme)
}
