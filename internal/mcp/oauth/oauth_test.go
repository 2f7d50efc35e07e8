package oauth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	mcpoauth "github.com/giantswarm/mcp-oauth"
	"github.com/giantswarm/mcp-oauth/providers"
	"github.com/giantswarm/mcp-oauth/storage"
	"github.com/giantswarm/mcp-oauth/storage/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/teemow/gapi/internal/google"
)

// newUserInfoServer fakes Google's userinfo endpoint. Only "good-token" is
// accepted.
func newUserInfoServer(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		switch r.Header.Get("Authorization") {
		case "Bearer good-token":
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(GoogleUserInfo{
				Sub:           "1234",
				Email:         "alice@example.com",
				EmailVerified: true,
				Name:          "Alice",
			})
		case "Bearer no-email":
			_ = json.NewEncoder(w).Encode(GoogleUserInfo{Sub: "1"})
		case "Bearer forbidden":
			w.WriteHeader(http.StatusForbidden)
		default:
			w.WriteHeader(http.StatusUnauthorized)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func newTestHandler(t *testing.T, mutate func(*Config)) (*Handler, storage.TokenStore, *atomic.Int32) {
	t.Helper()
	userinfo, calls := newUserInfoServer(t)
	store := memory.New()
	t.Cleanup(func() { store.Stop() })

	cfg := Config{
		Resource:    "http://localhost:8080/",
		Store:       store,
		UserInfoURL: userinfo.URL,
		RateLimit:   -1,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	h, err := NewHandler(cfg)
	require.NoError(t, err)
	t.Cleanup(h.Close)
	return h, store, calls
}

func TestValidateResourceURL(t *testing.T) {
	tests := []struct {
		resource string
		wantErr  bool
	}{
		{"https://gapi.example.com", false},
		{"http://localhost:8080", false},
		{"http://127.0.0.1:8080", false},
		{"http://[::1]:8080", false},
		{"http://gapi.example.com", true},
		{"ftp://localhost", true},
		{"", true},
	}
	for _, tt := range tests {
		t.Run(tt.resource, func(t *testing.T) {
			err := ValidateResourceURL(tt.resource)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewHandlerRequiresStore(t *testing.T) {
	_, err := NewHandler(Config{Resource: "https://gapi.example.com"})
	assert.ErrorContains(t, err, "token store")
}

func TestProtectedResourceMetadata(t *testing.T) {
	h, _, _ := newTestHandler(t, nil)

	rec := httptest.NewRecorder()
	h.ServeProtectedResourceMetadata(rec, httptest.NewRequest(http.MethodGet, ProtectedResourcePath, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var md ProtectedResourceMetadata
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&md))
	assert.Equal(t, "http://localhost:8080", md.Resource)
	assert.Equal(t, []string{GoogleIssuer}, md.AuthorizationServers)
	assert.Equal(t, google.Scopes(), md.ScopesSupported)

	rec = httptest.NewRecorder()
	h.ServeProtectedResourceMetadata(rec, httptest.NewRequest(http.MethodPost, ProtectedResourcePath, nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestValidateGoogleTokenRejects(t *testing.T) {
	tests := []struct {
		name       string
		header     string
		wantError  string
		wantInDesc string
	}{
		{name: "missing", header: "", wantError: "missing_token"},
		{name: "wrong scheme", header: "Basic abc", wantError: "invalid_token", wantInDesc: "format"},
		{name: "empty bearer", header: "Bearer ", wantError: "invalid_token", wantInDesc: "format"},
		{name: "expired", header: "Bearer stale", wantError: "invalid_token", wantInDesc: "expired"},
		{name: "forbidden", header: "Bearer forbidden", wantError: "invalid_token", wantInDesc: "scopes"},
		{name: "no email", header: "Bearer no-email", wantError: "invalid_token", wantInDesc: "email"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _, _ := newTestHandler(t, nil)
			called := false
			handler := h.ValidateGoogleToken(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
				called = true
			}))

			req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.False(t, called)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Contains(t, rec.Header().Get("WWW-Authenticate"),
				`resource_metadata="http://localhost:8080/.well-known/oauth-protected-resource"`)

			var body ErrorResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.Equal(t, tt.wantError, body.Error)
			assert.Contains(t, body.ErrorDescription, tt.wantInDesc)
		})
	}
}

func TestValidateGoogleTokenAccepts(t *testing.T) {
	h, store, calls := newTestHandler(t, nil)

	var seen *providers.UserInfo
	handler := h.ValidateGoogleToken(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := UserFromContext(r.Context())
		require.True(t, ok)
		seen = user
		w.WriteHeader(http.StatusNoContent)
	}))

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
		req.Header.Set("Authorization", "Bearer good-token")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusNoContent, rec.Code)
	}

	require.NotNil(t, seen)
	assert.Equal(t, "alice@example.com", seen.Email)
	assert.Equal(t, "1234", seen.ID)
	assert.True(t, seen.EmailVerified)
	assert.Equal(t, int32(1), calls.Load(), "second request should hit the validation cache")

	token, err := store.GetToken(context.Background(), "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, "good-token", token.AccessToken)
}

func TestValidationCacheExpiry(t *testing.T) {
	c := newValidationCache(time.Minute)
	now := time.Date(2026, 2, 28, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.put("tok", &providers.UserInfo{Email: "a@example.com"})
	_, ok := c.get("tok")
	assert.True(t, ok)

	now = now.Add(2 * time.Minute)
	_, ok = c.get("tok")
	assert.False(t, ok)
}

func TestRateLimitMiddleware(t *testing.T) {
	h, _, _ := newTestHandler(t, func(c *Config) {
		c.RateLimit = 1
		c.RateBurst = 2
	})
	handler := h.RateLimitMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
		req.RemoteAddr = "192.0.2.1:5555"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
	req.RemoteAddr = "192.0.2.2:5555"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code, "other clients keep their own budget")
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.10:1234"
	req.Header.Set("X-Forwarded-For", "203.0.113.5, 10.0.0.1")

	assert.Equal(t, "192.0.2.10", clientIP(req, false))
	assert.Equal(t, "203.0.113.5", clientIP(req, true))

	req.Header.Del("X-Forwarded-For")
	req.Header.Set("X-Real-IP", "203.0.113.9")
	assert.Equal(t, "203.0.113.9", clientIP(req, true))
}

func TestTokenProvider(t *testing.T) {
	store := memory.New()
	t.Cleanup(func() { store.Stop() })
	ctx := context.Background()
	expiry := time.Now().Add(time.Hour)

	require.NoError(t, store.SaveToken(ctx, "alice@example.com", &oauth2.Token{AccessToken: "alice-token", Expiry: expiry}))
	require.NoError(t, store.SaveToken(ctx, "work", &oauth2.Token{AccessToken: "work-token", Expiry: expiry}))

	p := NewTokenProvider(store)
	assert.True(t, p.HasTokenForAccount("work"))
	assert.False(t, p.HasTokenForAccount("personal"))

	ts, err := p.TokenSourceForAccount(ctx, "work")
	require.NoError(t, err)
	tok, err := ts.Token()
	require.NoError(t, err)
	assert.Equal(t, "work-token", tok.AccessToken)

	userCtx := mcpoauth.ContextWithUserInfo(ctx, &providers.UserInfo{Email: "alice@example.com"})
	ts, err = p.TokenSourceForAccount(userCtx, "work")
	require.NoError(t, err)
	tok, err = ts.Token()
	require.NoError(t, err)
	assert.Equal(t, "alice-token", tok.AccessToken)

	_, err = p.TokenSourceForAccount(ctx, "personal")
	assert.ErrorContains(t, err, "no Google token found for account personal")
}
