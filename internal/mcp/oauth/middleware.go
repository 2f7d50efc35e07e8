package oauth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	mcpoauth "github.com/giantswarm/mcp-oauth"
	"github.com/giantswarm/mcp-oauth/providers"
	"golang.org/x/oauth2"

	"github.com/teemow/gapi/internal/instrumentation"
	"github.com/teemow/gapi/internal/logging"
)

const tokenStoreTimeout = 5 * time.Second

// errUserInfoStatus is returned when userinfo answers with a non-200 status.
type errUserInfoStatus int

func (e errUserInfoStatus) Error() string {
	return fmt.Sprintf("userinfo request failed with status %d", int(e))
}

// ValidateGoogleToken rejects requests without a valid Google bearer token.
func (h *Handler) ValidateGoogleToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			h.config.Metrics.RecordOAuthAuth(ctx, instrumentation.OAuthResultMissing)
			w.Header().Set("WWW-Authenticate", fmt.Sprintf(`Bearer resource_metadata="%s"`, h.metadataURL()))
			writeError(w, "missing_token", "Missing Authorization header", http.StatusUnauthorized)
			return
		}

		scheme, accessToken, ok := strings.Cut(authHeader, " ")
		if !ok || !strings.EqualFold(scheme, "bearer") || strings.TrimSpace(accessToken) == "" {
			h.unauthorized(w, r, "Invalid Authorization header format")
			return
		}
		accessToken = strings.TrimSpace(accessToken)

		user, err := h.validate(ctx, accessToken)
		if err != nil {
			h.logger.Debug("Bearer token rejected",
				"token", logging.SanitizeToken(accessToken),
				logging.Err(err))
			h.unauthorized(w, r, actionableMessage(err))
			return
		}
		h.config.Metrics.RecordOAuthAuth(ctx, instrumentation.OAuthResultSuccess)

		next.ServeHTTP(w, r.WithContext(mcpoauth.ContextWithUserInfo(ctx, user)))
	})
}

func (h *Handler) unauthorized(w http.ResponseWriter, r *http.Request, description string) {
	h.config.Metrics.RecordOAuthAuth(r.Context(), instrumentation.OAuthResultFailure)
	w.Header().Set("WWW-Authenticate", fmt.Sprintf(
		`Bearer resource_metadata="%s", error="invalid_token", error_description="%s"`,
		h.metadataURL(), description))
	writeError(w, "invalid_token", description, http.StatusUnauthorized)
}

// validate resolves the token's owner, consulting the cache first. A freshly
// validated token is saved to the store under the user's email.
func (h *Handler) validate(ctx context.Context, accessToken string) (*providers.UserInfo, error) {
	if user, ok := h.cache.get(accessToken); ok {
		return user, nil
	}

	info, err := h.fetchUserInfo(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	if info.Email == "" {
		return nil, fmt.Errorf("token does not grant access to the user's email")
	}

	user := &providers.UserInfo{
		ID:            firstNonEmpty(info.Sub, info.ID),
		Email:         info.Email,
		EmailVerified: info.EmailVerified || info.VerifiedEmail,
		Name:          info.Name,
	}

	token := &oauth2.Token{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		Expiry:      time.Now().Add(time.Hour),
	}
	storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), tokenStoreTimeout)
	defer cancel()
	if err := h.store.SaveToken(storeCtx, user.Email, token); err != nil {
		h.logger.Error("Failed to store Google token", logging.UserHash(user.Email), logging.Err(err))
	}

	h.cache.put(accessToken, user)
	return user, nil
}

func (h *Handler) fetchUserInfo(ctx context.Context, accessToken string) (*GoogleUserInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.config.UserInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build userinfo request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := h.config.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to get user info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errUserInfoStatus(resp.StatusCode)
	}

	var info GoogleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("failed to decode user info: %w", err)
	}
	return &info, nil
}

// UserFromContext returns the authenticated user set by ValidateGoogleToken.
func UserFromContext(ctx context.Context) (*providers.UserInfo, bool) {
	user, ok := mcpoauth.UserInfoFromContext(ctx)
	if !ok || user == nil || user.Email == "" {
		return nil, false
	}
	return user, true
}

func actionableMessage(err error) string {
	var status errUserInfoStatus
	errors.As(err, &status)
	switch status {
	case http.StatusUnauthorized:
		return "Google token is invalid or expired. Re-authenticate through your MCP client."
	case http.StatusForbidden:
		return "Access denied by Google. Ensure the token carries the required scopes."
	}
	if status != 0 {
		return "Google rejected the token. Re-authenticate through your MCP client."
	}
	return "Token validation failed: " + err.Error()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

type cachedUser struct {
	user    *providers.UserInfo
	expires time.Time
}

// validationCache remembers validated tokens by their SHA-256 digest.
type validationCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]cachedUser
	now     func() time.Time
}

func newValidationCache(ttl time.Duration) *validationCache {
	return &validationCache{ttl: ttl, entries: make(map[string]cachedUser), now: time.Now}
}

func tokenKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func (c *validationCache) get(token string) (*providers.UserInfo, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := tokenKey(token)
	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().After(entry.expires) {
		delete(c.entries, key)
		return nil, false
	}
	return entry.user, true
}

func (c *validationCache) put(token string, user *providers.UserInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for k, e := range c.entries {
		if now.After(e.expires) {
			delete(c.entries, k)
		}
	}
	c.entries[tokenKey(token)] = cachedUser{user: user, expires: now.Add(c.ttl)}
}
