package oauth

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/giantswarm/mcp-oauth/storage"
)

// Handler validates bearer tokens and serves the protected resource metadata.
type Handler struct {
	config      Config
	store       storage.TokenStore
	cache       *validationCache
	rateLimiter *RateLimiter
	logger      *slog.Logger
}

// NewHandler creates a Handler.
func NewHandler(config Config) (*Handler, error) {
	if err := ValidateResourceURL(config.Resource); err != nil {
		return nil, err
	}
	if config.Store == nil {
		return nil, fmt.Errorf("token store is required")
	}
	config.Resource = strings.TrimSuffix(config.Resource, "/")
	config.setDefaults()

	h := &Handler{
		config: config,
		store:  config.Store,
		cache:  newValidationCache(config.ValidationTTL),
		logger: config.Logger.With("component", "oauth"),
	}
	if config.RateLimit > 0 {
		h.rateLimiter = NewRateLimiter(config.RateLimit, config.RateBurst, config.TrustProxy)
	}
	return h, nil
}

// Store returns the token store.
func (h *Handler) Store() storage.TokenStore {
	return h.store
}

// Close stops background work.
func (h *Handler) Close() {
	if h.rateLimiter != nil {
		h.rateLimiter.Stop()
	}
}

// ServeProtectedResourceMetadata serves the RFC 9728 document.
func (h *Handler) ServeProtectedResourceMetadata(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	metadata := ProtectedResourceMetadata{
		Resource:               h.config.Resource,
		AuthorizationServers:   []string{GoogleIssuer},
		BearerMethodsSupported: []string{"header"},
		ScopesSupported:        h.config.Scopes,
	}

	setSecurityHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(metadata); err != nil {
		h.logger.Error("Failed to encode metadata", "error", err)
	}
}

func (h *Handler) metadataURL() string {
	return h.config.Resource + ProtectedResourcePath
}

func setSecurityHeaders(w http.ResponseWriter) {
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Cache-Control", "no-store")
}

func writeError(w http.ResponseWriter, code, description string, status int) {
	setSecurityHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: code, ErrorDescription: description})
}
