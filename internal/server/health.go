package server

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"
)

const (
	healthStatusOK           = "ok"
	healthStatusNotReady     = "not ready"
	healthStatusShuttingDown = "shutting down"
)

// HealthChecker serves liveness and readiness probes.
type HealthChecker struct {
	ready         atomic.Bool
	serverContext *ServerContext
	version       string
	transport     string
	startTime     time.Time
}

// NewHealthChecker creates a HealthChecker that starts out ready.
func NewHealthChecker(sc *ServerContext, version, transport string) *HealthChecker {
	h := &HealthChecker{
		serverContext: sc,
		version:       version,
		transport:     transport,
		startTime:     time.Now(),
	}
	h.ready.Store(true)
	return h
}

// SetReady sets the readiness state.
func (h *HealthChecker) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady reports the readiness state.
func (h *HealthChecker) IsReady() bool {
	return h.ready.Load()
}

func (h *HealthChecker) isServerShuttingDown() bool {
	return h.serverContext != nil && h.serverContext.IsShutdown()
}

// HealthResponse is the body of /healthz and /readyz.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// DetailedHealthResponse is the body of /healthz/detailed.
type DetailedHealthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version,omitempty"`
	Transport string `json:"transport,omitempty"`
	ReadOnly  bool   `json:"read_only"`
	Uptime    string `json:"uptime"`
}

// LivenessHandler serves /healthz.
func (h *HealthChecker) LivenessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, HealthResponse{Status: healthStatusOK})
	})
}

// ReadinessHandler serves /readyz.
func (h *HealthChecker) ReadinessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		checks := map[string]string{"ready": healthStatusOK, "shutdown": healthStatusOK}
		ok := true
		if !h.ready.Load() {
			checks["ready"] = healthStatusNotReady
			ok = false
		}
		if h.isServerShuttingDown() {
			checks["shutdown"] = healthStatusShuttingDown
			ok = false
		}

		if ok {
			writeJSON(w, http.StatusOK, HealthResponse{Status: healthStatusOK, Checks: checks})
			return
		}
		writeJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: healthStatusNotReady, Checks: checks})
	})
}

// DetailedHealthHandler serves /healthz/detailed.
func (h *HealthChecker) DetailedHealthHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		resp := DetailedHealthResponse{
			Status:    healthStatusOK,
			Version:   h.version,
			Transport: h.transport,
			Uptime:    time.Since(h.startTime).Truncate(time.Second).String(),
		}
		if h.serverContext != nil {
			resp.ReadOnly = h.serverContext.ReadOnly()
		}

		status := http.StatusOK
		switch {
		case !h.ready.Load():
			resp.Status = healthStatusNotReady
			status = http.StatusServiceUnavailable
		case h.isServerShuttingDown():
			resp.Status = healthStatusShuttingDown
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, resp)
	})
}

// RegisterHealthEndpoints registers the health endpoints on mux.
func (h *HealthChecker) RegisterHealthEndpoints(mux *http.ServeMux) {
	mux.Handle("/healthz", h.LivenessHandler())
	mux.Handle("/readyz", h.ReadinessHandler())
	mux.Handle("/healthz/detailed", h.DetailedHealthHandler())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
