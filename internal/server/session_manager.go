package server

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/teemow/gapi/internal/instrumentation"
)

const (
	sessionIDPrefix = "gapi-"

	// DefaultSessionTimeout expires sessions idle for longer than this.
	DefaultSessionTimeout = 24 * time.Hour
)

type sessionInfo struct {
	lastAccess time.Time
	terminated bool
}

// SessionIDManager issues streamable HTTP session IDs and expires idle ones.
// It implements mcp-go's server.SessionIdManager.
type SessionIDManager struct {
	mu       sync.Mutex
	sessions map[string]*sessionInfo
	timeout  time.Duration
	metrics  *instrumentation.Metrics
	logger   *slog.Logger
	now      func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

// NewSessionIDManager starts a manager expiring sessions after timeout
// (DefaultSessionTimeout when zero). Call Stop to end its cleanup loop.
func NewSessionIDManager(timeout time.Duration, metrics *instrumentation.Metrics, logger *slog.Logger) *SessionIDManager {
	if timeout <= 0 {
		timeout = DefaultSessionTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	m := &SessionIDManager{
		sessions: make(map[string]*sessionInfo),
		timeout:  timeout,
		metrics:  metrics,
		logger:   logger,
		now:      time.Now,
		stop:     make(chan struct{}),
	}
	go m.cleanupLoop(cleanupInterval(timeout))
	return m
}

func cleanupInterval(timeout time.Duration) time.Duration {
	return min(10*time.Minute, max(timeout/2, time.Second))
}

// Generate creates a new session ID.
func (m *SessionIDManager) Generate() string {
	id := sessionIDPrefix + uuid.NewString()

	m.mu.Lock()
	m.sessions[id] = &sessionInfo{lastAccess: m.now()}
	m.mu.Unlock()

	m.metrics.IncrementActiveSessions(context.Background())
	return id
}

// Validate reports whether id names a live session. Expired sessions count
// as terminated so the client starts a new one.
func (m *SessionIDManager) Validate(id string) (isTerminated bool, err error) {
	if !strings.HasPrefix(id, sessionIDPrefix) {
		return false, fmt.Errorf("invalid session id: %s", id)
	}
	if _, err := uuid.Parse(strings.TrimPrefix(id, sessionIDPrefix)); err != nil {
		return false, fmt.Errorf("invalid session id: %s", id)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	info, ok := m.sessions[id]
	if !ok {
		return false, fmt.Errorf("session not found: %s", id)
	}
	if info.terminated {
		return true, nil
	}
	now := m.now()
	if now.Sub(info.lastAccess) > m.timeout {
		m.expireLocked(info)
		return true, nil
	}
	info.lastAccess = now
	return false, nil
}

// Terminate ends a session. Unknown IDs are ignored.
func (m *SessionIDManager) Terminate(id string) (isNotAllowed bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if info, ok := m.sessions[id]; ok && !info.terminated {
		m.expireLocked(info)
	}
	return false, nil
}

// ActiveSessions returns the number of live sessions.
func (m *SessionIDManager) ActiveSessions() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, info := range m.sessions {
		if !info.terminated {
			n++
		}
	}
	return n
}

// Stop ends the cleanup loop.
func (m *SessionIDManager) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
}

func (m *SessionIDManager) expireLocked(info *sessionInfo) {
	info.terminated = true
	info.lastAccess = m.now()
	m.metrics.DecrementActiveSessions(context.Background())
}

// sweep expires idle sessions and forgets terminated ones after a further
// timeout period.
func (m *SessionIDManager) sweep() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	expired := 0
	for id, info := range m.sessions {
		idle := now.Sub(info.lastAccess)
		switch {
		case info.terminated && idle > m.timeout:
			delete(m.sessions, id)
		case !info.terminated && idle > m.timeout:
			m.expireLocked(info)
			expired++
		}
	}
	if expired > 0 {
		m.logger.Info("expired idle sessions", "count", expired)
	}
}

func (m *SessionIDManager) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.sweep()
		}
	}
}
