package oauth

import (
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	limiterCleanupInterval = 5 * time.Minute
	limiterIdleTimeout     = 10 * time.Minute
)

// RateLimiter keeps one token bucket per client IP.
type RateLimiter struct {
	mu         sync.Mutex
	limiters   map[string]*ipLimiter
	rate       rate.Limit
	burst      int
	trustProxy bool
	stop       chan struct{}
	stopOnce   sync.Once
}

type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter starts a limiter allowing r requests per second with the
// given burst. Call Stop to end its cleanup goroutine.
func NewRateLimiter(r rate.Limit, burst int, trustProxy bool) *RateLimiter {
	rl := &RateLimiter{
		limiters:   make(map[string]*ipLimiter),
		rate:       r,
		burst:      burst,
		trustProxy: trustProxy,
		stop:       make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

// Allow reports whether a request from ip may proceed.
func (rl *RateLimiter) Allow(ip string) bool {
	rl.mu.Lock()
	l, ok := rl.limiters[ip]
	if !ok {
		l = &ipLimiter{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.limiters[ip] = l
	}
	l.lastSeen = time.Now()
	rl.mu.Unlock()

	return l.limiter.Allow()
}

// Stop ends the cleanup goroutine.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(limiterCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case now := <-ticker.C:
			rl.mu.Lock()
			for ip, l := range rl.limiters {
				if now.Sub(l.lastSeen) > limiterIdleTimeout {
					delete(rl.limiters, ip)
				}
			}
			rl.mu.Unlock()
		}
	}
}

// RateLimitMiddleware answers 429 once a client IP exceeds its budget.
func (h *Handler) RateLimitMiddleware(next http.Handler) http.Handler {
	if h.rateLimiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r, h.rateLimiter.trustProxy)
		if !h.rateLimiter.Allow(ip) {
			w.Header().Set("Retry-After", "1")
			writeError(w, "rate_limit_exceeded",
				fmt.Sprintf("Rate limit exceeded for %s. Please try again later", ip),
				http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP uses proxy headers only when trustProxy is set.
func clientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			return strings.TrimSpace(first)
		}
		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			return strings.TrimSpace(xri)
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
