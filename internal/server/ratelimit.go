// ABOUTME: Per-client token-bucket limiter for signup and login attempts
// ABOUTME: Limiters are keyed by client IP and evicted after sitting idle

package server

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// limiterIdleTTL is how long an unused per-IP limiter is kept.
const limiterIdleTTL = 10 * time.Minute

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiterRegistry hands out one limiter per key.
type RateLimiterRegistry struct {
	mu        sync.Mutex
	limiters  map[string]*limiterEntry
	limit     rate.Limit
	burst     int
	idleTTL   time.Duration
	lastSweep time.Time
	now       func() time.Time
}

// NewRateLimiterRegistry allows requestsPerMinute sustained attempts per key
// with the given burst. A non-positive rate disables limiting.
func NewRateLimiterRegistry(requestsPerMinute, burst int) *RateLimiterRegistry {
	limit := rate.Inf
	if requestsPerMinute > 0 {
		limit = rate.Limit(float64(requestsPerMinute) / 60)
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimiterRegistry{
		limiters: make(map[string]*limiterEntry),
		limit:    limit,
		burst:    burst,
		idleTTL:  limiterIdleTTL,
		now:      time.Now,
	}
}

// Allow reports whether key may make one more attempt now.
func (r *RateLimiterRegistry) Allow(key string) bool {
	if r.limit == rate.Inf {
		return true
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	r.sweepLocked(now)

	entry, ok := r.limiters[key]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(r.limit, r.burst)}
		r.limiters[key] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}

// Len returns the number of tracked keys.
func (r *RateLimiterRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.limiters)
}

// sweepLocked drops idle limiters at most once per idle period. Must be
// called with mu held.
func (r *RateLimiterRegistry) sweepLocked(now time.Time) {
	if now.Sub(r.lastSweep) < r.idleTTL {
		return
	}
	r.lastSweep = now
	for key, entry := range r.limiters {
		if now.Sub(entry.lastSeen) >= r.idleTTL {
			delete(r.limiters, key)
		}
	}
}

// clientIP returns the remote host of the direct peer. Forwarding headers are
// not trusted.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
