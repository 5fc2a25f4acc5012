// ABOUTME: Tests for the per-client limiter registry
// ABOUTME: Drives the registry with an injected clock

package server

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiterRegistry_BurstThenRefill(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r := NewRateLimiterRegistry(60, 2)
	r.now = func() time.Time { return now }

	assert.True(t, r.Allow("a"))
	assert.True(t, r.Allow("a"))
	assert.False(t, r.Allow("a"))

	// 60 per minute refills one token per second.
	now = now.Add(time.Second)
	assert.True(t, r.Allow("a"))
	assert.False(t, r.Allow("a"))
}

func TestRateLimiterRegistry_KeysAreIndependent(t *testing.T) {
	r := NewRateLimiterRegistry(1, 1)

	assert.True(t, r.Allow("a"))
	assert.False(t, r.Allow("a"))
	assert.True(t, r.Allow("b"))
	assert.Equal(t, 2, r.Len())
}

func TestRateLimiterRegistry_DisabledWhenRateNotPositive(t *testing.T) {
	r := NewRateLimiterRegistry(0, 0)

	for i := 0; i < 100; i++ {
		assert.True(t, r.Allow("a"))
	}
	assert.Zero(t, r.Len())
}

func TestRateLimiterRegistry_EvictsIdleKeys(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r := NewRateLimiterRegistry(10, 5)
	r.now = func() time.Time { return now }

	r.Allow("a")
	r.Allow("b")
	assert.Equal(t, 2, r.Len())

	now = now.Add(limiterIdleTTL + time.Second)
	r.Allow("c")
	assert.Equal(t, 1, r.Len())
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "203.0.113.9:4242"
	req.Header.Set("X-Forwarded-For", "198.51.100.1")
	assert.Equal(t, "203.0.113.9", clientIP(req))

	req.RemoteAddr = "[2001:db8::1]:4242"
	assert.Equal(t, "2001:db8::1", clientIP(req))

	req.RemoteAddr = "no-port"
	assert.Equal(t, "no-port", clientIP(req))
}
