package handler

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per client IP. A client may burst the
// full allowance and then regains one attempt every window/attempts.
// Buckets idle for a whole window are full again and get dropped.
type RateLimiter struct {
	limiters  map[string]*limiterEntry
	mu        sync.Mutex
	every     rate.Limit
	burst     int
	window    time.Duration
	lastSweep time.Time
	now       func() time.Time
}

func NewRateLimiter(attempts int, window time.Duration) *RateLimiter {
	if attempts <= 0 {
		attempts = 5
	}
	if window <= 0 {
		window = 15 * time.Minute
	}
	return &RateLimiter{
		limiters: make(map[string]*limiterEntry),
		every:    rate.Every(window / time.Duration(attempts)),
		burst:    attempts,
		window:   window,
		now:      time.Now,
	}
}

func (rl *RateLimiter) getLimiter(key string, now time.Time) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if now.Sub(rl.lastSweep) >= rl.window {
		rl.sweep(now)
	}

	entry, exists := rl.limiters[key]
	if !exists {
		entry = &limiterEntry{limiter: rate.NewLimiter(rl.every, rl.burst)}
		rl.limiters[key] = entry
	}
	entry.lastSeen = now
	return entry.limiter
}

// sweep must be called with mu held.
func (rl *RateLimiter) sweep(now time.Time) {
	for key, entry := range rl.limiters {
		if now.Sub(entry.lastSeen) >= rl.window {
			delete(rl.limiters, key)
		}
	}
	rl.lastSweep = now
}

func (rl *RateLimiter) Allow(key string) bool {
	now := rl.now()
	return rl.getLimiter(key, now).AllowN(now, 1)
}

func (rl *RateLimiter) size() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limiters)
}

// Middleware answers 429 with message once the caller's bucket is empty.
// The key is gin's ClientIP, so forwarded headers only count when the engine
// trusts the peer that sent them.
func (rl *RateLimiter) Middleware(message string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.Allow(c.ClientIP()) {
			recordAuthEvent("rate_limit", "rejected")
			abortJSON(c, http.StatusTooManyRequests, message)
			return
		}
		c.Next()
	}
}
