// internal/api/rate_limit.go
package api

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// RateLimiter implements a fixed window limiter keyed by an arbitrary string.
type RateLimiter struct {
	visitors map[string]*Visitor
	mu       sync.Mutex
	limit    int
	window   time.Duration
	now      func() time.Time
}

// Visitor represents a client with rate limiting data
type Visitor struct {
	Remaining int
	Reset     time.Time
}

// maxVisitors triggers a prune of expired windows.
const maxVisitors = 1024

// NewRateLimiter creates a limiter allowing limit requests per window.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		visitors: make(map[string]*Visitor),
		limit:    limit,
		window:   window,
		now:      time.Now,
	}
}

// Allow checks if a visitor is allowed to make a request and returns the
// remaining budget and window reset time.
func (rl *RateLimiter) Allow(key string) (bool, int, time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	visitor, exists := rl.visitors[key]

	if !exists || now.After(visitor.Reset) {
		if len(rl.visitors) >= maxVisitors {
			rl.prune(now)
		}
		visitor = &Visitor{Remaining: rl.limit, Reset: now.Add(rl.window)}
		rl.visitors[key] = visitor
	}

	if visitor.Remaining <= 0 {
		return false, 0, visitor.Reset
	}

	visitor.Remaining--
	return true, visitor.Remaining, visitor.Reset
}

// prune removes visitors whose window has expired. Caller holds mu.
func (rl *RateLimiter) prune(now time.Time) {
	for key, visitor := range rl.visitors {
		if now.After(visitor.Reset) {
			delete(rl.visitors, key)
		}
	}
}

// Middleware limits requests per client IP. It runs before SessionMiddleware
// so requests that would open a new session are counted as well.
func (rl *RateLimiter) Middleware(rh *ResponseHelper) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()

		allowed, remaining, reset := rl.Allow(key)
		c.Header("X-RateLimit-Limit", strconv.Itoa(rl.limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))

		if !allowed {
			rh.TooManyRequests(c, "请求过于频繁，请稍后再试")
			c.Abort()
			return
		}
		c.Next()
	}
}
