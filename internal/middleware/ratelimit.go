package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// RateLimiter is a fixed-window per-key limiter used on the login and
// register endpoints. Expired windows are evicted lazily on the next Allow
// for the key and swept whenever the map grows past sweepThreshold, so no
// background goroutine is needed.
type RateLimiter struct {
	mu      sync.Mutex
	windows map[string]*window
	limit   int
	size    time.Duration
	now     func() time.Time
}

type window struct {
	count   int
	resetAt time.Time
}

const sweepThreshold = 1024

func NewRateLimiter(limit int, size time.Duration) *RateLimiter {
	return NewRateLimiterWithNow(limit, size, time.Now)
}

func NewRateLimiterWithNow(limit int, size time.Duration, now func() time.Time) *RateLimiter {
	return &RateLimiter{
		windows: make(map[string]*window),
		limit:   limit,
		size:    size,
		now:     now,
	}
}

// Allow records an attempt for key and reports whether it is within the
// window's budget.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if len(rl.windows) > sweepThreshold {
		rl.sweep(now)
	}

	w, exists := rl.windows[key]
	if !exists || now.After(w.resetAt) {
		rl.windows[key] = &window{count: 1, resetAt: now.Add(rl.size)}
		return true
	}

	if w.count >= rl.limit {
		return false
	}

	w.count++
	return true
}

func (rl *RateLimiter) sweep(now time.Time) {
	for key, w := range rl.windows {
		if now.After(w.resetAt) {
			delete(rl.windows, key)
		}
	}
}

// RateLimitMiddleware limits by client IP.
func RateLimitMiddleware(rl *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.Allow(c.ClientIP()) {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded"})
			c.Abort()
			return
		}
		c.Next()
	}
}
