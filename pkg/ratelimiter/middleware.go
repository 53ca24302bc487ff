package ratelimiter

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// RateLimiter applies a single fixed limit per client IP, used as the
// outer guard on the HTTP surface.
type RateLimiter struct {
	store  *Store
	limit  int
	window time.Duration
}

// New creates a new per-IP RateLimiter with the specified limit and window
func New(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		store:  NewStore(),
		limit:  limit,
		window: window,
	}
}

// Cleanup removes elapsed counters
func (rl *RateLimiter) Cleanup() {
	rl.store.Cleanup()
}

// Middleware creates a Gin middleware for rate limiting
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		clientIP := c.ClientIP()

		err := rl.store.Check(clientIP, "http", rl.limit, rl.window)

		var limitErr *LimitExceededError
		if errors.As(err, &limitErr) {
			c.Header("X-RateLimit-Limit", strconv.Itoa(rl.limit))
			c.Header("X-RateLimit-Remaining", "0")
			c.Header("X-RateLimit-Reset", strconv.FormatInt(limitErr.ResetAt.Unix(), 10))
			c.Header("Retry-After", strconv.Itoa(int(time.Until(limitErr.ResetAt).Seconds())))

			c.JSON(http.StatusTooManyRequests, gin.H{
				"error": gin.H{
					"code":    "RATE_LIMIT_EXCEEDED",
					"message": "Too many requests. Rate limit exceeded.",
					"details": "Maximum " + strconv.Itoa(rl.limit) + " requests per window allowed.",
				},
				"timestamp": time.Now().UTC().Format(time.RFC3339),
			})
			c.Abort()
			return
		}

		count, resetAt := rl.store.Snapshot(clientIP, rl.window)
		remaining := rl.limit - count
		if remaining < 0 {
			remaining = 0
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(rl.limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))

		c.Next()
	}
}
