package middleware

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/vaultpilot/vaultpilot/internal/config"
)

// RateLimitMiddleware enforces a token-bucket limit per API key. Anonymous
// callers share one bucket keyed by the empty string.
func RateLimitMiddleware(cfg *config.Config) gin.HandlerFunc {
	qps := cfg.Auth.RateQPS
	if qps <= 0 {
		qps = 50
	}
	burst := cfg.Auth.RateBurst
	if burst <= 0 {
		burst = int(qps) * 2
	}

	var mu sync.Mutex
	limiters := make(map[string]*rate.Limiter)

	return func(c *gin.Context) {
		key := c.GetString(ContextAPIKey)

		mu.Lock()
		limiter, ok := limiters[key]
		if !ok {
			limiter = rate.NewLimiter(rate.Limit(qps), burst)
			limiters[key] = limiter
		}
		mu.Unlock()

		if !limiter.Allow() {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate limit exceeded",
				"retry_after": "1s",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
