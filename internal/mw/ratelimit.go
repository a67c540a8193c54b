package mw

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// ipLimiters lazily creates one token bucket per client IP.
type ipLimiters struct {
	mu      sync.Mutex
	buckets map[string]*rate.Limiter
	limit   rate.Limit
	burst   int
}

func (l *ipLimiters) get(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	limiter, ok := l.buckets[ip]
	if !ok {
		limiter = rate.NewLimiter(l.limit, l.burst)
		l.buckets[ip] = limiter
	}
	return limiter
}

// RateLimiter limits each client IP to r requests per second with the
// given burst. Registration is the hot public endpoint this guards.
func RateLimiter(r rate.Limit, burst int) gin.HandlerFunc {
	limiters := &ipLimiters{
		buckets: make(map[string]*rate.Limiter),
		limit:   r,
		burst:   burst,
	}
	return func(c *gin.Context) {
		if !limiters.get(c.ClientIP()).Allow() {
			c.AbortWithStatus(http.StatusTooManyRequests)
			return
		}
		c.Next()
	}
}
