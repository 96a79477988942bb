// internal/middleware/rate_limit.go
package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// clientBucket tracks one caller's token bucket and when it was last used.
type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPRateLimiter hands every client IP its own token bucket. A background
// sweep drops buckets idle for a few minutes so the map does not grow with
// one entry per address the server has ever seen.
type IPRateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*clientBucket
	refill  rate.Limit
	burst   int
}

func NewIPRateLimiter(refill rate.Limit, burst int) *IPRateLimiter {
	rl := &IPRateLimiter{
		buckets: make(map[string]*clientBucket),
		refill:  refill,
		burst:   burst,
	}
	go rl.sweep()
	return rl
}

func (rl *IPRateLimiter) sweep() {
	for {
		time.Sleep(time.Minute)
		rl.mu.Lock()
		for ip, b := range rl.buckets {
			if time.Since(b.lastSeen) > 3*time.Minute {
				delete(rl.buckets, ip)
			}
		}
		rl.mu.Unlock()
	}
}

func (rl *IPRateLimiter) bucketFor(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, ok := rl.buckets[ip]
	if !ok {
		b = &clientBucket{
			limiter:  rate.NewLimiter(rl.refill, rl.burst),
			lastSeen: time.Now(),
		}
		rl.buckets[ip] = b
		return b.limiter
	}

	b.lastSeen = time.Now()
	return b.limiter
}

// Middleware rejects callers whose bucket is empty with 429.
func (rl *IPRateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.bucketFor(c.ClientIP()).Allow() {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error": "Rate limit exceeded. Please try again later.",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

// RateLimits groups the tiers the router mounts. Auth and upload endpoints
// get tighter buckets than general traffic.
type RateLimits struct {
	General *IPRateLimiter
	Auth    *IPRateLimiter
	Upload  *IPRateLimiter
}

func NewRateLimits() *RateLimits {
	return &RateLimits{
		General: NewIPRateLimiter(rate.Every(time.Second), 10),
		Auth:    NewIPRateLimiter(rate.Every(time.Minute), 5),
		Upload:  NewIPRateLimiter(rate.Every(time.Minute), 10),
	}
}
