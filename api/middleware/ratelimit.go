package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/use-agent/pagequery/config"
	"github.com/use-agent/pagequery/models"
)

// keyedLimiters holds one token bucket per client identity and sweeps
// out buckets that have gone quiet, so the map cannot grow without bound.
type keyedLimiters struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	limit   rate.Limit
	burst   int
}

type bucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

func newKeyedLimiters(cfg config.RateLimitConfig) *keyedLimiters {
	kl := &keyedLimiters{
		buckets: make(map[string]*bucket),
		limit:   rate.Limit(cfg.RequestsPerSecond),
		burst:   cfg.Burst,
	}
	go kl.sweep(5*time.Minute, time.Hour)
	return kl
}

func (kl *keyedLimiters) get(identity string) *rate.Limiter {
	kl.mu.Lock()
	defer kl.mu.Unlock()
	b, ok := kl.buckets[identity]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(kl.limit, kl.burst)}
		kl.buckets[identity] = b
	}
	b.lastSeen = time.Now()
	return b.lim
}

func (kl *keyedLimiters) sweep(every, maxIdle time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for range ticker.C {
		cutoff := time.Now().Add(-maxIdle)
		kl.mu.Lock()
		for id, b := range kl.buckets {
			if b.lastSeen.Before(cutoff) {
				delete(kl.buckets, id)
			}
		}
		kl.mu.Unlock()
	}
}

// RateLimit returns token-bucket rate limiting middleware keyed by the
// authenticated API key when present, otherwise the client IP.
func RateLimit(cfg config.RateLimitConfig) gin.HandlerFunc {
	kl := newKeyedLimiters(cfg)

	return func(c *gin.Context) {
		identity := c.GetString(ClientKeyContextKey)
		if identity == "" {
			identity = c.ClientIP()
		}

		if !kl.get(identity).Allow() {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, models.QueryResponse{
				Success: false,
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeRateLimited,
					Message: "rate limit exceeded, please slow down",
				},
			})
			return
		}

		c.Next()
	}
}
