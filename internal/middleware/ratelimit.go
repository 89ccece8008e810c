package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const (
	limiterTTL        = 15 * time.Minute
	limiterSweepEvery = 2 * time.Minute
)

type limiterEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// ttlLimiterCache is a TTL map for per-key limiters with opportunistic sweeping.
type ttlLimiterCache struct {
	mu        sync.Mutex
	items     map[string]*limiterEntry
	ttl       time.Duration
	lastSweep time.Time
	now       func() time.Time
}

func newTTLLimiterCache(ttl time.Duration) *ttlLimiterCache {
	return &ttlLimiterCache{items: make(map[string]*limiterEntry), ttl: ttl, now: time.Now}
}

func (c *ttlLimiterCache) get(key string, makeFn func() *rate.Limiter) *rate.Limiter {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastSweep.IsZero() || now.Sub(c.lastSweep) > limiterSweepEvery {
		c.sweepLocked(now)
		c.lastSweep = now
	}
	if e, ok := c.items[key]; ok {
		e.lastSeen = now
		return e.lim
	}
	lim := makeFn()
	c.items[key] = &limiterEntry{lim: lim, lastSeen: now}
	return lim
}

func (c *ttlLimiterCache) sweepLocked(now time.Time) {
	for k, e := range c.items {
		if now.Sub(e.lastSeen) > c.ttl {
			delete(c.items, k)
		}
	}
}

func (c *ttlLimiterCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// RateLimiter limits each caller, keyed by access key when one was
// presented and by client IP otherwise. rps <= 0 disables limiting.
func RateLimiter(rps, burst int) gin.HandlerFunc {
	if rps <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	if burst <= 0 {
		burst = rps * 2
	}
	cache := newTTLLimiterCache(limiterTTL)
	return func(c *gin.Context) {
		key := c.GetString(accessKeyContextKey)
		if key == "" {
			key = "ip:" + c.ClientIP()
		}
		li := cache.get(key, func() *rate.Limiter { return rate.NewLimiter(rate.Limit(rps), burst) })
		if !li.Allow() {
			abortJSON(c, http.StatusTooManyRequests, "rate_limit_error", "rate_limited", "Rate limit exceeded")
			return
		}
		c.Next()
	}
}
