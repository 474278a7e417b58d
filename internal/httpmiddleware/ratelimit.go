package httpmiddleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// TokenBucket is an in-memory per-key rate limiter. Buckets refill at
// perMinute tokens a minute up to capacity; idle buckets are dropped by Sweep.
type TokenBucket struct {
	capacity int
	rate     int
	now      func() time.Time
	mu       sync.Mutex
	state    map[string]*bucket
}

type bucket struct {
	tokens int
	last   time.Time
}

// NewTokenBucket creates a limiter with capacity tokens and rate per minute.
func NewTokenBucket(capacity, perMinute int) *TokenBucket {
	if perMinute <= 0 {
		perMinute = 60
	}
	if capacity <= 0 {
		capacity = perMinute
	}
	return &TokenBucket{
		capacity: capacity,
		rate:     perMinute,
		now:      time.Now,
		state:    make(map[string]*bucket),
	}
}

// GinMiddleware limits requests per client IP.
func (l *TokenBucket) GinMiddleware() gin.HandlerFunc {
	return l.GinMiddlewareBy(func(c *gin.Context) string {
		return c.ClientIP()
	})
}

// GinMiddlewareBy limits requests per key(c). Requests with an empty key
// share one bucket.
func (l *TokenBucket) GinMiddlewareBy(key func(c *gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		k := key(c)
		if k == "" {
			k = "unknown"
		}
		if !l.Allow(k) {
			c.Header("Retry-After", strconv.Itoa(l.retryAfter()))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests. Try again shortly."})
			return
		}
		c.Next()
	}
}

// Allow takes one token for key.
func (l *TokenBucket) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	b, ok := l.state[key]
	if !ok {
		l.state[key] = &bucket{tokens: l.capacity - 1, last: now}
		return true
	}
	interval := time.Minute / time.Duration(l.rate)
	if refill := int(now.Sub(b.last) / interval); refill > 0 {
		b.tokens += refill
		b.last = b.last.Add(time.Duration(refill) * interval)
		if b.tokens >= l.capacity {
			b.tokens = l.capacity
			b.last = now
		}
	}
	if b.tokens <= 0 {
		return false
	}
	b.tokens--
	return true
}

// Sweep forgets buckets untouched for longer than idle.
func (l *TokenBucket) Sweep(idle time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := l.now().Add(-idle)
	n := 0
	for k, b := range l.state {
		if b.last.Before(cutoff) {
			delete(l.state, k)
			n++
		}
	}
	return n
}

func (l *TokenBucket) retryAfter() int {
	return max(1, 60/l.rate)
}
