package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xxxsen/papersearch/internal/pkg/errcode"
	"github.com/xxxsen/papersearch/internal/pkg/response"
)

const limiterIdleTTL = 10 * time.Minute

// rateLimiter keeps one token bucket per client ip. Buckets of idle clients
// age out of the lru so the key space stays bounded.
type rateLimiter struct {
	rps     rate.Limit
	burst   int
	buckets *expirable.LRU[string, *rate.Limiter]
}

func RateLimit(rps float64, burst int, maxKeys int) gin.HandlerFunc {
	return newRateLimiter(rps, burst, maxKeys).handle
}

func newRateLimiter(rps float64, burst int, maxKeys int) *rateLimiter {
	if burst <= 0 {
		burst = 1
	}
	if maxKeys <= 0 {
		maxKeys = 10000
	}
	return &rateLimiter{
		rps:     rate.Limit(rps),
		burst:   burst,
		buckets: expirable.NewLRU[string, *rate.Limiter](maxKeys, nil, limiterIdleTTL),
	}
}

func (l *rateLimiter) bucket(key string) *rate.Limiter {
	if b, ok := l.buckets.Get(key); ok {
		return b
	}
	b := rate.NewLimiter(l.rps, l.burst)
	l.buckets.Add(key, b)
	return b
}

func (l *rateLimiter) handle(c *gin.Context) {
	if l.rps <= 0 {
		c.Next()
		return
	}
	ip := c.ClientIP()
	if !l.bucket(ip).Allow() {
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		logutil.GetLogger(c.Request.Context()).Warn("rate limit hit",
			zap.String("ip", ip),
			zap.String("path", path),
			zap.String("request_id", GetRequestID(c)),
		)
		response.Error(c, errcode.ErrTooMany, http.StatusText(http.StatusTooManyRequests))
		c.Abort()
		return
	}
	c.Next()
}
