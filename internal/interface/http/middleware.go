package http

import (
	"log/slog"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/medimind/medimind-api/internal/infra/config"
)

// errorEnvelope is the body shape the frontend expects on every failed
// request: {"error": {"code": ..., "message": ...}}.
type errorEnvelope struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// errorHandlingMiddleware turns the last gin error of a request into the
// coded envelope. Handlers only ever attach HTTPErrors; anything else is
// coerced to a 500 by asHTTPError.
func errorHandlingMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		httpErr := asHTTPError(c.Errors.Last().Err)
		message := httpErr.Message
		if message == "" {
			message = httpErr.Error()
		}
		logRequestFailure(logger, c, httpErr)

		c.JSON(httpErr.Status, errorEnvelope{Error: errorDetail{
			Code:    httpErr.Code,
			Message: message,
		}})
	}
}

func logRequestFailure(logger *slog.Logger, c *gin.Context, httpErr *HTTPError) {
	attrs := []any{"code", httpErr.Code, "status", httpErr.Status, "path", c.Request.URL.Path, "error", httpErr.Err}
	if httpErr.Status >= http.StatusInternalServerError {
		logger.Error("request failed", attrs...)
		return
	}
	logger.Warn("request failed", attrs...)
}

func rateLimitMiddleware(cfg config.RateLimitConfig, logger *slog.Logger) gin.HandlerFunc {
	if !cfg.Enabled || cfg.RequestsPerMinute <= 0 {
		return func(c *gin.Context) { c.Next() }
	}

	limiter := newClientLimiter(cfg)
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if limiter.allow(ip) {
			c.Next()
			return
		}
		logger.Warn("rate limit exceeded", "ip", ip, "path", c.Request.URL.Path)
		abortWithError(c, newHTTPError(http.StatusTooManyRequests, "rate_limit_exceeded", "too many requests", nil))
	}
}

// clientLimiter is a token bucket per client IP. Buckets refill continuously
// at the configured per-minute rate and idle entries are swept on use.
type clientLimiter struct {
	mu      sync.Mutex
	buckets map[string]*tokenBucket
	rate    float64
	burst   float64
	idleTTL time.Duration
}

type tokenBucket struct {
	tokens   float64
	lastSeen time.Time
}

func newClientLimiter(cfg config.RateLimitConfig) *clientLimiter {
	return &clientLimiter{
		buckets: make(map[string]*tokenBucket),
		rate:    float64(cfg.RequestsPerMinute),
		burst:   float64(cfg.Burst),
		idleTTL: 5 * time.Minute,
	}
}

func (l *clientLimiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	bucket, ok := l.buckets[ip]
	if !ok {
		bucket = &tokenBucket{tokens: l.burst, lastSeen: now}
		l.buckets[ip] = bucket
	} else {
		idleMinutes := now.Sub(bucket.lastSeen).Minutes()
		if idleMinutes > 0 {
			bucket.tokens = math.Min(l.burst, bucket.tokens+idleMinutes*l.rate)
		}
		bucket.lastSeen = now
	}
	l.sweepLocked(now)

	if bucket.tokens < 1 {
		return false
	}
	bucket.tokens--
	return true
}

func (l *clientLimiter) sweepLocked(now time.Time) {
	for ip, bucket := range l.buckets {
		if now.Sub(bucket.lastSeen) > l.idleTTL {
			delete(l.buckets, ip)
		}
	}
}
