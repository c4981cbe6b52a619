package http

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/garyjia/vehicle-service-tracker/internal/application/service"
)

const userIDKey = "user_id"

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		s.logger.Info("HTTP request",
			"method", method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", time.Since(start).String(),
			"client_ip", c.ClientIP(),
		)
	}
}

// metricsMiddleware labels requests by route template so ids do not explode cardinality
func metricsMiddleware(observer RequestObserver) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		observer.ObserveHTTP(c.Request.Method, c.FullPath(), c.Writer.Status(), time.Since(start))
	}
}

// authMiddleware requires a valid bearer access token and stores its user id
func authMiddleware(auth service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		scheme, token, found := strings.Cut(header, " ")
		if !found || !strings.EqualFold(scheme, "bearer") || token == "" {
			c.Header("WWW-Authenticate", "Bearer")
			fail(c, http.StatusUnauthorized, "unauthorized", "missing bearer token")
			return
		}

		userID, err := auth.ParseAccessToken(strings.TrimSpace(token))
		if err != nil {
			c.Header("WWW-Authenticate", "Bearer")
			fail(c, http.StatusUnauthorized, "unauthorized", "invalid or expired token")
			return
		}

		c.Set(userIDKey, userID)
		c.Next()
	}
}

// currentUser returns the id set by authMiddleware
func currentUser(c *gin.Context) int64 {
	return c.GetInt64(userIDKey)
}

// ipRateLimiter keeps one token bucket per client IP
type ipRateLimiter struct {
	limit rate.Limit
	burst int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func newIPRateLimiter(rps float64, burst int) *ipRateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &ipRateLimiter{
		limit:    rate.Limit(rps),
		burst:    burst,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (l *ipRateLimiter) get(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	lim, ok := l.limiters[ip]
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.limiters[ip] = lim
	}
	return lim
}

func (l *ipRateLimiter) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if l.limit <= 0 {
			c.Next()
			return
		}
		if !l.get(c.ClientIP()).Allow() {
			fail(c, http.StatusTooManyRequests, "rate_limited", "too many attempts, retry later")
			return
		}
		c.Next()
	}
}
