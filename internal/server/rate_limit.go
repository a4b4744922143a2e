package server

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/appointly/internal/actor"
	"github.com/smallbiznis/appointly/internal/observability/logger"
	"github.com/smallbiznis/appointly/internal/ratelimit"
	"go.uber.org/zap"
)

type bookingLimiter interface {
	Enabled() bool
	AllowBookingCreate(ctx context.Context, subject string) (*ratelimit.Result, error)
}

// BookingCreateRateLimit throttles booking creation per user, and per client IP
// for guests. Limiter errors fail open.
func (s *Server) BookingCreateRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.limiter == nil || !s.limiter.Enabled() {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		endpoint := normalizeRateLimitEndpoint(c)
		subject := rateLimitSubject(c, actor.FromContext(ctx))

		res, err := s.limiter.AllowBookingCreate(ctx, subject)
		if err != nil {
			logger.FromContext(ctx).Warn("booking create rate limit check failed", zap.Error(err))
		}
		if res != nil && !res.Allowed {
			logger.FromContext(ctx).Warn("booking create rate limit exceeded",
				zap.String("endpoint", endpoint),
				zap.String("subject", subject),
			)
			s.obsMetrics.RecordRateLimitDenied(ctx, endpoint)

			c.Header("Retry-After", strconv.Itoa(retryAfterSeconds(res.RetryAfter)))
			c.Header("X-RateLimit-Limit", strconv.Itoa(res.Limit))
			c.Header("X-RateLimit-Remaining", "0")
			AbortWithError(c, ErrRateLimited)
			return
		}
		c.Next()
	}
}

func rateLimitSubject(c *gin.Context, a actor.Actor) string {
	if a.IsUser() {
		return string(a.Type) + ":" + a.ID()
	}
	return string(actor.TypeGuest) + ":" + c.ClientIP()
}

func retryAfterSeconds(d time.Duration) int {
	if d <= 0 {
		return 1
	}
	secs := int((d + time.Second - 1) / time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}

func normalizeRateLimitEndpoint(c *gin.Context) string {
	if c == nil {
		return "unknown"
	}
	endpoint := strings.TrimSpace(c.FullPath())
	if endpoint == "" {
		endpoint = strings.TrimSpace(c.Request.URL.Path)
	}
	if endpoint == "" {
		endpoint = "unknown"
	}
	return endpoint
}
