package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/appointly/internal/config"
	"go.uber.org/zap"
)

const keyBookingCreate = "ratelimit:booking:create:%s"

// Limiter throttles booking creation per caller. A nil or disabled Limiter
// allows everything.
type Limiter struct {
	bucket *TokenBucket
	log    *zap.Logger

	bookingRate  float64
	bookingBurst int
}

func NewLimiter(cfg config.Config, client *redis.Client, log *zap.Logger) (*Limiter, error) {
	limitCfg := cfg.RateLimit
	if !limitCfg.Enabled {
		return nil, nil
	}
	if client == nil {
		return nil, errors.New("rate limiting requires REDIS_ADDR")
	}
	if limitCfg.BookingCreateRate <= 0 || limitCfg.BookingCreateBurst <= 0 {
		return nil, fmt.Errorf("%w: booking create rate and burst must be positive", ErrInvalidLimit)
	}
	return newLimiter(client, limitCfg, log), nil
}

func newLimiter(client redis.Scripter, limitCfg config.RateLimitConfig, log *zap.Logger) *Limiter {
	return &Limiter{
		bucket:       NewTokenBucket(client),
		log:          log.Named("ratelimit"),
		bookingRate:  limitCfg.BookingCreateRate,
		bookingBurst: limitCfg.BookingCreateBurst,
	}
}

func (l *Limiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

// AllowBookingCreate fails open when Redis is unreachable; booking integrity does
// not depend on the limiter.
func (l *Limiter) AllowBookingCreate(ctx context.Context, subject string) (*Result, error) {
	if !l.Enabled() {
		return &Result{Allowed: true}, nil
	}
	key := fmt.Sprintf(keyBookingCreate, strings.TrimSpace(subject))
	res, err := l.bucket.Allow(ctx, key, l.bookingRate, l.bookingBurst)
	if err != nil {
		l.log.Warn("rate limit check failed; allowing request", zap.String("key", key), zap.Error(err))
		return &Result{Allowed: true, Limit: l.bookingBurst}, err
	}
	return res, nil
}
