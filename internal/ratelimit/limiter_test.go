package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/smallbiznis/appointly/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestAllowBookingCreate(t *testing.T) {
	client, mock := redismock.NewClientMock()
	limiter := newLimiter(client, config.RateLimitConfig{Enabled: true, BookingCreateRate: 1, BookingCreateBurst: 5}, zap.NewNop())
	hash := limiter.bucket.script.Hash()
	key := "ratelimit:booking:create:guest:203.0.113.9"

	mock.ExpectEvalSha(hash, []string{key}, float64(1), 5, int64(10000)).
		SetVal([]interface{}{int64(1), "4", int64(1772366400000)})
	mock.ExpectEvalSha(hash, []string{key}, float64(1), 5, int64(10000)).
		SetVal([]interface{}{int64(0), "0.25", int64(1772366400000)})

	res, err := limiter.AllowBookingCreate(context.Background(), "guest:203.0.113.9")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, 4, res.Remaining)
	assert.Equal(t, 5, res.Limit)

	res, err = limiter.AllowBookingCreate(context.Background(), "guest:203.0.113.9")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 750*time.Millisecond, res.RetryAfter)
	assert.Equal(t, time.UnixMilli(1772366400000).Add(750*time.Millisecond), res.ResetTime)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAllowBookingCreateFailsOpen(t *testing.T) {
	client, mock := redismock.NewClientMock()
	limiter := newLimiter(client, config.RateLimitConfig{Enabled: true, BookingCreateRate: 2, BookingCreateBurst: 4}, zap.NewNop())
	boom := errors.New("connection refused")
	mock.ExpectEvalSha(limiter.bucket.script.Hash(), []string{"ratelimit:booking:create:client:1"}, float64(2), 4, int64(4000)).
		SetErr(boom)

	res, err := limiter.AllowBookingCreate(context.Background(), "client:1")
	assert.ErrorIs(t, err, boom)
	assert.True(t, res.Allowed)
}

func TestNilLimiterAllows(t *testing.T) {
	var limiter *Limiter
	res, err := limiter.AllowBookingCreate(context.Background(), "anyone")
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	disabled, err := NewLimiter(config.Config{}, nil, zap.NewNop())
	require.NoError(t, err)
	assert.Nil(t, disabled)

	_, err = NewLimiter(config.Config{RateLimit: config.RateLimitConfig{Enabled: true, BookingCreateRate: 1, BookingCreateBurst: 1}}, nil, zap.NewNop())
	assert.Error(t, err)
}
