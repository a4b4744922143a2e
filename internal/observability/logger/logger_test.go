package logger

import (
	"context"
	"testing"
	"time"

	obscontext "github.com/smallbiznis/appointly/internal/observability/context"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

func TestWithContextAddsCorrelationFields(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	base := zap.New(core)

	ctx := obscontext.WithRequestID(context.Background(), "req-1")
	ctx = obscontext.WithActor(ctx, "client", "7")
	WithContext(ctx, base).Info("hello")

	entries := logs.All()
	if assert.Len(t, entries, 1) {
		fields := entries[0].ContextMap()
		assert.Equal(t, "req-1", fields["request_id"])
		assert.Equal(t, "client", fields["actor_type"])
		assert.Equal(t, "7", fields["actor_id"])
	}
}

func TestSQLOperation(t *testing.T) {
	assert.Equal(t, "SELECT", sqlOperation("select id from bookings"))
	assert.Equal(t, "UPDATE", sqlOperation("  UPDATE users SET credits = 1"))
	assert.Equal(t, "UNKNOWN", sqlOperation(""))
}

func TestGormLoggerSilentSkipsTrace(t *testing.T) {
	l := NewGormLogger(DefaultGormLoggerConfig()).LogMode(gormlogger.Silent)
	called := false
	l.Trace(context.Background(), time.Now(), func() (string, int64) {
		called = true
		return "", 0
	}, nil)
	assert.False(t, called)
}
