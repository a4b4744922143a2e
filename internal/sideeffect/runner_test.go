package sideeffect

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestRunExecutesEveryEffectDespiteFailures(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	runner := NewRunner(zap.New(core), time.Second, nil)

	var ran atomic.Int32
	runner.Run(context.Background(),
		Effect{Name: "ok", Run: func(context.Context) error { ran.Add(1); return nil }},
		Effect{Name: "fails", Run: func(context.Context) error { ran.Add(1); return errors.New("smtp down") }},
		Effect{Name: "panics", Run: func(context.Context) error { ran.Add(1); panic("boom") }},
	)

	assert.Equal(t, int32(3), ran.Load())
	assert.Equal(t, 1, logs.FilterMessage("side effect failed").Len())
	assert.Equal(t, 1, logs.FilterMessage("side effect panicked").Len())
}

func TestRunDetachesFromCallerCancellationAndBoundsTime(t *testing.T) {
	runner := NewRunner(zap.NewNop(), 20*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var sawDeadline atomic.Bool
	var callerCancelled atomic.Bool
	runner.Run(ctx, Effect{Name: "slow", Run: func(ctx context.Context) error {
		if ctx.Err() != nil {
			callerCancelled.Store(true)
		}
		<-ctx.Done()
		sawDeadline.Store(errors.Is(ctx.Err(), context.DeadlineExceeded))
		return ctx.Err()
	}})

	assert.False(t, callerCancelled.Load())
	assert.True(t, sawDeadline.Load())
}
