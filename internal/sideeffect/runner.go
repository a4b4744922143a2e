// Package sideeffect runs post-commit work that must never fail the committed operation.
package sideeffect

import (
	"context"
	"time"

	obsmetrics "github.com/smallbiznis/appointly/internal/observability/metrics"
	"github.com/sourcegraph/conc"
	"go.uber.org/zap"
)

const defaultTimeout = 5 * time.Second

type Effect struct {
	Name string
	Run  func(ctx context.Context) error
}

// Runner executes effects concurrently, each under its own timeout and detached
// from the caller's cancellation. Errors and panics are logged and counted.
type Runner struct {
	log     *zap.Logger
	timeout time.Duration
	metrics *obsmetrics.Metrics
}

func NewRunner(log *zap.Logger, timeout time.Duration, metrics *obsmetrics.Metrics) *Runner {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{log: log.Named("sideeffect"), timeout: timeout, metrics: metrics}
}

// Run blocks until every effect has finished or timed out.
func (r *Runner) Run(ctx context.Context, effects ...Effect) {
	if len(effects) == 0 {
		return
	}
	base := context.WithoutCancel(ctx)

	var wg conc.WaitGroup
	for _, effect := range effects {
		if effect.Run == nil {
			continue
		}
		wg.Go(func() {
			effectCtx, cancel := context.WithTimeout(base, r.timeout)
			defer cancel()
			if err := effect.Run(effectCtx); err != nil {
				r.log.Warn("side effect failed", zap.String("effect", effect.Name), zap.Error(err))
				r.metrics.RecordSideEffectFailure(ctx, effect.Name)
			}
		})
	}
	if recovered := wg.WaitAndRecover(); recovered != nil {
		r.log.Error("side effect panicked", zap.String("panic", recovered.String()))
		r.metrics.RecordSideEffectFailure(ctx, "panic")
	}
}
