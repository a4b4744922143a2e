package main

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/appointly/internal/clock"
	"github.com/smallbiznis/appointly/internal/config"
	"github.com/smallbiznis/appointly/internal/ledger"
	"github.com/smallbiznis/appointly/internal/locking"
	"github.com/smallbiznis/appointly/internal/observability"
	paymentrepository "github.com/smallbiznis/appointly/internal/payment/repository"
	"github.com/smallbiznis/appointly/internal/scheduler"
	"github.com/smallbiznis/appointly/pkg/db"
	"go.uber.org/fx"
)

// Standalone maintenance worker. Run the API with SCHEDULER_ENABLED=false
// when this binary is deployed.
func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		locking.Module,

		// Domain services required by scheduler
		ledger.Module,
		fx.Provide(paymentrepository.Provide),

		// No server module!
		fx.Provide(scheduler.ProvideConfig),
		fx.Provide(scheduler.New),
		fx.Invoke(StartScheduler),
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.SnowflakeNode)
}

func StartScheduler(lc fx.Lifecycle, s *scheduler.Scheduler) {
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go s.RunForever(ctx)
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}
