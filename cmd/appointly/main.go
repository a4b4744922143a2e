package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/appointly/internal/clock"
	"github.com/smallbiznis/appointly/internal/config"
	"github.com/smallbiznis/appointly/internal/migration"
	"github.com/smallbiznis/appointly/internal/observability"
	"github.com/smallbiznis/appointly/internal/scheduler"
	"github.com/smallbiznis/appointly/internal/server"
	"github.com/smallbiznis/appointly/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,

		// Schema must exist before the enforcer and services touch it.
		migration.Module,

		server.Module,
		scheduler.Module,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.SnowflakeNode)
}
