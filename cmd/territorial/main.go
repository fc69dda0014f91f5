package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/territorial/internal/assignment"
	"github.com/smallbiznis/territorial/internal/audit"
	"github.com/smallbiznis/territorial/internal/clock"
	"github.com/smallbiznis/territorial/internal/config"
	"github.com/smallbiznis/territorial/internal/lock"
	"github.com/smallbiznis/territorial/internal/migration"
	"github.com/smallbiznis/territorial/internal/observability"
	"github.com/smallbiznis/territorial/internal/resolver"
	"github.com/smallbiznis/territorial/internal/rule"
	"github.com/smallbiznis/territorial/internal/seed"
	"github.com/smallbiznis/territorial/internal/server"
	"github.com/smallbiznis/territorial/internal/territory"
	"github.com/smallbiznis/territorial/internal/trigger"
	"github.com/smallbiznis/territorial/pkg/db"
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
		migration.Module,
		lock.Module,

		// Functional Domains
		territory.Module,
		rule.Module,
		assignment.Module,
		resolver.Module,
		trigger.Module,
		audit.Module,
		seed.Module,

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.SnowflakeNode)
}
