package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/flowpulse/flowpulse/internal/clock"
	"github.com/flowpulse/flowpulse/internal/config"
	"github.com/flowpulse/flowpulse/internal/dailymetrics"
	"github.com/flowpulse/flowpulse/internal/observability"
	"github.com/flowpulse/flowpulse/internal/providers/pdf"
	"github.com/flowpulse/flowpulse/internal/scheduler"
	"github.com/flowpulse/flowpulse/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		pdf.Module,

		dailymetrics.Module,

		// Background reconciliation only, no HTTP listener
		scheduler.Module,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.SnowflakeNode)
}
