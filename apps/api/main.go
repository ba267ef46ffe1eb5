package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/flowpulse/flowpulse/internal/clock"
	"github.com/flowpulse/flowpulse/internal/config"
	"github.com/flowpulse/flowpulse/internal/customer"
	"github.com/flowpulse/flowpulse/internal/dailymetrics"
	"github.com/flowpulse/flowpulse/internal/delivery"
	"github.com/flowpulse/flowpulse/internal/observability"
	"github.com/flowpulse/flowpulse/internal/providers"
	"github.com/flowpulse/flowpulse/internal/response"
	"github.com/flowpulse/flowpulse/internal/server"
	"github.com/flowpulse/flowpulse/internal/survey"
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
		providers.Module,

		survey.Module,
		customer.Module,
		delivery.Module,
		response.Module,
		dailymetrics.Module,

		fx.Provide(server.NewEngine),
		fx.Provide(server.NewServer),
		fx.Invoke(func(s *server.Server) {
			s.RegisterAPIRoutes()
		}),
		fx.Invoke(server.RunHTTP),
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.SnowflakeNode)
}
