package dailymetrics

import (
	"github.com/flowpulse/flowpulse/internal/dailymetrics/domain"
	"github.com/flowpulse/flowpulse/internal/dailymetrics/repository"
	"github.com/flowpulse/flowpulse/internal/dailymetrics/service"
	"go.uber.org/fx"
)

var Module = fx.Module("dailymetrics.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
	fx.Provide(func(svc domain.Service) domain.Recorder { return svc }),
)
