package delivery

import (
	"github.com/flowpulse/flowpulse/internal/delivery/domain"
	"github.com/flowpulse/flowpulse/internal/delivery/repository"
	"github.com/flowpulse/flowpulse/internal/delivery/service"
	"go.uber.org/fx"
)

var Module = fx.Module("delivery.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
	fx.Provide(func(svc domain.Service) domain.Matcher { return svc }),
)
