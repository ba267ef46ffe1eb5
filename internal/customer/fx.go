package customer

import (
	"github.com/flowpulse/flowpulse/internal/customer/repository"
	"github.com/flowpulse/flowpulse/internal/customer/service"
	"go.uber.org/fx"
)

var Module = fx.Module("customer.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
