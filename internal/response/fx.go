package response

import (
	"github.com/flowpulse/flowpulse/internal/response/repository"
	"github.com/flowpulse/flowpulse/internal/response/service"
	"go.uber.org/fx"
)

var Module = fx.Module("response.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
