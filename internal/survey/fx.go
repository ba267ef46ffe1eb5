package survey

import (
	"github.com/flowpulse/flowpulse/internal/survey/service"
	"go.uber.org/fx"
)

var Module = fx.Module("survey.service",
	fx.Provide(service.New),
)
