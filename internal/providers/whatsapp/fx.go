package whatsapp

import (
	"github.com/flowpulse/flowpulse/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("providers.whatsapp",
	fx.Provide(NewFromConfig),
)

// NewFromConfig returns the mock provider unless a vendor client is wired in.
func NewFromConfig(cfg config.Config, log *zap.Logger) Provider {
	if cfg.Kapso.UseMock {
		log.Named("providers.whatsapp").Info("using mock whatsapp provider")
		return NewMockProvider()
	}
	log.Named("providers.whatsapp").Warn("no whatsapp vendor client configured, sends are dropped")
	return &NoOpProvider{}
}
