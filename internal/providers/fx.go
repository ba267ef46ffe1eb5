package providers

import (
	"github.com/flowpulse/flowpulse/internal/providers/pdf"
	"github.com/flowpulse/flowpulse/internal/providers/whatsapp"
	"go.uber.org/fx"
)

var Module = fx.Module("providers",
	pdf.Module,
	whatsapp.Module,
)
