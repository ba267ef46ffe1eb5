package pdf

import (
	"context"
	"io"
)

// Provider renders printable NPS reports.
type Provider interface {
	GenerateNPSReport(ctx context.Context, data ReportData) (io.Reader, error)
}

func New() Provider {
	return &MarotoProvider{}
}
