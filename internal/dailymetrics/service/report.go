package service

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/flowpulse/flowpulse/internal/dailymetrics/domain"
	"github.com/flowpulse/flowpulse/internal/orgcontext"
	"github.com/flowpulse/flowpulse/internal/providers/pdf"
)

var errReportUnavailable = errors.New("report_renderer_unavailable")

func (s *Service) Report(ctx context.Context, req domain.RangeRequest) (io.Reader, error) {
	if s.pdf == nil {
		return nil, errReportUnavailable
	}
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return nil, domain.ErrInvalidOrganization
	}
	from, to, err := s.parseRange(req)
	if err != nil {
		return nil, err
	}
	rows, err := s.repo.ListRange(ctx, s.db, orgID, from, to)
	if err != nil {
		return nil, err
	}

	summary := summarize(rows, from, to)
	data := pdf.ReportData{
		OrganizationID: orgID.String(),
		Period:         summary.From + " to " + summary.To,
		GeneratedAt:    s.clock.Now().UTC().Format(time.RFC3339),
		Summary:        reportRow("Total", summary.PromoterCount, summary.PassiveCount, summary.DetractorCount, summary.TotalResponses, summary.TotalSent, summary.NPSScore, summary.ResponseRate),
		Days:           make([]pdf.ReportRow, 0, len(rows)),
	}
	for _, row := range rows {
		data.Days = append(data.Days, reportRow(
			row.MetricDate.Format(domain.DateLayout),
			row.PromoterCount,
			row.PassiveCount,
			row.DetractorCount,
			row.TotalResponses,
			row.TotalSent,
			row.NPSScore,
			row.ResponseRate,
		))
	}

	return s.pdf.GenerateNPSReport(ctx, data)
}

func reportRow(label string, promoters, passives, detractors, responses, sent int64, score string, rate *string) pdf.ReportRow {
	row := pdf.ReportRow{
		Label:      label,
		Promoters:  promoters,
		Passives:   passives,
		Detractors: detractors,
		Responses:  responses,
		Sent:       sent,
		NPSScore:   score,
	}
	if rate != nil {
		row.ResponseRate = *rate
	}
	return row
}
