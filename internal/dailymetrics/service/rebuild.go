package service

import (
	"context"
	"strings"
	"time"

	"github.com/flowpulse/flowpulse/internal/dailymetrics/domain"
	"github.com/flowpulse/flowpulse/internal/orgcontext"
	"github.com/flowpulse/flowpulse/pkg/rls"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Rebuild overwrites one closed day's counters with a recount of the source
// tables. Day boundaries follow the configured metrics timezone. Today is
// rejected because live increments landing between the recount and the write
// would be lost. An empty date means yesterday.
func (s *Service) Rebuild(ctx context.Context, req domain.RebuildRequest) (*domain.DailyOrgMetrics, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return nil, domain.ErrInvalidOrganization
	}

	loc := s.location()
	today := s.today(s.clock.Now())
	day := today.AddDate(0, 0, -1)
	if raw := strings.TrimSpace(req.Date); raw != "" {
		parsed, err := time.Parse(domain.DateLayout, raw)
		if err != nil {
			return nil, domain.ErrInvalidDate
		}
		day = parsed
	}
	if !day.Before(today) {
		return nil, domain.ErrDayNotClosed
	}
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, loc)
	end := start.AddDate(0, 0, 1)

	var rebuilt *domain.DailyOrgMetrics
	err := rls.Transaction(s.db.WithContext(ctx), orgID, func(tx *gorm.DB) error {
		counts, err := s.repo.CountSources(ctx, tx, orgID, start.UTC(), end.UTC())
		if err != nil {
			return err
		}
		if err := s.repo.Replace(ctx, tx, orgID, day, counts, s.clock.Now().UTC()); err != nil {
			return err
		}
		if err := s.refreshDerived(ctx, tx, orgID, day); err != nil {
			return err
		}
		rebuilt, err = s.repo.Find(ctx, tx, orgID, day)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("daily metrics rebuilt",
		zap.String("org_id", orgID.String()),
		zap.String("metric_date", day.Format(domain.DateLayout)),
		zap.Int64("total_responses", rebuilt.TotalResponses),
		zap.Int64("total_sent", rebuilt.TotalSent),
	)
	return rebuilt, nil
}
