package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/flowpulse/flowpulse/internal/clock"
	"github.com/flowpulse/flowpulse/internal/config"
	"github.com/flowpulse/flowpulse/internal/dailymetrics/domain"
	"github.com/flowpulse/flowpulse/internal/nps"
	"github.com/flowpulse/flowpulse/internal/orgcontext"
	"github.com/flowpulse/flowpulse/internal/providers/pdf"
	"github.com/flowpulse/flowpulse/pkg/rls"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	Repo   domain.Repository
	Clock  clock.Clock
	Config *config.MetricsConfigHolder
	PDF    pdf.Provider `optional:"true"`
}

type Service struct {
	db     *gorm.DB
	log    *zap.Logger
	repo   domain.Repository
	clock  clock.Clock
	config *config.MetricsConfigHolder
	pdf    pdf.Provider
}

func New(p Params) domain.Service {
	c := p.Clock
	if c == nil {
		c = clock.New()
	}
	return &Service{
		db:     p.DB,
		log:    p.Log.Named("dailymetrics.service"),
		repo:   p.Repo,
		clock:  c,
		config: p.Config,
		pdf:    p.PDF,
	}
}

func (s *Service) RecordResponse(ctx context.Context, tx *gorm.DB, orgID snowflake.ID, event domain.ResponseEvent) error {
	if event.IsTest {
		return nil
	}
	if orgID == 0 {
		return domain.ErrInvalidOrganization
	}

	delta := domain.Counts{Responses: 1}
	switch event.Category {
	case nps.CategoryPromoter:
		delta.Promoters = 1
	case nps.CategoryPassive:
		delta.Passives = 1
	case nps.CategoryDetractor:
		delta.Detractors = 1
	default:
		return domain.ErrInvalidCategory
	}

	return s.apply(ctx, tx, orgID, delta)
}

func (s *Service) RecordSent(ctx context.Context, tx *gorm.DB, orgID snowflake.ID) error {
	if orgID == 0 {
		return domain.ErrInvalidOrganization
	}
	return s.apply(ctx, tx, orgID, domain.Counts{Sent: 1})
}

func (s *Service) apply(ctx context.Context, tx *gorm.DB, orgID snowflake.ID, delta domain.Counts) error {
	if tx == nil {
		return rls.Transaction(s.db.WithContext(ctx), orgID, func(tx *gorm.DB) error {
			return s.applyInTx(ctx, tx, orgID, delta)
		})
	}
	return s.applyInTx(ctx, tx, orgID, delta)
}

func (s *Service) applyInTx(ctx context.Context, tx *gorm.DB, orgID snowflake.ID, delta domain.Counts) error {
	now := s.clock.Now()
	date := s.today(now)

	if err := s.repo.Increment(ctx, tx, orgID, date, delta, now.UTC()); err != nil {
		return err
	}
	return s.refreshDerived(ctx, tx, orgID, date)
}

// refreshDerived recomputes nps_score and response_rate from the counters the
// current transaction can see.
func (s *Service) refreshDerived(ctx context.Context, tx *gorm.DB, orgID snowflake.ID, date time.Time) error {
	row, err := s.repo.Find(ctx, tx, orgID, date)
	if err != nil {
		return err
	}
	if row == nil {
		return nil
	}

	score, rate := derive(row.PromoterCount, row.DetractorCount, row.TotalResponses, row.TotalSent)
	return s.repo.UpdateDerived(ctx, tx, orgID, date, score, rate)
}

func derive(promoters, detractors, responses, sent int64) (string, *string) {
	score := nps.FormatDecimal(nps.Score(promoters, detractors, responses))
	var rate *string
	if value, ok := nps.ResponseRate(responses, sent); ok {
		formatted := nps.FormatDecimal(value)
		rate = &formatted
	}
	return score, rate
}

func (s *Service) location() *time.Location {
	return s.config.Get().Location()
}

// today is the metric date for now in the configured timezone.
func (s *Service) today(now time.Time) time.Time {
	return domain.MetricDate(clock.StartOfDay(now, s.location()))
}

func (s *Service) Daily(ctx context.Context, req domain.RangeRequest) ([]domain.DailyOrgMetrics, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return nil, domain.ErrInvalidOrganization
	}
	from, to, err := s.parseRange(req)
	if err != nil {
		return nil, err
	}
	return s.repo.ListRange(ctx, s.db, orgID, from, to)
}

func (s *Service) Summary(ctx context.Context, req domain.RangeRequest) (domain.Summary, error) {
	rows, err := s.Daily(ctx, req)
	if err != nil {
		return domain.Summary{}, err
	}
	from, to, _ := s.parseRange(req)
	return summarize(rows, from, to), nil
}

func summarize(rows []domain.DailyOrgMetrics, from, to time.Time) domain.Summary {
	summary := domain.Summary{
		From: from.Format(domain.DateLayout),
		To:   to.Format(domain.DateLayout),
		Days: len(rows),
	}
	for _, row := range rows {
		summary.PromoterCount += row.PromoterCount
		summary.PassiveCount += row.PassiveCount
		summary.DetractorCount += row.DetractorCount
		summary.TotalResponses += row.TotalResponses
		summary.TotalSent += row.TotalSent
	}
	summary.NPSScore, summary.ResponseRate = derive(
		summary.PromoterCount,
		summary.DetractorCount,
		summary.TotalResponses,
		summary.TotalSent,
	)
	return summary
}

// parseRange defaults to the last 30 days ending today.
func (s *Service) parseRange(req domain.RangeRequest) (time.Time, time.Time, error) {
	today := s.today(s.clock.Now())

	to := today
	if raw := strings.TrimSpace(req.To); raw != "" {
		parsed, err := time.Parse(domain.DateLayout, raw)
		if err != nil {
			return time.Time{}, time.Time{}, domain.ErrInvalidDate
		}
		to = parsed
	}

	from := to.AddDate(0, 0, -29)
	if raw := strings.TrimSpace(req.From); raw != "" {
		parsed, err := time.Parse(domain.DateLayout, raw)
		if err != nil {
			return time.Time{}, time.Time{}, domain.ErrInvalidDate
		}
		from = parsed
	}

	if from.After(to) || to.Sub(from) > domain.MaxRangeDays*24*time.Hour {
		return time.Time{}, time.Time{}, domain.ErrInvalidRange
	}
	return from, to, nil
}
