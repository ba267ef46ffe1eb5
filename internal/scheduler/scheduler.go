package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/flowpulse/flowpulse/internal/clock"
	"github.com/flowpulse/flowpulse/internal/config"
	dailymetricsdomain "github.com/flowpulse/flowpulse/internal/dailymetrics/domain"
	obsmetrics "github.com/flowpulse/flowpulse/internal/observability/metrics"
	"github.com/flowpulse/flowpulse/internal/orgcontext"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const jobMetricsReconcile = "metrics_reconcile"

var ErrInvalidConfig = errors.New("invalid_scheduler_config")

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	MetricsSvc    dailymetricsdomain.Service
	MetricsConfig *config.MetricsConfigHolder
	GenID         *snowflake.Node
	Clock         clock.Clock
	Config        Config              `optional:"true"`
	Obs           *obsmetrics.Metrics `optional:"true"`
}

// Scheduler periodically recounts closed days so the rollup converges on
// the source tables even if an increment was lost.
type Scheduler struct {
	db            *gorm.DB
	log           *zap.Logger
	cfg           Config
	genID         *snowflake.Node
	clock         clock.Clock
	metricsSvc    dailymetricsdomain.Service
	metricsConfig *config.MetricsConfigHolder
	obs           *obsmetrics.Metrics
}

func New(p Params) (*Scheduler, error) {
	if p.DB == nil || p.Log == nil || p.MetricsSvc == nil || p.GenID == nil || p.Clock == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		db:            p.DB,
		log:           p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:           p.Config.withDefaults(),
		genID:         p.GenID,
		clock:         p.Clock,
		metricsSvc:    p.MetricsSvc,
		metricsConfig: p.MetricsConfig,
		obs:           p.Obs,
	}, nil
}

func (s *Scheduler) runJob(parent context.Context, name string, timeout time.Duration, fn func(ctx context.Context) error) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ctx, run, owner := s.ensureJobRun(ctx, name)
	if owner {
		s.logJobStart(ctx, run)
	}

	err := fn(ctx)
	if owner {
		if err != nil && run.errorCount == 0 {
			run.IncError()
		}
		s.logJobFinish(ctx, run)
	}

	if err == nil {
		s.obs.RecordJobRun(parent, name, "ok", s.clock.Now().Sub(start))
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		s.obs.RecordJobRun(parent, name, "timeout", s.clock.Now().Sub(start))
		s.logger(ctx).Warn("job timed out",
			zap.String("job", name),
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	s.obs.RecordJobRun(parent, name, "error", s.clock.Now().Sub(start))
	return fmt.Errorf("%s: %w", name, err)
}

func (s *Scheduler) RunOnce(ctx context.Context) error {
	return s.runJob(ctx, jobMetricsReconcile, s.cfg.JobTimeout, s.ReconcileMetricsJob)
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Error("scheduler run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// ReconcileMetricsJob rebuilds the rollup of each of the last LookbackDays
// closed days for every organization with activity on that day. Today is
// skipped because live increments are still landing.
func (s *Scheduler) ReconcileMetricsJob(ctx context.Context) error {
	run := jobRunFromContext(ctx)
	loc := s.metricsConfig.Get().Location()
	today := clock.StartOfDay(s.clock.Now(), loc)

	var errs error
	for offset := s.cfg.LookbackDays; offset >= 1; offset-- {
		start := today.AddDate(0, 0, -offset)
		end := start.AddDate(0, 0, 1)
		day := start.Format(dailymetricsdomain.DateLayout)

		orgIDs, err := s.activeOrgs(ctx, start.UTC(), end.UTC())
		if err != nil {
			return err
		}

		for _, orgID := range orgIDs {
			if err := ctx.Err(); err != nil {
				return err
			}
			orgCtx := orgcontext.WithOrgID(ctx, orgID)
			if _, err := s.metricsSvc.Rebuild(orgCtx, dailymetricsdomain.RebuildRequest{Date: day}); err != nil {
				s.logRebuildError(ctx, run, orgID, day, err)
				errs = errors.Join(errs, err)
				continue
			}
			run.AddProcessed(1)
		}
	}
	return errs
}

// activeOrgs lists organizations with a non-test send or reply in [start, end).
func (s *Scheduler) activeOrgs(ctx context.Context, start, end time.Time) ([]snowflake.ID, error) {
	var orgIDs []snowflake.ID
	err := s.db.WithContext(ctx).Raw(
		`SELECT org_id FROM responses
		 WHERE is_test = ? AND responded_at >= ? AND responded_at < ?
		 UNION
		 SELECT org_id FROM deliveries
		 WHERE is_test = ? AND sent_at IS NOT NULL AND sent_at >= ? AND sent_at < ?
		 ORDER BY org_id`,
		false, start, end,
		false, start, end,
	).Scan(&orgIDs).Error
	if err != nil {
		return nil, err
	}
	return orgIDs, nil
}
