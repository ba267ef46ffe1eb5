package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/flowpulse/flowpulse/internal/clock"
	"github.com/flowpulse/flowpulse/internal/config"
	dailymetricsdomain "github.com/flowpulse/flowpulse/internal/dailymetrics/domain"
	dailymetricsrepo "github.com/flowpulse/flowpulse/internal/dailymetrics/repository"
	dailymetricsservice "github.com/flowpulse/flowpulse/internal/dailymetrics/service"
	"github.com/flowpulse/flowpulse/internal/migration"
	"github.com/flowpulse/flowpulse/internal/nps"
	"github.com/flowpulse/flowpulse/internal/orgcontext"
	responsedomain "github.com/flowpulse/flowpulse/internal/response/domain"
	"github.com/flowpulse/flowpulse/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	db         *gorm.DB
	node       *snowflake.Node
	metricsSvc dailymetricsdomain.Service
	sched      *Scheduler
}

func setupScheduler(t *testing.T, now time.Time) fixture {
	t.Helper()

	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, migration.AutoMigrate(conn))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	metricsCfg, err := config.NewMetricsConfig("UTC", config.AmbiguousMatchMostRecent)
	require.NoError(t, err)
	holder := config.NewStaticMetricsConfigHolder(metricsCfg)
	fake := clock.NewFakeClock(now)

	metricsSvc := dailymetricsservice.New(dailymetricsservice.Params{
		DB:     conn,
		Log:    zap.NewNop(),
		Repo:   dailymetricsrepo.Provide(),
		Clock:  fake,
		Config: holder,
	})

	sched, err := New(Params{
		DB:            conn,
		Log:           zap.NewNop(),
		MetricsSvc:    metricsSvc,
		MetricsConfig: holder,
		GenID:         node,
		Clock:         fake,
		Config:        Config{LookbackDays: 2},
	})
	require.NoError(t, err)

	return fixture{db: conn, node: node, metricsSvc: metricsSvc, sched: sched}
}

func (f fixture) seedResponse(t *testing.T, orgID snowflake.ID, score int, at time.Time, isTest bool) {
	t.Helper()
	require.NoError(t, f.db.Create(&responsedomain.Response{
		ID:            f.node.Generate(),
		OrgID:         orgID,
		SurveyID:      f.node.Generate(),
		DeliveryID:    f.node.Generate(),
		CustomerID:    f.node.Generate(),
		CustomerPhone: "5511999990000",
		Score:         score,
		Category:      nps.Categorize(score),
		IsTest:        isTest,
		RespondedAt:   at,
		CreatedAt:     at,
	}).Error)
}

func (f fixture) day(t *testing.T, orgID snowflake.ID, date string) []dailymetricsdomain.DailyOrgMetrics {
	t.Helper()
	ctx := orgcontext.WithOrgID(context.Background(), orgID)
	rows, err := f.metricsSvc.Daily(ctx, dailymetricsdomain.RangeRequest{From: date, To: date})
	require.NoError(t, err)
	return rows
}

func TestReconcileRebuildsClosedDays(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	f := setupScheduler(t, now)

	yesterday := time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC)
	f.seedResponse(t, 1, 9, yesterday, false)
	f.seedResponse(t, 1, 2, yesterday, false)
	f.seedResponse(t, 2, 8, yesterday.AddDate(0, 0, -1), false)
	f.seedResponse(t, 3, 10, yesterday, true)
	f.seedResponse(t, 1, 10, now, false)

	require.NoError(t, f.sched.RunOnce(context.Background()))

	rows := f.day(t, 1, "2026-03-09")
	require.Len(t, rows, 1)
	assert.Equal(t, int64(1), rows[0].PromoterCount)
	assert.Equal(t, int64(1), rows[0].DetractorCount)
	assert.Equal(t, int64(2), rows[0].TotalResponses)
	assert.Equal(t, "0.00", rows[0].NPSScore)
	assert.Nil(t, rows[0].ResponseRate)

	rows = f.day(t, 2, "2026-03-08")
	require.Len(t, rows, 1)
	assert.Equal(t, int64(1), rows[0].PassiveCount)

	assert.Empty(t, f.day(t, 3, "2026-03-09"), "test replies never create rollup rows")
	assert.Empty(t, f.day(t, 1, "2026-03-10"), "today is left to live increments")
}

func TestReconcileIsIdempotent(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	f := setupScheduler(t, now)
	f.seedResponse(t, 1, 9, time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC), false)

	require.NoError(t, f.sched.RunOnce(context.Background()))
	require.NoError(t, f.sched.RunOnce(context.Background()))

	rows := f.day(t, 1, "2026-03-09")
	require.Len(t, rows, 1)
	assert.Equal(t, int64(1), rows[0].TotalResponses)
	assert.Equal(t, "100.00", rows[0].NPSScore)
}

func TestRunJobTreatsTimeoutAsSoftFailure(t *testing.T) {
	f := setupScheduler(t, time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))

	err := f.sched.runJob(context.Background(), "timeout_job", 5*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	assert.NoError(t, err)

	boom := errors.New("boom")
	err = f.sched.runJob(context.Background(), "failing_job", time.Second, func(ctx context.Context) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestNewRequiresDependencies(t *testing.T) {
	_, err := New(Params{Log: zap.NewNop()})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	assert.Equal(t, time.Hour, cfg.RunInterval)
	assert.Equal(t, 2, cfg.LookbackDays)
	assert.Equal(t, 5*time.Minute, cfg.JobTimeout)

	provided := ProvideConfig(config.Config{Reconcile: config.ReconcileConfig{Enabled: true, IntervalSecs: 60, LookbackDays: 7}})
	assert.True(t, provided.Enabled)
	assert.Equal(t, time.Minute, provided.RunInterval)
	assert.Equal(t, 7, provided.LookbackDays)
}
