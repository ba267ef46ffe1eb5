package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/flowpulse/flowpulse/internal/clock"
	"github.com/flowpulse/flowpulse/internal/config"
	"github.com/flowpulse/flowpulse/internal/dailymetrics/domain"
	"github.com/flowpulse/flowpulse/internal/dailymetrics/repository"
	"github.com/flowpulse/flowpulse/internal/nps"
	"github.com/flowpulse/flowpulse/internal/orgcontext"
	"github.com/flowpulse/flowpulse/internal/providers/pdf"
	"github.com/flowpulse/flowpulse/pkg/db"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type responseRow struct {
	ID          snowflake.ID `gorm:"primaryKey"`
	OrgID       snowflake.ID
	Category    string
	IsTest      bool
	RespondedAt time.Time
}

func (responseRow) TableName() string { return "responses" }

type deliveryRow struct {
	ID     snowflake.ID `gorm:"primaryKey"`
	OrgID  snowflake.ID
	IsTest bool
	SentAt *time.Time
}

func (deliveryRow) TableName() string { return "deliveries" }

type fixture struct {
	db    *gorm.DB
	svc   domain.Service
	clock *clock.FakeClock
	node  *snowflake.Node
}

func setupMetrics(t *testing.T, timezone string, now time.Time) fixture {
	t.Helper()

	dbConn, err := db.NewTest()
	if err != nil {
		t.Fatalf("new test db: %v", err)
	}
	if err := dbConn.AutoMigrate(&domain.DailyOrgMetrics{}, &responseRow{}, &deliveryRow{}); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("new snowflake node: %v", err)
	}
	cfg, err := config.NewMetricsConfig(timezone, config.AmbiguousMatchMostRecent)
	if err != nil {
		t.Fatalf("metrics config: %v", err)
	}
	fake := clock.NewFakeClock(now)

	svc := New(Params{
		DB:     dbConn,
		Log:    zap.NewNop(),
		Repo:   repository.Provide(),
		Clock:  fake,
		Config: config.NewStaticMetricsConfigHolder(cfg),
		PDF:    pdf.New(),
	})
	return fixture{db: dbConn, svc: svc, clock: fake, node: node}
}

func loadRow(t *testing.T, dbConn *gorm.DB, orgID snowflake.ID, day time.Time) domain.DailyOrgMetrics {
	t.Helper()
	var row domain.DailyOrgMetrics
	err := dbConn.Where("org_id = ? AND metric_date = ?", orgID, domain.MetricDate(day)).First(&row).Error
	if err != nil {
		t.Fatalf("load metrics row: %v", err)
	}
	return row
}

func record(t *testing.T, svc domain.Service, orgID snowflake.ID, score int) {
	t.Helper()
	err := svc.RecordResponse(context.Background(), nil, orgID, domain.ResponseEvent{
		Score:    score,
		Category: nps.Categorize(score),
	})
	if err != nil {
		t.Fatalf("record response %d: %v", score, err)
	}
}

func TestRecordResponseRoundTrip(t *testing.T) {
	now := time.Date(2026, 3, 9, 15, 0, 0, 0, time.UTC)
	f := setupMetrics(t, "UTC", now)
	orgID := snowflake.ID(1)

	for _, score := range []int{10, 9, 9, 8, 3} {
		record(t, f.svc, orgID, score)
	}

	row := loadRow(t, f.db, orgID, now)
	if row.PromoterCount != 3 || row.PassiveCount != 1 || row.DetractorCount != 1 {
		t.Fatalf("unexpected category counts %+v", row)
	}
	if row.TotalResponses != 5 {
		t.Fatalf("expected 5 responses, got %d", row.TotalResponses)
	}
	if row.NPSScore != "40.00" {
		t.Fatalf("expected nps 40.00, got %s", row.NPSScore)
	}
	if row.ResponseRate != nil {
		t.Fatalf("expected nil response rate without sends, got %s", *row.ResponseRate)
	}
}

func TestSingleFirstPromoterScoresHundred(t *testing.T) {
	now := time.Date(2026, 3, 9, 15, 0, 0, 0, time.UTC)
	f := setupMetrics(t, "UTC", now)

	record(t, f.svc, snowflake.ID(1), 9)

	row := loadRow(t, f.db, snowflake.ID(1), now)
	if row.PromoterCount != 1 || row.TotalResponses != 1 || row.NPSScore != "100.00" {
		t.Fatalf("unexpected row %+v", row)
	}
}

func TestRecordResponseIgnoresTestSends(t *testing.T) {
	now := time.Date(2026, 3, 9, 15, 0, 0, 0, time.UTC)
	f := setupMetrics(t, "UTC", now)

	err := f.svc.RecordResponse(context.Background(), nil, snowflake.ID(1), domain.ResponseEvent{
		Score:    10,
		Category: nps.CategoryPromoter,
		IsTest:   true,
	})
	if err != nil {
		t.Fatalf("record test response: %v", err)
	}

	var count int64
	if err := f.db.Model(&domain.DailyOrgMetrics{}).Count(&count).Error; err != nil {
		t.Fatalf("count rows: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no rollup rows, got %d", count)
	}
}

func TestRecordResponseRejectsUnknownCategory(t *testing.T) {
	f := setupMetrics(t, "UTC", time.Now())
	err := f.svc.RecordResponse(context.Background(), nil, snowflake.ID(1), domain.ResponseEvent{Score: 5, Category: "neutral"})
	if !errors.Is(err, domain.ErrInvalidCategory) {
		t.Fatalf("expected invalid category, got %v", err)
	}
}

// SQLite serializes these writers; the increment arithmetic itself is covered
// by the repository tests and row locking needs Postgres.
func TestConcurrentRecordSentLosesNothing(t *testing.T) {
	now := time.Date(2026, 3, 9, 15, 0, 0, 0, time.UTC)
	f := setupMetrics(t, "UTC", now)
	orgID := snowflake.ID(3)

	const sends = 25
	var wg sync.WaitGroup
	errs := make(chan error, sends)
	for i := 0; i < sends; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- f.svc.RecordSent(context.Background(), nil, orgID)
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("record sent: %v", err)
		}
	}

	record(t, f.svc, orgID, 9)

	row := loadRow(t, f.db, orgID, now)
	if row.TotalSent != sends {
		t.Fatalf("expected total_sent %d, got %d", sends, row.TotalSent)
	}
	if row.ResponseRate == nil || *row.ResponseRate != "4.00" {
		t.Fatalf("expected response rate 4.00, got %v", row.ResponseRate)
	}
}

func TestTodayFollowsConfiguredTimezone(t *testing.T) {
	// 01:30 UTC on the 10th is still the 9th in Sao Paulo.
	now := time.Date(2026, 3, 10, 1, 30, 0, 0, time.UTC)
	f := setupMetrics(t, "America/Sao_Paulo", now)

	record(t, f.svc, snowflake.ID(1), 7)

	var rows []domain.DailyOrgMetrics
	if err := f.db.Find(&rows).Error; err != nil {
		t.Fatalf("load rows: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if got := rows[0].MetricDate.Format(domain.DateLayout); got != "2026-03-09" {
		t.Fatalf("expected metric date 2026-03-09, got %s", got)
	}
}

func TestDailyAndSummary(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	f := setupMetrics(t, "UTC", start)
	orgID := snowflake.ID(1)
	ctx := orgcontext.WithOrgID(context.Background(), orgID)

	record(t, f.svc, orgID, 10)
	if err := f.svc.RecordSent(context.Background(), nil, orgID); err != nil {
		t.Fatalf("record sent: %v", err)
	}
	f.clock.Advance(24 * time.Hour)
	record(t, f.svc, orgID, 2)
	record(t, f.svc, snowflake.ID(2), 10)

	days, err := f.svc.Daily(ctx, domain.RangeRequest{From: "2026-03-01", To: "2026-03-02"})
	if err != nil {
		t.Fatalf("daily: %v", err)
	}
	if len(days) != 2 {
		t.Fatalf("expected 2 days, got %d", len(days))
	}
	if days[0].MetricDate.Format(domain.DateLayout) != "2026-03-01" {
		t.Fatalf("expected ascending dates, got %s first", days[0].MetricDate)
	}

	summary, err := f.svc.Summary(ctx, domain.RangeRequest{From: "2026-03-01", To: "2026-03-02"})
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if summary.TotalResponses != 2 || summary.NPSScore != "0.00" {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if summary.ResponseRate == nil || *summary.ResponseRate != "200.00" {
		t.Fatalf("unexpected response rate %v", summary.ResponseRate)
	}

	if _, err := f.svc.Daily(ctx, domain.RangeRequest{From: "2026-03-05", To: "2026-03-01"}); !errors.Is(err, domain.ErrInvalidRange) {
		t.Fatalf("expected invalid range, got %v", err)
	}
	if _, err := f.svc.Daily(ctx, domain.RangeRequest{From: "March"}); !errors.Is(err, domain.ErrInvalidDate) {
		t.Fatalf("expected invalid date, got %v", err)
	}
}

func TestRebuildRecountsSources(t *testing.T) {
	now := time.Date(2026, 3, 9, 18, 0, 0, 0, time.UTC)
	f := setupMetrics(t, "UTC", now)
	orgID := snowflake.ID(1)
	ctx := orgcontext.WithOrgID(context.Background(), orgID)

	respondedAt := time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC)
	rows := []responseRow{
		{ID: f.node.Generate(), OrgID: orgID, Category: "promoter", RespondedAt: respondedAt},
		{ID: f.node.Generate(), OrgID: orgID, Category: "promoter", RespondedAt: respondedAt},
		{ID: f.node.Generate(), OrgID: orgID, Category: "detractor", RespondedAt: respondedAt},
		{ID: f.node.Generate(), OrgID: orgID, Category: "promoter", RespondedAt: respondedAt, IsTest: true},
		{ID: f.node.Generate(), OrgID: orgID, Category: "promoter", RespondedAt: respondedAt.Add(-24 * time.Hour)},
		{ID: f.node.Generate(), OrgID: snowflake.ID(2), Category: "promoter", RespondedAt: respondedAt},
	}
	if err := f.db.Create(&rows).Error; err != nil {
		t.Fatalf("seed responses: %v", err)
	}
	sentAt := respondedAt.Add(-time.Hour)
	deliveries := []deliveryRow{
		{ID: f.node.Generate(), OrgID: orgID, SentAt: &sentAt},
		{ID: f.node.Generate(), OrgID: orgID, SentAt: &sentAt},
		{ID: f.node.Generate(), OrgID: orgID, SentAt: &sentAt},
		{ID: f.node.Generate(), OrgID: orgID, SentAt: &sentAt},
		{ID: f.node.Generate(), OrgID: orgID},
	}
	if err := f.db.Create(&deliveries).Error; err != nil {
		t.Fatalf("seed deliveries: %v", err)
	}

	// Drifted counters are overwritten, not added to.
	record(t, f.svc, orgID, 5)
	f.clock.Advance(12 * time.Hour)

	rebuilt, err := f.svc.Rebuild(ctx, domain.RebuildRequest{Date: "2026-03-09"})
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if rebuilt.PromoterCount != 2 || rebuilt.DetractorCount != 1 || rebuilt.TotalResponses != 3 {
		t.Fatalf("unexpected rebuilt counts %+v", rebuilt)
	}
	if rebuilt.TotalSent != 4 {
		t.Fatalf("expected 4 sends, got %d", rebuilt.TotalSent)
	}
	if rebuilt.NPSScore != "33.00" {
		t.Fatalf("expected nps 33.00, got %s", rebuilt.NPSScore)
	}
	if rebuilt.ResponseRate == nil || *rebuilt.ResponseRate != "75.00" {
		t.Fatalf("expected response rate 75.00, got %v", rebuilt.ResponseRate)
	}
}

func TestRebuildLeavesOpenDayToLiveIncrements(t *testing.T) {
	now := time.Date(2026, 3, 9, 15, 0, 0, 0, time.UTC)
	f := setupMetrics(t, "UTC", now)
	orgID := snowflake.ID(1)
	ctx := orgcontext.WithOrgID(context.Background(), orgID)

	record(t, f.svc, orgID, 10)

	for _, date := range []string{"2026-03-09", "2026-03-10"} {
		if _, err := f.svc.Rebuild(ctx, domain.RebuildRequest{Date: date}); !errors.Is(err, domain.ErrDayNotClosed) {
			t.Fatalf("rebuild %s: expected day not closed, got %v", date, err)
		}
	}

	rebuilt, err := f.svc.Rebuild(ctx, domain.RebuildRequest{})
	if err != nil {
		t.Fatalf("rebuild default day: %v", err)
	}
	if !rebuilt.MetricDate.Equal(domain.MetricDate(now.AddDate(0, 0, -1))) {
		t.Fatalf("expected yesterday, got %s", rebuilt.MetricDate)
	}

	row := loadRow(t, f.db, orgID, now)
	if row.PromoterCount != 1 || row.TotalResponses != 1 {
		t.Fatalf("live counters changed: %+v", row)
	}
}

func TestReportRendersPDF(t *testing.T) {
	now := time.Date(2026, 3, 9, 15, 0, 0, 0, time.UTC)
	f := setupMetrics(t, "UTC", now)
	orgID := snowflake.ID(1)
	record(t, f.svc, orgID, 9)

	reader, err := f.svc.Report(orgcontext.WithOrgID(context.Background(), orgID), domain.RangeRequest{})
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	if !bytes.HasPrefix(body, []byte("%PDF")) {
		t.Fatal("expected PDF output")
	}
}
