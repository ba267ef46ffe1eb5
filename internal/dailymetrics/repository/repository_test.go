package repository

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/flowpulse/flowpulse/internal/dailymetrics/domain"
	"github.com/flowpulse/flowpulse/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupRepo(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&domain.DailyOrgMetrics{}))
	return conn
}

func findRow(t *testing.T, conn *gorm.DB, orgID snowflake.ID, date time.Time) domain.DailyOrgMetrics {
	t.Helper()
	row, err := Provide().Find(context.Background(), conn, orgID, date)
	require.NoError(t, err)
	require.NotNil(t, row)
	return *row
}

func TestIncrementAddsToExistingRow(t *testing.T) {
	conn := setupRepo(t)
	repo := Provide()
	ctx := context.Background()
	orgID := snowflake.ID(7)
	date := domain.MetricDate(time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC))
	now := time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC)

	deltas := []domain.Counts{
		{Promoters: 1, Responses: 1},
		{Sent: 3},
		{Detractors: 2, Passives: 1, Responses: 3},
		{Promoters: 4, Responses: 4, Sent: 2},
	}
	for i, delta := range deltas {
		require.NoError(t, repo.Increment(ctx, conn, orgID, date, delta, now.Add(time.Duration(i)*time.Minute)))
	}

	row := findRow(t, conn, orgID, date)
	assert.Equal(t, int64(5), row.PromoterCount)
	assert.Equal(t, int64(1), row.PassiveCount)
	assert.Equal(t, int64(2), row.DetractorCount)
	assert.Equal(t, int64(8), row.TotalResponses)
	assert.Equal(t, int64(5), row.TotalSent)
	assert.True(t, row.UpdatedAt.Equal(now.Add(3*time.Minute)), "updated_at %s", row.UpdatedAt)

	var rows int64
	require.NoError(t, conn.Model(&domain.DailyOrgMetrics{}).Count(&rows).Error)
	assert.Equal(t, int64(1), rows)
}

func TestIncrementKeepsOrgsAndDaysApart(t *testing.T) {
	conn := setupRepo(t)
	repo := Provide()
	ctx := context.Background()
	day := domain.MetricDate(time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC))
	next := day.AddDate(0, 0, 1)
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Increment(ctx, conn, 1, day, domain.Counts{Sent: 1}, now))
	require.NoError(t, repo.Increment(ctx, conn, 1, next, domain.Counts{Sent: 2}, now))
	require.NoError(t, repo.Increment(ctx, conn, 2, day, domain.Counts{Sent: 4}, now))

	assert.Equal(t, int64(1), findRow(t, conn, 1, day).TotalSent)
	assert.Equal(t, int64(2), findRow(t, conn, 1, next).TotalSent)
	assert.Equal(t, int64(4), findRow(t, conn, 2, day).TotalSent)
}

func TestReplaceOverwritesCounters(t *testing.T) {
	conn := setupRepo(t)
	repo := Provide()
	ctx := context.Background()
	orgID := snowflake.ID(7)
	date := domain.MetricDate(time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC))
	now := time.Date(2026, 3, 10, 1, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Increment(ctx, conn, orgID, date, domain.Counts{Promoters: 9, Responses: 9, Sent: 9}, now))
	require.NoError(t, repo.Replace(ctx, conn, orgID, date, domain.Counts{Passives: 1, Responses: 1, Sent: 2}, now))

	row := findRow(t, conn, orgID, date)
	assert.Equal(t, int64(0), row.PromoterCount)
	assert.Equal(t, int64(1), row.PassiveCount)
	assert.Equal(t, int64(1), row.TotalResponses)
	assert.Equal(t, int64(2), row.TotalSent)
}
