package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/flowpulse/flowpulse/internal/dailymetrics/domain"
	"github.com/flowpulse/flowpulse/internal/nps"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

var rollupKey = []clause.Column{{Name: "org_id"}, {Name: "metric_date"}}

// Increment adds delta to the row in a single upsert so concurrent writers
// never lose counts. The conflicting row stays locked until the caller's
// transaction ends.
func (r *repo) Increment(ctx context.Context, db *gorm.DB, orgID snowflake.ID, date time.Time, delta domain.Counts, now time.Time) error {
	row := newRow(orgID, date, delta, now)
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: rollupKey,
			DoUpdates: clause.Assignments(map[string]interface{}{
				"promoter_count":  gorm.Expr("daily_org_metrics.promoter_count + ?", delta.Promoters),
				"passive_count":   gorm.Expr("daily_org_metrics.passive_count + ?", delta.Passives),
				"detractor_count": gorm.Expr("daily_org_metrics.detractor_count + ?", delta.Detractors),
				"total_responses": gorm.Expr("daily_org_metrics.total_responses + ?", delta.Responses),
				"total_sent":      gorm.Expr("daily_org_metrics.total_sent + ?", delta.Sent),
				"updated_at":      now,
			}),
		}).
		Create(&row).Error
}

func (r *repo) Replace(ctx context.Context, db *gorm.DB, orgID snowflake.ID, date time.Time, counts domain.Counts, now time.Time) error {
	row := newRow(orgID, date, counts, now)
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: rollupKey,
			DoUpdates: clause.AssignmentColumns([]string{
				"promoter_count",
				"passive_count",
				"detractor_count",
				"total_responses",
				"total_sent",
				"updated_at",
			}),
		}).
		Create(&row).Error
}

func newRow(orgID snowflake.ID, date time.Time, counts domain.Counts, now time.Time) domain.DailyOrgMetrics {
	return domain.DailyOrgMetrics{
		OrgID:          orgID,
		MetricDate:     date,
		PromoterCount:  counts.Promoters,
		PassiveCount:   counts.Passives,
		DetractorCount: counts.Detractors,
		TotalResponses: counts.Responses,
		TotalSent:      counts.Sent,
		NPSScore:       nps.FormatDecimal(0),
		UpdatedAt:      now,
	}
}

func (r *repo) Find(ctx context.Context, db *gorm.DB, orgID snowflake.ID, date time.Time) (*domain.DailyOrgMetrics, error) {
	var rows []domain.DailyOrgMetrics
	err := db.WithContext(ctx).
		Where("org_id = ? AND metric_date = ?", orgID, date).
		Limit(1).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func (r *repo) UpdateDerived(ctx context.Context, db *gorm.DB, orgID snowflake.ID, date time.Time, npsScore string, responseRate *string) error {
	return db.WithContext(ctx).Exec(
		`UPDATE daily_org_metrics SET nps_score = ?, response_rate = ?
		 WHERE org_id = ? AND metric_date = ?`,
		npsScore,
		responseRate,
		orgID,
		date,
	).Error
}

func (r *repo) ListRange(ctx context.Context, db *gorm.DB, orgID snowflake.ID, from, to time.Time) ([]domain.DailyOrgMetrics, error) {
	var rows []domain.DailyOrgMetrics
	err := db.WithContext(ctx).
		Where("org_id = ? AND metric_date >= ? AND metric_date <= ?", orgID, from, to).
		Order("metric_date asc").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

type categoryCount struct {
	Category string
	Total    int64
}

// CountSources recounts non-test responses and sends in [start, end).
func (r *repo) CountSources(ctx context.Context, db *gorm.DB, orgID snowflake.ID, start, end time.Time) (domain.Counts, error) {
	var byCategory []categoryCount
	err := db.WithContext(ctx).Raw(
		`SELECT category, COUNT(*) AS total
		 FROM responses
		 WHERE org_id = ? AND is_test = ? AND responded_at >= ? AND responded_at < ?
		 GROUP BY category`,
		orgID,
		false,
		start,
		end,
	).Scan(&byCategory).Error
	if err != nil {
		return domain.Counts{}, err
	}

	var counts domain.Counts
	for _, row := range byCategory {
		switch nps.Category(row.Category) {
		case nps.CategoryPromoter:
			counts.Promoters = row.Total
		case nps.CategoryPassive:
			counts.Passives = row.Total
		case nps.CategoryDetractor:
			counts.Detractors = row.Total
		}
		counts.Responses += row.Total
	}

	err = db.WithContext(ctx).Raw(
		`SELECT COUNT(*) FROM deliveries
		 WHERE org_id = ? AND is_test = ? AND sent_at IS NOT NULL AND sent_at >= ? AND sent_at < ?`,
		orgID,
		false,
		start,
		end,
	).Scan(&counts.Sent).Error
	if err != nil {
		return domain.Counts{}, err
	}

	return counts, nil
}
