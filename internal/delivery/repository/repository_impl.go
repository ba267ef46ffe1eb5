package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/flowpulse/flowpulse/internal/delivery/domain"
	"github.com/flowpulse/flowpulse/pkg/db/option"
	"github.com/flowpulse/flowpulse/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, delivery *domain.Delivery) error {
	return db.WithContext(ctx).Create(delivery).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*domain.Delivery, error) {
	return first(db.WithContext(ctx).Where("org_id = ? AND id = ?", orgID, id))
}

func (r *repo) FindByExternalID(ctx context.Context, db *gorm.DB, orgID snowflake.ID, externalID string) (*domain.Delivery, error) {
	return first(db.WithContext(ctx).Where("org_id = ? AND external_message_id = ?", orgID, externalID))
}

// FindLatestByPhoneHash picks the newest delivery to phoneHash regardless of
// survey or status. Ties on created_at fall back to the larger id.
func (r *repo) FindLatestByPhoneHash(ctx context.Context, db *gorm.DB, orgID snowflake.ID, phoneHash string) (domain.Match, error) {
	latest, err := first(db.WithContext(ctx).
		Where("org_id = ? AND phone_number_hash = ?", orgID, phoneHash).
		Order("created_at desc, id desc"))
	if err != nil || latest == nil {
		return domain.Match{}, err
	}

	var outstanding int64
	err = db.WithContext(ctx).
		Model(&domain.Delivery{}).
		Where("org_id = ? AND phone_number_hash = ? AND status <> ?", orgID, phoneHash, domain.StatusResponded).
		Count(&outstanding).Error
	if err != nil {
		return domain.Match{}, err
	}

	return domain.Match{Delivery: latest, Outstanding: outstanding}, nil
}

func (r *repo) CompareAndSetStatus(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, from, to domain.Status, sentAt *time.Time, now time.Time) (bool, error) {
	values := map[string]any{
		"status":     to,
		"updated_at": now,
	}
	if sentAt != nil {
		values["sent_at"] = *sentAt
	}
	res := db.WithContext(ctx).
		Model(&domain.Delivery{}).
		Where("org_id = ? AND id = ? AND status = ?", orgID, id, from).
		Updates(values)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repo) SetExternalID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, externalID string, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE deliveries SET external_message_id = ?, updated_at = ? WHERE org_id = ? AND id = ?`,
		externalID,
		now,
		orgID,
		id,
	).Error
}

func (r *repo) MarkResponded(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, at time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE deliveries SET status = ?, responded_at = ?, updated_at = ?
		 WHERE org_id = ? AND id = ? AND status <> ?`,
		domain.StatusResponded,
		at,
		at,
		orgID,
		id,
		domain.StatusResponded,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, orgID snowflake.ID, filter domain.ListFilter, page pagination.Pagination) ([]*domain.Delivery, error) {
	var deliveries []*domain.Delivery
	stmt := db.WithContext(ctx).
		Model(&domain.Delivery{}).
		Where("org_id = ?", orgID)
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if filter.SurveyID != 0 {
		stmt = stmt.Where("survey_id = ?", filter.SurveyID)
	}
	stmt = option.ApplyPagination(page).Apply(stmt)
	if err := stmt.Find(&deliveries).Error; err != nil {
		return nil, err
	}
	return deliveries, nil
}

func first(stmt *gorm.DB) (*domain.Delivery, error) {
	var delivery domain.Delivery
	if err := stmt.First(&delivery).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &delivery, nil
}
