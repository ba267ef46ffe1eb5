package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/flowpulse/flowpulse/internal/customer/domain"
	"github.com/flowpulse/flowpulse/pkg/db/option"
	"github.com/flowpulse/flowpulse/pkg/db/pagination"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertIfAbsent(ctx context.Context, db *gorm.DB, customer *domain.Customer) (bool, error) {
	res := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "org_id"}, {Name: "phone_number_hash"}},
			DoNothing: true,
		}).
		Create(customer)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) FindByPhoneHash(ctx context.Context, db *gorm.DB, orgID snowflake.ID, phoneHash string) (*domain.Customer, error) {
	var customer domain.Customer
	err := db.WithContext(ctx).Raw(
		`SELECT id, org_id, phone_number_hash, last_seen_at, created_at
		 FROM customers WHERE org_id = ? AND phone_number_hash = ?`,
		orgID,
		phoneHash,
	).Scan(&customer).Error
	if err != nil {
		return nil, err
	}
	if customer.ID == 0 {
		return nil, nil
	}
	return &customer, nil
}

func (r *repo) TouchLastSeen(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE customers SET last_seen_at = ? WHERE org_id = ? AND id = ?`,
		at,
		orgID,
		id,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*domain.Customer, error) {
	var customer domain.Customer
	err := db.WithContext(ctx).Raw(
		`SELECT id, org_id, phone_number_hash, last_seen_at, created_at
		 FROM customers WHERE org_id = ? AND id = ?`,
		orgID,
		id,
	).Scan(&customer).Error
	if err != nil {
		return nil, err
	}
	if customer.ID == 0 {
		return nil, nil
	}
	return &customer, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, orgID snowflake.ID, filter domain.ListCustomerFilter, page pagination.Pagination) ([]*domain.Customer, error) {
	var customers []*domain.Customer
	stmt := db.WithContext(ctx).
		Model(&domain.Customer{}).
		Where("org_id = ?", orgID)
	if filter.PhoneNumberHash != "" {
		stmt = stmt.Where("phone_number_hash = ?", filter.PhoneNumberHash)
	}
	if filter.SeenFrom != nil {
		stmt = stmt.Where("last_seen_at >= ?", *filter.SeenFrom)
	}
	if filter.SeenTo != nil {
		stmt = stmt.Where("last_seen_at <= ?", *filter.SeenTo)
	}
	stmt = option.ApplyPagination(page).Apply(stmt)
	if err := stmt.Find(&customers).Error; err != nil {
		return nil, err
	}
	return customers, nil
}
