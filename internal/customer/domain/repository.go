package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/flowpulse/flowpulse/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	// InsertIfAbsent reports false when (org_id, phone_number_hash) already exists.
	InsertIfAbsent(ctx context.Context, db *gorm.DB, customer *Customer) (bool, error)
	FindByPhoneHash(ctx context.Context, db *gorm.DB, orgID snowflake.ID, phoneHash string) (*Customer, error)
	TouchLastSeen(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, at time.Time) error
	FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*Customer, error)
	List(ctx context.Context, db *gorm.DB, orgID snowflake.ID, filter ListCustomerFilter, page pagination.Pagination) ([]*Customer, error)
}
