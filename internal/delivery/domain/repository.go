package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/flowpulse/flowpulse/pkg/db/pagination"
	"gorm.io/gorm"
)

// Match is the delivery a reply is attributed to. Outstanding counts the
// deliveries to the same phone that have not been answered yet.
type Match struct {
	Delivery    *Delivery
	Outstanding int64
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, delivery *Delivery) error
	FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*Delivery, error)
	FindByExternalID(ctx context.Context, db *gorm.DB, orgID snowflake.ID, externalID string) (*Delivery, error)
	FindLatestByPhoneHash(ctx context.Context, db *gorm.DB, orgID snowflake.ID, phoneHash string) (Match, error)
	// CompareAndSetStatus moves the delivery only if it is still in from.
	CompareAndSetStatus(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, from, to Status, sentAt *time.Time, now time.Time) (bool, error)
	SetExternalID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, externalID string, now time.Time) error
	// MarkResponded reports false when the delivery was already responded.
	MarkResponded(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, at time.Time) (bool, error)
	List(ctx context.Context, db *gorm.DB, orgID snowflake.ID, filter ListFilter, page pagination.Pagination) ([]*Delivery, error)
}
