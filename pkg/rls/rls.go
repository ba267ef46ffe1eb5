package rls

import (
	"fmt"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

const postgresDialect = "postgres"

// WithTenant scopes the current transaction to one organization for the
// row-level security policies installed by the migrations. Dialects without
// RLS support are left untouched; every query still filters by org_id.
func WithTenant(tx *gorm.DB, orgID snowflake.ID) error {
	if tx == nil || tx.Dialector == nil || tx.Dialector.Name() != postgresDialect {
		return nil
	}
	return tx.Exec(
		"SELECT set_config('app.current_org_id', ?, true)",
		fmt.Sprintf("%d", int64(orgID)),
	).Error
}

// Transaction runs fn in a tenant-scoped transaction.
func Transaction(db *gorm.DB, orgID snowflake.ID, fn func(tx *gorm.DB) error) error {
	return db.Transaction(func(tx *gorm.DB) error {
		if err := WithTenant(tx, orgID); err != nil {
			return err
		}
		return fn(tx)
	})
}
