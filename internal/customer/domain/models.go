package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Customer is a survey recipient known only by the hash of their phone number.
type Customer struct {
	ID              snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID           snowflake.ID `gorm:"not null;uniqueIndex:ux_customers_org_phone,priority:1" json:"organization_id"`
	PhoneNumberHash string       `gorm:"type:char(64);not null;uniqueIndex:ux_customers_org_phone,priority:2" json:"phone_number_hash"`
	LastSeenAt      time.Time    `gorm:"not null" json:"last_seen_at"`
	CreatedAt       time.Time    `gorm:"not null" json:"created_at"`
}

func (Customer) TableName() string { return "customers" }
