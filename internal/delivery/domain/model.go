package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type Status string

const (
	StatusPending       Status = "pending"
	StatusQueued        Status = "queued"
	StatusSent          Status = "sent"
	StatusDelivered     Status = "delivered"
	StatusFailed        Status = "failed"
	StatusUndeliverable Status = "undeliverable"
	StatusResponded     Status = "responded"
)

// Delivery is one attempt to send one survey to one phone number.
type Delivery struct {
	ID                snowflake.ID      `gorm:"primaryKey" json:"id"`
	OrgID             snowflake.ID      `gorm:"not null;index:idx_deliveries_org_phone,priority:1;index:idx_deliveries_org_external,priority:1" json:"organization_id"`
	SurveyID          snowflake.ID      `gorm:"not null;index" json:"survey_id"`
	PhoneNumberHash   string            `gorm:"type:char(64);not null;index:idx_deliveries_org_phone,priority:2" json:"phone_number_hash"`
	ExternalMessageID *string           `gorm:"index:idx_deliveries_org_external,priority:2" json:"external_message_id,omitempty"`
	Status            Status            `gorm:"type:text;not null" json:"status"`
	IsTest            bool              `gorm:"not null;default:false" json:"is_test"`
	Metadata          datatypes.JSONMap `gorm:"type:jsonb" json:"metadata,omitempty"`
	SentAt            *time.Time        `json:"sent_at,omitempty"`
	RespondedAt       *time.Time        `json:"responded_at,omitempty"`
	CreatedAt         time.Time         `gorm:"not null;index:idx_deliveries_org_phone,priority:3" json:"created_at"`
	UpdatedAt         time.Time         `gorm:"not null" json:"updated_at"`
}

func (Delivery) TableName() string { return "deliveries" }

var transitions = map[Status][]Status{
	StatusPending: {StatusQueued, StatusSent, StatusDelivered, StatusFailed, StatusUndeliverable},
	StatusQueued:  {StatusSent, StatusDelivered, StatusFailed, StatusUndeliverable},
	StatusSent:    {StatusDelivered, StatusFailed},
}

// CanTransition reports whether a vendor acknowledgement may move a delivery
// from one status to another. Only the response recorder sets responded.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CountsAsSent reports whether reaching status means the message left the vendor.
func CountsAsSent(status Status) bool {
	return status == StatusSent || status == StatusDelivered
}

func ParseStatus(raw string) (Status, bool) {
	switch status := Status(raw); status {
	case StatusPending, StatusQueued, StatusSent, StatusDelivered, StatusFailed, StatusUndeliverable, StatusResponded:
		return status, true
	}
	return "", false
}
