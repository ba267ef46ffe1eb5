package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/flowpulse/flowpulse/internal/nps"
	"gorm.io/datatypes"
)

// Response is one respondent's answer to one delivery. Rows are never
// updated once written.
type Response struct {
	ID            snowflake.ID      `gorm:"primaryKey" json:"id"`
	OrgID         snowflake.ID      `gorm:"not null;index:idx_responses_org_responded,priority:1" json:"organization_id"`
	SurveyID      snowflake.ID      `gorm:"not null;index" json:"survey_id"`
	DeliveryID    snowflake.ID      `gorm:"not null;uniqueIndex:ux_responses_delivery" json:"delivery_id"`
	CustomerID    snowflake.ID      `gorm:"not null;index" json:"customer_id"`
	CustomerPhone string            `gorm:"not null" json:"customer_phone"`
	Score         int               `gorm:"not null" json:"score"`
	Category      nps.Category      `gorm:"type:text;not null" json:"category"`
	Feedback      *string           `json:"feedback,omitempty"`
	Metadata      datatypes.JSONMap `gorm:"type:jsonb" json:"metadata,omitempty"`
	IsTest        bool              `gorm:"not null;default:false" json:"is_test"`
	RespondedAt   time.Time         `gorm:"not null;index:idx_responses_org_responded,priority:2" json:"responded_at"`
	CreatedAt     time.Time         `gorm:"not null" json:"created_at"`
}

func (Response) TableName() string { return "responses" }
