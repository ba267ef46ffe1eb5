package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type SurveyType string

const (
	SurveyTypeNPS  SurveyType = "nps"
	SurveyTypeCSAT SurveyType = "csat"
	SurveyTypeCES  SurveyType = "ces"
)

func (t SurveyType) Valid() bool {
	switch t {
	case SurveyTypeNPS, SurveyTypeCSAT, SurveyTypeCES:
		return true
	}
	return false
}

type Survey struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID     snowflake.ID `gorm:"not null;uniqueIndex:ux_surveys_org_slug,priority:1" json:"organization_id"`
	Name      string       `gorm:"not null" json:"name"`
	Slug      string       `gorm:"not null;uniqueIndex:ux_surveys_org_slug,priority:2" json:"slug"`
	Type      SurveyType   `gorm:"type:text;not null" json:"type"`
	Question  string       `gorm:"not null" json:"question"`
	IsActive  bool         `gorm:"not null" json:"is_active"`
	CreatedAt time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time    `gorm:"not null" json:"updated_at"`
}

func (Survey) TableName() string { return "surveys" }
