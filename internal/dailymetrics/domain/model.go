package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// DailyOrgMetrics is the per-organization, per-day NPS rollup. Counters only
// include non-test responses and sends.
type DailyOrgMetrics struct {
	OrgID          snowflake.ID `gorm:"primaryKey;autoIncrement:false" json:"organization_id"`
	MetricDate     time.Time    `gorm:"primaryKey" json:"metric_date"`
	PromoterCount  int64        `gorm:"not null;default:0" json:"promoter_count"`
	PassiveCount   int64        `gorm:"not null;default:0" json:"passive_count"`
	DetractorCount int64        `gorm:"not null;default:0" json:"detractor_count"`
	TotalResponses int64        `gorm:"not null;default:0" json:"total_responses"`
	TotalSent      int64        `gorm:"not null;default:0" json:"total_sent"`
	NPSScore       string       `gorm:"column:nps_score;not null;default:'0.00'" json:"nps_score"`
	ResponseRate   *string      `gorm:"column:response_rate" json:"response_rate"`
	UpdatedAt      time.Time    `gorm:"not null" json:"updated_at"`
}

func (DailyOrgMetrics) TableName() string { return "daily_org_metrics" }

// MetricDate maps a local calendar day onto the value stored in metric_date.
func MetricDate(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
}
