package domain

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/flowpulse/flowpulse/internal/nps"
	"gorm.io/gorm"
)

// ResponseEvent is what the rollup needs to know about a recorded reply.
type ResponseEvent struct {
	Score    int
	Category nps.Category
	IsTest   bool
}

// Recorder applies increments to today's rollup row. A nil tx runs the update
// in its own transaction.
type Recorder interface {
	RecordResponse(ctx context.Context, tx *gorm.DB, orgID snowflake.ID, event ResponseEvent) error
	RecordSent(ctx context.Context, tx *gorm.DB, orgID snowflake.ID) error
}

type RangeRequest struct {
	From string `form:"from"`
	To   string `form:"to"`
}

type Summary struct {
	From           string  `json:"from"`
	To             string  `json:"to"`
	PromoterCount  int64   `json:"promoter_count"`
	PassiveCount   int64   `json:"passive_count"`
	DetractorCount int64   `json:"detractor_count"`
	TotalResponses int64   `json:"total_responses"`
	TotalSent      int64   `json:"total_sent"`
	NPSScore       string  `json:"nps_score"`
	ResponseRate   *string `json:"response_rate"`
	Days           int     `json:"days"`
}

type RebuildRequest struct {
	Date string `json:"date"`
}

type Service interface {
	Recorder
	Daily(ctx context.Context, req RangeRequest) ([]DailyOrgMetrics, error)
	Summary(ctx context.Context, req RangeRequest) (Summary, error)
	Report(ctx context.Context, req RangeRequest) (io.Reader, error)
	// Rebuild recomputes one day from the responses and deliveries tables.
	Rebuild(ctx context.Context, req RebuildRequest) (*DailyOrgMetrics, error)
}

// Counts is a set of absolute or delta counter values for one rollup row.
type Counts struct {
	Promoters  int64
	Passives   int64
	Detractors int64
	Responses  int64
	Sent       int64
}

type Repository interface {
	Increment(ctx context.Context, db *gorm.DB, orgID snowflake.ID, date time.Time, delta Counts, now time.Time) error
	Replace(ctx context.Context, db *gorm.DB, orgID snowflake.ID, date time.Time, counts Counts, now time.Time) error
	Find(ctx context.Context, db *gorm.DB, orgID snowflake.ID, date time.Time) (*DailyOrgMetrics, error)
	UpdateDerived(ctx context.Context, db *gorm.DB, orgID snowflake.ID, date time.Time, npsScore string, responseRate *string) error
	ListRange(ctx context.Context, db *gorm.DB, orgID snowflake.ID, from, to time.Time) ([]DailyOrgMetrics, error)
	CountSources(ctx context.Context, db *gorm.DB, orgID snowflake.ID, start, end time.Time) (Counts, error)
}

const DateLayout = "2006-01-02"

// MaxRangeDays bounds a single query or report.
const MaxRangeDays = 366

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidDate         = errors.New("invalid_date")
	ErrInvalidRange        = errors.New("invalid_date_range")
	ErrInvalidCategory     = errors.New("invalid_category")
	ErrDayNotClosed        = errors.New("metric_day_not_closed")
)
