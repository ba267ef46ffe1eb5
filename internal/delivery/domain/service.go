package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/flowpulse/flowpulse/pkg/db/pagination"
	"gorm.io/gorm"
)

type SendRequest struct {
	SurveyID    string         `json:"survey_id"`
	PhoneNumber string         `json:"phone_number"`
	IsTest      bool           `json:"is_test"`
	Metadata    map[string]any `json:"metadata"`
}

type ListRequest struct {
	PageToken string
	PageSize  int
	Status    string
	SurveyID  string
}

type ListFilter struct {
	Status   Status
	SurveyID snowflake.ID
}

type ListResponse struct {
	pagination.PageInfo
	Deliveries []Delivery `json:"deliveries"`
}

// Matcher finds the delivery a reply from phoneHash belongs to.
type Matcher interface {
	MatchLatest(ctx context.Context, tx *gorm.DB, orgID snowflake.ID, phoneHash string) (Match, error)
	MarkResponded(ctx context.Context, tx *gorm.DB, delivery *Delivery) error
}

type Service interface {
	Matcher
	Send(ctx context.Context, req SendRequest) (*Delivery, error)
	MarkStatus(ctx context.Context, orgID snowflake.ID, externalMessageID string, status Status) (*Delivery, error)
	MarkSent(ctx context.Context, id string) (*Delivery, error)
	GetByID(ctx context.Context, id string) (*Delivery, error)
	List(ctx context.Context, req ListRequest) (ListResponse, error)
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidID           = errors.New("invalid_id")
	ErrInvalidPhoneNumber  = errors.New("invalid_phone_number")
	ErrInvalidStatus       = errors.New("invalid_status")
	ErrInvalidTransition   = errors.New("invalid_status_transition")
	ErrStatusConflict      = errors.New("delivery_status_conflict")
	ErrSurveyInactive      = errors.New("survey_inactive")
	ErrSendFailed          = errors.New("delivery_send_failed")
	ErrNotFound            = errors.New("not_found")
	ErrNoMatchingDelivery  = errors.New("no_matching_delivery")
	ErrAlreadyResponded    = errors.New("already_responded")
)
