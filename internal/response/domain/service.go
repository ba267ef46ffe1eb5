package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	customerdomain "github.com/flowpulse/flowpulse/internal/customer/domain"
	deliverydomain "github.com/flowpulse/flowpulse/internal/delivery/domain"
	"github.com/flowpulse/flowpulse/internal/nps"
	"github.com/flowpulse/flowpulse/pkg/db/pagination"
)

// Result identifies what a processed reply produced.
type Result struct {
	ResponseID snowflake.ID `json:"response_id"`
	Category   nps.Category `json:"category"`
	CustomerID snowflake.ID `json:"customer_id"`
	DeliveryID snowflake.ID `json:"delivery_id"`
}

// RecordRequest is the manual entry point used by the API; the org comes
// from the request context.
type RecordRequest struct {
	PhoneNumber string  `json:"phone_number"`
	Score       *int    `json:"score"`
	Feedback    *string `json:"feedback"`
}

type ListRequest struct {
	PageToken string
	PageSize  int
	Category  string
	SurveyID  string
}

type ListFilter struct {
	Category nps.Category
	SurveyID snowflake.ID
}

type ListResponse struct {
	pagination.PageInfo
	Responses []Response `json:"responses"`
}

type Service interface {
	ProcessResponse(ctx context.Context, orgID snowflake.ID, customerPhone string, score int, feedback *string) (*Result, error)
	// ProcessFlowResponse returns nil, nil when the payload carries no usable rating.
	ProcessFlowResponse(ctx context.Context, orgID snowflake.ID, customerPhone string, payload FlowPayload) (*Result, error)
	Record(ctx context.Context, req RecordRequest) (*Result, error)
	List(ctx context.Context, req ListRequest) (ListResponse, error)
}

var (
	ErrInvalidOrganization        = errors.New("invalid_organization")
	ErrInvalidPhoneNumber         = errors.New("invalid_phone_number")
	ErrInvalidScore               = errors.New("invalid_score")
	ErrInvalidCategory            = errors.New("invalid_category")
	ErrInvalidID                  = errors.New("invalid_id")
	ErrInvalidFlowRating          = errors.New("invalid_flow_rating")
	ErrAmbiguousDelivery          = errors.New("ambiguous_delivery")
	ErrNoMatchingDelivery         = deliverydomain.ErrNoMatchingDelivery
	ErrAlreadyResponded           = deliverydomain.ErrAlreadyResponded
	ErrCustomerResolutionConflict = customerdomain.ErrResolutionConflict
)
