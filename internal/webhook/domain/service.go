package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

// Outcome statuses returned to the vendor. Every outcome is acknowledged
// with a 200; throttled and in-flight callbacks get an error status so the
// vendor retries them.
const (
	OutcomeProcessed = "processed"
	OutcomeDuplicate = "duplicate"
	OutcomeIgnored   = "ignored"
	OutcomeUnmatched = "unmatched"
)

type Outcome struct {
	Status     string `json:"status"`
	EventType  string `json:"event_type,omitempty"`
	ResponseID string `json:"response_id,omitempty"`
	DeliveryID string `json:"delivery_id,omitempty"`
}

// Limiter throttles callbacks and suppresses concurrent redeliveries.
type Limiter interface {
	AllowOrg(ctx context.Context, orgID string) (bool, error)
	TryLockMessage(ctx context.Context, orgID, messageID string) (string, bool, error)
	ReleaseMessage(ctx context.Context, orgID, messageID, token string) error
}

type Service interface {
	// Verify checks the hex HMAC-SHA256 signature of body.
	Verify(body []byte, signature string) error
	Handle(ctx context.Context, orgID snowflake.ID, body []byte) (Outcome, error)
}

var (
	ErrInvalidSignature = errors.New("invalid_signature")
	ErrInvalidPayload   = errors.New("invalid_payload")
	ErrRateLimited      = errors.New("rate_limited")
	ErrInFlight         = errors.New("message_in_flight")
)
