package domain

import (
	"fmt"

	responsedomain "github.com/flowpulse/flowpulse/internal/response/domain"
	"github.com/go-playground/validator/v10"
)

const (
	EventMessageStatus = "message.status"
	EventFlowResponse  = "flow.response"
)

// Envelope is one Kapso callback. Only the fields used by the handled event
// types are read; unknown types are acknowledged and ignored.
type Envelope struct {
	Type      string                      `json:"type" validate:"required,max=64"`
	MessageID string                      `json:"message_id" validate:"omitempty,max=256"`
	From      string                      `json:"from" validate:"omitempty,max=32"`
	Timestamp string                      `json:"timestamp" validate:"omitempty,max=64"`
	Status    string                      `json:"status" validate:"omitempty,max=32"`
	Flow      *responsedomain.FlowPayload `json:"flow"`
	Text      string                      `json:"text" validate:"omitempty,max=4096"`
}

type statusEvent struct {
	MessageID string `validate:"required"`
	Status    string `validate:"required,oneof=queued sent delivered failed undeliverable"`
}

type flowEvent struct {
	From string                      `validate:"required"`
	Flow *responsedomain.FlowPayload `validate:"required"`
}

var envelopeValidator = validator.New()

// Validate checks the envelope shape and the fields its event type needs.
func (e Envelope) Validate() error {
	if err := envelopeValidator.Struct(e); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	var typed any
	switch e.Type {
	case EventMessageStatus:
		typed = statusEvent{MessageID: e.MessageID, Status: e.Status}
	case EventFlowResponse:
		typed = flowEvent{From: e.From, Flow: e.Flow}
	default:
		return nil
	}
	if err := envelopeValidator.Struct(typed); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return nil
}
