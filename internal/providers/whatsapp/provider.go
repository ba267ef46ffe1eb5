package whatsapp

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

var ErrSendFailed = errors.New("whatsapp_send_failed")

// SendSurveyRequest asks the vendor to deliver a survey flow to one recipient.
type SendSurveyRequest struct {
	OrgID       snowflake.ID
	DeliveryID  snowflake.ID
	SurveyID    snowflake.ID
	PhoneNumber string
	Question    string
	FlowID      string
}

type SendSurveyResult struct {
	ExternalMessageID string
}

// Provider sends survey flows over WhatsApp.
type Provider interface {
	SendSurvey(ctx context.Context, req SendSurveyRequest) (SendSurveyResult, error)
}

type NoOpProvider struct{}

func (p *NoOpProvider) SendSurvey(ctx context.Context, req SendSurveyRequest) (SendSurveyResult, error) {
	return SendSurveyResult{}, nil
}
