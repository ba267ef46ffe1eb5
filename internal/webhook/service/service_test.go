package service

import (
	"context"
	"errors"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/flowpulse/flowpulse/internal/config"
	deliverydomain "github.com/flowpulse/flowpulse/internal/delivery/domain"
	"github.com/flowpulse/flowpulse/internal/nps"
	responsedomain "github.com/flowpulse/flowpulse/internal/response/domain"
	"github.com/flowpulse/flowpulse/internal/webhook/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockDeliveries struct {
	deliverydomain.Service
	mock.Mock
}

func (m *mockDeliveries) MarkStatus(ctx context.Context, orgID snowflake.ID, externalMessageID string, status deliverydomain.Status) (*deliverydomain.Delivery, error) {
	args := m.Called(orgID, externalMessageID, status)
	delivery, _ := args.Get(0).(*deliverydomain.Delivery)
	return delivery, args.Error(1)
}

type mockResponses struct {
	responsedomain.Service
	mock.Mock
}

func (m *mockResponses) ProcessFlowResponse(ctx context.Context, orgID snowflake.ID, customerPhone string, payload responsedomain.FlowPayload) (*responsedomain.Result, error) {
	args := m.Called(orgID, customerPhone, payload)
	result, _ := args.Get(0).(*responsedomain.Result)
	return result, args.Error(1)
}

type stubLimiter struct {
	allow    bool
	acquire  bool
	released []string
}

func (l *stubLimiter) AllowOrg(ctx context.Context, orgID string) (bool, error) {
	return l.allow, nil
}

func (l *stubLimiter) TryLockMessage(ctx context.Context, orgID, messageID string) (string, bool, error) {
	if !l.acquire {
		return "", false, nil
	}
	return "token-" + messageID, true, nil
}

func (l *stubLimiter) ReleaseMessage(ctx context.Context, orgID, messageID, token string) error {
	l.released = append(l.released, token)
	return nil
}

const orgID = snowflake.ID(42)

func newService(secret string, deliveries *mockDeliveries, responses *mockResponses, limiter domain.Limiter) *Service {
	return NewWithLimiter(Params{
		Log:        zap.NewNop(),
		Config:     config.Config{Kapso: config.KapsoConfig{WebhookSecret: secret}},
		Deliveries: deliveries,
		Responses:  responses,
	}, limiter)
}

func TestVerify(t *testing.T) {
	body := []byte(`{"type":"message.status"}`)

	open := newService("", nil, nil, nil)
	assert.NoError(t, open.Verify(body, ""))

	svc := newService("s3cret", nil, nil, nil)
	signature := Sign("s3cret", body)
	assert.NoError(t, svc.Verify(body, signature))
	assert.NoError(t, svc.Verify(body, "sha256="+signature))
	assert.ErrorIs(t, svc.Verify(body, ""), domain.ErrInvalidSignature)
	assert.ErrorIs(t, svc.Verify(body, "not-hex"), domain.ErrInvalidSignature)
	assert.ErrorIs(t, svc.Verify([]byte(`{"type":"flow.response"}`), signature), domain.ErrInvalidSignature)
}

func TestHandleStatusEvent(t *testing.T) {
	deliveries := &mockDeliveries{}
	deliveryID := snowflake.ID(9)
	deliveries.On("MarkStatus", orgID, "wamid.1", deliverydomain.StatusDelivered).
		Return(&deliverydomain.Delivery{ID: deliveryID}, nil).Once()
	deliveries.On("MarkStatus", orgID, "wamid.unknown", deliverydomain.StatusSent).
		Return(nil, deliverydomain.ErrNotFound).Once()
	deliveries.On("MarkStatus", orgID, "wamid.2", deliverydomain.StatusSent).
		Return(nil, deliverydomain.ErrStatusConflict).Once()

	svc := newService("", deliveries, &mockResponses{}, nil)

	outcome, err := svc.Handle(context.Background(), orgID, []byte(`{"type":"message.status","message_id":"wamid.1","status":"delivered"}`))
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeProcessed, outcome.Status)
	assert.Equal(t, deliveryID.String(), outcome.DeliveryID)

	outcome, err = svc.Handle(context.Background(), orgID, []byte(`{"type":"message.status","message_id":"wamid.unknown","status":"sent"}`))
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeIgnored, outcome.Status)

	_, err = svc.Handle(context.Background(), orgID, []byte(`{"type":"message.status","message_id":"wamid.2","status":"sent"}`))
	assert.ErrorIs(t, err, deliverydomain.ErrStatusConflict)

	deliveries.AssertExpectations(t)
}

func TestHandleFlowEvent(t *testing.T) {
	responses := &mockResponses{}
	nine := responsedomain.FlowPayload{Rating: "9"}
	responses.On("ProcessFlowResponse", orgID, "+5511999990000", nine).
		Return(&responsedomain.Result{ResponseID: 1, DeliveryID: 2, Category: nps.CategoryPromoter}, nil).Once()
	responses.On("ProcessFlowResponse", orgID, "+5511999990000", nine).
		Return(nil, responsedomain.ErrAlreadyResponded).Once()
	responses.On("ProcessFlowResponse", orgID, "+5511999999999", nine).
		Return(nil, responsedomain.ErrNoMatchingDelivery).Once()
	responses.On("ProcessFlowResponse", orgID, "+5511999990000", responsedomain.FlowPayload{Rating: "N/A"}).
		Return(nil, nil).Once()

	svc := newService("", &mockDeliveries{}, responses, nil)
	body := []byte(`{"type":"flow.response","message_id":"wamid.in.1","from":"+5511999990000","flow":{"rating":"9"}}`)

	outcome, err := svc.Handle(context.Background(), orgID, body)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeProcessed, outcome.Status)
	assert.Equal(t, "1", outcome.ResponseID)
	assert.Equal(t, domain.EventFlowResponse, outcome.EventType)

	outcome, err = svc.Handle(context.Background(), orgID, body)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeDuplicate, outcome.Status)

	outcome, err = svc.Handle(context.Background(), orgID, []byte(`{"type":"flow.response","from":"+5511999999999","flow":{"rating":9}}`))
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeUnmatched, outcome.Status)

	outcome, err = svc.Handle(context.Background(), orgID, []byte(`{"type":"flow.response","from":"+5511999990000","flow":{"rating":"N/A"}}`))
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeIgnored, outcome.Status)

	responses.AssertExpectations(t)
}

func TestHandleRejectsInvalidPayloads(t *testing.T) {
	svc := newService("", &mockDeliveries{}, &mockResponses{}, nil)

	cases := []struct {
		name string
		body string
	}{
		{name: "not json", body: `type=flow`},
		{name: "missing type", body: `{"message_id":"wamid.1"}`},
		{name: "unknown status", body: `{"type":"message.status","message_id":"wamid.1","status":"read"}`},
		{name: "status without message", body: `{"type":"message.status","status":"sent"}`},
		{name: "flow without sender", body: `{"type":"flow.response","flow":{"rating":"9"}}`},
		{name: "flow without payload", body: `{"type":"flow.response","from":"+5511999990000"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Handle(context.Background(), orgID, []byte(tc.body))
			assert.True(t, errors.Is(err, domain.ErrInvalidPayload), "got %v", err)
		})
	}
}

func TestHandleIgnoresOtherEventTypes(t *testing.T) {
	svc := newService("", &mockDeliveries{}, &mockResponses{}, nil)

	outcome, err := svc.Handle(context.Background(), orgID, []byte(`{"type":"message.received","from":"+5511999990000","text":"hi"}`))
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeIgnored, outcome.Status)
}

func TestHandleHonoursLimiter(t *testing.T) {
	body := []byte(`{"type":"message.received","message_id":"wamid.7"}`)

	denied := newService("", &mockDeliveries{}, &mockResponses{}, &stubLimiter{allow: false, acquire: true})
	_, err := denied.Handle(context.Background(), orgID, body)
	assert.ErrorIs(t, err, domain.ErrRateLimited)

	busy := newService("", &mockDeliveries{}, &mockResponses{}, &stubLimiter{allow: true, acquire: false})
	_, err = busy.Handle(context.Background(), orgID, body)
	assert.ErrorIs(t, err, domain.ErrInFlight)

	limiter := &stubLimiter{allow: true, acquire: true}
	svc := newService("", &mockDeliveries{}, &mockResponses{}, limiter)
	_, err = svc.Handle(context.Background(), orgID, body)
	require.NoError(t, err)
	assert.Equal(t, []string{"token-message.received:wamid.7"}, limiter.released)
}
