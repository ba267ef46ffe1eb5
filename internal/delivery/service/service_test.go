package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/flowpulse/flowpulse/internal/clock"
	"github.com/flowpulse/flowpulse/internal/config"
	customerdomain "github.com/flowpulse/flowpulse/internal/customer/domain"
	dailymetrics "github.com/flowpulse/flowpulse/internal/dailymetrics/domain"
	"github.com/flowpulse/flowpulse/internal/delivery/domain"
	"github.com/flowpulse/flowpulse/internal/delivery/repository"
	"github.com/flowpulse/flowpulse/internal/orgcontext"
	"github.com/flowpulse/flowpulse/internal/providers/whatsapp"
	surveydomain "github.com/flowpulse/flowpulse/internal/survey/domain"
	surveyservice "github.com/flowpulse/flowpulse/internal/survey/service"
	"github.com/flowpulse/flowpulse/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fakeRecorder struct {
	mu   sync.Mutex
	sent map[snowflake.ID]int
}

func (r *fakeRecorder) RecordResponse(ctx context.Context, tx *gorm.DB, orgID snowflake.ID, event dailymetrics.ResponseEvent) error {
	return nil
}

func (r *fakeRecorder) RecordSent(ctx context.Context, tx *gorm.DB, orgID snowflake.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sent == nil {
		r.sent = make(map[snowflake.ID]int)
	}
	r.sent[orgID]++
	return nil
}

func (r *fakeRecorder) sentFor(orgID snowflake.ID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sent[orgID]
}

type fixture struct {
	db       *gorm.DB
	svc      domain.Service
	surveys  surveydomain.Service
	provider *whatsapp.MockProvider
	recorder *fakeRecorder
	clock    *clock.FakeClock
	ctx      context.Context
	orgID    snowflake.ID
}

const failingNumber = "+5511000000000"

func setupDelivery(t *testing.T) fixture {
	t.Helper()

	dbConn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, dbConn.AutoMigrate(&domain.Delivery{}, &surveydomain.Survey{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	fake := clock.NewFakeClock(time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC))
	provider := whatsapp.NewMockProvider(failingNumber)
	recorder := &fakeRecorder{}
	surveys := surveyservice.New(surveyservice.Params{DB: dbConn, Log: zap.NewNop(), GenID: node})

	cfg := config.Config{Kapso: config.KapsoConfig{FlowID: "flow-123"}}
	svc := New(Params{
		DB:       dbConn,
		Log:      zap.NewNop(),
		GenID:    node,
		Repo:     repository.Provide(),
		Surveys:  surveys,
		Provider: provider,
		Metrics:  recorder,
		Clock:    fake,
		Config:   cfg,
	})

	orgID := snowflake.ID(1001)
	return fixture{
		db:       dbConn,
		svc:      svc,
		surveys:  surveys,
		provider: provider,
		recorder: recorder,
		clock:    fake,
		ctx:      orgcontext.WithOrgID(context.Background(), orgID),
		orgID:    orgID,
	}
}

func (f fixture) createSurvey(t *testing.T, name string, active bool) *surveydomain.Survey {
	t.Helper()
	survey, err := f.surveys.Create(f.ctx, surveydomain.CreateRequest{
		Name:     name,
		Question: "How likely are you to recommend us?",
		IsActive: &active,
	})
	require.NoError(t, err)
	return survey
}

func TestSendQueuesDelivery(t *testing.T) {
	f := setupDelivery(t)
	survey := f.createSurvey(t, "Post purchase", true)

	delivery, err := f.svc.Send(f.ctx, domain.SendRequest{
		SurveyID:    survey.ID.String(),
		PhoneNumber: "+5511999990000",
		Metadata:    map[string]any{"campaign": "march"},
	})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusQueued, delivery.Status)
	require.NotNil(t, delivery.ExternalMessageID)
	assert.Equal(t, customerdomain.HashPhoneNumber("+5511999990000"), delivery.PhoneNumberHash)
	assert.Nil(t, delivery.SentAt)

	sent := f.provider.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "flow-123", sent[0].Request.FlowID)
	assert.Equal(t, delivery.ID, sent[0].Request.DeliveryID)
	assert.Equal(t, *delivery.ExternalMessageID, sent[0].ExternalMessageID)

	stored, err := f.svc.GetByID(f.ctx, delivery.ID.String())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusQueued, stored.Status)
	assert.Equal(t, "march", stored.Metadata["campaign"])
	assert.Equal(t, 0, f.recorder.sentFor(f.orgID))
}

func TestSendFailureMarksDeliveryFailed(t *testing.T) {
	f := setupDelivery(t)
	survey := f.createSurvey(t, "Onboarding", true)

	delivery, err := f.svc.Send(f.ctx, domain.SendRequest{
		SurveyID:    survey.ID.String(),
		PhoneNumber: failingNumber,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrSendFailed))
	require.NotNil(t, delivery)

	stored, err := f.svc.GetByID(f.ctx, delivery.ID.String())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, stored.Status)

	_, err = f.svc.MarkSent(f.ctx, delivery.ID.String())
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestSendRejectsInactiveSurveyAndBadInput(t *testing.T) {
	f := setupDelivery(t)
	survey := f.createSurvey(t, "Paused", false)

	_, err := f.svc.Send(f.ctx, domain.SendRequest{SurveyID: survey.ID.String(), PhoneNumber: "+5511999990000"})
	assert.ErrorIs(t, err, domain.ErrSurveyInactive)

	_, err = f.svc.Send(f.ctx, domain.SendRequest{SurveyID: survey.ID.String(), PhoneNumber: "  "})
	assert.ErrorIs(t, err, domain.ErrInvalidPhoneNumber)

	_, err = f.svc.Send(context.Background(), domain.SendRequest{SurveyID: survey.ID.String(), PhoneNumber: "+5511999990000"})
	assert.ErrorIs(t, err, domain.ErrInvalidOrganization)

	assert.Empty(t, f.provider.Sent())
}

func TestMarkStatusCountsFirstSendOnce(t *testing.T) {
	f := setupDelivery(t)
	survey := f.createSurvey(t, "Support", true)

	delivery, err := f.svc.Send(f.ctx, domain.SendRequest{SurveyID: survey.ID.String(), PhoneNumber: "+5511999990000"})
	require.NoError(t, err)
	externalID := *delivery.ExternalMessageID

	f.clock.Advance(time.Minute)
	sent, err := f.svc.MarkStatus(context.Background(), f.orgID, externalID, domain.StatusSent)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSent, sent.Status)
	require.NotNil(t, sent.SentAt)
	assert.True(t, sent.SentAt.Equal(f.clock.Now().UTC()))
	assert.Equal(t, 1, f.recorder.sentFor(f.orgID))

	// a vendor retry of the same acknowledgement is a no-op
	_, err = f.svc.MarkStatus(context.Background(), f.orgID, externalID, domain.StatusSent)
	require.NoError(t, err)

	delivered, err := f.svc.MarkStatus(context.Background(), f.orgID, externalID, domain.StatusDelivered)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDelivered, delivered.Status)
	assert.Equal(t, 1, f.recorder.sentFor(f.orgID))

	_, err = f.svc.MarkStatus(context.Background(), f.orgID, externalID, domain.StatusQueued)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = f.svc.MarkStatus(context.Background(), f.orgID, "wamid.unknown", domain.StatusSent)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.svc.MarkStatus(context.Background(), snowflake.ID(2002), externalID, domain.StatusSent)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMarkStatusSkipsRollupForTestDeliveries(t *testing.T) {
	f := setupDelivery(t)
	survey := f.createSurvey(t, "Smoke", true)

	delivery, err := f.svc.Send(f.ctx, domain.SendRequest{
		SurveyID:    survey.ID.String(),
		PhoneNumber: "+5511999990000",
		IsTest:      true,
	})
	require.NoError(t, err)

	updated, err := f.svc.MarkStatus(context.Background(), f.orgID, *delivery.ExternalMessageID, domain.StatusDelivered)
	require.NoError(t, err)
	assert.NotNil(t, updated.SentAt)
	assert.Equal(t, 0, f.recorder.sentFor(f.orgID))
}

func TestMatchLatestPicksNewestDelivery(t *testing.T) {
	f := setupDelivery(t)
	first := f.createSurvey(t, "First", true)
	second := f.createSurvey(t, "Second", true)
	hash := customerdomain.HashPhoneNumber("+5511999990000")

	_, err := f.svc.MatchLatest(f.ctx, f.db, f.orgID, hash)
	assert.ErrorIs(t, err, domain.ErrNoMatchingDelivery)

	older, err := f.svc.Send(f.ctx, domain.SendRequest{SurveyID: first.ID.String(), PhoneNumber: "+5511999990000"})
	require.NoError(t, err)
	f.clock.Advance(time.Hour)
	newer, err := f.svc.Send(f.ctx, domain.SendRequest{SurveyID: second.ID.String(), PhoneNumber: "5511999990000"})
	require.NoError(t, err)

	match, err := f.svc.MatchLatest(f.ctx, f.db, f.orgID, hash)
	require.NoError(t, err)
	assert.Equal(t, newer.ID, match.Delivery.ID)
	assert.Equal(t, int64(2), match.Outstanding)

	require.NoError(t, f.svc.MarkResponded(f.ctx, f.db, match.Delivery))
	assert.Equal(t, domain.StatusResponded, match.Delivery.Status)
	assert.ErrorIs(t, f.svc.MarkResponded(f.ctx, f.db, match.Delivery), domain.ErrAlreadyResponded)

	// the newest delivery stays the match even after it was answered
	again, err := f.svc.MatchLatest(f.ctx, f.db, f.orgID, hash)
	require.NoError(t, err)
	assert.Equal(t, newer.ID, again.Delivery.ID)
	assert.Equal(t, int64(1), again.Outstanding)
	assert.NotEqual(t, older.ID, again.Delivery.ID)
}

func TestListFiltersByStatus(t *testing.T) {
	f := setupDelivery(t)
	survey := f.createSurvey(t, "Listing", true)

	_, err := f.svc.Send(f.ctx, domain.SendRequest{SurveyID: survey.ID.String(), PhoneNumber: "+5511999990001"})
	require.NoError(t, err)
	f.clock.Advance(time.Second)
	_, err = f.svc.Send(f.ctx, domain.SendRequest{SurveyID: survey.ID.String(), PhoneNumber: failingNumber})
	require.Error(t, err)

	all, err := f.svc.List(f.ctx, domain.ListRequest{})
	require.NoError(t, err)
	assert.Len(t, all.Deliveries, 2)

	failed, err := f.svc.List(f.ctx, domain.ListRequest{Status: "failed"})
	require.NoError(t, err)
	require.Len(t, failed.Deliveries, 1)
	assert.Equal(t, domain.StatusFailed, failed.Deliveries[0].Status)

	_, err = f.svc.List(f.ctx, domain.ListRequest{Status: "lost"})
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)
}
