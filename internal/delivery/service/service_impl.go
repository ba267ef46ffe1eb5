package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/flowpulse/flowpulse/internal/clock"
	"github.com/flowpulse/flowpulse/internal/config"
	customerdomain "github.com/flowpulse/flowpulse/internal/customer/domain"
	dailymetrics "github.com/flowpulse/flowpulse/internal/dailymetrics/domain"
	"github.com/flowpulse/flowpulse/internal/delivery/domain"
	obsmetrics "github.com/flowpulse/flowpulse/internal/observability/metrics"
	"github.com/flowpulse/flowpulse/internal/orgcontext"
	"github.com/flowpulse/flowpulse/internal/providers/whatsapp"
	surveydomain "github.com/flowpulse/flowpulse/internal/survey/domain"
	"github.com/flowpulse/flowpulse/pkg/db/pagination"
	"github.com/flowpulse/flowpulse/pkg/rls"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Repo     domain.Repository
	Surveys  surveydomain.Service
	Provider whatsapp.Provider
	Metrics  dailymetrics.Recorder
	Clock    clock.Clock
	Config   config.Config
	Obs      *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	repo     domain.Repository
	surveys  surveydomain.Service
	provider whatsapp.Provider
	metrics  dailymetrics.Recorder
	clock    clock.Clock
	flowID   string
	obs      *obsmetrics.Metrics
}

func New(p Params) domain.Service {
	c := p.Clock
	if c == nil {
		c = clock.New()
	}
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("delivery.service"),
		genID:    p.GenID,
		repo:     p.Repo,
		surveys:  p.Surveys,
		provider: p.Provider,
		metrics:  p.Metrics,
		clock:    c,
		flowID:   p.Config.Kapso.FlowID,
		obs:      p.Obs,
	}
}

// Send records a pending delivery, hands it to the WhatsApp provider and
// stores the vendor message id. The provider call happens outside any
// transaction; a failed send leaves the delivery in failed.
func (s *Service) Send(ctx context.Context, req domain.SendRequest) (*domain.Delivery, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return nil, domain.ErrInvalidOrganization
	}
	phone := strings.TrimSpace(req.PhoneNumber)
	if !hasDigits(phone) {
		return nil, domain.ErrInvalidPhoneNumber
	}

	survey, err := s.surveys.GetByID(ctx, req.SurveyID)
	if err != nil {
		return nil, err
	}
	if !survey.IsActive {
		return nil, domain.ErrSurveyInactive
	}

	now := s.clock.Now().UTC()
	delivery := &domain.Delivery{
		ID:              s.genID.Generate(),
		OrgID:           orgID,
		SurveyID:        survey.ID,
		PhoneNumberHash: customerdomain.HashPhoneNumber(phone),
		Status:          domain.StatusPending,
		IsTest:          req.IsTest,
		Metadata:        datatypes.JSONMap(req.Metadata),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if delivery.Metadata == nil {
		delivery.Metadata = datatypes.JSONMap{}
	}

	if err := rls.Transaction(s.db.WithContext(ctx), orgID, func(tx *gorm.DB) error {
		return s.repo.Insert(ctx, tx, delivery)
	}); err != nil {
		return nil, err
	}

	result, sendErr := s.provider.SendSurvey(ctx, whatsapp.SendSurveyRequest{
		OrgID:       orgID,
		DeliveryID:  delivery.ID,
		SurveyID:    survey.ID,
		PhoneNumber: phone,
		Question:    survey.Question,
		FlowID:      s.flowID,
	})

	next := domain.StatusQueued
	if sendErr != nil {
		next = domain.StatusFailed
		s.log.Warn("survey send failed",
			zap.String("org_id", orgID.String()),
			zap.String("delivery_id", delivery.ID.String()),
			zap.Error(sendErr),
		)
	}

	err = rls.Transaction(s.db.WithContext(ctx), orgID, func(tx *gorm.DB) error {
		updatedAt := s.clock.Now().UTC()
		if result.ExternalMessageID != "" {
			if err := s.repo.SetExternalID(ctx, tx, orgID, delivery.ID, result.ExternalMessageID, updatedAt); err != nil {
				return err
			}
			externalID := result.ExternalMessageID
			delivery.ExternalMessageID = &externalID
		}
		if _, err := s.repo.CompareAndSetStatus(ctx, tx, orgID, delivery.ID, domain.StatusPending, next, nil, updatedAt); err != nil {
			return err
		}
		delivery.Status = next
		delivery.UpdatedAt = updatedAt
		return nil
	})
	if err != nil {
		return nil, err
	}
	if sendErr != nil {
		return delivery, errors.Join(domain.ErrSendFailed, sendErr)
	}
	return delivery, nil
}

// MarkStatus applies a vendor acknowledgement. Unknown or already answered
// messages are not an error; the vendor retries until it sees a 2xx.
func (s *Service) MarkStatus(ctx context.Context, orgID snowflake.ID, externalMessageID string, status domain.Status) (*domain.Delivery, error) {
	if orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}
	externalMessageID = strings.TrimSpace(externalMessageID)
	if externalMessageID == "" {
		return nil, domain.ErrInvalidID
	}

	var updated *domain.Delivery
	err := rls.Transaction(s.db.WithContext(ctx), orgID, func(tx *gorm.DB) error {
		delivery, err := s.repo.FindByExternalID(ctx, tx, orgID, externalMessageID)
		if err != nil {
			return err
		}
		if delivery == nil {
			return domain.ErrNotFound
		}
		updated, err = s.transition(ctx, tx, delivery, status)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// MarkSent is the manual send acknowledgement used when no vendor callback arrives.
func (s *Service) MarkSent(ctx context.Context, id string) (*domain.Delivery, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return nil, domain.ErrInvalidOrganization
	}
	deliveryID, err := parseID(id)
	if err != nil {
		return nil, err
	}

	var updated *domain.Delivery
	err = rls.Transaction(s.db.WithContext(ctx), orgID, func(tx *gorm.DB) error {
		delivery, err := s.repo.FindByID(ctx, tx, orgID, deliveryID)
		if err != nil {
			return err
		}
		if delivery == nil {
			return domain.ErrNotFound
		}
		updated, err = s.transition(ctx, tx, delivery, domain.StatusSent)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *Service) transition(ctx context.Context, tx *gorm.DB, delivery *domain.Delivery, to domain.Status) (*domain.Delivery, error) {
	if delivery.Status == to || delivery.Status == domain.StatusResponded {
		return delivery, nil
	}
	if !domain.CanTransition(delivery.Status, to) {
		return nil, domain.ErrInvalidTransition
	}

	now := s.clock.Now().UTC()
	firstSend := domain.CountsAsSent(to) && delivery.SentAt == nil
	var sentAt *time.Time
	if firstSend {
		sentAt = &now
	}

	moved, err := s.repo.CompareAndSetStatus(ctx, tx, delivery.OrgID, delivery.ID, delivery.Status, to, sentAt, now)
	if err != nil {
		return nil, err
	}
	if !moved {
		return nil, domain.ErrStatusConflict
	}

	if firstSend && !delivery.IsTest {
		if err := s.metrics.RecordSent(ctx, tx, delivery.OrgID); err != nil {
			return nil, err
		}
	}
	if firstSend {
		s.obs.RecordDeliverySent(ctx, delivery.IsTest)
		delivery.SentAt = sentAt
	}

	delivery.Status = to
	delivery.UpdatedAt = now
	return delivery, nil
}

// MatchLatest is the delivery matcher used by the response recorder.
func (s *Service) MatchLatest(ctx context.Context, tx *gorm.DB, orgID snowflake.ID, phoneHash string) (domain.Match, error) {
	match, err := s.repo.FindLatestByPhoneHash(ctx, tx, orgID, phoneHash)
	if err != nil {
		return domain.Match{}, err
	}
	if match.Delivery == nil {
		return domain.Match{}, domain.ErrNoMatchingDelivery
	}
	return match, nil
}

// MarkResponded claims the delivery for a response. Losing the claim to a
// concurrent reply yields ErrAlreadyResponded.
func (s *Service) MarkResponded(ctx context.Context, tx *gorm.DB, delivery *domain.Delivery) error {
	now := s.clock.Now().UTC()
	claimed, err := s.repo.MarkResponded(ctx, tx, delivery.OrgID, delivery.ID, now)
	if err != nil {
		return err
	}
	if !claimed {
		return domain.ErrAlreadyResponded
	}
	delivery.Status = domain.StatusResponded
	delivery.RespondedAt = &now
	delivery.UpdatedAt = now
	return nil
}

func (s *Service) GetByID(ctx context.Context, id string) (*domain.Delivery, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return nil, domain.ErrInvalidOrganization
	}
	deliveryID, err := parseID(id)
	if err != nil {
		return nil, err
	}
	delivery, err := s.repo.FindByID(ctx, s.db, orgID, deliveryID)
	if err != nil {
		return nil, err
	}
	if delivery == nil {
		return nil, domain.ErrNotFound
	}
	return delivery, nil
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) (domain.ListResponse, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return domain.ListResponse{}, domain.ErrInvalidOrganization
	}

	var filter domain.ListFilter
	if raw := strings.TrimSpace(req.Status); raw != "" {
		status, ok := domain.ParseStatus(raw)
		if !ok {
			return domain.ListResponse{}, domain.ErrInvalidStatus
		}
		filter.Status = status
	}
	if raw := strings.TrimSpace(req.SurveyID); raw != "" {
		surveyID, err := parseID(raw)
		if err != nil {
			return domain.ListResponse{}, err
		}
		filter.SurveyID = surveyID
	}

	pageSize := pagination.NormalizeSize(req.PageSize)
	items, err := s.repo.List(ctx, s.db, orgID, filter, pagination.Pagination{
		PageToken: req.PageToken,
		PageSize:  pageSize,
	})
	if err != nil {
		return domain.ListResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(d *domain.Delivery) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        d.ID.String(),
			CreatedAt: d.CreatedAt.Format(time.RFC3339Nano),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if len(items) > pageSize {
		items = items[:pageSize]
	}

	deliveries := make([]domain.Delivery, 0, len(items))
	for _, item := range items {
		deliveries = append(deliveries, *item)
	}
	return domain.ListResponse{PageInfo: *pageInfo, Deliveries: deliveries}, nil
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}

func hasDigits(phone string) bool {
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			return true
		}
	}
	return false
}
