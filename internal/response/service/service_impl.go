package service

import (
	"context"
	"errors"
	"maps"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/flowpulse/flowpulse/internal/clock"
	"github.com/flowpulse/flowpulse/internal/config"
	customerdomain "github.com/flowpulse/flowpulse/internal/customer/domain"
	dailymetrics "github.com/flowpulse/flowpulse/internal/dailymetrics/domain"
	deliverydomain "github.com/flowpulse/flowpulse/internal/delivery/domain"
	"github.com/flowpulse/flowpulse/internal/nps"
	"github.com/flowpulse/flowpulse/internal/observability/logger"
	obsmetrics "github.com/flowpulse/flowpulse/internal/observability/metrics"
	"github.com/flowpulse/flowpulse/internal/orgcontext"
	"github.com/flowpulse/flowpulse/internal/response/domain"
	"github.com/flowpulse/flowpulse/pkg/db"
	"github.com/flowpulse/flowpulse/pkg/db/pagination"
	"github.com/flowpulse/flowpulse/pkg/rls"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Repo       domain.Repository
	Customers  customerdomain.Service
	Deliveries deliverydomain.Matcher
	Metrics    dailymetrics.Recorder
	Clock      clock.Clock
	Config     *config.MetricsConfigHolder
	Obs        *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	repo       domain.Repository
	customers  customerdomain.Service
	deliveries deliverydomain.Matcher
	metrics    dailymetrics.Recorder
	clock      clock.Clock
	config     *config.MetricsConfigHolder
	obs        *obsmetrics.Metrics
}

func New(p Params) domain.Service {
	c := p.Clock
	if c == nil {
		c = clock.New()
	}
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("response.service"),
		genID:      p.GenID,
		repo:       p.Repo,
		customers:  p.Customers,
		deliveries: p.Deliveries,
		metrics:    p.Metrics,
		clock:      c,
		config:     p.Config,
		obs:        p.Obs,
	}
}

// ProcessResponse records a reply from customerPhone against the most recent
// delivery to that phone. Customer resolution, the response insert, the
// delivery transition and the rollup increment commit or roll back together.
func (s *Service) ProcessResponse(ctx context.Context, orgID snowflake.ID, customerPhone string, score int, feedback *string) (*domain.Result, error) {
	if orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}
	phone := strings.TrimSpace(customerPhone)
	if !hasDigits(phone) {
		return nil, domain.ErrInvalidPhoneNumber
	}
	if !nps.ValidScore(score) {
		return nil, domain.ErrInvalidScore
	}

	phoneHash := customerdomain.HashPhoneNumber(phone)
	category := nps.Categorize(score)
	log := s.log.With(zap.String("org_id", orgID.String()))

	var (
		result *domain.Result
		isTest bool
	)
	err := rls.Transaction(s.db.WithContext(ctx), orgID, func(tx *gorm.DB) error {
		customer, err := s.customers.Resolve(ctx, tx, orgID, phoneHash)
		if err != nil {
			return err
		}

		match, err := s.deliveries.MatchLatest(ctx, tx, orgID, phoneHash)
		if err != nil {
			return err
		}
		delivery := match.Delivery
		if delivery.Status == deliverydomain.StatusResponded {
			return domain.ErrAlreadyResponded
		}
		if match.Outstanding > 1 {
			if err := s.onAmbiguousMatch(ctx, log, delivery, match.Outstanding); err != nil {
				return err
			}
		}

		now := s.clock.Now().UTC()
		response := &domain.Response{
			ID:            s.genID.Generate(),
			OrgID:         orgID,
			SurveyID:      delivery.SurveyID,
			DeliveryID:    delivery.ID,
			CustomerID:    customer.ID,
			CustomerPhone: phone,
			Score:         score,
			Category:      category,
			Feedback:      feedback,
			Metadata:      copyMetadata(delivery.Metadata),
			IsTest:        delivery.IsTest,
			RespondedAt:   now,
			CreatedAt:     now,
		}
		if err := s.repo.Insert(ctx, tx, response); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return domain.ErrAlreadyResponded
			}
			return err
		}

		if err := s.deliveries.MarkResponded(ctx, tx, delivery); err != nil {
			return err
		}

		if err := s.metrics.RecordResponse(ctx, tx, orgID, dailymetrics.ResponseEvent{
			Score:    score,
			Category: category,
			IsTest:   delivery.IsTest,
		}); err != nil {
			return err
		}

		isTest = delivery.IsTest
		result = &domain.Result{
			ResponseID: response.ID,
			Category:   category,
			CustomerID: customer.ID,
			DeliveryID: delivery.ID,
		}
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNoMatchingDelivery):
			s.obs.RecordOrphan(ctx)
			log.Warn("reply without matching delivery", logger.PhoneHash(phoneHash))
		case errors.Is(err, domain.ErrAlreadyResponded):
			s.obs.RecordDuplicate(ctx)
			log.Info("duplicate reply ignored", logger.PhoneHash(phoneHash))
		}
		return nil, err
	}

	s.obs.RecordResponse(ctx, string(category), isTest)
	log.Info("response recorded",
		zap.String("response_id", result.ResponseID.String()),
		zap.String("delivery_id", result.DeliveryID.String()),
		zap.String("category", string(category)),
		zap.Bool("is_test", isTest),
	)
	return result, nil
}

// ProcessFlowResponse parses a flow reply before recording it. A reply that
// carries no usable rating is not an error and produces no rows.
func (s *Service) ProcessFlowResponse(ctx context.Context, orgID snowflake.ID, customerPhone string, payload domain.FlowPayload) (*domain.Result, error) {
	rating := domain.ParseFlowRating(payload)
	if rating.Score == nil {
		s.log.Debug("flow reply ignored",
			zap.String("org_id", orgID.String()),
			zap.Error(domain.ErrInvalidFlowRating),
		)
		return nil, nil
	}
	return s.ProcessResponse(ctx, orgID, customerPhone, *rating.Score, rating.Feedback)
}

func (s *Service) Record(ctx context.Context, req domain.RecordRequest) (*domain.Result, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return nil, domain.ErrInvalidOrganization
	}
	if req.Score == nil {
		return nil, domain.ErrInvalidScore
	}
	var feedback *string
	if req.Feedback != nil {
		if trimmed := strings.TrimSpace(*req.Feedback); trimmed != "" {
			feedback = &trimmed
		}
	}
	return s.ProcessResponse(ctx, orgID, req.PhoneNumber, *req.Score, feedback)
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) (domain.ListResponse, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return domain.ListResponse{}, domain.ErrInvalidOrganization
	}

	var filter domain.ListFilter
	if raw := strings.ToLower(strings.TrimSpace(req.Category)); raw != "" {
		switch category := nps.Category(raw); category {
		case nps.CategoryPromoter, nps.CategoryPassive, nps.CategoryDetractor:
			filter.Category = category
		default:
			return domain.ListResponse{}, domain.ErrInvalidCategory
		}
	}
	if raw := strings.TrimSpace(req.SurveyID); raw != "" {
		surveyID, err := snowflake.ParseString(raw)
		if err != nil || surveyID == 0 {
			return domain.ListResponse{}, domain.ErrInvalidID
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

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(r *domain.Response) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        r.ID.String(),
			CreatedAt: r.CreatedAt.Format(time.RFC3339Nano),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if len(items) > pageSize {
		items = items[:pageSize]
	}

	responses := make([]domain.Response, 0, len(items))
	for _, item := range items {
		responses = append(responses, *item)
	}
	return domain.ListResponse{PageInfo: *pageInfo, Responses: responses}, nil
}

func (s *Service) onAmbiguousMatch(ctx context.Context, log *zap.Logger, delivery *deliverydomain.Delivery, outstanding int64) error {
	policy := s.config.Get().AmbiguousMatch
	s.obs.RecordAmbiguousMatch(ctx, policy)
	log.Warn("reply matches more than one outstanding delivery",
		zap.String("delivery_id", delivery.ID.String()),
		zap.Int64("outstanding", outstanding),
		zap.String("policy", policy),
	)
	if policy == config.AmbiguousMatchReject {
		return domain.ErrAmbiguousDelivery
	}
	return nil
}

func copyMetadata(src datatypes.JSONMap) datatypes.JSONMap {
	if src == nil {
		return datatypes.JSONMap{}
	}
	return datatypes.JSONMap(maps.Clone(map[string]any(src)))
}

func hasDigits(phone string) bool {
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			return true
		}
	}
	return false
}
