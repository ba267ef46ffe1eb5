package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/flowpulse/flowpulse/internal/config"
	deliverydomain "github.com/flowpulse/flowpulse/internal/delivery/domain"
	"github.com/flowpulse/flowpulse/internal/observability/logger"
	obsmetrics "github.com/flowpulse/flowpulse/internal/observability/metrics"
	"github.com/flowpulse/flowpulse/internal/ratelimit"
	responsedomain "github.com/flowpulse/flowpulse/internal/response/domain"
	"github.com/flowpulse/flowpulse/internal/webhook/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log        *zap.Logger
	Config     config.Config
	Deliveries deliverydomain.Service
	Responses  responsedomain.Service
	Limiter    *ratelimit.WebhookLimiter `optional:"true"`
	Obs        *obsmetrics.Metrics       `optional:"true"`
}

type Service struct {
	log        *zap.Logger
	secret     string
	deliveries deliverydomain.Service
	responses  responsedomain.Service
	limiter    domain.Limiter
	obs        *obsmetrics.Metrics
}

func New(p Params) domain.Service {
	return NewWithLimiter(p, p.Limiter)
}

// NewWithLimiter builds the service around any Limiter implementation.
func NewWithLimiter(p Params, limiter domain.Limiter) *Service {
	return &Service{
		log:        p.Log.Named("webhook.service"),
		secret:     strings.TrimSpace(p.Config.Kapso.WebhookSecret),
		deliveries: p.Deliveries,
		responses:  p.Responses,
		limiter:    limiter,
		obs:        p.Obs,
	}
}

// Verify accepts everything when no secret is configured.
func (s *Service) Verify(body []byte, signature string) error {
	if s.secret == "" {
		return nil
	}
	if err := verifySignature(s.secret, body, signature); err != nil {
		s.obs.RecordWebhookDenied(context.Background(), "signature")
		return err
	}
	return nil
}

func (s *Service) Handle(ctx context.Context, orgID snowflake.ID, body []byte) (domain.Outcome, error) {
	var envelope domain.Envelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return domain.Outcome{}, domain.ErrInvalidPayload
	}
	envelope.Type = strings.TrimSpace(envelope.Type)
	if err := envelope.Validate(); err != nil {
		s.obs.RecordWebhookEvent(ctx, envelope.Type, "invalid")
		return domain.Outcome{}, err
	}

	log := logger.WithContext(ctx, s.log).With(
		zap.String("event_type", envelope.Type),
		zap.String("message_id", envelope.MessageID),
	)

	if s.limiter != nil {
		allowed, err := s.limiter.AllowOrg(ctx, orgID.String())
		if err != nil {
			log.Warn("webhook rate limit check failed", zap.Error(err))
		} else if !allowed {
			s.obs.RecordWebhookDenied(ctx, "org_rate")
			return domain.Outcome{}, domain.ErrRateLimited
		}

		token, acquired, err := s.limiter.TryLockMessage(ctx, orgID.String(), lockKey(envelope))
		switch {
		case err != nil:
			log.Warn("webhook message lock failed", zap.Error(err))
		case !acquired:
			s.obs.RecordWebhookDenied(ctx, "in_flight")
			return domain.Outcome{}, domain.ErrInFlight
		default:
			defer func() {
				if err := s.limiter.ReleaseMessage(ctx, orgID.String(), lockKey(envelope), token); err != nil {
					log.Warn("webhook message unlock failed", zap.Error(err))
				}
			}()
		}
	}

	var (
		outcome domain.Outcome
		err     error
	)
	switch envelope.Type {
	case domain.EventMessageStatus:
		outcome, err = s.handleStatus(ctx, log, orgID, envelope)
	case domain.EventFlowResponse:
		outcome, err = s.handleFlow(ctx, log, orgID, envelope)
	default:
		log.Debug("webhook event ignored")
		outcome = domain.Outcome{Status: domain.OutcomeIgnored}
	}
	if err != nil {
		s.obs.RecordWebhookEvent(ctx, envelope.Type, "error")
		return domain.Outcome{}, err
	}

	outcome.EventType = envelope.Type
	s.obs.RecordWebhookEvent(ctx, envelope.Type, outcome.Status)
	return outcome, nil
}

func (s *Service) handleStatus(ctx context.Context, log *zap.Logger, orgID snowflake.ID, envelope domain.Envelope) (domain.Outcome, error) {
	status, _ := deliverydomain.ParseStatus(envelope.Status)
	delivery, err := s.deliveries.MarkStatus(ctx, orgID, envelope.MessageID, status)
	switch {
	case errors.Is(err, deliverydomain.ErrNotFound):
		log.Info("status for unknown message ignored")
		return domain.Outcome{Status: domain.OutcomeIgnored}, nil
	case errors.Is(err, deliverydomain.ErrInvalidTransition):
		log.Info("out of order status ignored", zap.String("status", envelope.Status))
		return domain.Outcome{Status: domain.OutcomeIgnored}, nil
	case err != nil:
		return domain.Outcome{}, err
	}
	return domain.Outcome{Status: domain.OutcomeProcessed, DeliveryID: delivery.ID.String()}, nil
}

func (s *Service) handleFlow(ctx context.Context, log *zap.Logger, orgID snowflake.ID, envelope domain.Envelope) (domain.Outcome, error) {
	result, err := s.responses.ProcessFlowResponse(ctx, orgID, envelope.From, *envelope.Flow)
	switch {
	case errors.Is(err, responsedomain.ErrAlreadyResponded):
		return domain.Outcome{Status: domain.OutcomeDuplicate}, nil
	case errors.Is(err, responsedomain.ErrNoMatchingDelivery),
		errors.Is(err, responsedomain.ErrAmbiguousDelivery):
		log.Warn("flow reply not recorded", zap.Error(err))
		return domain.Outcome{Status: domain.OutcomeUnmatched}, nil
	case err != nil:
		return domain.Outcome{}, err
	}
	if result == nil {
		return domain.Outcome{Status: domain.OutcomeIgnored}, nil
	}
	return domain.Outcome{
		Status:     domain.OutcomeProcessed,
		ResponseID: result.ResponseID.String(),
		DeliveryID: result.DeliveryID.String(),
	}, nil
}

func lockKey(envelope domain.Envelope) string {
	if envelope.MessageID != "" {
		return envelope.Type + ":" + envelope.MessageID
	}
	return ""
}
