package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/flowpulse/flowpulse/internal/orgcontext"
	"github.com/flowpulse/flowpulse/internal/survey/domain"
	"github.com/flowpulse/flowpulse/pkg/db"
	"github.com/flowpulse/flowpulse/pkg/db/option"
	"github.com/flowpulse/flowpulse/pkg/repository"
	"github.com/gosimple/slug"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	surveyrepo repository.Repository[domain.Survey]
}

func New(p Params) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("survey.service"),
		genID:      p.GenID,
		surveyrepo: repository.ProvideStore[domain.Survey](p.DB),
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (*domain.Survey, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return nil, domain.ErrInvalidOrganization
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}
	surveyType := domain.SurveyType(strings.ToLower(strings.TrimSpace(string(req.Type))))
	if surveyType == "" {
		surveyType = domain.SurveyTypeNPS
	}
	if !surveyType.Valid() {
		return nil, domain.ErrInvalidType
	}
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, domain.ErrInvalidQuestion
	}
	surveySlug := slug.Make(name)
	if surveySlug == "" {
		return nil, domain.ErrInvalidName
	}

	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}

	now := time.Now().UTC()
	survey := &domain.Survey{
		ID:        s.genID.Generate(),
		OrgID:     orgID,
		Name:      name,
		Slug:      surveySlug,
		Type:      surveyType,
		Question:  question,
		IsActive:  active,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.surveyrepo.Create(ctx, survey); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrSlugTaken
		}
		return nil, err
	}
	return survey, nil
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) ([]domain.Survey, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return nil, domain.ErrInvalidOrganization
	}

	query := &domain.Survey{OrgID: orgID, Type: req.Type}
	opts := []option.QueryOption{option.WithOrder("created_at desc, id desc")}
	if req.Active != nil {
		active := *req.Active
		opts = append(opts, option.QueryOptionFunc(func(tx *gorm.DB) *gorm.DB {
			return tx.Where("is_active = ?", active)
		}))
	}

	items, err := s.surveyrepo.Find(ctx, query, opts...)
	if err != nil {
		return nil, err
	}

	surveys := make([]domain.Survey, 0, len(items))
	for _, item := range items {
		surveys = append(surveys, *item)
	}
	return surveys, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (*domain.Survey, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return nil, domain.ErrInvalidOrganization
	}
	surveyID, err := parseID(id)
	if err != nil {
		return nil, err
	}

	item, err := s.surveyrepo.FindOne(ctx, &domain.Survey{ID: surveyID, OrgID: orgID})
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, domain.ErrNotFound
	}
	return item, nil
}

func (s *Service) Update(ctx context.Context, req domain.UpdateRequest) (*domain.Survey, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return nil, domain.ErrInvalidOrganization
	}
	surveyID, err := parseID(req.ID)
	if err != nil {
		return nil, err
	}

	values := map[string]any{}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, domain.ErrInvalidName
		}
		values["name"] = name
	}
	if req.Question != nil {
		question := strings.TrimSpace(*req.Question)
		if question == "" {
			return nil, domain.ErrInvalidQuestion
		}
		values["question"] = question
	}
	if req.IsActive != nil {
		values["is_active"] = *req.IsActive
	}

	if len(values) > 0 {
		values["updated_at"] = time.Now().UTC()
		affected, err := s.surveyrepo.Update(ctx, &domain.Survey{ID: surveyID, OrgID: orgID}, values)
		if err != nil {
			return nil, err
		}
		if affected == 0 {
			return nil, domain.ErrNotFound
		}
	}

	return s.GetByID(ctx, req.ID)
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}
