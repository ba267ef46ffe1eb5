package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/flowpulse/flowpulse/internal/response/domain"
	"github.com/flowpulse/flowpulse/pkg/db/option"
	"github.com/flowpulse/flowpulse/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, response *domain.Response) error {
	return db.WithContext(ctx).Create(response).Error
}

func (r *repo) List(ctx context.Context, db *gorm.DB, orgID snowflake.ID, filter domain.ListFilter, page pagination.Pagination) ([]*domain.Response, error) {
	var responses []*domain.Response
	stmt := db.WithContext(ctx).
		Model(&domain.Response{}).
		Where("org_id = ?", orgID)
	if filter.Category != "" {
		stmt = stmt.Where("category = ?", filter.Category)
	}
	if filter.SurveyID != 0 {
		stmt = stmt.Where("survey_id = ?", filter.SurveyID)
	}
	stmt = option.ApplyPagination(page).Apply(stmt)
	if err := stmt.Find(&responses).Error; err != nil {
		return nil, err
	}
	return responses, nil
}
