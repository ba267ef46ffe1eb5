package domain

import (
	"context"
	"errors"
)

type CreateRequest struct {
	Name     string     `json:"name"`
	Type     SurveyType `json:"type"`
	Question string     `json:"question"`
	IsActive *bool      `json:"is_active"`
}

type UpdateRequest struct {
	ID       string  `json:"-"`
	Name     *string `json:"name"`
	Question *string `json:"question"`
	IsActive *bool   `json:"is_active"`
}

type ListRequest struct {
	Active *bool
	Type   SurveyType
}

type Service interface {
	Create(context.Context, CreateRequest) (*Survey, error)
	List(context.Context, ListRequest) ([]Survey, error)
	GetByID(context.Context, string) (*Survey, error)
	Update(context.Context, UpdateRequest) (*Survey, error)
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidName         = errors.New("invalid_name")
	ErrInvalidType         = errors.New("invalid_survey_type")
	ErrInvalidQuestion     = errors.New("invalid_question")
	ErrInvalidID           = errors.New("invalid_id")
	ErrNotFound            = errors.New("not_found")
	ErrSlugTaken           = errors.New("slug_taken")
)
