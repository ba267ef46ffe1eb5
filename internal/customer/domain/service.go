package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/flowpulse/flowpulse/pkg/db/pagination"
	"gorm.io/gorm"
)

type ListCustomerRequest struct {
	PageToken   string
	PageSize    int
	SeenFrom    *time.Time
	SeenTo      *time.Time
	PhoneNumber string
}

type ListCustomerFilter struct {
	PhoneNumberHash string
	SeenFrom        *time.Time
	SeenTo          *time.Time
}

type ListCustomerResponse struct {
	pagination.PageInfo
	Customers []Customer `json:"customers"`
}

type GetCustomerRequest struct {
	ID string
}

type Service interface {
	// Resolve finds or creates the customer for phoneHash using the caller's transaction.
	Resolve(ctx context.Context, tx *gorm.DB, orgID snowflake.ID, phoneHash string) (*Customer, error)
	List(context.Context, ListCustomerRequest) (ListCustomerResponse, error)
	GetByID(context.Context, GetCustomerRequest) (Customer, error)
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidPhoneHash    = errors.New("invalid_phone_number_hash")
	ErrInvalidID           = errors.New("invalid_id")
	ErrNotFound            = errors.New("not_found")
	ErrResolutionConflict  = errors.New("customer_resolution_conflict")
)
