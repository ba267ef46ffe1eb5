package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/flowpulse/flowpulse/internal/clock"
	"github.com/flowpulse/flowpulse/internal/customer/domain"
	"github.com/flowpulse/flowpulse/internal/orgcontext"
	"github.com/flowpulse/flowpulse/pkg/db"
	"github.com/flowpulse/flowpulse/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  domain.Repository
	Clock clock.Clock
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  domain.Repository
	clock clock.Clock
}

func New(p Params) domain.Service {
	c := p.Clock
	if c == nil {
		c = clock.New()
	}
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("customer.service"),
		genID: p.GenID,
		repo:  p.Repo,
		clock: c,
	}
}

// Resolve returns the customer for (orgID, phoneHash), creating it on first
// contact. A concurrent insert of the same customer loses the unique-index
// race silently and is answered by re-reading the winner once.
func (s *Service) Resolve(ctx context.Context, tx *gorm.DB, orgID snowflake.ID, phoneHash string) (*domain.Customer, error) {
	if orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}
	phoneHash = strings.TrimSpace(phoneHash)
	if phoneHash == "" {
		return nil, domain.ErrInvalidPhoneHash
	}

	now := s.clock.Now().UTC()

	existing, err := s.repo.FindByPhoneHash(ctx, tx, orgID, phoneHash)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return s.touch(ctx, tx, existing, now)
	}

	customer := domain.Customer{
		ID:              s.genID.Generate(),
		OrgID:           orgID,
		PhoneNumberHash: phoneHash,
		LastSeenAt:      now,
		CreatedAt:       now,
	}
	inserted, err := s.repo.InsertIfAbsent(ctx, tx, &customer)
	if err != nil && !db.IsDuplicateKeyErr(err) {
		return nil, err
	}
	if inserted {
		return &customer, nil
	}

	s.log.Debug("customer insert lost race, re-fetching", zap.String("org_id", orgID.String()))
	existing, err = s.repo.FindByPhoneHash(ctx, tx, orgID, phoneHash)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, domain.ErrResolutionConflict
	}
	return s.touch(ctx, tx, existing, now)
}

func (s *Service) touch(ctx context.Context, tx *gorm.DB, customer *domain.Customer, now time.Time) (*domain.Customer, error) {
	if err := s.repo.TouchLastSeen(ctx, tx, customer.OrgID, customer.ID, now); err != nil {
		return nil, err
	}
	customer.LastSeenAt = now
	return customer, nil
}

func (s *Service) List(ctx context.Context, req domain.ListCustomerRequest) (domain.ListCustomerResponse, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return domain.ListCustomerResponse{}, domain.ErrInvalidOrganization
	}

	filter := domain.ListCustomerFilter{
		SeenFrom: req.SeenFrom,
		SeenTo:   req.SeenTo,
	}
	if phone := strings.TrimSpace(req.PhoneNumber); phone != "" {
		filter.PhoneNumberHash = domain.HashPhoneNumber(phone)
	}

	pageSize := pagination.NormalizeSize(req.PageSize)
	items, err := s.repo.List(ctx, s.db, orgID, filter, pagination.Pagination{
		PageToken: req.PageToken,
		PageSize:  pageSize,
	})
	if err != nil {
		return domain.ListCustomerResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(customer *domain.Customer) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        customer.ID.String(),
			CreatedAt: customer.CreatedAt.Format(time.RFC3339Nano),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if len(items) > pageSize {
		items = items[:pageSize]
	}

	customers := make([]domain.Customer, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		customers = append(customers, *item)
	}

	return domain.ListCustomerResponse{PageInfo: *pageInfo, Customers: customers}, nil
}

func (s *Service) GetByID(ctx context.Context, req domain.GetCustomerRequest) (domain.Customer, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return domain.Customer{}, domain.ErrInvalidOrganization
	}

	id, err := snowflake.ParseString(strings.TrimSpace(req.ID))
	if err != nil || id == 0 {
		return domain.Customer{}, domain.ErrInvalidID
	}

	item, err := s.repo.FindByID(ctx, s.db, orgID, id)
	if err != nil {
		return domain.Customer{}, err
	}
	if item == nil {
		return domain.Customer{}, domain.ErrNotFound
	}

	return *item, nil
}
