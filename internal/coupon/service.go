package coupon

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/daap14/billstore/internal/event"
	"github.com/daap14/billstore/internal/store"
)

// Service runs coupon writes in transaction scopes and publishes their
// events once committed.
type Service struct {
	store *store.Store
	repo  *PostgresRepository
}

// NewService creates a Service on s.
func NewService(s *store.Store) *Service {
	return &Service{store: s, repo: NewRepository(s.Pool())}
}

// Create inserts a coupon in its own transaction.
func (s *Service) Create(ctx context.Context, c CouponNew) (*Coupon, error) {
	created, err := store.InTransaction(ctx, s.store, func(ctx context.Context, tx pgx.Tx) (*Coupon, error) {
		return s.repo.WithTx(tx).Create(ctx, c)
	})
	if err != nil {
		return nil, err
	}
	s.store.Publish(ctx, event.New(event.CouponCreated, created.TenantID, created.ID))
	return created, nil
}

// CreateTx inserts a coupon inside a caller's transaction, as a savepoint.
// The caller publishes events after its own commit.
func (s *Service) CreateTx(ctx context.Context, tx pgx.Tx, c CouponNew) (*Coupon, error) {
	return store.InTransactionWith(ctx, tx, func(ctx context.Context, tx pgx.Tx) (*Coupon, error) {
		return s.repo.WithTx(tx).Create(ctx, c)
	})
}

// Update applies patch in its own transaction.
func (s *Service) Update(ctx context.Context, patch CouponPatch) (*Coupon, error) {
	updated, err := store.InTransaction(ctx, s.store, func(ctx context.Context, tx pgx.Tx) (*Coupon, error) {
		return s.repo.WithTx(tx).Update(ctx, patch)
	})
	if err != nil {
		return nil, err
	}
	s.store.Publish(ctx, event.New(event.CouponUpdated, updated.TenantID, updated.ID))
	return updated, nil
}

// Get returns a tenant's coupon by id.
func (s *Service) Get(ctx context.Context, tenantID, id uuid.UUID) (*Coupon, error) {
	return s.repo.GetByID(ctx, tenantID, id)
}

// GetByCode returns a tenant's coupon by code.
func (s *Service) GetByCode(ctx context.Context, tenantID uuid.UUID, code string) (*Coupon, error) {
	return s.repo.GetByCode(ctx, tenantID, code)
}

// List returns a page of a tenant's coupons.
func (s *Service) List(ctx context.Context, tenantID uuid.UUID, filter ListFilter) (*ListResult, error) {
	return s.repo.List(ctx, tenantID, filter)
}
