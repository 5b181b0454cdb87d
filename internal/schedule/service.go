package schedule

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/daap14/billstore/internal/event"
	"github.com/daap14/billstore/internal/store"
)

// Service runs schedule writes in transaction scopes and publishes their
// events once committed.
type Service struct {
	store *store.Store
	repo  *PostgresRepository
}

// NewService creates a Service on s.
func NewService(s *store.Store) *Service {
	return &Service{store: s, repo: NewRepository(s.Pool())}
}

// Create inserts the schedules of one plan version atomically: either all
// periods are stored or none are.
func (s *Service) Create(ctx context.Context, tenantID uuid.UUID, schedules ...ScheduleNew) ([]Schedule, error) {
	created, err := store.InTransaction(ctx, s.store, func(ctx context.Context, tx pgx.Tx) ([]Schedule, error) {
		repo := s.repo.WithTx(tx)
		out := make([]Schedule, 0, len(schedules))
		for _, n := range schedules {
			sc, err := repo.Create(ctx, tenantID, n)
			if err != nil {
				return nil, err
			}
			out = append(out, *sc)
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}

	events := make([]event.Event, 0, len(created))
	for _, sc := range created {
		events = append(events, event.New(event.ScheduleCreated, tenantID, sc.ID))
	}
	s.store.Publish(ctx, events...)
	return created, nil
}

// Update applies patch in its own transaction.
func (s *Service) Update(ctx context.Context, tenantID uuid.UUID, patch SchedulePatch) (*Schedule, error) {
	updated, err := store.InTransaction(ctx, s.store, func(ctx context.Context, tx pgx.Tx) (*Schedule, error) {
		return s.repo.WithTx(tx).Update(ctx, tenantID, patch)
	})
	if err != nil {
		return nil, err
	}
	s.store.Publish(ctx, event.New(event.ScheduleUpdated, tenantID, updated.ID))
	return updated, nil
}

// Get returns a schedule by id.
func (s *Service) Get(ctx context.Context, tenantID, id uuid.UUID) (*Schedule, error) {
	return s.repo.GetByID(ctx, tenantID, id)
}

// ListByPlanVersion returns the schedules of a plan version.
func (s *Service) ListByPlanVersion(ctx context.Context, tenantID, planVersionID uuid.UUID) ([]Schedule, error) {
	return s.repo.ListByPlanVersion(ctx, tenantID, planVersionID)
}
