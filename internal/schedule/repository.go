package schedule

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrScheduleNotFound is returned when no schedule matches the tenant and id.
var ErrScheduleNotFound = errors.New("schedule not found")

// ErrPlanVersionNotFound is returned when the plan version does not exist
// for the tenant.
var ErrPlanVersionNotFound = errors.New("plan version not found")

// ErrDuplicatePeriod is returned when the plan version already has a
// schedule for the billing period.
var ErrDuplicatePeriod = errors.New("schedule for billing period already exists")

// Repository reads and writes billing schedules. Tenant ownership is
// inherited from the plan version.
type Repository interface {
	Create(ctx context.Context, tenantID uuid.UUID, s ScheduleNew) (*Schedule, error)
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*Schedule, error)
	ListByPlanVersion(ctx context.Context, tenantID, planVersionID uuid.UUID) ([]Schedule, error)
	Update(ctx context.Context, tenantID uuid.UUID, patch SchedulePatch) (*Schedule, error)
}
