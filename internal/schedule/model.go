package schedule

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/daap14/billstore/internal/store"
)

// BillingPeriod is the cadence a schedule bills at.
type BillingPeriod string

const (
	Monthly   BillingPeriod = "MONTHLY"
	Quarterly BillingPeriod = "QUARTERLY"
	Annual    BillingPeriod = "ANNUAL"
)

// ParseBillingPeriod maps a stored enum label to a BillingPeriod.
func ParseBillingPeriod(s string) (BillingPeriod, error) {
	switch p := BillingPeriod(s); p {
	case Monthly, Quarterly, Annual:
		return p, nil
	default:
		return "", fmt.Errorf("decoding billing period: %w: unknown value %q", store.ErrDecoding, s)
	}
}

// Months is the length of one period.
func (p BillingPeriod) Months() int {
	switch p {
	case Monthly:
		return 1
	case Quarterly:
		return 3
	case Annual:
		return 12
	default:
		return 0
	}
}

// Schedule attaches a billing period and its price ramps to a plan version.
type Schedule struct {
	ID            uuid.UUID
	BillingPeriod BillingPeriod
	PlanVersionID uuid.UUID
	Ramps         Ramps
}

// ScheduleNew holds the fields of a schedule to create.
type ScheduleNew struct {
	BillingPeriod BillingPeriod
	PlanVersionID uuid.UUID
	Ramps         Ramps
}

// SchedulePatch replaces the ramps when Ramps is set and leaves them
// untouched otherwise.
type SchedulePatch struct {
	ID    uuid.UUID
	Ramps *Ramps
}
