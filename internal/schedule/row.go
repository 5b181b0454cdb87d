package schedule

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/daap14/billstore/internal/store"
)

// scheduleRow is the stored form of a schedule. Ramps is the raw document;
// the storage layer passes it through untouched.
type scheduleRow struct {
	ID            uuid.UUID
	BillingPeriod string
	PlanVersionID uuid.UUID
	Ramps         []byte
}

// scheduleRowPatch leaves the ramps column alone when Ramps is nil.
type scheduleRowPatch struct {
	ID    uuid.UUID
	Ramps []byte
}

func (r scheduleRow) toDomain() (*Schedule, error) {
	period, err := ParseBillingPeriod(r.BillingPeriod)
	if err != nil {
		return nil, fmt.Errorf("schedule %s: %w", r.ID, err)
	}
	ramps, err := DecodeRamps(r.Ramps)
	if err != nil {
		return nil, fmt.Errorf("schedule %s: %w", r.ID, err)
	}
	return &Schedule{
		ID:            r.ID,
		BillingPeriod: period,
		PlanVersionID: r.PlanVersionID,
		Ramps:         ramps,
	}, nil
}

func (n ScheduleNew) toRow() (scheduleRow, error) {
	if n.BillingPeriod.Months() == 0 {
		return scheduleRow{}, fmt.Errorf("encoding billing period: %w: unknown value %q", store.ErrEncoding, n.BillingPeriod)
	}
	ramps, err := EncodeRamps(n.Ramps)
	if err != nil {
		return scheduleRow{}, err
	}
	id, err := uuid.NewV7()
	if err != nil {
		return scheduleRow{}, fmt.Errorf("generating schedule id: %w", err)
	}
	return scheduleRow{
		ID:            id,
		BillingPeriod: string(n.BillingPeriod),
		PlanVersionID: n.PlanVersionID,
		Ramps:         ramps,
	}, nil
}

func (p SchedulePatch) toRow() (scheduleRowPatch, error) {
	row := scheduleRowPatch{ID: p.ID}
	if p.Ramps != nil {
		ramps, err := EncodeRamps(*p.Ramps)
		if err != nil {
			return scheduleRowPatch{}, err
		}
		row.Ramps = ramps
	}
	return row, nil
}
