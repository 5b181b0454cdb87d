package coupon

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// couponRow is the stored form of a coupon; Discount is the raw JSON
// document of the discount column.
type couponRow struct {
	ID              uuid.UUID
	Code            string
	Description     string
	TenantID        uuid.UUID
	Discount        []byte
	ExpiresAt       *time.Time
	RedemptionLimit *int32
	RecurringValue  int32
	Reusable        bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type couponRowNew struct {
	ID              uuid.UUID
	Code            string
	Description     string
	TenantID        uuid.UUID
	Discount        []byte
	ExpiresAt       *time.Time
	RedemptionLimit *int32
	RecurringValue  int32
	Reusable        bool
}

// couponRowPatch mirrors CouponPatch; a nil Discount leaves the column as is.
type couponRowPatch struct {
	ID          uuid.UUID
	TenantID    uuid.UUID
	Description *string
	Discount    []byte
}

func (r couponRow) toDomain() (*Coupon, error) {
	discount, err := DecodeDiscount(r.Discount)
	if err != nil {
		return nil, fmt.Errorf("coupon %s: %w", r.ID, err)
	}

	return &Coupon{
		ID:              r.ID,
		Code:            r.Code,
		Description:     r.Description,
		TenantID:        r.TenantID,
		Discount:        discount,
		ExpiresAt:       r.ExpiresAt,
		RedemptionLimit: r.RedemptionLimit,
		RecurringValue:  r.RecurringValue,
		Reusable:        r.Reusable,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}, nil
}

func (n CouponNew) toRow() (couponRowNew, error) {
	discount, err := EncodeDiscount(n.Discount)
	if err != nil {
		return couponRowNew{}, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return couponRowNew{}, fmt.Errorf("generating coupon id: %w", err)
	}

	return couponRowNew{
		ID:              id,
		Code:            n.Code,
		Description:     n.Description,
		TenantID:        n.TenantID,
		Discount:        discount,
		ExpiresAt:       n.ExpiresAt,
		RedemptionLimit: n.RedemptionLimit,
		RecurringValue:  n.RecurringValue,
		Reusable:        n.Reusable,
	}, nil
}

func (p CouponPatch) toRow() (couponRowPatch, error) {
	row := couponRowPatch{
		ID:          p.ID,
		TenantID:    p.TenantID,
		Description: p.Description,
	}
	if p.Discount != nil {
		discount, err := EncodeDiscount(p.Discount)
		if err != nil {
			return couponRowPatch{}, err
		}
		row.Discount = discount
	}
	return row, nil
}
