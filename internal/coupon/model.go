package coupon

import (
	"time"

	"github.com/google/uuid"
)

// Coupon is a tenant-owned discount code.
type Coupon struct {
	ID              uuid.UUID
	Code            string
	Description     string
	TenantID        uuid.UUID
	Discount        Discount
	ExpiresAt       *time.Time
	RedemptionLimit *int32
	RecurringValue  int32
	Reusable        bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// CouponNew holds the fields of a coupon to create. The id is generated.
type CouponNew struct {
	Code            string
	Description     string
	TenantID        uuid.UUID
	Discount        Discount
	ExpiresAt       *time.Time
	RedemptionLimit *int32
	RecurringValue  int32
	Reusable        bool
}

// CouponPatch holds a partial update. Nil fields are not updated.
type CouponPatch struct {
	ID          uuid.UUID
	TenantID    uuid.UUID
	Description *string
	Discount    Discount
}

// ListFilter holds pagination for listing a tenant's coupons.
type ListFilter struct {
	Page  int // default 1
	Limit int // default 20
}

// ListResult holds one page of coupons.
type ListResult struct {
	Coupons []Coupon
	Total   int
	Page    int
	Limit   int
}
