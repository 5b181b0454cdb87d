package coupon

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrCouponNotFound is returned when no coupon matches the tenant and id or code.
var ErrCouponNotFound = errors.New("coupon not found")

// ErrDuplicateCode is returned when the tenant already has a coupon with the code.
var ErrDuplicateCode = errors.New("coupon code already exists")

// Repository reads and writes coupons. Coupons are never deleted here.
type Repository interface {
	Create(ctx context.Context, c CouponNew) (*Coupon, error)
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*Coupon, error)
	GetByCode(ctx context.Context, tenantID uuid.UUID, code string) (*Coupon, error)
	List(ctx context.Context, tenantID uuid.UUID, filter ListFilter) (*ListResult, error)
	Update(ctx context.Context, patch CouponPatch) (*Coupon, error)
}
