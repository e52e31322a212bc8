package coupon

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// CouponRepository defines persistence operations for coupons.
type CouponRepository interface {
	Save(ctx context.Context, c *Coupon) error
	Update(ctx context.Context, c *Coupon) error
	FindByCode(ctx context.Context, code string) (*Coupon, error)
	FindByID(ctx context.Context, id uuid.UUID) (*Coupon, error)
	FindActive(ctx context.Context) ([]*Coupon, error)
	ListUsages(ctx context.Context, couponID uuid.UUID) ([]*Usage, error)
}

// Usage records one redemption of a coupon against a booking.
type Usage struct {
	ID            uuid.UUID
	CouponID      uuid.UUID
	ClientID      uuid.UUID
	BookingID     uuid.UUID
	DiscountCents int64
	UsedAt        time.Time
}
