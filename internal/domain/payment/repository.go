package payment

import (
	"context"

	"github.com/google/uuid"
)

// PaymentRepository defines the persistence contract for Payment aggregates.
type PaymentRepository interface {
	// FindByID retrieves a payment by its unique ID.
	FindByID(ctx context.Context, id uuid.UUID) (*Payment, error)

	// FindByBookingID retrieves a payment by the associated booking ID.
	FindByBookingID(ctx context.Context, bookingID uuid.UUID) (*Payment, error)

	// FindByGatewayRef returns every payment carrying the external reference.
	FindByGatewayRef(ctx context.Context, ref string) ([]*Payment, error)

	// ListAll retrieves all payments with pagination (admin).
	ListAll(ctx context.Context, page, limit int) ([]*Payment, int64, error)

	// ListReconciliationPending returns payments whose best-effort gateway action failed.
	ListReconciliationPending(ctx context.Context) ([]*Payment, error)

	// GetRevenueStats returns payment statistics (admin).
	GetRevenueStats(ctx context.Context) (capturedCents int64, countByStatus map[string]int64, err error)

	// Save persists a new payment aggregate.
	Save(ctx context.Context, payment *Payment) error

	// Update persists changes with optimistic locking. The caller increments
	// the version first; a stale version yields a conflict error.
	Update(ctx context.Context, payment *Payment) error
}

// AdditionalChargeRepository defines persistence for off-session charges.
type AdditionalChargeRepository interface {
	Save(ctx context.Context, c *AdditionalCharge) error
	Update(ctx context.Context, c *AdditionalCharge) error
	FindByID(ctx context.Context, id uuid.UUID) (*AdditionalCharge, error)
	FindByGatewayRef(ctx context.Context, ref string) (*AdditionalCharge, error)
	ListByBooking(ctx context.Context, bookingID uuid.UUID) ([]*AdditionalCharge, error)
}
