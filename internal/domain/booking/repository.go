package booking

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Kilat-Pet-Delivery/service-boarding/internal/domain/coupon"
	"github.com/Kilat-Pet-Delivery/service-boarding/internal/domain/payment"
)

// ListFilter narrows booking listings. Zero values mean "any".
type ListFilter struct {
	ClientID *uuid.UUID
	Status   *Status
	Page     int
	Limit    int
}

// BookingRepository defines the persistence contract for Booking aggregates.
// Methods that span several rows run in a single transaction.
type BookingRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Booking, error)
	List(ctx context.Context, filter ListFilter) ([]*Booking, int64, error)

	// FindConflicts returns bookings in statuses that share a pet with petIDs
	// and overlap [start, end], excluding excludeID.
	FindConflicts(ctx context.Context, petIDs []uuid.UUID, start, end time.Time, statuses []Status, excludeID uuid.UUID) ([]*Booking, error)

	// CreateWithNoOverlap locks the pets, rejects the booking with a conflict
	// error if any CONFIRMED or IN_PROGRESS booking overlaps it, consumes the
	// coupon use when usage is non-nil, and inserts the booking.
	CreateWithNoOverlap(ctx context.Context, b *Booking, usage *coupon.Usage) error

	// Update persists changes with optimistic locking.
	Update(ctx context.Context, b *Booking) error

	// ConfirmWithPayment re-checks conflicts under the pet locks and persists
	// the confirmed booking and its captured payment together. p may be nil
	// for credit-settled bookings.
	ConfirmWithPayment(ctx context.Context, b *Booking, p *payment.Payment) error

	// SaveCancellation persists the cancelled booking and its payment together.
	// p may be nil.
	SaveCancellation(ctx context.Context, b *Booking, p *payment.Payment) error

	// FindStalePending returns PENDING bookings created before cutoff that have
	// no payment row.
	FindStalePending(ctx context.Context, cutoff time.Time, limit int) ([]*Booking, error)

	// FindStuckProcessing returns PENDING bookings whose payment has been
	// PROCESSING since before cutoff.
	FindStuckProcessing(ctx context.Context, cutoff time.Time, limit int) ([]*Booking, error)

	// DeletePending hard-deletes a booking that is still PENDING and whose
	// payment still satisfies cond, cascading the payment. It reports whether
	// a row was removed.
	DeletePending(ctx context.Context, id uuid.UUID, cond DeleteCondition) (bool, error)
}

// DeleteCondition is checked against the payment row while the booking row is
// locked, so a checkout or webhook that lands after selection keeps its booking.
type DeleteCondition struct {
	// ProcessingBefore requires a PROCESSING payment last updated before it.
	// When nil no payment may exist.
	ProcessingBefore *time.Time
}

// WithoutPayment allows deletion only while the booking has no payment.
func WithoutPayment() DeleteCondition { return DeleteCondition{} }

// ProcessingSince allows deletion only while the payment has been PROCESSING
// since before cutoff.
func ProcessingSince(cutoff time.Time) DeleteCondition {
	return DeleteCondition{ProcessingBefore: &cutoff}
}

// Allows reports whether the payment state permits deletion.
func (c DeleteCondition) Allows(hasPayment bool, status payment.Status, updatedAt time.Time) bool {
	if c.ProcessingBefore == nil {
		return !hasPayment
	}
	return hasPayment && status == payment.StatusProcessing && updatedAt.Before(*c.ProcessingBefore)
}
