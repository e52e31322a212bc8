package payment

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Kilat-Pet-Delivery/service-boarding/pkg/domain"
)

// ChargeStatus represents the state of an off-session charge.
type ChargeStatus string

const (
	ChargeProcessing ChargeStatus = "PROCESSING"
	ChargeSucceeded  ChargeStatus = "SUCCEEDED"
	ChargeFailed     ChargeStatus = "FAILED"
)

// AdditionalCharge is an incidental charged against the client's stored card
// after confirmation. Rows are never deleted.
type AdditionalCharge struct {
	id            uuid.UUID
	bookingID     uuid.UUID
	clientID      uuid.UUID
	amountCents   int64
	currency      string
	reason        string
	status        ChargeStatus
	gatewayRef    string
	failureReason string
	declined      bool
	chargedAt     *time.Time
	version       int64
	createdAt     time.Time
	updatedAt     time.Time
}

// NewAdditionalCharge creates a charge in PROCESSING.
func NewAdditionalCharge(bookingID, clientID uuid.UUID, amountCents int64, currency, reason string) (*AdditionalCharge, error) {
	if amountCents <= 0 {
		return nil, domain.NewValidationError("charge amount must be positive, got %d", amountCents)
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, domain.NewValidationError("charge reason is required")
	}
	now := time.Now().UTC()
	return &AdditionalCharge{
		id:          uuid.New(),
		bookingID:   bookingID,
		clientID:    clientID,
		amountCents: amountCents,
		currency:    currency,
		reason:      reason,
		status:      ChargeProcessing,
		version:     1,
		createdAt:   now,
		updatedAt:   now,
	}, nil
}

// MarkSucceeded records a completed off-session charge.
func (c *AdditionalCharge) MarkSucceeded(ref string) error {
	if c.status != ChargeProcessing {
		return domain.NewInvalidStateError(string(c.status), string(ChargeSucceeded))
	}
	now := time.Now().UTC()
	c.status = ChargeSucceeded
	if ref != "" {
		c.gatewayRef = ref
	}
	c.chargedAt = &now
	c.updatedAt = now
	return nil
}

// MarkFailed records a refused or errored charge.
func (c *AdditionalCharge) MarkFailed(reason string, declined bool) error {
	if c.status != ChargeProcessing {
		return domain.NewInvalidStateError(string(c.status), string(ChargeFailed))
	}
	c.status = ChargeFailed
	c.failureReason = reason
	c.declined = declined
	c.updatedAt = time.Now().UTC()
	return nil
}

// AttachRef records the gateway reference of a charge still in flight.
func (c *AdditionalCharge) AttachRef(ref string) {
	c.gatewayRef = ref
	c.updatedAt = time.Now().UTC()
}

// IncrementVersion bumps the version for optimistic locking.
func (c *AdditionalCharge) IncrementVersion() {
	c.version++
	c.updatedAt = time.Now().UTC()
}

func (c *AdditionalCharge) ID() uuid.UUID         { return c.id }
func (c *AdditionalCharge) BookingID() uuid.UUID  { return c.bookingID }
func (c *AdditionalCharge) ClientID() uuid.UUID   { return c.clientID }
func (c *AdditionalCharge) AmountCents() int64    { return c.amountCents }
func (c *AdditionalCharge) Currency() string      { return c.currency }
func (c *AdditionalCharge) Reason() string        { return c.reason }
func (c *AdditionalCharge) Status() ChargeStatus  { return c.status }
func (c *AdditionalCharge) GatewayRef() string    { return c.gatewayRef }
func (c *AdditionalCharge) FailureReason() string { return c.failureReason }
func (c *AdditionalCharge) Declined() bool        { return c.declined }
func (c *AdditionalCharge) ChargedAt() *time.Time { return c.chargedAt }
func (c *AdditionalCharge) Version() int64        { return c.version }
func (c *AdditionalCharge) CreatedAt() time.Time  { return c.createdAt }
func (c *AdditionalCharge) UpdatedAt() time.Time  { return c.updatedAt }

// ReconstituteCharge rebuilds an AdditionalCharge from persisted data.
func ReconstituteCharge(
	id, bookingID, clientID uuid.UUID,
	amountCents int64, currency, reason string,
	status ChargeStatus, gatewayRef, failureReason string, declined bool,
	chargedAt *time.Time, version int64, createdAt, updatedAt time.Time,
) *AdditionalCharge {
	return &AdditionalCharge{
		id: id, bookingID: bookingID, clientID: clientID,
		amountCents: amountCents, currency: currency, reason: reason,
		status: status, gatewayRef: gatewayRef, failureReason: failureReason, declined: declined,
		chargedAt: chargedAt, version: version, createdAt: createdAt, updatedAt: updatedAt,
	}
}
