package payment

import (
	"time"

	"github.com/google/uuid"

	"github.com/Kilat-Pet-Delivery/service-boarding/pkg/domain"
)

// Status represents the state of a booking payment.
type Status string

const (
	StatusNone       Status = "NONE"
	StatusProcessing Status = "PROCESSING"
	StatusAuthorized Status = "AUTHORIZED"
	StatusSucceeded  Status = "SUCCEEDED"
	StatusFailed     Status = "FAILED"
	StatusRefunded   Status = "REFUNDED"
	StatusCancelled  Status = "CANCELLED"
)

var transitions = map[Status][]Status{
	StatusNone:       {StatusProcessing},
	StatusProcessing: {StatusAuthorized, StatusFailed, StatusCancelled},
	StatusAuthorized: {StatusSucceeded, StatusCancelled},
	StatusSucceeded:  {StatusRefunded},
}

// CanTransition reports whether from -> to is a legal move.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}

// Payment is the aggregate root for a booking's card payment. A booking has
// exactly one.
type Payment struct {
	id                    uuid.UUID
	bookingID             uuid.UUID
	clientID              uuid.UUID
	status                Status
	amountCents           int64
	currency              string
	gatewayRef            string
	paidAt                *time.Time
	refundedAt            *time.Time
	refundAmountCents     int64
	refundRef             string
	failureReason         string
	reconciliationPending bool
	reconciliationNote    string
	version               int64
	createdAt             time.Time
	updatedAt             time.Time
}

// NewPayment creates a Payment in NONE for the booking total.
func NewPayment(bookingID, clientID uuid.UUID, amountCents int64, currency string) (*Payment, error) {
	if amountCents <= 0 {
		return nil, domain.NewValidationError("payment amount must be positive, got %d", amountCents)
	}
	now := time.Now().UTC()
	return &Payment{
		id:          uuid.New(),
		bookingID:   bookingID,
		clientID:    clientID,
		status:      StatusNone,
		amountCents: amountCents,
		currency:    currency,
		version:     1,
		createdAt:   now,
		updatedAt:   now,
	}, nil
}

// --- Getters ---

func (p *Payment) ID() uuid.UUID               { return p.id }
func (p *Payment) BookingID() uuid.UUID        { return p.bookingID }
func (p *Payment) ClientID() uuid.UUID         { return p.clientID }
func (p *Payment) Status() Status              { return p.status }
func (p *Payment) AmountCents() int64          { return p.amountCents }
func (p *Payment) Currency() string            { return p.currency }
func (p *Payment) GatewayRef() string          { return p.gatewayRef }
func (p *Payment) PaidAt() *time.Time          { return p.paidAt }
func (p *Payment) RefundedAt() *time.Time      { return p.refundedAt }
func (p *Payment) RefundAmountCents() int64    { return p.refundAmountCents }
func (p *Payment) RefundRef() string           { return p.refundRef }
func (p *Payment) FailureReason() string       { return p.failureReason }
func (p *Payment) ReconciliationPending() bool { return p.reconciliationPending }
func (p *Payment) ReconciliationNote() string  { return p.reconciliationNote }
func (p *Payment) Version() int64              { return p.version }
func (p *Payment) CreatedAt() time.Time        { return p.createdAt }
func (p *Payment) UpdatedAt() time.Time        { return p.updatedAt }

// --- Behavior / State Transitions ---

func (p *Payment) moveTo(to Status) error {
	if !CanTransition(p.status, to) {
		return domain.NewInvalidStateError(string(p.status), string(to))
	}
	p.status = to
	p.updatedAt = time.Now().UTC()
	return nil
}

// StartProcessing moves NONE -> PROCESSING when checkout begins.
func (p *Payment) StartProcessing() error {
	return p.moveTo(StatusProcessing)
}

// AttachHold records the gateway's hold reference while PROCESSING.
func (p *Payment) AttachHold(ref string) error {
	if p.status != StatusProcessing {
		return domain.NewInvalidStateError(string(p.status), "hold attached")
	}
	if ref == "" {
		return domain.NewValidationError("hold reference is required")
	}
	p.gatewayRef = ref
	p.updatedAt = time.Now().UTC()
	return nil
}

// Authorize moves PROCESSING -> AUTHORIZED once the gateway confirms the hold.
func (p *Payment) Authorize() error {
	return p.moveTo(StatusAuthorized)
}

// Capture moves AUTHORIZED -> SUCCEEDED and records paidAt.
func (p *Payment) Capture() error {
	if err := p.moveTo(StatusSucceeded); err != nil {
		return err
	}
	now := p.updatedAt
	p.paidAt = &now
	return nil
}

// CancelHold moves a PROCESSING or AUTHORIZED hold to CANCELLED.
func (p *Payment) CancelHold() error {
	return p.moveTo(StatusCancelled)
}

// Refund moves SUCCEEDED -> REFUNDED for the full captured amount.
func (p *Payment) Refund(refundRef string) error {
	if err := p.moveTo(StatusRefunded); err != nil {
		return err
	}
	now := p.updatedAt
	p.refundedAt = &now
	p.refundAmountCents = p.amountCents
	p.refundRef = refundRef
	return nil
}

// Fail moves PROCESSING -> FAILED.
func (p *Payment) Fail(reason string) error {
	if err := p.moveTo(StatusFailed); err != nil {
		return err
	}
	p.failureReason = reason
	return nil
}

// FlagReconciliation marks a best-effort gateway action that did not complete.
func (p *Payment) FlagReconciliation(note string) {
	p.reconciliationPending = true
	p.reconciliationNote = note
	p.updatedAt = time.Now().UTC()
}

// ResolveReconciliation clears the flag after out-of-band handling.
func (p *Payment) ResolveReconciliation() error {
	if !p.reconciliationPending {
		return domain.NewInvalidStateError("reconciled", "reconciled")
	}
	p.reconciliationPending = false
	p.updatedAt = time.Now().UTC()
	return nil
}

// IncrementVersion bumps the version for optimistic locking.
func (p *Payment) IncrementVersion() {
	p.version++
	p.updatedAt = time.Now().UTC()
}

// Clone returns an independent copy, used to retry a transition after a lost race.
func (p *Payment) Clone() *Payment {
	c := *p
	return &c
}

// --- Reconstitution (used by repository to rebuild from persistence) ---

// Reconstitute rebuilds a Payment from persisted data.
func Reconstitute(
	id, bookingID, clientID uuid.UUID,
	status Status,
	amountCents int64,
	currency, gatewayRef string,
	paidAt, refundedAt *time.Time,
	refundAmountCents int64,
	refundRef, failureReason string,
	reconciliationPending bool,
	reconciliationNote string,
	version int64,
	createdAt, updatedAt time.Time,
) *Payment {
	return &Payment{
		id:                    id,
		bookingID:             bookingID,
		clientID:              clientID,
		status:                status,
		amountCents:           amountCents,
		currency:              currency,
		gatewayRef:            gatewayRef,
		paidAt:                paidAt,
		refundedAt:            refundedAt,
		refundAmountCents:     refundAmountCents,
		refundRef:             refundRef,
		failureReason:         failureReason,
		reconciliationPending: reconciliationPending,
		reconciliationNote:    reconciliationNote,
		version:               version,
		createdAt:             createdAt,
		updatedAt:             updatedAt,
	}
}
