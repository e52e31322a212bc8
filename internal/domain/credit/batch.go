package credit

import (
	"time"

	"github.com/google/uuid"

	"github.com/Kilat-Pet-Delivery/service-boarding/internal/domain/catalog"
	"github.com/Kilat-Pet-Delivery/service-boarding/pkg/domain"
)

// Source records how a batch came to exist.
type Source string

const (
	SourceTopUp        Source = "TOP_UP"
	SourceSubscription Source = "SUBSCRIPTION"
	SourceAdjustment   Source = "ADJUSTMENT"
)

// ExpiryPolicy makes credit expiry an explicit choice. When Enforce is false
// expired batches still count toward balance and can be consumed.
type ExpiryPolicy struct {
	Enforce         bool
	DefaultValidity time.Duration
}

// ExpiryFrom returns the expiry for a batch granted at now, or nil for no expiry.
func (p ExpiryPolicy) ExpiryFrom(now time.Time) *time.Time {
	if p.DefaultValidity <= 0 {
		return nil
	}
	t := now.Add(p.DefaultValidity).UTC()
	return &t
}

// Batch is a prepaid block of service credits. 0 <= remaining <= amount.
type Batch struct {
	id             uuid.UUID
	clientID       uuid.UUID
	serviceType    catalog.ServiceType
	amount         int64
	remaining      int64
	expiresAt      *time.Time
	source         Source
	subscriptionID *uuid.UUID
	version        int64
	createdAt      time.Time
	updatedAt      time.Time
}

// NewBatch creates a full batch.
func NewBatch(clientID uuid.UUID, serviceType catalog.ServiceType, amount int64, expiresAt *time.Time, source Source, subscriptionID *uuid.UUID) (*Batch, error) {
	if clientID == uuid.Nil {
		return nil, domain.NewValidationError("client is required")
	}
	if !serviceType.Valid() {
		return nil, domain.NewValidationError("unknown service type %q", serviceType)
	}
	if amount <= 0 {
		return nil, domain.NewValidationError("credit amount must be positive, got %d", amount)
	}
	now := time.Now().UTC()
	if expiresAt != nil && !expiresAt.After(now) {
		return nil, domain.NewValidationError("credit expiry must be in the future")
	}
	return &Batch{
		id:             uuid.New(),
		clientID:       clientID,
		serviceType:    serviceType,
		amount:         amount,
		remaining:      amount,
		expiresAt:      expiresAt,
		source:         source,
		subscriptionID: subscriptionID,
		version:        1,
		createdAt:      now,
		updatedAt:      now,
	}, nil
}

// ReconstructBatch rebuilds a Batch from persistence.
func ReconstructBatch(id, clientID uuid.UUID, serviceType catalog.ServiceType, amount, remaining int64, expiresAt *time.Time, source Source, subscriptionID *uuid.UUID, version int64, createdAt, updatedAt time.Time) *Batch {
	return &Batch{
		id: id, clientID: clientID, serviceType: serviceType,
		amount: amount, remaining: remaining, expiresAt: expiresAt,
		source: source, subscriptionID: subscriptionID, version: version,
		createdAt: createdAt, updatedAt: updatedAt,
	}
}

// Expired reports whether the batch has passed its expiry at now.
func (b *Batch) Expired(now time.Time) bool {
	return b.expiresAt != nil && !now.Before(*b.expiresAt)
}

// Usable reports whether the batch can be drawn from under policy.
func (b *Batch) Usable(now time.Time, policy ExpiryPolicy) bool {
	if b.remaining <= 0 {
		return false
	}
	return !policy.Enforce || !b.Expired(now)
}

// Debit removes n credits.
func (b *Batch) Debit(n int64) error {
	if n <= 0 || n > b.remaining {
		return domain.NewInsufficientCreditsError(n, b.remaining)
	}
	b.remaining -= n
	b.version++
	b.updatedAt = time.Now().UTC()
	return nil
}

func (b *Batch) ID() uuid.UUID                    { return b.id }
func (b *Batch) ClientID() uuid.UUID              { return b.clientID }
func (b *Batch) ServiceType() catalog.ServiceType { return b.serviceType }
func (b *Batch) Amount() int64                    { return b.amount }
func (b *Batch) Remaining() int64                 { return b.remaining }
func (b *Batch) ExpiresAt() *time.Time            { return b.expiresAt }
func (b *Batch) Source() Source                   { return b.source }
func (b *Batch) SubscriptionID() *uuid.UUID       { return b.subscriptionID }
func (b *Batch) Version() int64                   { return b.version }
func (b *Batch) CreatedAt() time.Time             { return b.createdAt }
func (b *Batch) UpdatedAt() time.Time             { return b.updatedAt }
