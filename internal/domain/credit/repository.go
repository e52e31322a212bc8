package credit

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Kilat-Pet-Delivery/service-boarding/internal/domain/catalog"
)

// LedgerRepository defines persistence for credit batches and their journal.
type LedgerRepository interface {
	// Grant stores a new batch and its journal row in one transaction.
	Grant(ctx context.Context, b *Batch, tx *Transaction) error

	// FindBatches returns a client's batches, optionally for one service type.
	FindBatches(ctx context.Context, clientID uuid.UUID, serviceType *catalog.ServiceType) ([]*Batch, error)

	// ApplyAllocations deducts every allocation and writes the journal rows in
	// one transaction. If any batch no longer holds its expected remaining
	// amount nothing is applied and a conflict error is returned.
	ApplyAllocations(ctx context.Context, allocs []Allocation, txs []*Transaction) error

	// ListTransactions returns a client's journal, newest first.
	ListTransactions(ctx context.Context, clientID uuid.UUID, page, limit int) ([]*Transaction, int64, error)
}

// SubscriptionRepository defines persistence operations for subscriptions.
type SubscriptionRepository interface {
	// SaveWithGrant stores a new subscription together with its first batch.
	SaveWithGrant(ctx context.Context, s *Subscription, b *Batch, tx *Transaction) error
	Update(ctx context.Context, s *Subscription) error
	FindActiveByClientID(ctx context.Context, clientID uuid.UUID) ([]*Subscription, error)
	FindByID(ctx context.Context, id uuid.UUID) (*Subscription, error)
	FindDueForRenewal(ctx context.Context, now time.Time, limit int) ([]*Subscription, error)

	// RenewWithGrant persists a renewed period and its batch atomically. The
	// period end stored before renewal guards against double renewal.
	RenewWithGrant(ctx context.Context, s *Subscription, previousPeriodEnd time.Time, b *Batch, tx *Transaction) error
}
