package credit

import (
	"time"

	"github.com/google/uuid"
)

// TransactionKind classifies a ledger movement.
type TransactionKind string

const (
	KindGrant      TransactionKind = "GRANT"
	KindConsume    TransactionKind = "CONSUME"
	KindAdjustment TransactionKind = "ADJUSTMENT"
)

// Transaction is an append-only journal row. Amount is signed.
type Transaction struct {
	ID        uuid.UUID
	ClientID  uuid.UUID
	BatchID   uuid.UUID
	BookingID *uuid.UUID
	Kind      TransactionKind
	Amount    int64
	Reason    string
	CreatedAt time.Time
}

// NewGrant journals a new batch.
func NewGrant(b *Batch, reason string) *Transaction {
	kind := KindGrant
	if b.source == SourceAdjustment {
		kind = KindAdjustment
	}
	return &Transaction{
		ID:        uuid.New(),
		ClientID:  b.clientID,
		BatchID:   b.id,
		Kind:      kind,
		Amount:    b.amount,
		Reason:    reason,
		CreatedAt: time.Now().UTC(),
	}
}

// NewDebits journals an allocation plan, one row per batch.
func NewDebits(clientID uuid.UUID, allocs []Allocation, kind TransactionKind, bookingID *uuid.UUID, reason string) []*Transaction {
	now := time.Now().UTC()
	txs := make([]*Transaction, len(allocs))
	for i, a := range allocs {
		txs[i] = &Transaction{
			ID:        uuid.New(),
			ClientID:  clientID,
			BatchID:   a.BatchID,
			BookingID: bookingID,
			Kind:      kind,
			Amount:    -a.Amount,
			Reason:    reason,
			CreatedAt: now,
		}
	}
	return txs
}
