package credit

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// Allocation is the planned deduction from one batch.
type Allocation struct {
	BatchID  uuid.UUID
	Amount   int64
	Expected int64 // remaining before deduction, for the store's guard
}

// Allocate plans a deduction of amount across batches, soonest expiry first,
// batches without expiry last, ties broken by creation time. It does not
// mutate batches. A non-zero remainder means the batches cannot cover amount
// and the plan must not be applied.
func Allocate(batches []*Batch, amount int64, now time.Time, policy ExpiryPolicy) ([]Allocation, int64) {
	if amount <= 0 {
		return nil, 0
	}

	usable := make([]*Batch, 0, len(batches))
	for _, b := range batches {
		if b.Usable(now, policy) {
			usable = append(usable, b)
		}
	}
	sortByExpiry(usable)

	need := amount
	allocs := make([]Allocation, 0, len(usable))
	for _, b := range usable {
		if need == 0 {
			break
		}
		take := b.remaining
		if take > need {
			take = need
		}
		allocs = append(allocs, Allocation{BatchID: b.id, Amount: take, Expected: b.remaining})
		need -= take
	}
	return allocs, need
}

// Balance sums the usable remaining credits.
func Balance(batches []*Batch, now time.Time, policy ExpiryPolicy) int64 {
	var total int64
	for _, b := range batches {
		if b.Usable(now, policy) {
			total += b.remaining
		}
	}
	return total
}

func sortByExpiry(batches []*Batch) {
	sort.SliceStable(batches, func(i, j int) bool {
		a, b := batches[i], batches[j]
		switch {
		case a.expiresAt == nil && b.expiresAt == nil:
		case a.expiresAt == nil:
			return false
		case b.expiresAt == nil:
			return true
		case !a.expiresAt.Equal(*b.expiresAt):
			return a.expiresAt.Before(*b.expiresAt)
		}
		return a.createdAt.Before(b.createdAt)
	})
}
