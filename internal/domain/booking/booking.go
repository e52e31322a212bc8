package booking

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/Kilat-Pet-Delivery/service-boarding/internal/domain/calendar"
	"github.com/Kilat-Pet-Delivery/service-boarding/internal/domain/catalog"
	"github.com/Kilat-Pet-Delivery/service-boarding/internal/domain/pricing"
	"github.com/Kilat-Pet-Delivery/service-boarding/pkg/domain"
)

// Status represents the lifecycle state of a booking.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusConfirmed  Status = "CONFIRMED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusCancelled  Status = "CANCELLED"
)

// BlockingStatuses are the statuses that hold a pet's dates against other bookings.
var BlockingStatuses = []Status{StatusConfirmed, StatusInProgress}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Settlement records how a booking is paid.
type Settlement string

const (
	SettlementCard    Settlement = "CARD"
	SettlementCredits Settlement = "CREDITS"
)

// Params holds everything needed to create a booking.
type Params struct {
	ClientID       uuid.UUID
	PetIDs         []uuid.UUID
	ServiceType    catalog.ServiceType
	StartAt        time.Time
	EndAt          time.Time
	Visits         []pricing.Occurrence
	Breakdown      pricing.Breakdown
	DiscountCents  int64
	CouponID       *uuid.UUID
	CouponCode     string
	DepositPercent int64
	Notes          string
}

// Booking is the aggregate root for a reservation.
type Booking struct {
	id            uuid.UUID
	clientID      uuid.UUID
	petIDs        []uuid.UUID
	serviceType   catalog.ServiceType
	startDate     time.Time
	endDate       time.Time
	startAt       *time.Time
	endAt         *time.Time
	visits        []pricing.Occurrence
	breakdown     pricing.Breakdown
	subtotalCents int64
	discountCents int64
	totalCents    int64
	depositCents  int64
	currency      string
	couponID      *uuid.UUID
	couponCode    string
	settlement    Settlement
	priceLocked   bool
	status        Status
	notes         string
	cancelReason  string
	cancelledBy   *uuid.UUID
	confirmedAt   *time.Time
	cancelledAt   *time.Time
	startedAt     *time.Time
	completedAt   *time.Time
	version       int64
	createdAt     time.Time
	updatedAt     time.Time
}

// NewBooking creates a PENDING booking from a priced quote.
func NewBooking(p Params) (*Booking, error) {
	if p.ClientID == uuid.Nil {
		return nil, domain.NewValidationError("client is required")
	}
	if !p.ServiceType.Valid() {
		return nil, domain.NewValidationError("unknown service type %q", p.ServiceType)
	}
	pets, err := uniquePets(p.PetIDs)
	if err != nil {
		return nil, err
	}
	if err := p.ServiceType.CheckHeadcount(len(pets)); err != nil {
		return nil, err
	}
	if p.DepositPercent < 0 || p.DepositPercent > 100 {
		return nil, domain.NewValidationError("deposit percent must be between 0 and 100")
	}

	now := time.Now().UTC()
	b := &Booking{
		id:          uuid.New(),
		clientID:    p.ClientID,
		petIDs:      pets,
		serviceType: p.ServiceType,
		settlement:  SettlementCard,
		status:      StatusPending,
		notes:       p.Notes,
		version:     1,
		createdAt:   now,
		updatedAt:   now,
	}

	if p.ServiceType.IsVisitBased() {
		if len(p.Visits) == 0 {
			return nil, domain.NewValidationError("%s requires at least one visit", p.ServiceType)
		}
		b.visits = sortedVisits(p.Visits)
		b.startDate = calendar.NormalizeDate(b.visits[0].Date)
		b.endDate = calendar.NormalizeDate(b.visits[len(b.visits)-1].Date)
	} else {
		if !p.EndAt.After(p.StartAt) {
			return nil, domain.NewValidationError("end must be after start")
		}
		start, end := p.StartAt.UTC(), p.EndAt.UTC()
		b.startAt, b.endAt = &start, &end
		b.startDate = calendar.NormalizeDate(start)
		b.endDate = calendar.NormalizeDate(end)
	}

	if err := b.ApplyPricing(p.Breakdown, p.DiscountCents, p.CouponID, p.CouponCode, p.DepositPercent); err != nil {
		return nil, err
	}
	return b, nil
}

// ApplyPricing sets the price from a breakdown and discount. Refused once a
// payment has been captured.
func (b *Booking) ApplyPricing(bd pricing.Breakdown, discountCents int64, couponID *uuid.UUID, couponCode string, depositPercent int64) error {
	if b.priceLocked {
		return domain.NewInvalidStateError("price locked", "repriced")
	}
	if bd.TotalCents <= 0 {
		return domain.NewValidationError("booking total must be positive")
	}
	if discountCents < 0 || discountCents > bd.TotalCents {
		return domain.NewValidationError("discount must be between 0 and the subtotal")
	}
	b.breakdown = bd
	b.subtotalCents = bd.TotalCents
	b.discountCents = discountCents
	b.totalCents = bd.TotalCents - discountCents
	b.depositCents = b.totalCents * depositPercent / 100
	b.currency = bd.Currency
	b.couponID = couponID
	b.couponCode = couponCode
	b.updatedAt = time.Now().UTC()
	return nil
}

// LockPrice freezes the total once money has been taken.
func (b *Booking) LockPrice() {
	b.priceLocked = true
	b.updatedAt = time.Now().UTC()
}

// SettleWithCredits marks a PENDING booking as paid from the credit ledger.
func (b *Booking) SettleWithCredits() error {
	if b.status != StatusPending {
		return domain.NewInvalidStateError(string(b.status), "settled with credits")
	}
	if b.settlement == SettlementCredits {
		return domain.NewConflictError("booking is already settled with credits")
	}
	b.settlement = SettlementCredits
	b.priceLocked = true
	b.updatedAt = time.Now().UTC()
	return nil
}

// --- State transitions ---

// Confirm moves PENDING -> CONFIRMED.
func (b *Booking) Confirm() error {
	if b.status != StatusPending {
		return domain.NewInvalidStateError(string(b.status), string(StatusConfirmed))
	}
	now := time.Now().UTC()
	b.status = StatusConfirmed
	b.confirmedAt = &now
	b.updatedAt = now
	return nil
}

// Start moves CONFIRMED -> IN_PROGRESS.
func (b *Booking) Start() error {
	if b.status != StatusConfirmed {
		return domain.NewInvalidStateError(string(b.status), string(StatusInProgress))
	}
	now := time.Now().UTC()
	b.status = StatusInProgress
	b.startedAt = &now
	b.updatedAt = now
	return nil
}

// Complete moves IN_PROGRESS -> COMPLETED.
func (b *Booking) Complete() error {
	if b.status != StatusInProgress {
		return domain.NewInvalidStateError(string(b.status), string(StatusCompleted))
	}
	now := time.Now().UTC()
	b.status = StatusCompleted
	b.completedAt = &now
	b.updatedAt = now
	return nil
}

// Cancel moves any non-terminal booking to CANCELLED.
func (b *Booking) Cancel(by uuid.UUID, reason string) error {
	if b.status.Terminal() {
		return domain.NewInvalidStateError(string(b.status), string(StatusCancelled))
	}
	now := time.Now().UTC()
	b.status = StatusCancelled
	b.cancelReason = reason
	b.cancelledBy = &by
	b.cancelledAt = &now
	b.updatedAt = now
	return nil
}

// Overlaps applies the three-way interval test on noon-normalized dates:
// the new start falls inside the existing span, the new end does, or the new
// span contains the existing one. Boundaries are inclusive.
func Overlaps(newStart, newEnd, existingStart, existingEnd time.Time) bool {
	ns, ne := calendar.NormalizeDate(newStart), calendar.NormalizeDate(newEnd)
	es, ee := calendar.NormalizeDate(existingStart), calendar.NormalizeDate(existingEnd)
	within := func(t time.Time) bool { return !t.Before(es) && !t.After(ee) }
	return within(ns) || within(ne) || (!ns.After(es) && !ne.Before(ee))
}

// ConflictsWith reports whether other shares a pet and overlaps in time.
func (b *Booking) ConflictsWith(other *Booking) bool {
	if other.id == b.id || !b.SharesPetWith(other.petIDs) {
		return false
	}
	return Overlaps(b.startDate, b.endDate, other.startDate, other.endDate)
}

// SharesPetWith reports whether any of pets belongs to the booking.
func (b *Booking) SharesPetWith(pets []uuid.UUID) bool {
	for _, p := range pets {
		if b.HasPet(p) {
			return true
		}
	}
	return false
}

// HasPet reports whether the pet is part of the booking.
func (b *Booking) HasPet(id uuid.UUID) bool {
	for _, p := range b.petIDs {
		if p == id {
			return true
		}
	}
	return false
}

// Days returns the calendar days the booking occupies.
func (b *Booking) Days() []time.Time {
	if b.serviceType.IsVisitBased() {
		days := make([]time.Time, len(b.visits))
		for i, v := range b.visits {
			days[i] = calendar.NormalizeDate(v.Date)
		}
		return days
	}
	days, _ := calendar.ExpandRange(b.startDate, b.endDate)
	return days
}

// IncrementVersion bumps the version for optimistic locking.
func (b *Booking) IncrementVersion() {
	b.version++
	b.updatedAt = time.Now().UTC()
}

// Clone returns a copy that can be mutated without touching b.
func (b *Booking) Clone() *Booking {
	c := *b
	return &c
}

// --- Getters ---

func (b *Booking) ID() uuid.UUID                    { return b.id }
func (b *Booking) ClientID() uuid.UUID              { return b.clientID }
func (b *Booking) PetIDs() []uuid.UUID              { return b.petIDs }
func (b *Booking) ServiceType() catalog.ServiceType { return b.serviceType }
func (b *Booking) StartDate() time.Time             { return b.startDate }
func (b *Booking) EndDate() time.Time               { return b.endDate }
func (b *Booking) StartAt() *time.Time              { return b.startAt }
func (b *Booking) EndAt() *time.Time                { return b.endAt }
func (b *Booking) Visits() []pricing.Occurrence     { return b.visits }
func (b *Booking) Breakdown() pricing.Breakdown     { return b.breakdown }
func (b *Booking) SubtotalCents() int64             { return b.subtotalCents }
func (b *Booking) DiscountCents() int64             { return b.discountCents }
func (b *Booking) TotalCents() int64                { return b.totalCents }
func (b *Booking) DepositCents() int64              { return b.depositCents }
func (b *Booking) Currency() string                 { return b.currency }
func (b *Booking) CouponID() *uuid.UUID             { return b.couponID }
func (b *Booking) CouponCode() string               { return b.couponCode }
func (b *Booking) Settlement() Settlement           { return b.settlement }
func (b *Booking) PriceLocked() bool                { return b.priceLocked }
func (b *Booking) Status() Status                   { return b.status }
func (b *Booking) Notes() string                    { return b.notes }
func (b *Booking) CancelReason() string             { return b.cancelReason }
func (b *Booking) CancelledBy() *uuid.UUID          { return b.cancelledBy }
func (b *Booking) ConfirmedAt() *time.Time          { return b.confirmedAt }
func (b *Booking) CancelledAt() *time.Time          { return b.cancelledAt }
func (b *Booking) StartedAt() *time.Time            { return b.startedAt }
func (b *Booking) CompletedAt() *time.Time          { return b.completedAt }
func (b *Booking) Version() int64                   { return b.version }
func (b *Booking) CreatedAt() time.Time             { return b.createdAt }
func (b *Booking) UpdatedAt() time.Time             { return b.updatedAt }

// Snapshot carries persisted booking state for Reconstitute.
type Snapshot struct {
	ID            uuid.UUID
	ClientID      uuid.UUID
	PetIDs        []uuid.UUID
	ServiceType   catalog.ServiceType
	StartDate     time.Time
	EndDate       time.Time
	StartAt       *time.Time
	EndAt         *time.Time
	Visits        []pricing.Occurrence
	Breakdown     pricing.Breakdown
	SubtotalCents int64
	DiscountCents int64
	TotalCents    int64
	DepositCents  int64
	Currency      string
	CouponID      *uuid.UUID
	CouponCode    string
	Settlement    Settlement
	PriceLocked   bool
	Status        Status
	Notes         string
	CancelReason  string
	CancelledBy   *uuid.UUID
	ConfirmedAt   *time.Time
	CancelledAt   *time.Time
	StartedAt     *time.Time
	CompletedAt   *time.Time
	Version       int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Reconstitute rebuilds a Booking from persisted data.
func Reconstitute(s Snapshot) *Booking {
	return &Booking{
		id: s.ID, clientID: s.ClientID, petIDs: s.PetIDs, serviceType: s.ServiceType,
		startDate: s.StartDate, endDate: s.EndDate, startAt: s.StartAt, endAt: s.EndAt,
		visits: s.Visits, breakdown: s.Breakdown,
		subtotalCents: s.SubtotalCents, discountCents: s.DiscountCents,
		totalCents: s.TotalCents, depositCents: s.DepositCents, currency: s.Currency,
		couponID: s.CouponID, couponCode: s.CouponCode,
		settlement: s.Settlement, priceLocked: s.PriceLocked, status: s.Status,
		notes: s.Notes, cancelReason: s.CancelReason, cancelledBy: s.CancelledBy,
		confirmedAt: s.ConfirmedAt, cancelledAt: s.CancelledAt,
		startedAt: s.StartedAt, completedAt: s.CompletedAt,
		version: s.Version, createdAt: s.CreatedAt, updatedAt: s.UpdatedAt,
	}
}

func uniquePets(ids []uuid.UUID) ([]uuid.UUID, error) {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			return nil, domain.NewValidationError("pet id is required")
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out, nil
}

func sortedVisits(visits []pricing.Occurrence) []pricing.Occurrence {
	out := make([]pricing.Occurrence, len(visits))
	copy(out, visits)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}
