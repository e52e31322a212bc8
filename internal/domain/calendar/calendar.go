package calendar

import (
	"time"

	"github.com/google/uuid"

	"github.com/Kilat-Pet-Delivery/service-boarding/internal/domain/catalog"
	"github.com/Kilat-Pet-Delivery/service-boarding/pkg/domain"
)

// DateKeyLayout is the canonical string form of a calendar day.
const DateKeyLayout = "2006-01-02"

// maxRangeDays bounds range expansion.
const maxRangeDays = 366

// State is the explicit three-valued availability of a calendar day.
type State int

const (
	Unspecified State = iota
	Available
	Unavailable
)

func (s State) String() string {
	switch s {
	case Available:
		return "available"
	case Unavailable:
		return "unavailable"
	default:
		return "unspecified"
	}
}

// Open resolves a State to a bookable flag. Absence of a record is open.
func (s State) Open() bool {
	return s != Unavailable
}

// NormalizeDate anchors t to noon UTC on its calendar day.
func NormalizeDate(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 12, 0, 0, 0, time.UTC)
}

// DateKey returns the canonical key for the day containing t.
func DateKey(t time.Time) string {
	return NormalizeDate(t).Format(DateKeyLayout)
}

// ParseDateKey parses a YYYY-MM-DD key into a noon-anchored time.
func ParseDateKey(s string) (time.Time, error) {
	t, err := time.Parse(DateKeyLayout, s)
	if err != nil {
		return time.Time{}, domain.NewValidationError("invalid date %q, expected YYYY-MM-DD", s)
	}
	return NormalizeDate(t), nil
}

// ExpandRange returns one noon-anchored day per calendar day from start to end inclusive.
func ExpandRange(start, end time.Time) ([]time.Time, error) {
	from, to := NormalizeDate(start), NormalizeDate(end)
	if to.Before(from) {
		return nil, domain.NewValidationError("end date %s is before start date %s",
			to.Format(DateKeyLayout), from.Format(DateKeyLayout))
	}
	days := int(to.Sub(from).Hours()/24) + 1
	if days > maxRangeDays {
		return nil, domain.NewValidationError("date range of %d days exceeds the %d day limit", days, maxRangeDays)
	}
	out := make([]time.Time, 0, days)
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		out = append(out, d)
	}
	return out, nil
}

// Availability is a calendar owner's explicit mark for a (date, service type) pair.
type Availability struct {
	id          uuid.UUID
	date        time.Time
	serviceType catalog.ServiceType
	available   bool
	maxSlots    int
	notes       string
	createdAt   time.Time
	updatedAt   time.Time
}

// NewAvailability creates an availability record for the day containing date.
func NewAvailability(date time.Time, serviceType catalog.ServiceType, available bool, maxSlots int, notes string) (*Availability, error) {
	if !serviceType.Valid() {
		return nil, domain.NewValidationError("unknown service type %q", serviceType)
	}
	if maxSlots < 0 {
		return nil, domain.NewValidationError("max slots cannot be negative")
	}
	now := time.Now().UTC()
	return &Availability{
		id:          uuid.New(),
		date:        NormalizeDate(date),
		serviceType: serviceType,
		available:   available,
		maxSlots:    maxSlots,
		notes:       notes,
		createdAt:   now,
		updatedAt:   now,
	}, nil
}

// Reconstruct rebuilds an Availability from persistence.
func Reconstruct(id uuid.UUID, date time.Time, serviceType catalog.ServiceType, available bool, maxSlots int, notes string, createdAt, updatedAt time.Time) *Availability {
	return &Availability{
		id: id, date: NormalizeDate(date), serviceType: serviceType,
		available: available, maxSlots: maxSlots, notes: notes,
		createdAt: createdAt, updatedAt: updatedAt,
	}
}

// Update overwrites the mutable fields.
func (a *Availability) Update(available bool, maxSlots int, notes string) {
	a.available = available
	a.maxSlots = maxSlots
	a.notes = notes
	a.updatedAt = time.Now().UTC()
}

// State is the record's explicit state.
func (a *Availability) State() State {
	if a.available {
		return Available
	}
	return Unavailable
}

func (a *Availability) ID() uuid.UUID                    { return a.id }
func (a *Availability) Date() time.Time                  { return a.date }
func (a *Availability) Key() string                      { return a.date.Format(DateKeyLayout) }
func (a *Availability) ServiceType() catalog.ServiceType { return a.serviceType }
func (a *Availability) Available() bool                  { return a.available }
func (a *Availability) MaxSlots() int                    { return a.maxSlots }
func (a *Availability) Notes() string                    { return a.notes }
func (a *Availability) CreatedAt() time.Time             { return a.createdAt }
func (a *Availability) UpdatedAt() time.Time             { return a.updatedAt }
