package pricing

import (
	"fmt"
	"time"

	"github.com/Kilat-Pet-Delivery/service-boarding/internal/domain/calendar"
	"github.com/Kilat-Pet-Delivery/service-boarding/internal/domain/catalog"
	"github.com/Kilat-Pet-Delivery/service-boarding/pkg/domain"
)

// Tier labels the kind of surcharge applied on top of the base price.
type Tier string

const (
	TierNone      Tier = ""
	TierDemi      Tier = "demi"
	TierFull      Tier = "full"
	TierHourly    Tier = "hourly"
	TierExtraTime Tier = "extra_time"
)

// Occurrence is one discrete visit or walk.
type Occurrence struct {
	Date            time.Time `json:"date"`
	DurationMinutes int       `json:"duration_minutes"`
}

// Input is everything a quote depends on. Start and End are full instants for
// BOARDING and DAY_CARE; Occurrences drives DROP_IN and DOG_WALKING.
type Input struct {
	ServiceType  catalog.ServiceType
	Start        time.Time
	End          time.Time
	Occurrences  []Occurrence
	PetAgesYears []int
}

// Breakdown is the itemized result of pricing a booking.
type Breakdown struct {
	ServiceType               catalog.ServiceType `json:"service_type"`
	Units                     int                 `json:"units"`
	BaseUnits                 int                 `json:"base_units"`
	UnitLabel                 string              `json:"unit_label"`
	UnitPriceCents            int64               `json:"unit_price_cents"`
	BasePriceCents            int64               `json:"base_price_cents"`
	SurchargeCents            int64               `json:"surcharge_cents"`
	SurchargeTier             Tier                `json:"surcharge_tier,omitempty"`
	ExtraMinutes              int                 `json:"extra_minutes"`
	YoungAnimal               bool                `json:"young_animal"`
	YoungAnimalSurchargeCents int64               `json:"young_animal_surcharge_cents"`
	TotalCents                int64               `json:"total_cents"`
	Currency                  string              `json:"currency"`
	DurationLabel             string              `json:"duration_label"`
}

// Pricer computes the service-specific part of a breakdown. Young-animal
// surcharges and totals are applied by the Engine.
type Pricer interface {
	ComputeBreakdown(in Input) (Breakdown, error)
}

// Engine dispatches to one Pricer per service type.
type Engine struct {
	rates   Rates
	pricers map[catalog.ServiceType]Pricer
}

// NewEngine builds an engine for the given price list.
func NewEngine(rates Rates) (*Engine, error) {
	if err := rates.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		rates: rates,
		pricers: map[catalog.ServiceType]Pricer{
			catalog.Boarding:   boardingPricer{rates: rates.Boarding},
			catalog.DayCare:    dayCarePricer{rates: rates.DayCare},
			catalog.DropIn:     visitPricer{rates: rates.DropIn, serviceType: catalog.DropIn},
			catalog.DogWalking: visitPricer{rates: rates.DogWalking, serviceType: catalog.DogWalking},
		},
	}, nil
}

// Rates returns the engine's price list.
func (e *Engine) Rates() Rates { return e.rates }

// Quote prices a booking. The result depends only on in and the price list.
func (e *Engine) Quote(in Input) (Breakdown, error) {
	p, ok := e.pricers[in.ServiceType]
	if !ok {
		return Breakdown{}, domain.NewValidationError("unknown service type %q", in.ServiceType)
	}
	b, err := p.ComputeBreakdown(in)
	if err != nil {
		return Breakdown{}, err
	}

	b.ServiceType = in.ServiceType
	b.UnitLabel = in.ServiceType.UnitLabel()
	b.Currency = e.rates.Currency
	if e.hasYoungAnimal(in.PetAgesYears) {
		b.YoungAnimal = true
		b.YoungAnimalSurchargeCents = int64(b.Units) * e.rates.YoungAnimalSurchargeCents
	}
	b.TotalCents = b.BasePriceCents + b.SurchargeCents + b.YoungAnimalSurchargeCents
	b.DurationLabel = durationLabel(b)
	return b, nil
}

func (e *Engine) hasYoungAnimal(ages []int) bool {
	for _, age := range ages {
		if age < e.rates.YoungAnimalAgeYears {
			return true
		}
	}
	return false
}

type boardingPricer struct {
	rates BoardingRates
}

// ComputeBreakdown bills whole 24h nights plus a tiered charge for the remainder.
// Stays shorter than a night are billed as one night.
func (p boardingPricer) ComputeBreakdown(in Input) (Breakdown, error) {
	minutes, err := spanMinutes(in.Start, in.End)
	if err != nil {
		return Breakdown{}, err
	}

	const minutesPerNight = 24 * 60
	nights := minutes / minutesPerNight
	extra := minutes % minutesPerNight

	b := Breakdown{UnitPriceCents: p.rates.UnitCents}
	if nights == 0 {
		b.BaseUnits, b.Units = 1, 1
		b.BasePriceCents = p.rates.UnitCents
		return b, nil
	}

	b.BaseUnits, b.Units = nights, nights
	b.BasePriceCents = int64(nights) * p.rates.UnitCents
	b.ExtraMinutes = extra

	switch {
	case extra <= p.rates.FreeMinutes:
	case extra <= p.rates.DemiMaxMinutes:
		b.SurchargeTier = TierDemi
		b.SurchargeCents = p.rates.UnitCents * p.rates.DemiPercent / 100
	default:
		b.SurchargeTier = TierFull
		b.SurchargeCents = p.rates.UnitCents
		b.Units++
	}
	return b, nil
}

type dayCarePricer struct {
	rates DayCareRates
}

// ComputeBreakdown bills each calendar day. A single-day booking longer than
// the hour cap pays every started hour beyond it.
func (p dayCarePricer) ComputeBreakdown(in Input) (Breakdown, error) {
	minutes, err := spanMinutes(in.Start, in.End)
	if err != nil {
		return Breakdown{}, err
	}
	days, err := calendar.ExpandRange(in.Start, in.End)
	if err != nil {
		return Breakdown{}, err
	}

	b := Breakdown{
		Units:          len(days),
		BaseUnits:      len(days),
		UnitPriceCents: p.rates.UnitCents,
		BasePriceCents: int64(len(days)) * p.rates.UnitCents,
	}
	if len(days) == 1 {
		if over := minutes - p.rates.HourCap*60; over > 0 {
			hours := ceilDiv(over, 60)
			b.ExtraMinutes = over
			b.SurchargeTier = TierHourly
			b.SurchargeCents = int64(hours) * p.rates.HourlyOverageCents
		}
	}
	return b, nil
}

type visitPricer struct {
	rates       VisitRates
	serviceType catalog.ServiceType
}

// ComputeBreakdown bills each occurrence its unit price plus rounded-up increments.
func (p visitPricer) ComputeBreakdown(in Input) (Breakdown, error) {
	if len(in.Occurrences) == 0 {
		return Breakdown{}, domain.NewValidationError("%s requires at least one visit", p.serviceType)
	}

	b := Breakdown{UnitPriceCents: p.rates.UnitCents}
	for i, occ := range in.Occurrences {
		if occ.Date.IsZero() {
			return Breakdown{}, domain.NewValidationError("visit %d has no date", i+1)
		}
		if occ.DurationMinutes <= 0 {
			return Breakdown{}, domain.NewValidationError("visit %d duration must be positive, got %d minutes", i+1, occ.DurationMinutes)
		}
		if extra := occ.DurationMinutes - p.rates.BaseMinutes; extra > 0 {
			b.ExtraMinutes += extra
			b.SurchargeCents += int64(ceilDiv(extra, p.rates.IncrementMinutes)) * p.rates.IncrementCents
		}
	}

	b.Units = len(in.Occurrences)
	b.BaseUnits = b.Units
	b.BasePriceCents = int64(b.Units) * p.rates.UnitCents
	if b.SurchargeCents > 0 {
		b.SurchargeTier = TierExtraTime
	}
	return b, nil
}

// spanMinutes returns whole minutes between start and end, rejecting empty or
// inverted spans.
func spanMinutes(start, end time.Time) (int, error) {
	if start.IsZero() || end.IsZero() {
		return 0, domain.NewValidationError("start and end are required")
	}
	if !end.After(start) {
		return 0, domain.NewValidationError("end %s must be after start %s",
			end.UTC().Format(time.RFC3339), start.UTC().Format(time.RFC3339))
	}
	minutes := int(end.Sub(start) / time.Minute)
	if minutes == 0 {
		return 0, domain.NewValidationError("booking must last at least one minute")
	}
	return minutes, nil
}

func ceilDiv(n, d int) int {
	return (n + d - 1) / d
}

func durationLabel(b Breakdown) string {
	label := plural(b.BaseUnits, b.UnitLabel)
	if b.ServiceType == catalog.Boarding && b.ExtraMinutes > 0 {
		label += fmt.Sprintf(" + %dh%02d", b.ExtraMinutes/60, b.ExtraMinutes%60)
	}
	return label
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
