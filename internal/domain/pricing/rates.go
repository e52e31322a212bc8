package pricing

import (
	"fmt"

	"github.com/Kilat-Pet-Delivery/service-boarding/internal/domain/catalog"
)

// BoardingRates prices overnight stays. Extra time past whole nights is free
// up to FreeMinutes, a DemiPercent share of a night up to DemiMaxMinutes, and
// a full night beyond that.
type BoardingRates struct {
	UnitCents      int64
	FreeMinutes    int
	DemiMaxMinutes int
	DemiPercent    int64
}

// DayCareRates prices daytime care. Only single-day bookings pay overage.
type DayCareRates struct {
	UnitCents          int64
	HourCap            int
	HourlyOverageCents int64
}

// VisitRates prices drop-ins and walks per occurrence.
type VisitRates struct {
	UnitCents        int64
	BaseMinutes      int
	IncrementMinutes int
	IncrementCents   int64
}

// Rates is the full price list.
type Rates struct {
	Currency                  string
	YoungAnimalAgeYears       int
	YoungAnimalSurchargeCents int64
	Boarding                  BoardingRates
	DayCare                   DayCareRates
	DropIn                    VisitRates
	DogWalking                VisitRates
}

// DefaultRates returns the standard price list in euro cents.
func DefaultRates() Rates {
	return Rates{
		Currency:                  "EUR",
		YoungAnimalAgeYears:       1,
		YoungAnimalSurchargeCents: 500,
		Boarding: BoardingRates{
			UnitCents:      5000,
			FreeMinutes:    120,
			DemiMaxMinutes: 480,
			DemiPercent:    50,
		},
		DayCare: DayCareRates{
			UnitCents:          3000,
			HourCap:            10,
			HourlyOverageCents: 500,
		},
		DropIn: VisitRates{
			UnitCents:        2000,
			BaseMinutes:      30,
			IncrementMinutes: 15,
			IncrementCents:   500,
		},
		DogWalking: VisitRates{
			UnitCents:        1500,
			BaseMinutes:      15,
			IncrementMinutes: 15,
			IncrementCents:   1000,
		},
	}
}

// Validate rejects price lists that would produce nonsense quotes.
func (r Rates) Validate() error {
	if r.Currency == "" {
		return fmt.Errorf("pricing: currency is required")
	}
	for st, unit := range map[catalog.ServiceType]int64{
		catalog.Boarding:   r.Boarding.UnitCents,
		catalog.DayCare:    r.DayCare.UnitCents,
		catalog.DropIn:     r.DropIn.UnitCents,
		catalog.DogWalking: r.DogWalking.UnitCents,
	} {
		if unit <= 0 {
			return fmt.Errorf("pricing: %s unit price must be positive", st)
		}
	}
	if r.Boarding.FreeMinutes < 0 || r.Boarding.DemiMaxMinutes < r.Boarding.FreeMinutes {
		return fmt.Errorf("pricing: boarding tolerance tiers are out of order")
	}
	if r.DayCare.HourCap <= 0 {
		return fmt.Errorf("pricing: day care hour cap must be positive")
	}
	if r.DropIn.IncrementMinutes <= 0 || r.DogWalking.IncrementMinutes <= 0 {
		return fmt.Errorf("pricing: visit increments must be positive")
	}
	if r.YoungAnimalSurchargeCents < 0 {
		return fmt.Errorf("pricing: young animal surcharge cannot be negative")
	}
	return nil
}
