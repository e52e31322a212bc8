package catalog

import (
	"strings"

	"github.com/Kilat-Pet-Delivery/service-boarding/pkg/domain"
)

// ServiceType identifies a bookable service.
type ServiceType string

const (
	Boarding   ServiceType = "BOARDING"
	DayCare    ServiceType = "DAY_CARE"
	DropIn     ServiceType = "DROP_IN"
	DogWalking ServiceType = "DOG_WALKING"
)

// Unlimited marks a service type with no pet headcount cap.
const Unlimited = 0

// AllServiceTypes lists every service type in display order.
func AllServiceTypes() []ServiceType {
	return []ServiceType{Boarding, DayCare, DropIn, DogWalking}
}

// ParseServiceType accepts any casing and hyphen or underscore separators.
func ParseServiceType(s string) (ServiceType, error) {
	st := ServiceType(strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "-", "_")))
	if !st.Valid() {
		return "", domain.NewValidationError("unknown service type %q", s)
	}
	return st, nil
}

// Valid reports whether st is a known service type.
func (st ServiceType) Valid() bool {
	switch st {
	case Boarding, DayCare, DropIn, DogWalking:
		return true
	}
	return false
}

// IsVisitBased reports whether the service is billed per discrete occurrence.
func (st ServiceType) IsVisitBased() bool {
	return st == DropIn || st == DogWalking
}

// UsesTimes reports whether the service takes a start and end time of day.
func (st ServiceType) UsesTimes() bool {
	return st == Boarding || st == DayCare
}

// MaxPets returns the pet headcount cap, or Unlimited.
func (st ServiceType) MaxPets() int {
	switch st {
	case Boarding, DayCare:
		return 2
	default:
		return Unlimited
	}
}

// UnitLabel is the singular billing unit shown to clients.
func (st ServiceType) UnitLabel() string {
	switch st {
	case Boarding:
		return "night"
	case DayCare:
		return "day"
	default:
		return "visit"
	}
}

// CheckHeadcount rejects pet sets over the service's cap.
func (st ServiceType) CheckHeadcount(pets int) error {
	if pets < 1 {
		return domain.NewValidationError("at least one pet is required")
	}
	if limit := st.MaxPets(); limit != Unlimited && pets > limit {
		return domain.NewValidationError("%s accepts at most %d pets, got %d", st, limit, pets)
	}
	return nil
}
