package calendar

import (
	"context"
	"time"

	"github.com/Kilat-Pet-Delivery/service-boarding/internal/domain/catalog"
)

// AvailabilityRepository defines the persistence contract for the calendar.
type AvailabilityRepository interface {
	// FindRange returns explicit records for serviceType between from and to inclusive.
	FindRange(ctx context.Context, serviceType catalog.ServiceType, from, to time.Time) ([]*Availability, error)

	// FindByDate returns the record for one day, or a not-found error.
	FindByDate(ctx context.Context, serviceType catalog.ServiceType, date time.Time) (*Availability, error)

	// Upsert inserts or replaces the record keyed by (date, service type).
	Upsert(ctx context.Context, a *Availability) error
}
