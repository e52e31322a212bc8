package credit

import (
	"time"

	"github.com/google/uuid"

	"github.com/Kilat-Pet-Delivery/service-boarding/internal/domain/catalog"
	"github.com/Kilat-Pet-Delivery/service-boarding/pkg/domain"
)

// PlanType represents a credit plan.
type PlanType string

const (
	PlanWalks10   PlanType = "WALKS_10"
	PlanDropIns8  PlanType = "DROP_INS_8"
	PlanDayCare5  PlanType = "DAY_CARE_5"
	PlanBoarding3 PlanType = "BOARDING_3"
)

// SubStatus represents the subscription status.
type SubStatus string

const (
	StatusActive    SubStatus = "active"
	StatusCancelled SubStatus = "cancelled"
)

// PlanInfo defines the properties of a credit plan.
type PlanInfo struct {
	Plan        PlanType            `json:"plan"`
	ServiceType catalog.ServiceType `json:"service_type"`
	Credits     int64               `json:"credits"`
	PriceCents  int64               `json:"price_cents"`
	PeriodDays  int                 `json:"period_days"`
	Description string              `json:"description"`
}

// AvailablePlans returns the list of credit plans.
func AvailablePlans() []PlanInfo {
	return []PlanInfo{
		{Plan: PlanWalks10, ServiceType: catalog.DogWalking, Credits: 10, PriceCents: 13500, PeriodDays: 30, Description: "10 dog walks every 30 days"},
		{Plan: PlanDropIns8, ServiceType: catalog.DropIn, Credits: 8, PriceCents: 14400, PeriodDays: 30, Description: "8 drop-in visits every 30 days"},
		{Plan: PlanDayCare5, ServiceType: catalog.DayCare, Credits: 5, PriceCents: 13500, PeriodDays: 30, Description: "5 day care days every 30 days"},
		{Plan: PlanBoarding3, ServiceType: catalog.Boarding, Credits: 3, PriceCents: 13500, PeriodDays: 90, Description: "3 boarding nights every 90 days"},
	}
}

// FindPlan returns the plan definition, or a validation error.
func FindPlan(plan PlanType) (PlanInfo, error) {
	for _, p := range AvailablePlans() {
		if p.Plan == plan {
			return p, nil
		}
	}
	return PlanInfo{}, domain.NewValidationError("invalid plan: %s", plan)
}

// Subscription grants a batch of credits every period while active.
type Subscription struct {
	id          uuid.UUID
	clientID    uuid.UUID
	plan        PlanType
	priceCents  int64
	periodStart time.Time
	periodEnd   time.Time
	status      SubStatus
	autoRenew   bool
	renewals    int
	createdAt   time.Time
	updatedAt   time.Time
}

// NewSubscription starts a subscription whose first period begins now.
func NewSubscription(clientID uuid.UUID, plan PlanType) (*Subscription, error) {
	info, err := FindPlan(plan)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	return &Subscription{
		id:          uuid.New(),
		clientID:    clientID,
		plan:        plan,
		priceCents:  info.PriceCents,
		periodStart: now,
		periodEnd:   now.AddDate(0, 0, info.PeriodDays),
		status:      StatusActive,
		autoRenew:   true,
		createdAt:   now,
		updatedAt:   now,
	}, nil
}

// ReconstructSubscription rebuilds a Subscription from persistence.
func ReconstructSubscription(id, clientID uuid.UUID, plan PlanType, priceCents int64, periodStart, periodEnd time.Time, status SubStatus, autoRenew bool, renewals int, createdAt, updatedAt time.Time) *Subscription {
	return &Subscription{
		id: id, clientID: clientID, plan: plan, priceCents: priceCents,
		periodStart: periodStart, periodEnd: periodEnd, status: status,
		autoRenew: autoRenew, renewals: renewals, createdAt: createdAt, updatedAt: updatedAt,
	}
}

// Cancel stops future renewals.
func (s *Subscription) Cancel() {
	s.status = StatusCancelled
	s.autoRenew = false
	s.updatedAt = time.Now().UTC()
}

// DueForRenewal reports whether the current period has ended and the subscription renews.
func (s *Subscription) DueForRenewal(now time.Time) bool {
	return s.status == StatusActive && s.autoRenew && !now.Before(s.periodEnd)
}

// Renew advances to the next period.
func (s *Subscription) Renew(now time.Time) error {
	if !s.DueForRenewal(now) {
		return domain.NewInvalidStateError(string(s.status), "renewed")
	}
	info, err := FindPlan(s.plan)
	if err != nil {
		return err
	}
	s.periodStart = s.periodEnd
	s.periodEnd = s.periodEnd.AddDate(0, 0, info.PeriodDays)
	s.renewals++
	s.updatedAt = now.UTC()
	return nil
}

// IsActive returns true if the subscription is active and inside its period.
func (s *Subscription) IsActive() bool {
	return s.status == StatusActive && time.Now().UTC().Before(s.periodEnd)
}

// Getters.
func (s *Subscription) ID() uuid.UUID          { return s.id }
func (s *Subscription) ClientID() uuid.UUID    { return s.clientID }
func (s *Subscription) Plan() PlanType         { return s.plan }
func (s *Subscription) PriceCents() int64      { return s.priceCents }
func (s *Subscription) PeriodStart() time.Time { return s.periodStart }
func (s *Subscription) PeriodEnd() time.Time   { return s.periodEnd }
func (s *Subscription) Status() SubStatus      { return s.status }
func (s *Subscription) AutoRenew() bool        { return s.autoRenew }
func (s *Subscription) Renewals() int          { return s.renewals }
func (s *Subscription) CreatedAt() time.Time   { return s.createdAt }
func (s *Subscription) UpdatedAt() time.Time   { return s.updatedAt }
