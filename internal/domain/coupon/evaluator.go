package coupon

import (
	"fmt"
	"time"

	"github.com/Kilat-Pet-Delivery/service-boarding/internal/domain/catalog"
	"github.com/Kilat-Pet-Delivery/service-boarding/pkg/domain"
)

// Reason identifies why a coupon was rejected.
type Reason string

const (
	ReasonOK              Reason = ""
	ReasonNotFound        Reason = "not_found"
	ReasonServiceType     Reason = "service_not_applicable"
	ReasonInactive        Reason = "inactive"
	ReasonNotYetValid     Reason = "not_yet_valid"
	ReasonExpired         Reason = "expired"
	ReasonUsageExhausted  Reason = "usage_limit_reached"
	ReasonBelowMinimum    Reason = "below_minimum_amount"
	ReasonEmailNotAllowed Reason = "email_not_eligible"
)

// Request is one evaluation. Duration is the billable unit count.
type Request struct {
	AmountCents int64
	ServiceType catalog.ServiceType
	Duration    int
	Email       string
	Now         time.Time
}

// Result is the outcome of an evaluation.
type Result struct {
	Valid            bool
	Reason           Reason
	Message          string
	Coupon           *Coupon
	DiscountCents    int64
	FinalAmountCents int64
}

// Err converts a failed result into a validation error carrying the reason.
func (r Result) Err() error {
	if r.Valid {
		return nil
	}
	if r.Reason == ReasonNotFound {
		return &domain.DomainError{
			Err:     domain.ErrNotFound,
			Message: r.Message,
			Details: map[string]interface{}{"reason": string(r.Reason)},
		}
	}
	return &domain.DomainError{
		Err:     domain.ErrValidation,
		Message: r.Message,
		Details: map[string]interface{}{"reason": string(r.Reason)},
	}
}

// Evaluate runs the checks in order and stops at the first failure. A nil
// coupon means the code does not exist.
func Evaluate(c *Coupon, req Request) Result {
	now := req.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	res := Result{Coupon: c, FinalAmountCents: req.AmountCents}

	switch {
	case c == nil:
		return res.reject(ReasonNotFound, "coupon code not found")
	case !c.AppliesTo(req.ServiceType):
		return res.reject(ReasonServiceType, fmt.Sprintf("coupon %s does not apply to %s", c.code, req.ServiceType))
	case !c.active:
		return res.reject(ReasonInactive, fmt.Sprintf("coupon %s is no longer active", c.code))
	case c.validFrom != nil && now.Before(*c.validFrom):
		return res.reject(ReasonNotYetValid, fmt.Sprintf("coupon %s is valid from %s", c.code, c.validFrom.Format("2006-01-02")))
	case c.validUntil != nil && now.After(*c.validUntil):
		return res.reject(ReasonExpired, fmt.Sprintf("coupon %s expired on %s", c.code, c.validUntil.Format("2006-01-02")))
	case c.maxUses != nil && c.currentUses >= *c.maxUses:
		return res.reject(ReasonUsageExhausted, fmt.Sprintf("coupon %s has reached its usage limit", c.code))
	case c.minAmountCents != nil && req.AmountCents < *c.minAmountCents:
		return res.reject(ReasonBelowMinimum, fmt.Sprintf("coupon %s requires a minimum of %s", c.code, FormatCents(*c.minAmountCents)))
	case !c.AllowsEmail(req.Email):
		return res.reject(ReasonEmailNotAllowed, fmt.Sprintf("coupon %s is not available for this account", c.code))
	}

	discount := ComputeDiscount(c.discountType, c.discountValue, req.AmountCents, req.Duration)
	res.Valid = true
	res.DiscountCents = discount
	res.FinalAmountCents = req.AmountCents - discount
	if res.FinalAmountCents < 0 {
		res.FinalAmountCents = 0
	}
	res.Message = fmt.Sprintf("coupon %s applied: %s off (%s)", c.code, FormatCents(discount), describe(c))
	return res
}

func (r Result) reject(reason Reason, msg string) Result {
	r.Valid = false
	r.Reason = reason
	r.Message = msg
	return r
}

// ComputeDiscount returns the discount for amount, never more than amount.
// Fixed discounts apply once per billable unit.
func ComputeDiscount(t DiscountType, value, amountCents int64, duration int) int64 {
	if amountCents <= 0 {
		return 0
	}
	var discount int64
	switch t {
	case DiscountPercentage:
		discount = amountCents * value / 100
	case DiscountFixedAmount:
		units := int64(duration)
		if units < 1 {
			units = 1
		}
		discount = value * units
	}
	if discount > amountCents {
		discount = amountCents
	}
	if discount < 0 {
		discount = 0
	}
	return discount
}

func describe(c *Coupon) string {
	if c.discountType == DiscountPercentage {
		return fmt.Sprintf("%d%%", c.discountValue)
	}
	return FormatCents(c.discountValue) + " per unit"
}

// FormatCents renders minor units as a decimal amount.
func FormatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign, cents = "-", -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}
