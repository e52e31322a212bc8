package coupon

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Kilat-Pet-Delivery/service-boarding/internal/domain/catalog"
	"github.com/Kilat-Pet-Delivery/service-boarding/pkg/domain"
)

// DiscountType represents the type of discount.
type DiscountType string

const (
	DiscountPercentage  DiscountType = "PERCENTAGE"
	DiscountFixedAmount DiscountType = "FIXED_AMOUNT"
)

// NormalizeCode returns the canonical form codes are stored and looked up in.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Coupon is the aggregate root for discount codes.
type Coupon struct {
	id                 uuid.UUID
	code               string
	description        string
	discountType       DiscountType
	discountValue      int64 // percent (1-100) or cents per billable unit
	minAmountCents     *int64
	maxUses            *int
	currentUses        int
	validFrom          *time.Time
	validUntil         *time.Time
	restrictedToEmails []string
	serviceTypes       []catalog.ServiceType
	active             bool
	createdBy          uuid.UUID
	createdAt          time.Time
	updatedAt          time.Time
}

// Params holds the fields needed to create a coupon.
type Params struct {
	Code               string
	Description        string
	DiscountType       DiscountType
	DiscountValue      int64
	MinAmountCents     *int64
	MaxUses            *int
	ValidFrom          *time.Time
	ValidUntil         *time.Time
	RestrictedToEmails []string
	ServiceTypes       []catalog.ServiceType
	CreatedBy          uuid.UUID
}

// NewCoupon creates a new active coupon.
func NewCoupon(p Params) (*Coupon, error) {
	code := NormalizeCode(p.Code)
	if code == "" {
		return nil, domain.NewValidationError("coupon code is required")
	}
	switch p.DiscountType {
	case DiscountPercentage:
		if p.DiscountValue <= 0 || p.DiscountValue > 100 {
			return nil, domain.NewValidationError("percentage discount must be between 1 and 100")
		}
	case DiscountFixedAmount:
		if p.DiscountValue <= 0 {
			return nil, domain.NewValidationError("fixed discount must be positive")
		}
	default:
		return nil, domain.NewValidationError("invalid discount type: %s", p.DiscountType)
	}
	if p.MinAmountCents != nil && *p.MinAmountCents < 0 {
		return nil, domain.NewValidationError("minimum amount cannot be negative")
	}
	if p.MaxUses != nil && *p.MaxUses <= 0 {
		return nil, domain.NewValidationError("max uses must be positive when set")
	}
	if p.ValidFrom != nil && p.ValidUntil != nil && p.ValidUntil.Before(*p.ValidFrom) {
		return nil, domain.NewValidationError("valid_until must be after valid_from")
	}
	for _, st := range p.ServiceTypes {
		if !st.Valid() {
			return nil, domain.NewValidationError("unknown service type %q", st)
		}
	}

	emails := make([]string, 0, len(p.RestrictedToEmails))
	for _, e := range p.RestrictedToEmails {
		if e = normalizeEmail(e); e != "" {
			emails = append(emails, e)
		}
	}

	now := time.Now().UTC()
	return &Coupon{
		id:                 uuid.New(),
		code:               code,
		description:        p.Description,
		discountType:       p.DiscountType,
		discountValue:      p.DiscountValue,
		minAmountCents:     p.MinAmountCents,
		maxUses:            p.MaxUses,
		validFrom:          p.ValidFrom,
		validUntil:         p.ValidUntil,
		restrictedToEmails: emails,
		serviceTypes:       p.ServiceTypes,
		active:             true,
		createdBy:          p.CreatedBy,
		createdAt:          now,
		updatedAt:          now,
	}, nil
}

// Reconstruct rebuilds a Coupon from persistence.
func Reconstruct(
	id uuid.UUID, code, description string,
	discountType DiscountType, discountValue int64,
	minAmountCents *int64, maxUses *int, currentUses int,
	validFrom, validUntil *time.Time,
	restrictedToEmails []string, serviceTypes []catalog.ServiceType,
	active bool, createdBy uuid.UUID, createdAt, updatedAt time.Time,
) *Coupon {
	return &Coupon{
		id: id, code: code, description: description,
		discountType: discountType, discountValue: discountValue,
		minAmountCents: minAmountCents, maxUses: maxUses, currentUses: currentUses,
		validFrom: validFrom, validUntil: validUntil,
		restrictedToEmails: restrictedToEmails, serviceTypes: serviceTypes,
		active: active, createdBy: createdBy, createdAt: createdAt, updatedAt: updatedAt,
	}
}

// Deactivate stops the coupon from validating.
func (c *Coupon) Deactivate() {
	c.active = false
	c.updatedAt = time.Now().UTC()
}

// IncrementUses consumes one use, refusing to exceed maxUses.
func (c *Coupon) IncrementUses() error {
	if c.maxUses != nil && c.currentUses >= *c.maxUses {
		return domain.NewConflictError("coupon " + c.code + " has no uses left")
	}
	c.currentUses++
	c.updatedAt = time.Now().UTC()
	return nil
}

// AppliesTo reports whether the coupon covers st. An empty list covers everything.
func (c *Coupon) AppliesTo(st catalog.ServiceType) bool {
	if len(c.serviceTypes) == 0 {
		return true
	}
	for _, s := range c.serviceTypes {
		if s == st {
			return true
		}
	}
	return false
}

// AllowsEmail reports whether email may use the coupon.
func (c *Coupon) AllowsEmail(email string) bool {
	if len(c.restrictedToEmails) == 0 {
		return true
	}
	email = normalizeEmail(email)
	for _, e := range c.restrictedToEmails {
		if e == email {
			return true
		}
	}
	return false
}

func normalizeEmail(e string) string {
	return strings.ToLower(strings.TrimSpace(e))
}

// Getters.
func (c *Coupon) ID() uuid.UUID                        { return c.id }
func (c *Coupon) Code() string                         { return c.code }
func (c *Coupon) Description() string                  { return c.description }
func (c *Coupon) DiscountType() DiscountType           { return c.discountType }
func (c *Coupon) DiscountValue() int64                 { return c.discountValue }
func (c *Coupon) MinAmountCents() *int64               { return c.minAmountCents }
func (c *Coupon) MaxUses() *int                        { return c.maxUses }
func (c *Coupon) CurrentUses() int                     { return c.currentUses }
func (c *Coupon) ValidFrom() *time.Time                { return c.validFrom }
func (c *Coupon) ValidUntil() *time.Time               { return c.validUntil }
func (c *Coupon) RestrictedToEmails() []string         { return c.restrictedToEmails }
func (c *Coupon) ServiceTypes() []catalog.ServiceType { return c.serviceTypes }
func (c *Coupon) IsActive() bool                       { return c.active }
func (c *Coupon) CreatedBy() uuid.UUID                 { return c.createdBy }
func (c *Coupon) CreatedAt() time.Time                 { return c.createdAt }
func (c *Coupon) UpdatedAt() time.Time                 { return c.updatedAt }
