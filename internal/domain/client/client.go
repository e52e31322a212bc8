package client

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Client is a pet owner as seen by the booking engine.
type Client struct {
	id             uuid.UUID
	email          string
	name           string
	customerRef    string
	instrumentRef  string
	cardBrand      string
	cardLast4      string
	autoCouponCode string
	version        int64
	createdAt      time.Time
	updatedAt      time.Time
}

// NewClient creates a client with no payment details.
func NewClient(email, name string) *Client {
	now := time.Now().UTC()
	return &Client{
		id:        uuid.New(),
		email:     strings.ToLower(strings.TrimSpace(email)),
		name:      name,
		version:   1,
		createdAt: now,
		updatedAt: now,
	}
}

// Reconstruct rebuilds a Client from persistence.
func Reconstruct(id uuid.UUID, email, name, customerRef, instrumentRef, cardBrand, cardLast4, autoCouponCode string, version int64, createdAt, updatedAt time.Time) *Client {
	return &Client{
		id: id, email: email, name: name,
		customerRef: customerRef, instrumentRef: instrumentRef,
		cardBrand: cardBrand, cardLast4: cardLast4, autoCouponCode: autoCouponCode,
		version: version, createdAt: createdAt, updatedAt: updatedAt,
	}
}

// SetCustomerRef records the gateway customer id.
func (c *Client) SetCustomerRef(ref string) {
	c.customerRef = ref
	c.updatedAt = time.Now().UTC()
}

// SavePaymentMethod stores a reusable instrument if none is stored yet. It
// reports whether anything changed.
func (c *Client) SavePaymentMethod(instrumentRef, brand, last4 string) bool {
	if instrumentRef == "" || c.instrumentRef != "" {
		return false
	}
	c.instrumentRef = instrumentRef
	c.cardBrand = brand
	c.cardLast4 = last4
	c.updatedAt = time.Now().UTC()
	return true
}

// SetAutoCoupon attaches or clears (empty code) a VIP coupon.
func (c *Client) SetAutoCoupon(code string) {
	c.autoCouponCode = strings.ToUpper(strings.TrimSpace(code))
	c.updatedAt = time.Now().UTC()
}

// HasInstrument reports whether off-session charges are possible.
func (c *Client) HasInstrument() bool {
	return c.instrumentRef != "" && c.customerRef != ""
}

// IncrementVersion bumps the version for optimistic locking.
func (c *Client) IncrementVersion() {
	c.version++
	c.updatedAt = time.Now().UTC()
}

func (c *Client) ID() uuid.UUID          { return c.id }
func (c *Client) Email() string          { return c.email }
func (c *Client) Name() string           { return c.name }
func (c *Client) CustomerRef() string    { return c.customerRef }
func (c *Client) InstrumentRef() string  { return c.instrumentRef }
func (c *Client) CardBrand() string      { return c.cardBrand }
func (c *Client) CardLast4() string      { return c.cardLast4 }
func (c *Client) AutoCouponCode() string { return c.autoCouponCode }
func (c *Client) Version() int64         { return c.version }
func (c *Client) CreatedAt() time.Time   { return c.createdAt }
func (c *Client) UpdatedAt() time.Time   { return c.updatedAt }

// Pet is a client's animal.
type Pet struct {
	ID        uuid.UUID
	OwnerID   uuid.UUID
	Name      string
	Species   string
	BirthDate *time.Time
}

// AgeInYears returns whole years at the given instant. Pets without a birth
// date are treated as adults.
func (p Pet) AgeInYears(at time.Time) int {
	if p.BirthDate == nil {
		return 99
	}
	b, a := p.BirthDate.UTC(), at.UTC()
	years := a.Year() - b.Year()
	if a.Month() < b.Month() || (a.Month() == b.Month() && a.Day() < b.Day()) {
		years--
	}
	if years < 0 {
		return 0
	}
	return years
}

// ClientRepository defines persistence for clients and their pets.
type ClientRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Client, error)
	Save(ctx context.Context, c *Client) error
	Update(ctx context.Context, c *Client) error
	FindPets(ctx context.Context, ids []uuid.UUID) ([]Pet, error)
	ListPets(ctx context.Context, ownerID uuid.UUID) ([]Pet, error)
}
