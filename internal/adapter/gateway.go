package adapter

import (
	"context"
)

// Gateway is the anti-corruption layer over the card payment provider. All
// amounts are integer minor units. Errors are *domain.DomainError values of
// the gateway kinds so callers can tell a decline from a transient failure.
type Gateway interface {
	// CreateCustomer registers the client with the provider and returns the customer reference.
	CreateCustomer(ctx context.Context, email, description string) (string, error)

	// CreateHold places a manual-capture authorization.
	CreateHold(ctx context.Context, req HoldRequest) (*HoldResult, error)

	// Capture converts a hold into a charge.
	Capture(ctx context.Context, holdRef string) error

	// CancelHold releases a hold without charging the client.
	CancelHold(ctx context.Context, holdRef string) error

	// Refund returns amountCents of a captured charge and yields the refund reference.
	Refund(ctx context.Context, captureRef string, amountCents int64) (string, error)

	// OffSessionCharge charges a stored instrument without the cardholder present.
	OffSessionCharge(ctx context.Context, req ChargeRequest) (*ChargeResult, error)

	// ParseWebhook verifies and normalizes an inbound provider callback.
	ParseWebhook(ctx context.Context, payload []byte) (*GatewayEvent, error)
}

// HoldRequest describes an authorization to place.
type HoldRequest struct {
	CustomerRef     string
	InstrumentToken string
	AmountCents     int64
	Currency        string
	Metadata        map[string]string
}

// HoldResult is the provider's answer to a hold. Authorized is true when the
// provider confirmed the authorization synchronously.
type HoldResult struct {
	Ref           string
	Authorized    bool
	CardBrand     string
	CardLast4     string
	InstrumentRef string
}

// ChargeRequest describes an off-session charge.
type ChargeRequest struct {
	CustomerRef   string
	InstrumentRef string
	AmountCents   int64
	Currency      string
	Description   string
	Metadata      map[string]string
}

// ChargeResult is the provider's answer to an off-session charge. A charge
// that is neither succeeded nor declined is settled later by webhook.
type ChargeResult struct {
	Ref       string
	Succeeded bool
}

// EventType is a normalized webhook event type.
type EventType string

const (
	EventHoldAuthorized   EventType = "hold.authorized"
	EventPaymentSucceeded EventType = "payment.succeeded"
	EventPaymentFailed    EventType = "payment.failed"
	// EventIgnored marks provider events the engine does not act on.
	EventIgnored EventType = ""
)

// GatewayEvent is a provider callback after verification.
type GatewayEvent struct {
	ID            string            `json:"id"`
	Type          EventType         `json:"type"`
	Reference     string            `json:"reference"`
	CardBrand     string            `json:"card_brand,omitempty"`
	CardLast4     string            `json:"card_last4,omitempty"`
	InstrumentRef string            `json:"instrument_ref,omitempty"`
	FailureCode   string            `json:"failure_code,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}
