package events

import (
	"time"

	"github.com/google/uuid"
)

// Kafka topics.
const (
	TopicBookingEvents = "boarding.booking.events"
	TopicPaymentEvents = "boarding.payment.events"
	TopicGatewayEvents = "boarding.gateway.events"
)

// Booking event types.
const (
	BookingCreated   = "booking.created"
	BookingConfirmed = "booking.confirmed"
	BookingStarted   = "booking.started"
	BookingCompleted = "booking.completed"
	BookingCancelled = "booking.cancelled"
	BookingExpired   = "booking.expired"
)

// Payment event types.
const (
	PaymentAuthorized     = "payment.authorized"
	PaymentCaptured       = "payment.captured"
	PaymentRefunded       = "payment.refunded"
	PaymentHoldCancelled  = "payment.hold_cancelled"
	PaymentFailed         = "payment.failed"
	PaymentReconciliation = "payment.reconciliation_pending"
	ChargeSucceeded       = "charge.succeeded"
	ChargeFailed          = "charge.failed"
)

// GatewayEventRelayed is the type of relayed webhook messages on TopicGatewayEvents.
const GatewayEventRelayed = "gateway.event.relayed"

// BookingCreatedEvent is published when a booking is persisted as PENDING.
type BookingCreatedEvent struct {
	BookingID   uuid.UUID   `json:"booking_id"`
	ClientID    uuid.UUID   `json:"client_id"`
	PetIDs      []uuid.UUID `json:"pet_ids"`
	ServiceType string      `json:"service_type"`
	StartDate   time.Time   `json:"start_date"`
	EndDate     time.Time   `json:"end_date"`
	TotalCents  int64       `json:"total_cents"`
	Currency    string      `json:"currency"`
	CouponCode  string      `json:"coupon_code,omitempty"`
	OccurredAt  time.Time   `json:"occurred_at"`
}

// BookingConfirmedEvent triggers the confirmation email downstream.
type BookingConfirmedEvent struct {
	BookingID   uuid.UUID `json:"booking_id"`
	ClientID    uuid.UUID `json:"client_id"`
	ClientEmail string    `json:"client_email"`
	ServiceType string    `json:"service_type"`
	StartDate   time.Time `json:"start_date"`
	EndDate     time.Time `json:"end_date"`
	PaidCents   int64     `json:"paid_cents"`
	Currency    string    `json:"currency"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// BookingStatusEvent covers started, completed and expired transitions.
type BookingStatusEvent struct {
	BookingID  uuid.UUID `json:"booking_id"`
	ClientID   uuid.UUID `json:"client_id"`
	Status     string    `json:"status"`
	OccurredAt time.Time `json:"occurred_at"`
}

// BookingCancelledEvent is published whenever a booking reaches CANCELLED.
type BookingCancelledEvent struct {
	BookingID             uuid.UUID `json:"booking_id"`
	ClientID              uuid.UUID `json:"client_id"`
	CancelledBy           uuid.UUID `json:"cancelled_by"`
	Reason                string    `json:"reason"`
	PaymentStatus         string    `json:"payment_status"`
	RefundedCents         int64     `json:"refunded_cents"`
	ReconciliationPending bool      `json:"reconciliation_pending"`
	OccurredAt            time.Time `json:"occurred_at"`
}

// PaymentEvent describes a payment status change.
type PaymentEvent struct {
	PaymentID   uuid.UUID `json:"payment_id"`
	BookingID   uuid.UUID `json:"booking_id"`
	ClientID    uuid.UUID `json:"client_id"`
	Status      string    `json:"status"`
	AmountCents int64     `json:"amount_cents"`
	Currency    string    `json:"currency"`
	GatewayRef  string    `json:"gateway_ref,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// AdditionalChargeEvent describes an off-session charge outcome.
type AdditionalChargeEvent struct {
	ChargeID    uuid.UUID `json:"charge_id"`
	BookingID   uuid.UUID `json:"booking_id"`
	ClientID    uuid.UUID `json:"client_id"`
	AmountCents int64     `json:"amount_cents"`
	Reason      string    `json:"reason"`
	Status      string    `json:"status"`
	Declined    bool      `json:"declined"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// GatewayWebhookEvent is a provider webhook normalized and relayed over Kafka.
type GatewayWebhookEvent struct {
	EventID       string            `json:"event_id"`
	Type          string            `json:"type"`
	Reference     string            `json:"reference"`
	CardBrand     string            `json:"card_brand,omitempty"`
	CardLast4     string            `json:"card_last4,omitempty"`
	InstrumentRef string            `json:"instrument_ref,omitempty"`
	FailureCode   string            `json:"failure_code,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	OccurredAt    time.Time         `json:"occurred_at"`
}
