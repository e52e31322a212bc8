package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/omise/omise-go"
	"github.com/omise/omise-go/operations"
	"go.uber.org/zap"

	"github.com/Kilat-Pet-Delivery/service-boarding/pkg/domain"
)

const (
	chargeStatusFailed = "failed"

	// Event fetches are read-only and therefore the only retried calls.
	eventFetchRetries = 4
)

// Omise API error codes that mean the card itself was refused.
var declineCodes = map[string]bool{
	"invalid_card":       true,
	"failed_fraud_check": true,
	"used_token":         true,
	"invalid_charge":     true,
}

// OmiseGateway implements Gateway on the Omise card API. Holds are charges
// created with DontCapture, released by reversal.
type OmiseGateway struct {
	client *omise.Client
	logger *zap.Logger
}

// NewOmiseGateway creates an Omise-backed gateway.
func NewOmiseGateway(publicKey, secretKey string, logger *zap.Logger) (*OmiseGateway, error) {
	client, err := omise.NewClient(publicKey, secretKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create omise client: %w", err)
	}
	return &OmiseGateway{client: client, logger: logger}, nil
}

// CreateCustomer registers a customer without a card.
func (g *OmiseGateway) CreateCustomer(ctx context.Context, email, description string) (string, error) {
	cust := &omise.Customer{}
	if err := g.client.Do(cust, &operations.CreateCustomer{Email: email, Description: description}); err != nil {
		return "", gatewayError("create_customer", err)
	}
	return cust.ID, nil
}

// CreateHold attaches the card token to the customer, when there is one, and
// authorizes the amount without capturing it.
func (g *OmiseGateway) CreateHold(ctx context.Context, req HoldRequest) (*HoldResult, error) {
	op := &operations.CreateCharge{
		Amount:      req.AmountCents,
		Currency:    req.Currency,
		DontCapture: true,
		Metadata:    toAnyMap(req.Metadata),
	}
	if req.CustomerRef != "" {
		cust := &omise.Customer{}
		if err := g.client.Do(cust, &operations.UpdateCustomer{CustomerID: req.CustomerRef, Card: req.InstrumentToken}); err != nil {
			return nil, gatewayError("create_hold", err)
		}
		op.Customer = req.CustomerRef
		op.Card = cust.DefaultCard
	} else {
		op.Card = req.InstrumentToken
	}

	ch := &omise.Charge{}
	if err := g.client.Do(ch, op); err != nil {
		return nil, gatewayError("create_hold", err)
	}
	if string(ch.Status) == chargeStatusFailed {
		return nil, domain.NewGatewayError("create_hold", true, chargeFailure(ch))
	}

	res := &HoldResult{Ref: ch.ID, Authorized: ch.Authorized}
	if ch.Card != nil {
		res.CardBrand = ch.Card.Brand
		res.CardLast4 = ch.Card.LastDigits
		if req.CustomerRef != "" {
			res.InstrumentRef = ch.Card.ID
		}
	}
	g.logger.Info("omise hold created",
		zap.String("charge_id", ch.ID),
		zap.String("status", string(ch.Status)),
		zap.Bool("authorized", ch.Authorized),
	)
	return res, nil
}

// Capture captures an authorized charge.
func (g *OmiseGateway) Capture(ctx context.Context, holdRef string) error {
	ch := &omise.Charge{}
	if err := g.client.Do(ch, &operations.CaptureCharge{ChargeID: holdRef}); err != nil {
		return gatewayError("capture", err)
	}
	if string(ch.Status) == chargeStatusFailed {
		return domain.NewGatewayError("capture", true, chargeFailure(ch))
	}
	return nil
}

// CancelHold reverses an uncaptured charge.
func (g *OmiseGateway) CancelHold(ctx context.Context, holdRef string) error {
	ch := &omise.Charge{}
	if err := g.client.Do(ch, &operations.ReverseCharge{ChargeID: holdRef}); err != nil {
		return gatewayError("cancel_hold", err)
	}
	return nil
}

// Refund refunds a captured charge.
func (g *OmiseGateway) Refund(ctx context.Context, captureRef string, amountCents int64) (string, error) {
	refund := &omise.Refund{}
	if err := g.client.Do(refund, &operations.CreateRefund{ChargeID: captureRef, Amount: amountCents}); err != nil {
		return "", gatewayError("refund", err)
	}
	return refund.ID, nil
}

// OffSessionCharge charges the customer's stored card and captures at once.
func (g *OmiseGateway) OffSessionCharge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	meta := toAnyMap(req.Metadata)
	if req.Description != "" {
		meta["description"] = req.Description
	}
	ch := &omise.Charge{}
	err := g.client.Do(ch, &operations.CreateCharge{
		Customer: req.CustomerRef,
		Card:     req.InstrumentRef,
		Amount:   req.AmountCents,
		Currency: req.Currency,
		Metadata: meta,
	})
	if err != nil {
		return nil, gatewayError("off_session_charge", err)
	}
	if string(ch.Status) == chargeStatusFailed {
		return nil, domain.NewGatewayError("off_session_charge", true, chargeFailure(ch))
	}
	return &ChargeResult{Ref: ch.ID, Succeeded: ch.Paid}, nil
}

type omiseWebhook struct {
	ID string `json:"id"`
}

// ParseWebhook never trusts the posted body: it re-fetches the event from
// Omise by id and derives the normalized event from the fetched charge.
func (g *OmiseGateway) ParseWebhook(ctx context.Context, payload []byte) (*GatewayEvent, error) {
	var inc omiseWebhook
	if err := json.Unmarshal(payload, &inc); err != nil || inc.ID == "" {
		return nil, domain.NewValidationError("invalid omise webhook payload")
	}

	ev := &omise.Event{}
	fetch := func() error {
		err := g.client.Do(ev, &operations.RetrieveEvent{EventID: inc.ID})
		var oe *omise.Error
		if errors.As(err, &oe) && oe.StatusCode >= 400 && oe.StatusCode < 500 {
			return backoff.Permanent(err)
		}
		return err
	}
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 200 * time.Millisecond
	if err := backoff.Retry(fetch, backoff.WithContext(backoff.WithMaxRetries(policy, eventFetchRetries), ctx)); err != nil {
		return nil, gatewayError("retrieve_event", err)
	}

	switch ev.Key {
	case "charge.create", "charge.capture", "charge.complete":
	default:
		return &GatewayEvent{ID: ev.ID, Type: EventIgnored}, nil
	}

	raw, err := json.Marshal(ev.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal omise event data: %w", err)
	}
	var ch omise.Charge
	if err := json.Unmarshal(raw, &ch); err != nil {
		return nil, fmt.Errorf("failed to decode omise charge: %w", err)
	}
	return chargeEvent(ev.ID, &ch), nil
}

// chargeEvent maps a charge snapshot to the normalized event. The card is
// only reusable when the charge was made against a customer.
func chargeEvent(eventID string, ch *omise.Charge) *GatewayEvent {
	out := &GatewayEvent{
		ID:        eventID,
		Type:      EventIgnored,
		Reference: ch.ID,
		Metadata:  toStringMap(ch.Metadata),
	}
	if ch.Card != nil {
		out.CardBrand = ch.Card.Brand
		out.CardLast4 = ch.Card.LastDigits
		if ch.CustomerID != "" {
			out.InstrumentRef = ch.Card.ID
		}
	}
	switch {
	case string(ch.Status) == chargeStatusFailed:
		out.Type = EventPaymentFailed
		if ch.FailureCode != nil {
			out.FailureCode = *ch.FailureCode
		}
	case ch.Paid:
		out.Type = EventPaymentSucceeded
	case ch.Authorized:
		out.Type = EventHoldAuthorized
	}
	return out
}

func gatewayError(op string, err error) error {
	var oe *omise.Error
	if errors.As(err, &oe) && declineCodes[oe.Code] {
		return domain.NewGatewayError(op, true, err)
	}
	return domain.NewGatewayError(op, false, err)
}

func chargeFailure(ch *omise.Charge) error {
	code, msg := "unknown", "charge failed"
	if ch.FailureCode != nil {
		code = *ch.FailureCode
	}
	if ch.FailureMessage != nil {
		msg = *ch.FailureMessage
	}
	return fmt.Errorf("%s: %s", code, msg)
}

func toAnyMap(in map[string]string) map[string]interface{} {
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func toStringMap(in map[string]interface{}) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}
