package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Kilat-Pet-Delivery/service-boarding/pkg/domain"
)

type mockHold struct {
	amountCents int64
	captured    bool
	cancelled   bool
	refunded    int64
}

// MockGateway is a development/testing implementation of Gateway.
// It simulates the provider without requiring a real account. Instrument
// tokens containing "decline" are refused.
type MockGateway struct {
	logger        *zap.Logger
	autoAuthorize bool

	mu       sync.Mutex
	holds    map[string]*mockHold
	failures map[string]bool
}

// NewMockGateway creates a new mock gateway. With autoAuthorize the hold is
// reported as authorized synchronously; otherwise it waits for a webhook.
func NewMockGateway(logger *zap.Logger, autoAuthorize bool) *MockGateway {
	return &MockGateway{
		logger:        logger,
		autoAuthorize: autoAuthorize,
		holds:         make(map[string]*mockHold),
		failures:      make(map[string]bool),
	}
}

// FailNext makes the next call of operation fail. declined selects a card
// decline instead of a transient error.
func (m *MockGateway) FailNext(operation string, declined bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[operation] = declined
}

func (m *MockGateway) injected(operation string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	declined, ok := m.failures[operation]
	if !ok {
		return nil
	}
	delete(m.failures, operation)
	return domain.NewGatewayError(operation, declined, errors.New("injected failure"))
}

// CreateCustomer returns a mock customer reference.
func (m *MockGateway) CreateCustomer(ctx context.Context, email, description string) (string, error) {
	if err := m.injected("create_customer"); err != nil {
		return "", err
	}
	ref := fmt.Sprintf("cust_mock_%s", uuid.New().String()[:8])
	m.logger.Info("[MOCK GATEWAY] customer created",
		zap.String("customer_ref", ref),
		zap.String("email", email),
	)
	return ref, nil
}

// CreateHold simulates a manual-capture authorization.
func (m *MockGateway) CreateHold(ctx context.Context, req HoldRequest) (*HoldResult, error) {
	if err := m.injected("create_hold"); err != nil {
		return nil, err
	}
	if strings.Contains(req.InstrumentToken, "decline") {
		return nil, domain.NewGatewayError("create_hold", true, errors.New("card declined by issuer"))
	}
	ref := fmt.Sprintf("chrg_mock_%s", uuid.New().String()[:8])

	m.mu.Lock()
	m.holds[ref] = &mockHold{amountCents: req.AmountCents}
	m.mu.Unlock()

	m.logger.Info("[MOCK GATEWAY] hold created",
		zap.String("hold_ref", ref),
		zap.Int64("amount_cents", req.AmountCents),
		zap.String("currency", req.Currency),
		zap.Bool("authorized", m.autoAuthorize),
	)
	res := &HoldResult{Ref: ref, Authorized: m.autoAuthorize}
	if req.CustomerRef != "" {
		res.CardBrand = "Visa"
		res.CardLast4 = "4242"
		res.InstrumentRef = fmt.Sprintf("card_mock_%s", uuid.New().String()[:8])
	}
	return res, nil
}

// Capture simulates capturing a hold.
func (m *MockGateway) Capture(ctx context.Context, holdRef string) error {
	if err := m.injected("capture"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.holds[holdRef]
	if !ok || h.cancelled {
		return domain.NewGatewayError("capture", false, fmt.Errorf("hold %s is not capturable", holdRef))
	}
	h.captured = true
	m.logger.Info("[MOCK GATEWAY] hold captured", zap.String("hold_ref", holdRef))
	return nil
}

// CancelHold simulates releasing a hold.
func (m *MockGateway) CancelHold(ctx context.Context, holdRef string) error {
	if err := m.injected("cancel_hold"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.holds[holdRef]
	if !ok || h.captured {
		return domain.NewGatewayError("cancel_hold", false, fmt.Errorf("hold %s cannot be released", holdRef))
	}
	h.cancelled = true
	m.logger.Info("[MOCK GATEWAY] hold cancelled", zap.String("hold_ref", holdRef))
	return nil
}

// Refund simulates refunding a captured hold.
func (m *MockGateway) Refund(ctx context.Context, captureRef string, amountCents int64) (string, error) {
	if err := m.injected("refund"); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.holds[captureRef]
	if !ok || !h.captured {
		return "", domain.NewGatewayError("refund", false, fmt.Errorf("charge %s was not captured", captureRef))
	}
	if h.refunded+amountCents > h.amountCents {
		return "", domain.NewGatewayError("refund", false, fmt.Errorf("refund exceeds captured amount"))
	}
	h.refunded += amountCents
	ref := fmt.Sprintf("rfnd_mock_%s", uuid.New().String()[:8])
	m.logger.Info("[MOCK GATEWAY] refund created",
		zap.String("charge_ref", captureRef),
		zap.String("refund_ref", ref),
		zap.Int64("amount_cents", amountCents),
	)
	return ref, nil
}

// OffSessionCharge simulates charging a stored instrument.
func (m *MockGateway) OffSessionCharge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	if err := m.injected("off_session_charge"); err != nil {
		return nil, err
	}
	if strings.Contains(req.InstrumentRef, "decline") {
		return nil, domain.NewGatewayError("off_session_charge", true, errors.New("card declined by issuer"))
	}
	ref := fmt.Sprintf("chrg_mock_%s", uuid.New().String()[:8])

	m.mu.Lock()
	m.holds[ref] = &mockHold{amountCents: req.AmountCents, captured: true}
	m.mu.Unlock()

	m.logger.Info("[MOCK GATEWAY] off-session charge succeeded",
		zap.String("charge_ref", ref),
		zap.Int64("amount_cents", req.AmountCents),
	)
	return &ChargeResult{Ref: ref, Succeeded: true}, nil
}

// ParseWebhook decodes an already-normalized GatewayEvent.
func (m *MockGateway) ParseWebhook(ctx context.Context, payload []byte) (*GatewayEvent, error) {
	var ev GatewayEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, domain.NewValidationError("invalid webhook payload: %v", err)
	}
	if ev.ID == "" || ev.Reference == "" {
		return nil, domain.NewValidationError("webhook event id and reference are required")
	}
	return &ev, nil
}
