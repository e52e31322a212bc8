package application

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Kilat-Pet-Delivery/service-boarding/internal/adapter"
	"github.com/Kilat-Pet-Delivery/service-boarding/internal/domain/booking"
	"github.com/Kilat-Pet-Delivery/service-boarding/internal/domain/client"
	"github.com/Kilat-Pet-Delivery/service-boarding/internal/domain/payment"
	"github.com/Kilat-Pet-Delivery/service-boarding/internal/idempotency"
	"github.com/Kilat-Pet-Delivery/service-boarding/internal/metrics"
	"github.com/Kilat-Pet-Delivery/service-boarding/internal/saga"
	"github.com/Kilat-Pet-Delivery/service-boarding/pkg/domain"
	"github.com/Kilat-Pet-Delivery/service-boarding/pkg/events"
)

// CheckoutRequest starts card payment for a PENDING booking.
type CheckoutRequest struct {
	BookingID       uuid.UUID `json:"booking_id" binding:"required"`
	InstrumentToken string    `json:"instrument_token" binding:"required"`
}

// PaymentDTO is the API response DTO for payment data.
type PaymentDTO struct {
	ID                    uuid.UUID  `json:"id"`
	BookingID             uuid.UUID  `json:"booking_id"`
	ClientID              uuid.UUID  `json:"client_id"`
	Status                string     `json:"status"`
	AmountCents           int64      `json:"amount_cents"`
	Currency              string     `json:"currency"`
	GatewayRef            string     `json:"gateway_ref,omitempty"`
	PaidAt                *time.Time `json:"paid_at,omitempty"`
	RefundedAt            *time.Time `json:"refunded_at,omitempty"`
	RefundAmountCents     int64      `json:"refund_amount_cents,omitempty"`
	FailureReason         string     `json:"failure_reason,omitempty"`
	ReconciliationPending bool       `json:"reconciliation_pending"`
	ReconciliationNote    string     `json:"reconciliation_note,omitempty"`
	Version               int64      `json:"version"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
}

// PaymentStatsDTO holds payment statistics for the admin dashboard.
type PaymentStatsDTO struct {
	TotalRevenueCents int64            `json:"total_revenue_cents"`
	TotalPayments     int64            `json:"total_payments"`
	ByStatus          map[string]int64 `json:"by_status"`
}

// Webhook processing outcomes, used as the metrics result label.
const (
	webhookApplied   = "applied"
	webhookDuplicate = "duplicate"
	webhookUnmatched = "unmatched"
	webhookStale     = "stale"
	webhookIgnored   = "ignored"
	webhookError     = "error"
)

// PaymentService is the payment orchestrator: checkout, gateway event
// handling and reconciliation.
type PaymentService struct {
	payments  payment.PaymentRepository
	charges   payment.AdditionalChargeRepository
	bookings  booking.BookingRepository
	clients   client.ClientRepository
	clientSvc *ClientService
	gateway   adapter.Gateway
	idem      idempotency.Store
	publisher EventPublisher
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

// NewPaymentService creates a new PaymentService.
func NewPaymentService(
	payments payment.PaymentRepository,
	charges payment.AdditionalChargeRepository,
	bookings booking.BookingRepository,
	clients client.ClientRepository,
	clientSvc *ClientService,
	gateway adapter.Gateway,
	idem idempotency.Store,
	publisher EventPublisher,
	m *metrics.Metrics,
	logger *zap.Logger,
) *PaymentService {
	return &PaymentService{
		payments:  payments,
		charges:   charges,
		bookings:  bookings,
		clients:   clients,
		clientSvc: clientSvc,
		gateway:   gateway,
		idem:      idem,
		publisher: publisher,
		metrics:   m,
		logger:    logger,
	}
}

// Checkout places a manual-capture hold for the booking deposit. The payment
// row, the hold and the hold reference are a saga: a failure releases the
// hold and leaves the payment FAILED. A hold the gateway authorizes
// synchronously goes through the same transition as the webhook.
func (s *PaymentService) Checkout(ctx context.Context, clientID uuid.UUID, req CheckoutRequest) (*PaymentDTO, error) {
	b, err := s.bookings.FindByID(ctx, req.BookingID)
	if err != nil {
		return nil, err
	}
	if b.ClientID() != clientID {
		return nil, domain.NewUnauthorizedError("booking belongs to another client")
	}
	if b.Status() != booking.StatusPending {
		return nil, domain.NewInvalidStateError(string(b.Status()), "checkout")
	}
	if b.Settlement() != booking.SettlementCard {
		return nil, domain.NewValidationError("booking is settled with credits")
	}

	existing, err := s.payments.FindByBookingID(ctx, b.ID())
	switch {
	case err == nil:
		if existing.Status() == payment.StatusFailed {
			return nil, domain.NewConflictError("checkout failed for this booking; cancel it and book again")
		}
		return nil, domain.NewConflictError("checkout already started for this booking")
	case !errors.Is(err, domain.ErrNotFound):
		return nil, err
	}

	c, err := s.clients.FindByID(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if err := s.clientSvc.EnsureGatewayCustomer(ctx, c); err != nil {
		return nil, err
	}

	p, err := payment.NewPayment(b.ID(), clientID, b.DepositCents(), b.Currency())
	if err != nil {
		return nil, err
	}
	if err := p.StartProcessing(); err != nil {
		return nil, err
	}

	s.logger.Info("starting checkout",
		zap.String("booking_id", b.ID().String()),
		zap.String("payment_id", p.ID().String()),
		zap.Int64("amount_cents", p.AmountCents()),
	)

	var hold *adapter.HoldResult
	sg := saga.NewSaga("checkout", s.logger)
	sg.AddStep(saga.SagaStep{
		Name: "save_payment",
		Execute: func(ctx context.Context) error {
			return s.payments.Save(ctx, p)
		},
		Compensate: func(ctx context.Context) error {
			return s.failPayment(ctx, p.ID(), "checkout failed")
		},
	})
	sg.AddStep(saga.SagaStep{
		Name: "create_hold",
		Execute: func(ctx context.Context) error {
			res, err := s.gateway.CreateHold(ctx, adapter.HoldRequest{
				CustomerRef:     c.CustomerRef(),
				InstrumentToken: req.InstrumentToken,
				AmountCents:     p.AmountCents(),
				Currency:        p.Currency(),
				Metadata: map[string]string{
					"booking_id": b.ID().String(),
					"payment_id": p.ID().String(),
				},
			})
			if err != nil {
				return err
			}
			hold = res
			return nil
		},
		Compensate: func(ctx context.Context) error {
			if hold == nil {
				return nil
			}
			return s.gateway.CancelHold(ctx, hold.Ref)
		},
	})
	sg.AddStep(saga.SagaStep{
		Name: "attach_hold",
		Execute: func(ctx context.Context) error {
			if err := p.AttachHold(hold.Ref); err != nil {
				return err
			}
			p.IncrementVersion()
			return s.payments.Update(ctx, p)
		},
	})

	if err := sg.Execute(ctx); err != nil {
		publish(ctx, s.publisher, s.logger, events.TopicPaymentEvents, events.PaymentFailed, events.PaymentEvent{
			PaymentID:   p.ID(),
			BookingID:   b.ID(),
			ClientID:    clientID,
			Status:      string(payment.StatusFailed),
			AmountCents: p.AmountCents(),
			Currency:    p.Currency(),
			Reason:      err.Error(),
			OccurredAt:  time.Now().UTC(),
		})
		return nil, err
	}

	if hold.Authorized {
		_, err := s.applyGatewayEvent(ctx, &adapter.GatewayEvent{
			Type:          adapter.EventHoldAuthorized,
			Reference:     hold.Ref,
			CardBrand:     hold.CardBrand,
			CardLast4:     hold.CardLast4,
			InstrumentRef: hold.InstrumentRef,
		})
		if err != nil {
			return nil, err
		}
		if p, err = s.payments.FindByID(ctx, p.ID()); err != nil {
			return nil, err
		}
	}

	dto := toPaymentDTO(p)
	return &dto, nil
}

func (s *PaymentService) failPayment(ctx context.Context, id uuid.UUID, reason string) error {
	p, err := s.payments.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err := p.Fail(reason); err != nil {
		return err
	}
	p.IncrementVersion()
	return s.payments.Update(ctx, p)
}

// HandleGatewayWebhook verifies a raw provider callback and applies it.
func (s *PaymentService) HandleGatewayWebhook(ctx context.Context, payload []byte) error {
	ev, err := s.gateway.ParseWebhook(ctx, payload)
	if err != nil {
		s.metrics.WebhookEvents.WithLabelValues("unknown", webhookError).Inc()
		return err
	}
	return s.HandleGatewayEvent(ctx, ev)
}

// HandleGatewayEvent applies a normalized gateway event at most once per event
// id. Events that do not match a payment or charge, or whose transition is no
// longer legal, are acknowledged without effect.
func (s *PaymentService) HandleGatewayEvent(ctx context.Context, ev *adapter.GatewayEvent) error {
	if ev.Type == adapter.EventIgnored {
		s.metrics.WebhookEvents.WithLabelValues(webhookIgnored, webhookIgnored).Inc()
		return nil
	}
	label := string(ev.Type)

	key := "gateway:" + ev.ID
	claimed := false
	if ev.ID != "" {
		ok, err := s.idem.Claim(ctx, key)
		switch {
		case err != nil:
			s.logger.Warn("idempotency store unavailable, processing event anyway",
				zap.String("event_id", ev.ID),
				zap.Error(err),
			)
		case !ok:
			s.logger.Info("duplicate gateway event ignored", zap.String("event_id", ev.ID))
			s.metrics.WebhookEvents.WithLabelValues(label, webhookDuplicate).Inc()
			return nil
		default:
			claimed = true
		}
	}

	release := func() {
		if !claimed {
			return
		}
		if rerr := s.idem.Release(ctx, key); rerr != nil {
			s.logger.Warn("failed to release idempotency key", zap.String("key", key), zap.Error(rerr))
		}
	}

	result, err := s.applyGatewayEvent(ctx, ev)
	if err != nil {
		release()
		s.metrics.WebhookEvents.WithLabelValues(label, webhookError).Inc()
		return err
	}
	// An event can outrun the write that records its reference (checkout
	// attaching the hold, an off-session charge saving its ref). Keep the key
	// free so a redelivery is applied instead of dropped as a duplicate.
	if result == webhookUnmatched {
		release()
	}
	s.metrics.WebhookEvents.WithLabelValues(label, result).Inc()
	return nil
}

func (s *PaymentService) applyGatewayEvent(ctx context.Context, ev *adapter.GatewayEvent) (string, error) {
	if ev.Reference == "" {
		return webhookUnmatched, nil
	}
	payments, err := s.payments.FindByGatewayRef(ctx, ev.Reference)
	if err != nil {
		return "", err
	}
	if len(payments) == 0 {
		return s.applyChargeEvent(ctx, ev)
	}

	result := webhookStale
	for _, p := range payments {
		applied, err := s.transition(ctx, p, ev)
		if err != nil {
			return "", err
		}
		if applied {
			result = webhookApplied
		}
	}
	return result, nil
}

// transition applies ev to p with optimistic locking, reloading once if a
// concurrent writer won the race.
func (s *PaymentService) transition(ctx context.Context, p *payment.Payment, ev *adapter.GatewayEvent) (bool, error) {
	for attempt := 0; attempt < 2; attempt++ {
		next := p.Clone()
		eventType, ok, err := nextPaymentState(next, ev)
		if err != nil {
			return false, err
		}
		if !ok {
			s.logger.Info("gateway event does not apply to payment state",
				zap.String("payment_id", p.ID().String()),
				zap.String("status", string(p.Status())),
				zap.String("event_type", string(ev.Type)),
			)
			return false, nil
		}

		next.IncrementVersion()
		err = s.payments.Update(ctx, next)
		if err == nil {
			s.afterTransition(ctx, next, eventType, ev)
			return true, nil
		}
		if !errors.Is(err, domain.ErrConflict) {
			return false, err
		}
		if p, err = s.payments.FindByID(ctx, p.ID()); err != nil {
			return false, err
		}
	}
	return false, domain.NewConflictError("payment was modified concurrently")
}

// nextPaymentState mutates p for ev and returns the event to publish. ok is
// false when the event is not legal from p's current status. AUTHORIZED
// payments are captured only by booking confirmation, so a success event for
// them is not applied here.
func nextPaymentState(p *payment.Payment, ev *adapter.GatewayEvent) (string, bool, error) {
	switch ev.Type {
	case adapter.EventHoldAuthorized:
		if p.Status() != payment.StatusProcessing {
			return "", false, nil
		}
		return events.PaymentAuthorized, true, p.Authorize()

	case adapter.EventPaymentSucceeded:
		if p.Status() != payment.StatusProcessing {
			return "", false, nil
		}
		if err := p.Authorize(); err != nil {
			return "", false, err
		}
		return events.PaymentCaptured, true, p.Capture()

	case adapter.EventPaymentFailed:
		if p.Status() != payment.StatusProcessing {
			return "", false, nil
		}
		reason := ev.FailureCode
		if reason == "" {
			reason = "declined by gateway"
		}
		return events.PaymentFailed, true, p.Fail(reason)
	}
	return "", false, nil
}

func (s *PaymentService) afterTransition(ctx context.Context, p *payment.Payment, eventType string, ev *adapter.GatewayEvent) {
	s.logger.Info("payment transitioned",
		zap.String("payment_id", p.ID().String()),
		zap.String("booking_id", p.BookingID().String()),
		zap.String("status", string(p.Status())),
	)
	if ev.InstrumentRef != "" && (eventType == events.PaymentAuthorized || eventType == events.PaymentCaptured) {
		if err := s.clientSvc.SavePaymentMethod(ctx, p.ClientID(), ev.InstrumentRef, ev.CardBrand, ev.CardLast4); err != nil {
			s.logger.Error("failed to save payment method",
				zap.String("client_id", p.ClientID().String()),
				zap.Error(err),
			)
		}
	}
	publish(ctx, s.publisher, s.logger, events.TopicPaymentEvents, eventType, paymentEvent(p, p.FailureReason()))
}

func (s *PaymentService) applyChargeEvent(ctx context.Context, ev *adapter.GatewayEvent) (string, error) {
	ch, err := s.charges.FindByGatewayRef(ctx, ev.Reference)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.logger.Warn("gateway event matches no payment or charge",
				zap.String("event_id", ev.ID),
				zap.String("reference", ev.Reference),
			)
			return webhookUnmatched, nil
		}
		return "", err
	}
	if ch.Status() != payment.ChargeProcessing {
		return webhookStale, nil
	}

	switch ev.Type {
	case adapter.EventPaymentSucceeded:
		err = ch.MarkSucceeded(ev.Reference)
	case adapter.EventPaymentFailed:
		err = ch.MarkFailed(ev.FailureCode, true)
	default:
		return webhookStale, nil
	}
	if err != nil {
		return "", err
	}
	ch.IncrementVersion()
	if err := s.charges.Update(ctx, ch); err != nil {
		return "", err
	}
	publishChargeEvent(ctx, s.publisher, s.logger, ch)
	return webhookApplied, nil
}

// GetPayment retrieves a payment by its ID.
func (s *PaymentService) GetPayment(ctx context.Context, paymentID uuid.UUID) (*PaymentDTO, error) {
	p, err := s.payments.FindByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	dto := toPaymentDTO(p)
	return &dto, nil
}

// GetPaymentByBooking retrieves the payment of a booking. Clients only see their own.
func (s *PaymentService) GetPaymentByBooking(ctx context.Context, actorID uuid.UUID, isAdmin bool, bookingID uuid.UUID) (*PaymentDTO, error) {
	p, err := s.payments.FindByBookingID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !isAdmin && p.ClientID() != actorID {
		return nil, domain.NewNotFoundError("Payment", bookingID.String())
	}

	dto := toPaymentDTO(p)
	return &dto, nil
}

// --- Admin methods ---

// ListAllPayments returns a paginated list of all payments (admin).
func (s *PaymentService) ListAllPayments(ctx context.Context, page, limit int) ([]PaymentDTO, int64, error) {
	payments, total, err := s.payments.ListAll(ctx, page, limit)
	if err != nil {
		return nil, 0, err
	}

	dtos := make([]PaymentDTO, len(payments))
	for i, p := range payments {
		dtos[i] = toPaymentDTO(p)
	}
	return dtos, total, nil
}

// GetPaymentStats returns aggregate payment statistics (admin).
func (s *PaymentService) GetPaymentStats(ctx context.Context) (*PaymentStatsDTO, error) {
	revenue, counts, err := s.payments.GetRevenueStats(ctx)
	if err != nil {
		return nil, err
	}

	var total int64
	for _, c := range counts {
		total += c
	}

	return &PaymentStatsDTO{
		TotalRevenueCents: revenue,
		TotalPayments:     total,
		ByStatus:          counts,
	}, nil
}

// ListReconciliation returns payments whose hold release or refund failed.
func (s *PaymentService) ListReconciliation(ctx context.Context) ([]PaymentDTO, error) {
	payments, err := s.payments.ListReconciliationPending(ctx)
	if err != nil {
		return nil, err
	}
	dtos := make([]PaymentDTO, len(payments))
	for i, p := range payments {
		dtos[i] = toPaymentDTO(p)
	}
	return dtos, nil
}

// ResolveReconciliation clears the reconciliation flag after an operator has
// settled the payment with the gateway directly.
func (s *PaymentService) ResolveReconciliation(ctx context.Context, paymentID uuid.UUID) (*PaymentDTO, error) {
	p, err := s.payments.FindByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if err := p.ResolveReconciliation(); err != nil {
		return nil, err
	}
	p.IncrementVersion()
	if err := s.payments.Update(ctx, p); err != nil {
		return nil, err
	}
	s.logger.Info("reconciliation resolved", zap.String("payment_id", p.ID().String()))

	dto := toPaymentDTO(p)
	return &dto, nil
}

func paymentEvent(p *payment.Payment, reason string) events.PaymentEvent {
	return events.PaymentEvent{
		PaymentID:   p.ID(),
		BookingID:   p.BookingID(),
		ClientID:    p.ClientID(),
		Status:      string(p.Status()),
		AmountCents: p.AmountCents(),
		Currency:    p.Currency(),
		GatewayRef:  p.GatewayRef(),
		Reason:      reason,
		OccurredAt:  time.Now().UTC(),
	}
}

// toPaymentDTO maps a domain Payment to a PaymentDTO.
func toPaymentDTO(p *payment.Payment) PaymentDTO {
	return PaymentDTO{
		ID:                    p.ID(),
		BookingID:             p.BookingID(),
		ClientID:              p.ClientID(),
		Status:                string(p.Status()),
		AmountCents:           p.AmountCents(),
		Currency:              p.Currency(),
		GatewayRef:            p.GatewayRef(),
		PaidAt:                p.PaidAt(),
		RefundedAt:            p.RefundedAt(),
		RefundAmountCents:     p.RefundAmountCents(),
		FailureReason:         p.FailureReason(),
		ReconciliationPending: p.ReconciliationPending(),
		ReconciliationNote:    p.ReconciliationNote(),
		Version:               p.Version(),
		CreatedAt:             p.CreatedAt(),
		UpdatedAt:             p.UpdatedAt(),
	}
}
