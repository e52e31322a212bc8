package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Kilat-Pet-Delivery/service-boarding/internal/adapter"
	"github.com/Kilat-Pet-Delivery/service-boarding/internal/domain/booking"
	"github.com/Kilat-Pet-Delivery/service-boarding/internal/domain/calendar"
	"github.com/Kilat-Pet-Delivery/service-boarding/internal/domain/catalog"
	"github.com/Kilat-Pet-Delivery/service-boarding/internal/domain/client"
	couponDomain "github.com/Kilat-Pet-Delivery/service-boarding/internal/domain/coupon"
	"github.com/Kilat-Pet-Delivery/service-boarding/internal/domain/payment"
	"github.com/Kilat-Pet-Delivery/service-boarding/internal/domain/pricing"
	"github.com/Kilat-Pet-Delivery/service-boarding/internal/metrics"
	"github.com/Kilat-Pet-Delivery/service-boarding/internal/saga"
	"github.com/Kilat-Pet-Delivery/service-boarding/pkg/domain"
	"github.com/Kilat-Pet-Delivery/service-boarding/pkg/events"
)

// VisitRequest is one drop-in visit or walk.
type VisitRequest struct {
	Date            time.Time `json:"date" binding:"required"`
	DurationMinutes int       `json:"duration_minutes" binding:"required,gt=0"`
}

// QuoteRequest describes a prospective booking. StartAt and EndAt are used by
// BOARDING and DAY_CARE, Visits by DROP_IN and DOG_WALKING.
type QuoteRequest struct {
	ServiceType string         `json:"service_type" binding:"required"`
	PetIDs      []uuid.UUID    `json:"pet_ids" binding:"required,min=1"`
	StartAt     *time.Time     `json:"start_at"`
	EndAt       *time.Time     `json:"end_at"`
	Visits      []VisitRequest `json:"visits"`
	CouponCode  string         `json:"coupon_code"`
}

// CreateBookingRequest creates a PENDING booking from a quote.
type CreateBookingRequest struct {
	QuoteRequest
	Notes          string `json:"notes"`
	PayWithCredits bool   `json:"pay_with_credits"`
}

// CancelBookingRequest carries the cancellation reason.
type CancelBookingRequest struct {
	Reason string `json:"reason"`
}

// AdditionalChargeRequest bills an incidental to the stored card.
type AdditionalChargeRequest struct {
	AmountCents int64  `json:"amount_cents" binding:"required,gt=0"`
	Reason      string `json:"reason" binding:"required"`
}

// QuoteDTO is a priced, availability-checked booking proposal.
type QuoteDTO struct {
	ServiceType   string            `json:"service_type"`
	Breakdown     pricing.Breakdown `json:"breakdown"`
	SubtotalCents int64             `json:"subtotal_cents"`
	DiscountCents int64             `json:"discount_cents"`
	TotalCents    int64             `json:"total_cents"`
	Currency      string            `json:"currency"`
	CouponCode    string            `json:"coupon_code,omitempty"`
	CouponMessage string            `json:"coupon_message,omitempty"`
	Availability  calendar.Report   `json:"availability"`
}

// BookingDTO is the API response for a booking.
type BookingDTO struct {
	ID            uuid.UUID            `json:"id"`
	ClientID      uuid.UUID            `json:"client_id"`
	PetIDs        []uuid.UUID          `json:"pet_ids"`
	ServiceType   string               `json:"service_type"`
	StartDate     string               `json:"start_date"`
	EndDate       string               `json:"end_date"`
	StartAt       *time.Time           `json:"start_at,omitempty"`
	EndAt         *time.Time           `json:"end_at,omitempty"`
	Visits        []pricing.Occurrence `json:"visits,omitempty"`
	Breakdown     pricing.Breakdown    `json:"breakdown"`
	SubtotalCents int64                `json:"subtotal_cents"`
	DiscountCents int64                `json:"discount_cents"`
	TotalCents    int64                `json:"total_cents"`
	DepositCents  int64                `json:"deposit_cents"`
	Currency      string               `json:"currency"`
	CouponCode    string               `json:"coupon_code,omitempty"`
	Settlement    string               `json:"settlement"`
	PriceLocked   bool                 `json:"price_locked"`
	Status        string               `json:"status"`
	Notes         string               `json:"notes,omitempty"`
	CancelReason  string               `json:"cancel_reason,omitempty"`
	ConfirmedAt   *time.Time           `json:"confirmed_at,omitempty"`
	CancelledAt   *time.Time           `json:"cancelled_at,omitempty"`
	StartedAt     *time.Time           `json:"started_at,omitempty"`
	CompletedAt   *time.Time           `json:"completed_at,omitempty"`
	Payment       *PaymentDTO          `json:"payment,omitempty"`
	Version       int64                `json:"version"`
	CreatedAt     time.Time            `json:"created_at"`
	UpdatedAt     time.Time            `json:"updated_at"`
}

// AdditionalChargeDTO is the API response for an off-session charge.
type AdditionalChargeDTO struct {
	ID            uuid.UUID  `json:"id"`
	BookingID     uuid.UUID  `json:"booking_id"`
	AmountCents   int64      `json:"amount_cents"`
	Currency      string     `json:"currency"`
	Reason        string     `json:"reason"`
	Status        string     `json:"status"`
	GatewayRef    string     `json:"gateway_ref,omitempty"`
	FailureReason string     `json:"failure_reason,omitempty"`
	Declined      bool       `json:"declined"`
	ChargedAt     *time.Time `json:"charged_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// BookingDeps groups the collaborators of BookingService.
type BookingDeps struct {
	Bookings       booking.BookingRepository
	Payments       payment.PaymentRepository
	Charges        payment.AdditionalChargeRepository
	Clients        client.ClientRepository
	Calendar       *CalendarService
	Coupons        *CouponService
	Credits        *CreditService
	Pricer         *pricing.Engine
	Gateway        adapter.Gateway
	Publisher      EventPublisher
	Metrics        *metrics.Metrics
	DepositPercent int64
}

// BookingService orchestrates the booking lifecycle.
type BookingService struct {
	BookingDeps
	logger *zap.Logger
}

// NewBookingService creates a new BookingService.
func NewBookingService(deps BookingDeps, logger *zap.Logger) *BookingService {
	if deps.DepositPercent == 0 {
		deps.DepositPercent = 100
	}
	return &BookingService{BookingDeps: deps, logger: logger}
}

// quoted is an internal, fully validated quote.
type quoted struct {
	serviceType catalog.ServiceType
	client      *client.Client
	petIDs      []uuid.UUID
	start, end  time.Time
	visits      []pricing.Occurrence
	breakdown   pricing.Breakdown
	report      calendar.Report
	coupon      *couponDomain.Coupon
	discount    int64
	couponMsg   string
}

// Quote prices a prospective booking without persisting anything.
func (s *BookingService) Quote(ctx context.Context, clientID uuid.UUID, req QuoteRequest) (*QuoteDTO, error) {
	q, err := s.quote(ctx, clientID, req, false)
	if err != nil {
		return nil, err
	}
	dto := &QuoteDTO{
		ServiceType:   string(q.serviceType),
		Breakdown:     q.breakdown,
		SubtotalCents: q.breakdown.TotalCents,
		DiscountCents: q.discount,
		TotalCents:    q.breakdown.TotalCents - q.discount,
		Currency:      q.breakdown.Currency,
		CouponMessage: q.couponMsg,
		Availability:  q.report,
	}
	if q.coupon != nil {
		dto.CouponCode = q.coupon.Code()
	}
	return dto, nil
}

// quote validates ownership and headcount, checks the calendar, prices the
// booking and evaluates the coupon. An explicit coupon that fails is an
// error; a failing auto-apply coupon is ignored.
func (s *BookingService) quote(ctx context.Context, clientID uuid.UUID, req QuoteRequest, skipCoupons bool) (*quoted, error) {
	st, err := catalog.ParseServiceType(req.ServiceType)
	if err != nil {
		return nil, err
	}
	if err := st.CheckHeadcount(len(req.PetIDs)); err != nil {
		return nil, err
	}

	c, err := s.Clients.FindByID(ctx, clientID)
	if err != nil {
		return nil, err
	}
	pets, err := s.ownedPets(ctx, clientID, req.PetIDs)
	if err != nil {
		return nil, err
	}

	q := &quoted{serviceType: st, client: c, petIDs: req.PetIDs}
	var days []time.Time
	if st.IsVisitBased() {
		if len(req.Visits) == 0 {
			return nil, domain.NewValidationError("%s requires at least one visit", st)
		}
		q.visits = make([]pricing.Occurrence, len(req.Visits))
		days = make([]time.Time, len(req.Visits))
		for i, v := range req.Visits {
			q.visits[i] = pricing.Occurrence{Date: v.Date.UTC(), DurationMinutes: v.DurationMinutes}
			days[i] = v.Date
		}
		q.start, q.end = calendar.Span(days)
	} else {
		if req.StartAt == nil || req.EndAt == nil {
			return nil, domain.NewValidationError("%s requires start_at and end_at", st)
		}
		if !req.EndAt.After(*req.StartAt) {
			return nil, domain.NewValidationError("end must be after start")
		}
		q.start, q.end = req.StartAt.UTC(), req.EndAt.UTC()
		if days, err = calendar.ExpandRange(q.start, q.end); err != nil {
			return nil, err
		}
	}

	if q.report, err = s.Calendar.check(ctx, st, days); err != nil {
		return nil, err
	}
	if err := q.report.Err(); err != nil {
		return nil, err
	}

	ages := make([]int, len(pets))
	for i, p := range pets {
		ages[i] = p.AgeInYears(q.start)
	}
	q.breakdown, err = s.Pricer.Quote(pricing.Input{
		ServiceType:  st,
		Start:        q.start,
		End:          q.end,
		Occurrences:  q.visits,
		PetAgesYears: ages,
	})
	if err != nil {
		return nil, err
	}

	if skipCoupons {
		if req.CouponCode != "" {
			return nil, domain.NewValidationError("coupons cannot be combined with credit settlement")
		}
		return q, nil
	}
	if err := s.applyCoupon(ctx, q, req.CouponCode); err != nil {
		return nil, err
	}
	return q, nil
}

func (s *BookingService) applyCoupon(ctx context.Context, q *quoted, explicit string) error {
	code, auto := explicit, false
	if code == "" {
		code, auto = q.client.AutoCouponCode(), true
	}
	if code == "" {
		return nil
	}

	res, err := s.Coupons.Evaluate(ctx, code, couponDomain.Request{
		AmountCents: q.breakdown.TotalCents,
		ServiceType: q.serviceType,
		Duration:    q.breakdown.Units,
		Email:       q.client.Email(),
	})
	if err != nil {
		if auto {
			s.logger.Warn("auto coupon lookup failed, ignoring", zap.String("code", code), zap.Error(err))
			return nil
		}
		return err
	}
	if !res.Valid {
		if auto {
			s.logger.Debug("auto coupon not applicable",
				zap.String("client_id", q.client.ID().String()),
				zap.String("code", code),
				zap.String("reason", string(res.Reason)),
			)
			return nil
		}
		return res.Err()
	}
	q.coupon = res.Coupon
	q.discount = res.DiscountCents
	q.couponMsg = res.Message
	return nil
}

func (s *BookingService) ownedPets(ctx context.Context, clientID uuid.UUID, ids []uuid.UUID) ([]client.Pet, error) {
	pets, err := s.Clients.FindPets(ctx, ids)
	if err != nil {
		return nil, err
	}
	found := make(map[uuid.UUID]client.Pet, len(pets))
	for _, p := range pets {
		found[p.ID] = p
	}
	out := make([]client.Pet, 0, len(ids))
	for _, id := range ids {
		p, ok := found[id]
		if !ok {
			return nil, domain.NewNotFoundError("Pet", id.String())
		}
		if p.OwnerID != clientID {
			return nil, domain.NewUnauthorizedError(fmt.Sprintf("pet %s does not belong to the client", id))
		}
		out = append(out, p)
	}
	return out, nil
}

// CreateBooking persists a PENDING booking. Availability is re-checked, and
// the pet conflict check and coupon use happen in the same transaction as the
// insert. Credit-settled bookings consume their credits in a saga so a
// failure removes the booking again.
func (s *BookingService) CreateBooking(ctx context.Context, clientID uuid.UUID, req CreateBookingRequest) (*BookingDTO, error) {
	q, err := s.quote(ctx, clientID, req.QuoteRequest, req.PayWithCredits)
	if err != nil {
		return nil, err
	}

	var couponID *uuid.UUID
	var couponCode string
	if q.coupon != nil {
		id := q.coupon.ID()
		couponID, couponCode = &id, q.coupon.Code()
	}
	b, err := booking.NewBooking(booking.Params{
		ClientID:       clientID,
		PetIDs:         q.petIDs,
		ServiceType:    q.serviceType,
		StartAt:        q.start,
		EndAt:          q.end,
		Visits:         q.visits,
		Breakdown:      q.breakdown,
		DiscountCents:  q.discount,
		CouponID:       couponID,
		CouponCode:     couponCode,
		DepositPercent: s.DepositPercent,
		Notes:          req.Notes,
	})
	if err != nil {
		return nil, err
	}

	var usage *couponDomain.Usage
	if q.coupon != nil {
		usage = &couponDomain.Usage{
			ID:            uuid.New(),
			CouponID:      q.coupon.ID(),
			ClientID:      clientID,
			BookingID:     b.ID(),
			DiscountCents: q.discount,
			UsedAt:        time.Now().UTC(),
		}
	}

	if req.PayWithCredits {
		err = s.createWithCredits(ctx, b)
	} else {
		err = s.Bookings.CreateWithNoOverlap(ctx, b, usage)
	}
	if err != nil {
		return nil, err
	}

	s.Metrics.BookingTransitions.WithLabelValues(string(booking.StatusPending)).Inc()
	s.logger.Info("booking created",
		zap.String("booking_id", b.ID().String()),
		zap.String("client_id", clientID.String()),
		zap.String("service_type", string(b.ServiceType())),
		zap.Int64("total_cents", b.TotalCents()),
		zap.String("settlement", string(b.Settlement())),
	)
	publish(ctx, s.Publisher, s.logger, events.TopicBookingEvents, events.BookingCreated, events.BookingCreatedEvent{
		BookingID:   b.ID(),
		ClientID:    clientID,
		PetIDs:      b.PetIDs(),
		ServiceType: string(b.ServiceType()),
		StartDate:   b.StartDate(),
		EndDate:     b.EndDate(),
		TotalCents:  b.TotalCents(),
		Currency:    b.Currency(),
		CouponCode:  b.CouponCode(),
		OccurredAt:  time.Now().UTC(),
	})
	return toBookingDTO(b, nil), nil
}

func (s *BookingService) createWithCredits(ctx context.Context, b *booking.Booking) error {
	units := int64(b.Breakdown().Units)
	redeemed := false

	sg := saga.NewSaga("create_credit_booking", s.logger)
	sg.AddStep(saga.SagaStep{
		Name: "persist_booking",
		Execute: func(ctx context.Context) error {
			return s.Bookings.CreateWithNoOverlap(ctx, b, nil)
		},
		Compensate: func(ctx context.Context) error {
			_, err := s.Bookings.DeletePending(ctx, b.ID(), booking.WithoutPayment())
			return err
		},
	})
	sg.AddStep(saga.SagaStep{
		Name: "redeem_credits",
		Execute: func(ctx context.Context) error {
			if err := s.Credits.RedeemForBooking(ctx, b.ClientID(), b.ID(), b.ServiceType(), units); err != nil {
				return err
			}
			redeemed = true
			return nil
		},
		Compensate: func(ctx context.Context) error {
			if !redeemed {
				return nil
			}
			return s.Credits.RestoreForBooking(ctx, b.ClientID(), b.ID(), b.ServiceType(), units)
		},
	})
	sg.AddStep(saga.SagaStep{
		Name: "mark_settled",
		Execute: func(ctx context.Context) error {
			if err := b.SettleWithCredits(); err != nil {
				return err
			}
			b.IncrementVersion()
			return s.Bookings.Update(ctx, b)
		},
	})
	return sg.Execute(ctx)
}

// ConfirmBooking captures the authorized hold and confirms the booking
// (admin). The pet conflict check is repeated under lock before commit; if
// the commit fails after capture, the capture is refunded. A failed capture
// leaves booking and payment unchanged.
func (s *BookingService) ConfirmBooking(ctx context.Context, bookingID uuid.UUID) (*BookingDTO, error) {
	b, err := s.Bookings.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.Status() != booking.StatusPending {
		return nil, domain.NewInvalidStateError(string(b.Status()), string(booking.StatusConfirmed))
	}
	if err := s.rejectConflicts(ctx, b); err != nil {
		return nil, err
	}

	var p *payment.Payment
	var captured bool
	if b.Settlement() == booking.SettlementCredits {
		if err := b.Confirm(); err != nil {
			return nil, err
		}
		b.IncrementVersion()
		if err := s.Bookings.ConfirmWithPayment(ctx, b, nil); err != nil {
			return nil, err
		}
	} else {
		if p, captured, err = s.confirmCard(ctx, b); err != nil {
			return nil, err
		}
	}

	s.Metrics.BookingTransitions.WithLabelValues(string(booking.StatusConfirmed)).Inc()
	s.logger.Info("booking confirmed", zap.String("booking_id", b.ID().String()))

	var email string
	if c, err := s.Clients.FindByID(ctx, b.ClientID()); err == nil {
		email = c.Email()
	}
	paid := b.TotalCents()
	if p != nil {
		paid = p.AmountCents()
	}
	if captured {
		publish(ctx, s.Publisher, s.logger, events.TopicPaymentEvents, events.PaymentCaptured, paymentEvent(p, ""))
	}
	publish(ctx, s.Publisher, s.logger, events.TopicBookingEvents, events.BookingConfirmed, events.BookingConfirmedEvent{
		BookingID:   b.ID(),
		ClientID:    b.ClientID(),
		ClientEmail: email,
		ServiceType: string(b.ServiceType()),
		StartDate:   b.StartDate(),
		EndDate:     b.EndDate(),
		PaidCents:   paid,
		Currency:    b.Currency(),
		OccurredAt:  time.Now().UTC(),
	})
	return toBookingDTO(b, p), nil
}

// confirmCard captures an AUTHORIZED hold and persists the confirmation. A
// payment the gateway already settled (SUCCEEDED) is confirmed without a
// capture call. captured reports whether this call took the money.
func (s *BookingService) confirmCard(ctx context.Context, b *booking.Booking) (p *payment.Payment, captured bool, err error) {
	p, err = s.Payments.FindByBookingID(ctx, b.ID())
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, false, domain.NewInvalidStateError(string(payment.StatusNone), string(payment.StatusSucceeded))
		}
		return nil, false, err
	}
	switch p.Status() {
	case payment.StatusAuthorized:
		captured = true
	case payment.StatusSucceeded:
	default:
		return nil, false, domain.NewInvalidStateError(string(p.Status()), string(payment.StatusSucceeded))
	}

	next := p.Clone()
	confirmed := b.Clone()

	sg := saga.NewSaga("confirm_booking", s.logger)
	if captured {
		sg.AddStep(saga.SagaStep{
			Name: "capture_hold",
			Execute: func(ctx context.Context) error {
				return s.Gateway.Capture(ctx, p.GatewayRef())
			},
			Compensate: func(ctx context.Context) error {
				_, err := s.Gateway.Refund(ctx, p.GatewayRef(), p.AmountCents())
				if err != nil {
					s.logger.Error("captured payment could not be refunded after failed confirmation",
						zap.String("payment_id", p.ID().String()),
						zap.Error(err),
					)
				}
				return err
			},
		})
	}
	sg.AddStep(saga.SagaStep{
		Name: "persist_confirmation",
		Execute: func(ctx context.Context) error {
			if captured {
				if err := next.Capture(); err != nil {
					return err
				}
			}
			if err := confirmed.Confirm(); err != nil {
				return err
			}
			confirmed.LockPrice()
			next.IncrementVersion()
			confirmed.IncrementVersion()
			return s.Bookings.ConfirmWithPayment(ctx, confirmed, next)
		},
	})
	if err := sg.Execute(ctx); err != nil {
		return nil, false, err
	}

	*b = *confirmed
	return next, captured, nil
}

func (s *BookingService) rejectConflicts(ctx context.Context, b *booking.Booking) error {
	conflicts, err := s.Bookings.FindConflicts(ctx, b.PetIDs(), b.StartDate(), b.EndDate(), booking.BlockingStatuses, b.ID())
	if err != nil {
		return err
	}
	if len(conflicts) == 0 {
		return nil
	}
	return &domain.DomainError{
		Err:     domain.ErrConflict,
		Message: "a pet in this booking is already booked for overlapping dates",
		Details: map[string]interface{}{"conflicting_booking_id": conflicts[0].ID().String()},
	}
}

// CancelBooking cancels a booking. The hold is released or the capture
// refunded on a best-effort basis: a gateway failure flags the payment for
// reconciliation and never blocks the cancellation.
func (s *BookingService) CancelBooking(ctx context.Context, actorID uuid.UUID, isAdmin bool, bookingID uuid.UUID, req CancelBookingRequest) (*BookingDTO, error) {
	b, err := s.Bookings.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !isAdmin && b.ClientID() != actorID {
		return nil, domain.NewUnauthorizedError("booking belongs to another client")
	}
	if b.Status().Terminal() {
		return nil, domain.NewInvalidStateError(string(b.Status()), string(booking.StatusCancelled))
	}

	p, err := s.Payments.FindByBookingID(ctx, b.ID())
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		p = nil
	}

	var rel fundsRelease
	if p != nil {
		rel = s.releaseFunds(ctx, p)
	}
	b, p, paymentEventType, refunded, err := s.saveCancellation(ctx, b, p, rel, actorID, req.Reason)
	if err != nil {
		return nil, err
	}

	if b.Settlement() == booking.SettlementCredits {
		if err := s.Credits.RestoreForBooking(ctx, b.ClientID(), b.ID(), b.ServiceType(), int64(b.Breakdown().Units)); err != nil {
			s.logger.Error("failed to restore credits of cancelled booking",
				zap.String("booking_id", b.ID().String()),
				zap.Error(err),
			)
		}
	}

	s.Metrics.BookingTransitions.WithLabelValues(string(booking.StatusCancelled)).Inc()
	s.logger.Info("booking cancelled",
		zap.String("booking_id", b.ID().String()),
		zap.String("cancelled_by", actorID.String()),
		zap.String("reason", req.Reason),
	)

	ev := events.BookingCancelledEvent{
		BookingID:     b.ID(),
		ClientID:      b.ClientID(),
		CancelledBy:   actorID,
		Reason:        req.Reason,
		RefundedCents: refunded,
		OccurredAt:    time.Now().UTC(),
	}
	if p != nil {
		ev.PaymentStatus = string(p.Status())
		ev.ReconciliationPending = p.ReconciliationPending()
		if paymentEventType != "" {
			publish(ctx, s.Publisher, s.logger, events.TopicPaymentEvents, paymentEventType, paymentEvent(p, p.ReconciliationNote()))
		}
	}
	publish(ctx, s.Publisher, s.logger, events.TopicBookingEvents, events.BookingCancelled, ev)
	return toBookingDTO(b, p), nil
}

// fundsRelease is the gateway outcome of a cancellation. It is applied to the
// payment separately so a reload after a lost race does not repeat the call.
type fundsRelease struct {
	from      payment.Status
	refundRef string
	failure   string
}

// releaseFunds cancels the hold or refunds the capture at the gateway.
func (s *BookingService) releaseFunds(ctx context.Context, p *payment.Payment) fundsRelease {
	rel := fundsRelease{from: p.Status()}
	switch p.Status() {
	case payment.StatusProcessing, payment.StatusAuthorized:
		if ref := p.GatewayRef(); ref != "" {
			if err := s.Gateway.CancelHold(ctx, ref); err != nil {
				s.logger.Error("hold cancellation failed, flagged for reconciliation",
					zap.String("payment_id", p.ID().String()),
					zap.String("gateway_ref", ref),
					zap.Error(err),
				)
				rel.failure = "cancel hold failed: " + err.Error()
			}
		}

	case payment.StatusSucceeded:
		refundRef, err := s.Gateway.Refund(ctx, p.GatewayRef(), p.AmountCents())
		if err != nil {
			s.logger.Error("refund failed, flagged for reconciliation",
				zap.String("payment_id", p.ID().String()),
				zap.String("gateway_ref", p.GatewayRef()),
				zap.Error(err),
			)
			rel.failure = "refund failed: " + err.Error()
		} else {
			rel.refundRef = refundRef
		}
	}
	return rel
}

// apply moves p to the state the gateway outcome implies and returns the
// payment event to publish with the refunded amount. A payment that moved
// since the gateway call is flagged for reconciliation instead.
func (r fundsRelease) apply(p *payment.Payment) (string, int64) {
	holdStatus := func(st payment.Status) bool {
		return st == payment.StatusProcessing || st == payment.StatusAuthorized
	}
	switch {
	case holdStatus(r.from) && holdStatus(p.Status()):
		eventType := events.PaymentHoldCancelled
		if r.failure != "" {
			p.FlagReconciliation(r.failure)
			eventType = events.PaymentReconciliation
		}
		_ = p.CancelHold()
		return eventType, 0

	case r.from == payment.StatusSucceeded && p.Status() == payment.StatusSucceeded:
		if r.failure != "" {
			p.FlagReconciliation(r.failure)
			return events.PaymentReconciliation, 0
		}
		_ = p.Refund(r.refundRef)
		return events.PaymentRefunded, p.RefundAmountCents()

	case r.from != p.Status():
		p.FlagReconciliation(fmt.Sprintf("payment moved from %s to %s during cancellation", r.from, p.Status()))
		return events.PaymentReconciliation, 0
	}
	return "", 0
}

// saveCancellation persists the cancelled booking with its released payment.
// A webhook can bump the payment version while the gateway call is in flight;
// the rows are then reloaded and the same outcome applied once more.
func (s *BookingService) saveCancellation(ctx context.Context, b *booking.Booking, p *payment.Payment, rel fundsRelease, actorID uuid.UUID, reason string) (*booking.Booking, *payment.Payment, string, int64, error) {
	for attempt := 0; ; attempt++ {
		var eventType string
		var refunded int64
		if p != nil {
			eventType, refunded = rel.apply(p)
			p.IncrementVersion()
		}
		if err := b.Cancel(actorID, reason); err != nil {
			return nil, nil, "", 0, err
		}
		b.IncrementVersion()

		err := s.Bookings.SaveCancellation(ctx, b, p)
		if err == nil {
			return b, p, eventType, refunded, nil
		}
		if attempt > 0 || !errors.Is(err, domain.ErrConflict) {
			return nil, nil, "", 0, err
		}
		s.logger.Warn("cancellation raced a concurrent update, reloading",
			zap.String("booking_id", b.ID().String()),
			zap.Error(err),
		)
		if b, err = s.Bookings.FindByID(ctx, b.ID()); err != nil {
			return nil, nil, "", 0, err
		}
		if p != nil {
			if p, err = s.Payments.FindByID(ctx, p.ID()); err != nil {
				return nil, nil, "", 0, err
			}
		}
	}
}

// StartBooking moves a CONFIRMED booking to IN_PROGRESS.
func (s *BookingService) StartBooking(ctx context.Context, bookingID uuid.UUID) (*BookingDTO, error) {
	return s.transition(ctx, bookingID, events.BookingStarted, (*booking.Booking).Start)
}

// CompleteBooking moves an IN_PROGRESS booking to COMPLETED.
func (s *BookingService) CompleteBooking(ctx context.Context, bookingID uuid.UUID) (*BookingDTO, error) {
	return s.transition(ctx, bookingID, events.BookingCompleted, (*booking.Booking).Complete)
}

func (s *BookingService) transition(ctx context.Context, bookingID uuid.UUID, eventType string, apply func(*booking.Booking) error) (*BookingDTO, error) {
	b, err := s.Bookings.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if err := apply(b); err != nil {
		return nil, err
	}
	b.IncrementVersion()
	if err := s.Bookings.Update(ctx, b); err != nil {
		return nil, err
	}

	s.Metrics.BookingTransitions.WithLabelValues(string(b.Status())).Inc()
	s.logger.Info("booking status changed",
		zap.String("booking_id", b.ID().String()),
		zap.String("status", string(b.Status())),
	)
	publish(ctx, s.Publisher, s.logger, events.TopicBookingEvents, eventType, events.BookingStatusEvent{
		BookingID:  b.ID(),
		ClientID:   b.ClientID(),
		Status:     string(b.Status()),
		OccurredAt: time.Now().UTC(),
	})
	return toBookingDTO(b, nil), nil
}

// GetBooking returns a booking with its payment. Clients only see their own.
func (s *BookingService) GetBooking(ctx context.Context, actorID uuid.UUID, isAdmin bool, bookingID uuid.UUID) (*BookingDTO, error) {
	b, err := s.Bookings.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !isAdmin && b.ClientID() != actorID {
		return nil, domain.NewNotFoundError("Booking", bookingID.String())
	}
	p, err := s.Payments.FindByBookingID(ctx, bookingID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		p = nil
	}
	return toBookingDTO(b, p), nil
}

// ListBookings returns bookings newest first. A nil clientID lists all (admin).
func (s *BookingService) ListBookings(ctx context.Context, clientID *uuid.UUID, status string, page, limit int) ([]*BookingDTO, int64, error) {
	filter := booking.ListFilter{ClientID: clientID, Page: page, Limit: limit}
	if status != "" {
		st := booking.Status(status)
		filter.Status = &st
	}
	list, total, err := s.Bookings.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	out := make([]*BookingDTO, len(list))
	for i, b := range list {
		out[i] = toBookingDTO(b, nil)
	}
	return out, total, nil
}

// ChargeAdditional bills an incidental to the client's stored card (admin).
// A decline is returned as a card-declined gateway error, distinct from a
// transient failure.
func (s *BookingService) ChargeAdditional(ctx context.Context, bookingID uuid.UUID, req AdditionalChargeRequest) (*AdditionalChargeDTO, error) {
	b, err := s.Bookings.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	switch b.Status() {
	case booking.StatusConfirmed, booking.StatusInProgress, booking.StatusCompleted:
	default:
		return nil, domain.NewInvalidStateError(string(b.Status()), "additional charge")
	}

	c, err := s.Clients.FindByID(ctx, b.ClientID())
	if err != nil {
		return nil, err
	}
	if !c.HasInstrument() {
		return nil, domain.NewValidationError("client has no stored payment method")
	}

	ch, err := payment.NewAdditionalCharge(b.ID(), c.ID(), req.AmountCents, b.Currency(), req.Reason)
	if err != nil {
		return nil, err
	}
	if err := s.Charges.Save(ctx, ch); err != nil {
		return nil, err
	}

	res, chargeErr := s.Gateway.OffSessionCharge(ctx, adapter.ChargeRequest{
		CustomerRef:   c.CustomerRef(),
		InstrumentRef: c.InstrumentRef(),
		AmountCents:   ch.AmountCents(),
		Currency:      ch.Currency(),
		Description:   ch.Reason(),
		Metadata: map[string]string{
			"booking_id": b.ID().String(),
			"client_id":  c.ID().String(),
			"charge_id":  ch.ID().String(),
		},
	})
	switch {
	case chargeErr != nil:
		_ = ch.MarkFailed(chargeErr.Error(), errors.Is(chargeErr, domain.ErrCardDeclined))
	case res.Succeeded:
		_ = ch.MarkSucceeded(res.Ref)
	default:
		ch.AttachRef(res.Ref)
	}
	ch.IncrementVersion()
	if err := s.Charges.Update(ctx, ch); err != nil {
		s.logger.Error("failed to persist additional charge outcome",
			zap.String("charge_id", ch.ID().String()),
			zap.Error(err),
		)
		if chargeErr == nil {
			return nil, err
		}
	}

	s.publishCharge(ctx, ch)
	if chargeErr != nil {
		return nil, chargeErr
	}
	s.logger.Info("additional charge created",
		zap.String("charge_id", ch.ID().String()),
		zap.String("booking_id", b.ID().String()),
		zap.String("status", string(ch.Status())),
	)
	return toChargeDTO(ch), nil
}

// ListCharges returns the additional charges of a booking.
func (s *BookingService) ListCharges(ctx context.Context, bookingID uuid.UUID) ([]*AdditionalChargeDTO, error) {
	charges, err := s.Charges.ListByBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	out := make([]*AdditionalChargeDTO, len(charges))
	for i, ch := range charges {
		out[i] = toChargeDTO(ch)
	}
	return out, nil
}

func (s *BookingService) publishCharge(ctx context.Context, ch *payment.AdditionalCharge) {
	publishChargeEvent(ctx, s.Publisher, s.logger, ch)
}

func publishChargeEvent(ctx context.Context, p EventPublisher, logger *zap.Logger, ch *payment.AdditionalCharge) {
	var eventType string
	switch ch.Status() {
	case payment.ChargeSucceeded:
		eventType = events.ChargeSucceeded
	case payment.ChargeFailed:
		eventType = events.ChargeFailed
	default:
		return
	}
	publish(ctx, p, logger, events.TopicPaymentEvents, eventType, events.AdditionalChargeEvent{
		ChargeID:    ch.ID(),
		BookingID:   ch.BookingID(),
		ClientID:    ch.ClientID(),
		AmountCents: ch.AmountCents(),
		Reason:      ch.Reason(),
		Status:      string(ch.Status()),
		Declined:    ch.Declined(),
		OccurredAt:  time.Now().UTC(),
	})
}

func toBookingDTO(b *booking.Booking, p *payment.Payment) *BookingDTO {
	dto := &BookingDTO{
		ID:            b.ID(),
		ClientID:      b.ClientID(),
		PetIDs:        b.PetIDs(),
		ServiceType:   string(b.ServiceType()),
		StartDate:     calendar.DateKey(b.StartDate()),
		EndDate:       calendar.DateKey(b.EndDate()),
		StartAt:       b.StartAt(),
		EndAt:         b.EndAt(),
		Visits:        b.Visits(),
		Breakdown:     b.Breakdown(),
		SubtotalCents: b.SubtotalCents(),
		DiscountCents: b.DiscountCents(),
		TotalCents:    b.TotalCents(),
		DepositCents:  b.DepositCents(),
		Currency:      b.Currency(),
		CouponCode:    b.CouponCode(),
		Settlement:    string(b.Settlement()),
		PriceLocked:   b.PriceLocked(),
		Status:        string(b.Status()),
		Notes:         b.Notes(),
		CancelReason:  b.CancelReason(),
		ConfirmedAt:   b.ConfirmedAt(),
		CancelledAt:   b.CancelledAt(),
		StartedAt:     b.StartedAt(),
		CompletedAt:   b.CompletedAt(),
		Version:       b.Version(),
		CreatedAt:     b.CreatedAt(),
		UpdatedAt:     b.UpdatedAt(),
	}
	if p != nil {
		pd := toPaymentDTO(p)
		dto.Payment = &pd
	}
	return dto
}

func toChargeDTO(ch *payment.AdditionalCharge) *AdditionalChargeDTO {
	return &AdditionalChargeDTO{
		ID:            ch.ID(),
		BookingID:     ch.BookingID(),
		AmountCents:   ch.AmountCents(),
		Currency:      ch.Currency(),
		Reason:        ch.Reason(),
		Status:        string(ch.Status()),
		GatewayRef:    ch.GatewayRef(),
		FailureReason: ch.FailureReason(),
		Declined:      ch.Declined(),
		ChargedAt:     ch.ChargedAt(),
		CreatedAt:     ch.CreatedAt(),
	}
}
