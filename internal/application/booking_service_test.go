package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kilat-Pet-Delivery/service-boarding/internal/adapter"
	"github.com/Kilat-Pet-Delivery/service-boarding/internal/domain/booking"
	"github.com/Kilat-Pet-Delivery/service-boarding/internal/domain/catalog"
	"github.com/Kilat-Pet-Delivery/service-boarding/internal/domain/client"
	couponDomain "github.com/Kilat-Pet-Delivery/service-boarding/internal/domain/coupon"
	"github.com/Kilat-Pet-Delivery/service-boarding/internal/domain/payment"
	"github.com/Kilat-Pet-Delivery/service-boarding/pkg/domain"
	"github.com/Kilat-Pet-Delivery/service-boarding/pkg/events"
)

// bookAndAuthorize creates a card booking and places an authorized hold on it.
func bookAndAuthorize(t *testing.T, h *harness, clientID uuid.UUID, req CreateBookingRequest) *BookingDTO {
	t.Helper()
	ctx := context.Background()
	b, err := h.bookingSvc.CreateBooking(ctx, clientID, req)
	require.NoError(t, err)
	p, err := h.paymentSvc.Checkout(ctx, clientID, CheckoutRequest{BookingID: b.ID, InstrumentToken: "tok_visa"})
	require.NoError(t, err)
	require.Equal(t, string(payment.StatusAuthorized), p.Status)
	return b
}

func TestQuote_Boarding(t *testing.T) {
	h := newHarness(t, true)
	clientID, pets := h.seedClient(t, "owner@example.com", "Rex")

	start := nextMonth(3)
	end := start.Add(3*24*time.Hour + 3*time.Hour)
	q, err := h.bookingSvc.Quote(context.Background(), clientID, QuoteRequest{
		ServiceType: "boarding",
		PetIDs:      pets,
		StartAt:     &start,
		EndAt:       &end,
	})
	require.NoError(t, err)

	// Three nights plus three extra hours bills a half night.
	assert.Equal(t, int64(3*5000+2500), q.TotalCents)
	assert.Equal(t, "EUR", q.Currency)
	assert.Equal(t, 4, q.Availability.TotalDays)
	assert.Len(t, q.Availability.Unspecified, 4)
}

func TestQuote_RejectsUnavailableDay(t *testing.T) {
	h := newHarness(t, true)
	clientID, pets := h.seedClient(t, "owner@example.com", "Rex")
	start := nextMonth(3)
	h.markUnavailable(t, catalog.Boarding, start.AddDate(0, 0, 1))

	req := boardingRequest(pets, start, 3)
	_, err := h.bookingSvc.Quote(context.Background(), clientID, req.QuoteRequest)

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrConflict))
	var de *domain.DomainError
	require.True(t, errors.As(err, &de))
	assert.Contains(t, de.Details["unavailable_dates"], start.AddDate(0, 0, 1).Format("2006-01-02"))
}

func TestQuote_RejectsForeignPet(t *testing.T) {
	h := newHarness(t, true)
	clientID, _ := h.seedClient(t, "owner@example.com", "Rex")
	_, otherPets := h.seedClient(t, "other@example.com", "Fido")

	req := boardingRequest(otherPets, nextMonth(3), 2)
	_, err := h.bookingSvc.Quote(context.Background(), clientID, req.QuoteRequest)

	assert.True(t, errors.Is(err, domain.ErrUnauthorized))
}

func TestCreateBooking_ExplicitCouponApplied(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()
	clientID, pets := h.seedClient(t, "owner@example.com", "Rex")
	c := h.seedCoupon(t, couponDomain.Params{Code: "summer10", DiscountType: couponDomain.DiscountPercentage, DiscountValue: 10})

	req := boardingRequest(pets, nextMonth(3), 4)
	req.CouponCode = "SUMMER10"
	b, err := h.bookingSvc.CreateBooking(ctx, clientID, req)
	require.NoError(t, err)

	assert.Equal(t, int64(20000), b.SubtotalCents)
	assert.Equal(t, int64(2000), b.DiscountCents)
	assert.Equal(t, int64(18000), b.TotalCents)
	assert.Equal(t, "SUMMER10", b.CouponCode)

	usages, err := h.couponSvc.ListUsages(ctx, c.ID())
	require.NoError(t, err)
	assert.Len(t, usages, 1)
	assert.Contains(t, h.publisher.types(), events.BookingCreated)
}

func TestCreateBooking_InvalidExplicitCouponRejected(t *testing.T) {
	h := newHarness(t, true)
	clientID, pets := h.seedClient(t, "owner@example.com", "Rex")
	minAmount := int64(100000)
	h.seedCoupon(t, couponDomain.Params{Code: "BIGSPEND", DiscountType: couponDomain.DiscountFixedAmount, DiscountValue: 500, MinAmountCents: &minAmount})

	req := boardingRequest(pets, nextMonth(3), 2)
	req.CouponCode = "BIGSPEND"
	_, err := h.bookingSvc.CreateBooking(context.Background(), clientID, req)

	assert.True(t, errors.Is(err, domain.ErrValidation))
	assert.Empty(t, h.bookings.bookings)
}

func TestCreateBooking_AutoCouponIgnoredWhenNotApplicable(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()

	c := client.NewClient("vip@example.com", "VIP")
	c.SetAutoCoupon("WALKS")
	require.NoError(t, h.clients.Save(ctx, c))
	petID := uuid.New()
	h.clients.pets[petID] = client.Pet{ID: petID, OwnerID: c.ID(), Name: "Rex"}
	h.seedCoupon(t, couponDomain.Params{
		Code:          "WALKS",
		DiscountType:  couponDomain.DiscountPercentage,
		DiscountValue: 20,
		ServiceTypes:  []catalog.ServiceType{catalog.DogWalking},
	})

	b, err := h.bookingSvc.CreateBooking(ctx, c.ID(), boardingRequest([]uuid.UUID{petID}, nextMonth(3), 2))

	require.NoError(t, err)
	assert.Zero(t, b.DiscountCents)
	assert.Empty(t, b.CouponCode)
}

func TestCreateBooking_AutoCouponApplied(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()

	c := client.NewClient("vip@example.com", "VIP")
	c.SetAutoCoupon("vip")
	require.NoError(t, h.clients.Save(ctx, c))
	petID := uuid.New()
	h.clients.pets[petID] = client.Pet{ID: petID, OwnerID: c.ID(), Name: "Rex"}
	h.seedCoupon(t, couponDomain.Params{Code: "VIP", DiscountType: couponDomain.DiscountFixedAmount, DiscountValue: 1000})

	b, err := h.bookingSvc.CreateBooking(ctx, c.ID(), boardingRequest([]uuid.UUID{petID}, nextMonth(3), 2))

	require.NoError(t, err)
	// Fixed discounts apply per night.
	assert.Equal(t, int64(2000), b.DiscountCents)
	assert.Equal(t, "VIP", b.CouponCode)
}

func TestCreateBooking_RejectsOverlapWithConfirmed(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()
	clientID, pets := h.seedClient(t, "owner@example.com", "Rex")

	first := bookAndAuthorize(t, h, clientID, boardingRequest(pets, nextMonth(3), 4))
	_, err := h.bookingSvc.ConfirmBooking(ctx, first.ID)
	require.NoError(t, err)

	_, err = h.bookingSvc.CreateBooking(ctx, clientID, boardingRequest(pets, nextMonth(6), 2))
	assert.True(t, errors.Is(err, domain.ErrConflict))
}

func TestConfirmBooking_CapturesHold(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()
	clientID, pets := h.seedClient(t, "owner@example.com", "Rex")
	b := bookAndAuthorize(t, h, clientID, boardingRequest(pets, nextMonth(3), 2))

	confirmed, err := h.bookingSvc.ConfirmBooking(ctx, b.ID)
	require.NoError(t, err)

	assert.Equal(t, string(booking.StatusConfirmed), confirmed.Status)
	assert.True(t, confirmed.PriceLocked)
	require.NotNil(t, confirmed.Payment)
	assert.Equal(t, string(payment.StatusSucceeded), confirmed.Payment.Status)
	assert.NotNil(t, confirmed.Payment.PaidAt)
	assert.Subset(t, h.publisher.types(), []string{events.PaymentCaptured, events.BookingConfirmed})
	assert.Equal(t, float64(1), testutil.ToFloat64(h.metrics.BookingTransitions.WithLabelValues(string(booking.StatusConfirmed))))
}

func TestConfirmBooking_RecheckRejectsOverlap(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()
	clientID, pets := h.seedClient(t, "owner@example.com", "Rex")

	// Both bookings are accepted while PENDING; only one can be confirmed.
	first := bookAndAuthorize(t, h, clientID, boardingRequest(pets, nextMonth(3), 4))
	second := bookAndAuthorize(t, h, clientID, boardingRequest(pets, nextMonth(5), 4))

	_, err := h.bookingSvc.ConfirmBooking(ctx, first.ID)
	require.NoError(t, err)

	_, err = h.bookingSvc.ConfirmBooking(ctx, second.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrConflict))

	got, err := h.bookingSvc.GetBooking(ctx, clientID, false, second.ID)
	require.NoError(t, err)
	assert.Equal(t, string(booking.StatusPending), got.Status)
	require.NotNil(t, got.Payment)
	assert.Equal(t, string(payment.StatusAuthorized), got.Payment.Status)
}

func TestConfirmBooking_CaptureFailureLeavesStateUnchanged(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()
	clientID, pets := h.seedClient(t, "owner@example.com", "Rex")
	b := bookAndAuthorize(t, h, clientID, boardingRequest(pets, nextMonth(3), 2))

	h.gateway.FailNext("capture", false)
	_, err := h.bookingSvc.ConfirmBooking(ctx, b.ID)

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrGatewayTransient))
	got, err := h.bookingSvc.GetBooking(ctx, clientID, false, b.ID)
	require.NoError(t, err)
	assert.Equal(t, string(booking.StatusPending), got.Status)
	assert.Equal(t, string(payment.StatusAuthorized), got.Payment.Status)
	assert.False(t, got.PriceLocked)

	// The hold is still capturable.
	_, err = h.bookingSvc.ConfirmBooking(ctx, b.ID)
	assert.NoError(t, err)
}

func TestConfirmBooking_PersistFailureRefundsCapture(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()
	clientID, pets := h.seedClient(t, "owner@example.com", "Rex")
	b := bookAndAuthorize(t, h, clientID, boardingRequest(pets, nextMonth(3), 2))
	p, err := h.payments.FindByBookingID(ctx, b.ID)
	require.NoError(t, err)

	h.bookings.failConfirm = errors.New("db unavailable")
	_, err = h.bookingSvc.ConfirmBooking(ctx, b.ID)
	require.Error(t, err)

	// The compensation refunded the full capture, so nothing is left to refund.
	_, err = h.gateway.Refund(ctx, p.GatewayRef(), 1)
	assert.Error(t, err)

	got, err := h.bookingSvc.GetBooking(ctx, clientID, false, b.ID)
	require.NoError(t, err)
	assert.Equal(t, string(booking.StatusPending), got.Status)
}

func TestCancelBooking_WhileAuthorizedReleasesHold(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()
	clientID, pets := h.seedClient(t, "owner@example.com", "Rex")
	b := bookAndAuthorize(t, h, clientID, boardingRequest(pets, nextMonth(3), 2))

	cancelled, err := h.bookingSvc.CancelBooking(ctx, clientID, false, b.ID, CancelBookingRequest{Reason: "plans changed"})
	require.NoError(t, err)

	assert.Equal(t, string(booking.StatusCancelled), cancelled.Status)
	assert.Equal(t, "plans changed", cancelled.CancelReason)
	require.NotNil(t, cancelled.Payment)
	assert.Equal(t, string(payment.StatusCancelled), cancelled.Payment.Status)
	assert.False(t, cancelled.Payment.ReconciliationPending)
	assert.Subset(t, h.publisher.types(), []string{events.PaymentHoldCancelled, events.BookingCancelled})
}

func TestCancelBooking_HoldReleaseFailureFlagsReconciliation(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()
	clientID, pets := h.seedClient(t, "owner@example.com", "Rex")
	b := bookAndAuthorize(t, h, clientID, boardingRequest(pets, nextMonth(3), 2))

	h.gateway.FailNext("cancel_hold", false)
	cancelled, err := h.bookingSvc.CancelBooking(ctx, clientID, false, b.ID, CancelBookingRequest{Reason: "sick"})

	require.NoError(t, err)
	assert.Equal(t, string(booking.StatusCancelled), cancelled.Status)
	assert.Equal(t, string(payment.StatusCancelled), cancelled.Payment.Status)
	assert.True(t, cancelled.Payment.ReconciliationPending)
	assert.Contains(t, h.publisher.types(), events.PaymentReconciliation)

	pending, err := h.paymentSvc.ListReconciliation(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestCancelBooking_WebhookDuringCancellationIsReapplied(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()
	clientID, p := checkoutPending(t, h)

	h.bookings.beforeCancel = func() {
		require.NoError(t, h.paymentSvc.HandleGatewayEvent(ctx, &adapter.GatewayEvent{
			ID: "evt_mid_cancel", Type: adapter.EventHoldAuthorized, Reference: p.GatewayRef,
		}))
	}
	cancelled, err := h.bookingSvc.CancelBooking(ctx, clientID, false, p.BookingID, CancelBookingRequest{Reason: "plans changed"})
	require.NoError(t, err)

	assert.Equal(t, string(booking.StatusCancelled), cancelled.Status)
	require.NotNil(t, cancelled.Payment)
	assert.Equal(t, string(payment.StatusCancelled), cancelled.Payment.Status)
	assert.False(t, cancelled.Payment.ReconciliationPending)

	stored, err := h.payments.FindByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, payment.StatusCancelled, stored.Status())
	storedBooking, err := h.bookings.FindByID(ctx, p.BookingID)
	require.NoError(t, err)
	assert.Equal(t, booking.StatusCancelled, storedBooking.Status())
}

func TestCancelBooking_CaptureDuringCancellationFlagsReconciliation(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()
	clientID, p := checkoutPending(t, h)

	// The hold was released at the gateway, but the payment settled meanwhile.
	h.bookings.beforeCancel = func() {
		require.NoError(t, h.paymentSvc.HandleGatewayEvent(ctx, &adapter.GatewayEvent{
			ID: "evt_mid_capture", Type: adapter.EventPaymentSucceeded, Reference: p.GatewayRef,
		}))
	}
	cancelled, err := h.bookingSvc.CancelBooking(ctx, clientID, false, p.BookingID, CancelBookingRequest{Reason: "sick"})
	require.NoError(t, err)

	assert.Equal(t, string(booking.StatusCancelled), cancelled.Status)
	assert.Equal(t, string(payment.StatusSucceeded), cancelled.Payment.Status)
	assert.True(t, cancelled.Payment.ReconciliationPending)
	assert.Contains(t, cancelled.Payment.ReconciliationNote, "during cancellation")
	assert.Contains(t, h.publisher.types(), events.PaymentReconciliation)
}

func TestCancelBooking_ConfirmedIsRefunded(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()
	clientID, pets := h.seedClient(t, "owner@example.com", "Rex")
	b := bookAndAuthorize(t, h, clientID, boardingRequest(pets, nextMonth(3), 2))
	_, err := h.bookingSvc.ConfirmBooking(ctx, b.ID)
	require.NoError(t, err)

	adminID := uuid.New()
	cancelled, err := h.bookingSvc.CancelBooking(ctx, adminID, true, b.ID, CancelBookingRequest{Reason: "facility closed"})
	require.NoError(t, err)

	assert.Equal(t, string(payment.StatusRefunded), cancelled.Payment.Status)
	assert.Equal(t, int64(10000), cancelled.Payment.RefundAmountCents)
	assert.Contains(t, h.publisher.types(), events.PaymentRefunded)
}

func TestCancelBooking_RefundFailureKeepsPaymentSucceeded(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()
	clientID, pets := h.seedClient(t, "owner@example.com", "Rex")
	b := bookAndAuthorize(t, h, clientID, boardingRequest(pets, nextMonth(3), 2))
	_, err := h.bookingSvc.ConfirmBooking(ctx, b.ID)
	require.NoError(t, err)

	h.gateway.FailNext("refund", false)
	cancelled, err := h.bookingSvc.CancelBooking(ctx, clientID, false, b.ID, CancelBookingRequest{Reason: "sick"})

	require.NoError(t, err)
	assert.Equal(t, string(booking.StatusCancelled), cancelled.Status)
	assert.Equal(t, string(payment.StatusSucceeded), cancelled.Payment.Status)
	assert.True(t, cancelled.Payment.ReconciliationPending)
	assert.Contains(t, cancelled.Payment.ReconciliationNote, "refund failed")
}

func TestCancelBooking_Authorization(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()
	clientID, pets := h.seedClient(t, "owner@example.com", "Rex")
	b, err := h.bookingSvc.CreateBooking(ctx, clientID, boardingRequest(pets, nextMonth(3), 2))
	require.NoError(t, err)

	_, err = h.bookingSvc.CancelBooking(ctx, uuid.New(), false, b.ID, CancelBookingRequest{})
	assert.True(t, errors.Is(err, domain.ErrUnauthorized))

	_, err = h.bookingSvc.CancelBooking(ctx, clientID, false, b.ID, CancelBookingRequest{})
	require.NoError(t, err)

	_, err = h.bookingSvc.CancelBooking(ctx, clientID, false, b.ID, CancelBookingRequest{})
	assert.True(t, errors.Is(err, domain.ErrInvalidState))
}

func TestStartAndCompleteBooking(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()
	clientID, pets := h.seedClient(t, "owner@example.com", "Rex")
	b := bookAndAuthorize(t, h, clientID, boardingRequest(pets, nextMonth(3), 2))

	_, err := h.bookingSvc.StartBooking(ctx, b.ID)
	assert.True(t, errors.Is(err, domain.ErrInvalidState))

	_, err = h.bookingSvc.ConfirmBooking(ctx, b.ID)
	require.NoError(t, err)
	started, err := h.bookingSvc.StartBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, string(booking.StatusInProgress), started.Status)

	completed, err := h.bookingSvc.CompleteBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, string(booking.StatusCompleted), completed.Status)
	assert.NotNil(t, completed.CompletedAt)
	assert.Subset(t, h.publisher.types(), []string{events.BookingStarted, events.BookingCompleted})
}

func TestCreditBooking_ConsumesAndRestoresCredits(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()
	clientID, pets := h.seedClient(t, "owner@example.com", "Rex")
	_, err := h.creditSvc.TopUp(ctx, clientID, TopUpRequest{ServiceType: "BOARDING", Amount: 5})
	require.NoError(t, err)

	req := boardingRequest(pets, nextMonth(3), 3)
	req.PayWithCredits = true
	b, err := h.bookingSvc.CreateBooking(ctx, clientID, req)
	require.NoError(t, err)
	assert.Equal(t, string(booking.SettlementCredits), b.Settlement)

	st := catalog.Boarding
	bal, err := h.creditSvc.Balance(ctx, clientID, &st)
	require.NoError(t, err)
	assert.Equal(t, int64(2), bal.Balance)

	confirmed, err := h.bookingSvc.ConfirmBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, string(booking.StatusConfirmed), confirmed.Status)
	assert.Nil(t, confirmed.Payment)

	_, err = h.bookingSvc.CancelBooking(ctx, clientID, false, b.ID, CancelBookingRequest{Reason: "trip cancelled"})
	require.NoError(t, err)
	bal, err = h.creditSvc.Balance(ctx, clientID, &st)
	require.NoError(t, err)
	assert.Equal(t, int64(5), bal.Balance)
}

func TestCreditBooking_InsufficientCreditsRemovesBooking(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()
	clientID, pets := h.seedClient(t, "owner@example.com", "Rex")
	_, err := h.creditSvc.TopUp(ctx, clientID, TopUpRequest{ServiceType: "BOARDING", Amount: 2})
	require.NoError(t, err)

	req := boardingRequest(pets, nextMonth(3), 3)
	req.PayWithCredits = true
	_, err = h.bookingSvc.CreateBooking(ctx, clientID, req)

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInsufficientCredits))
	assert.Empty(t, h.bookings.bookings)

	st := catalog.Boarding
	bal, err := h.creditSvc.Balance(ctx, clientID, &st)
	require.NoError(t, err)
	assert.Equal(t, int64(2), bal.Balance)
}

func TestCreditBooking_RejectsCoupon(t *testing.T) {
	h := newHarness(t, true)
	clientID, pets := h.seedClient(t, "owner@example.com", "Rex")
	h.seedCoupon(t, couponDomain.Params{Code: "TEN", DiscountType: couponDomain.DiscountPercentage, DiscountValue: 10})

	req := boardingRequest(pets, nextMonth(3), 3)
	req.PayWithCredits = true
	req.CouponCode = "TEN"
	_, err := h.bookingSvc.CreateBooking(context.Background(), clientID, req)

	assert.True(t, errors.Is(err, domain.ErrValidation))
}

func TestChargeAdditional(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()
	clientID, pets := h.seedClient(t, "owner@example.com", "Rex")
	b := bookAndAuthorize(t, h, clientID, boardingRequest(pets, nextMonth(3), 2))

	_, err := h.bookingSvc.ChargeAdditional(ctx, b.ID, AdditionalChargeRequest{AmountCents: 1500, Reason: "grooming"})
	assert.True(t, errors.Is(err, domain.ErrInvalidState))

	_, err = h.bookingSvc.ConfirmBooking(ctx, b.ID)
	require.NoError(t, err)

	ch, err := h.bookingSvc.ChargeAdditional(ctx, b.ID, AdditionalChargeRequest{AmountCents: 1500, Reason: "grooming"})
	require.NoError(t, err)
	assert.Equal(t, string(payment.ChargeSucceeded), ch.Status)
	assert.NotEmpty(t, ch.GatewayRef)

	h.gateway.FailNext("off_session_charge", true)
	_, err = h.bookingSvc.ChargeAdditional(ctx, b.ID, AdditionalChargeRequest{AmountCents: 900, Reason: "medication"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrCardDeclined))

	charges, err := h.bookingSvc.ListCharges(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, charges, 2)
	var declined int
	for _, c := range charges {
		if c.Status == string(payment.ChargeFailed) && c.Declined {
			declined++
		}
	}
	assert.Equal(t, 1, declined)
	assert.Subset(t, h.publisher.types(), []string{events.ChargeSucceeded, events.ChargeFailed})
}

func TestChargeAdditional_RequiresStoredCard(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()
	clientID, pets := h.seedClient(t, "owner@example.com", "Rex")
	_, err := h.creditSvc.TopUp(ctx, clientID, TopUpRequest{ServiceType: "BOARDING", Amount: 5})
	require.NoError(t, err)

	req := boardingRequest(pets, nextMonth(3), 2)
	req.PayWithCredits = true
	b, err := h.bookingSvc.CreateBooking(ctx, clientID, req)
	require.NoError(t, err)
	_, err = h.bookingSvc.ConfirmBooking(ctx, b.ID)
	require.NoError(t, err)

	_, err = h.bookingSvc.ChargeAdditional(ctx, b.ID, AdditionalChargeRequest{AmountCents: 500, Reason: "treats"})
	assert.True(t, errors.Is(err, domain.ErrValidation))
}

func TestGetAndListBookings(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()
	clientID, pets := h.seedClient(t, "owner@example.com", "Rex", "Milo")
	otherID, otherPets := h.seedClient(t, "other@example.com", "Fido")

	mine, err := h.bookingSvc.CreateBooking(ctx, clientID, boardingRequest(pets, nextMonth(3), 2))
	require.NoError(t, err)
	_, err = h.bookingSvc.CreateBooking(ctx, otherID, boardingRequest(otherPets, nextMonth(3), 2))
	require.NoError(t, err)

	_, err = h.bookingSvc.GetBooking(ctx, otherID, false, mine.ID)
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	got, err := h.bookingSvc.GetBooking(ctx, uuid.New(), true, mine.ID)
	require.NoError(t, err)
	assert.Len(t, got.PetIDs, 2)

	list, total, err := h.bookingSvc.ListBookings(ctx, &clientID, "", 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, mine.ID, list[0].ID)

	_, total, err = h.bookingSvc.ListBookings(ctx, nil, string(booking.StatusPending), 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
}
