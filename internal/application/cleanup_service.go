package application

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/Kilat-Pet-Delivery/service-boarding/internal/adapter"
	"github.com/Kilat-Pet-Delivery/service-boarding/internal/domain/booking"
	"github.com/Kilat-Pet-Delivery/service-boarding/internal/domain/payment"
	"github.com/Kilat-Pet-Delivery/service-boarding/internal/metrics"
	"github.com/Kilat-Pet-Delivery/service-boarding/pkg/domain"
	"github.com/Kilat-Pet-Delivery/service-boarding/pkg/events"
)

const (
	cleanupNoPayment       = "no_payment"
	cleanupStuckProcessing = "stuck_processing"
)

// CleanupService removes PENDING card bookings that were abandoned before or
// during checkout, so they stop holding coupon quota and pet dates.
type CleanupService struct {
	bookings      booking.BookingRepository
	payments      payment.PaymentRepository
	gateway       adapter.Gateway
	publisher     EventPublisher
	metrics       *metrics.Metrics
	pendingTTL    time.Duration
	processingTTL time.Duration
	batchSize     int
	logger        *zap.Logger
	now           func() time.Time
}

// NewCleanupService creates a new CleanupService.
func NewCleanupService(
	bookings booking.BookingRepository,
	payments payment.PaymentRepository,
	gateway adapter.Gateway,
	publisher EventPublisher,
	m *metrics.Metrics,
	pendingTTL, processingTTL time.Duration,
	batchSize int,
	logger *zap.Logger,
) *CleanupService {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &CleanupService{
		bookings:      bookings,
		payments:      payments,
		gateway:       gateway,
		publisher:     publisher,
		metrics:       m,
		pendingTTL:    pendingTTL,
		processingTTL: processingTTL,
		batchSize:     batchSize,
		logger:        logger,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Run is the scheduler entry point.
func (s *CleanupService) Run(ctx context.Context) error {
	_, err := s.RunOnce(ctx)
	return err
}

// RunOnce deletes one batch of each kind of abandoned booking and returns how
// many were removed. Bookings that moved on in the meantime are left alone.
func (s *CleanupService) RunOnce(ctx context.Context) (int, error) {
	now := s.now()

	stale, err := s.bookings.FindStalePending(ctx, now.Add(-s.pendingTTL), s.batchSize)
	if err != nil {
		return 0, err
	}
	deleted := 0
	for _, b := range stale {
		if s.remove(ctx, b, booking.WithoutPayment(), cleanupNoPayment) {
			deleted++
		}
	}

	cutoff := now.Add(-s.processingTTL)
	stuck, err := s.bookings.FindStuckProcessing(ctx, cutoff, s.batchSize)
	if err != nil {
		return deleted, err
	}
	for _, b := range stuck {
		ref := s.holdRef(ctx, b)
		if s.remove(ctx, b, booking.ProcessingSince(cutoff), cleanupStuckProcessing) {
			s.releaseHold(ctx, b, ref)
			deleted++
		}
	}

	if deleted > 0 {
		s.logger.Info("stale bookings removed",
			zap.Int("deleted", deleted),
			zap.Int("stale_pending", len(stale)),
			zap.Int("stuck_processing", len(stuck)),
		)
	}
	return deleted, nil
}

// holdRef returns the gateway reference of a stuck booking's payment, read
// before the row is deleted.
func (s *CleanupService) holdRef(ctx context.Context, b *booking.Booking) string {
	p, err := s.payments.FindByBookingID(ctx, b.ID())
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger.Warn("failed to load payment of stuck booking",
				zap.String("booking_id", b.ID().String()),
				zap.Error(err),
			)
		}
		return ""
	}
	return p.GatewayRef()
}

// releaseHold runs only after the delete went through, so a hold that became
// live in the meantime is never released.
func (s *CleanupService) releaseHold(ctx context.Context, b *booking.Booking, ref string) {
	if ref == "" {
		return
	}
	if err := s.gateway.CancelHold(ctx, ref); err != nil {
		s.logger.Warn("failed to release hold of stuck booking",
			zap.String("booking_id", b.ID().String()),
			zap.String("gateway_ref", ref),
			zap.Error(err),
		)
	}
}

func (s *CleanupService) remove(ctx context.Context, b *booking.Booking, cond booking.DeleteCondition, reason string) bool {
	ok, err := s.bookings.DeletePending(ctx, b.ID(), cond)
	if err != nil {
		s.logger.Error("failed to delete stale booking",
			zap.String("booking_id", b.ID().String()),
			zap.Error(err),
		)
		return false
	}
	if !ok {
		return false
	}

	s.metrics.CleanupDeleted.WithLabelValues(reason).Inc()
	s.logger.Info("stale booking deleted",
		zap.String("booking_id", b.ID().String()),
		zap.String("reason", reason),
	)
	publish(ctx, s.publisher, s.logger, events.TopicBookingEvents, events.BookingExpired, events.BookingStatusEvent{
		BookingID:  b.ID(),
		ClientID:   b.ClientID(),
		Status:     "EXPIRED",
		OccurredAt: s.now(),
	})
	return true
}
