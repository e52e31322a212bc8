package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Kilat-Pet-Delivery/service-boarding/internal/domain/catalog"
	"github.com/Kilat-Pet-Delivery/service-boarding/internal/domain/credit"
	"github.com/Kilat-Pet-Delivery/service-boarding/internal/metrics"
	"github.com/Kilat-Pet-Delivery/service-boarding/pkg/domain"
)

// TopUpRequest grants a new batch of credits.
type TopUpRequest struct {
	ServiceType string `json:"service_type" binding:"required"`
	Amount      int64  `json:"amount" binding:"required,gt=0"`
	Reason      string `json:"reason"`
}

// AdjustCreditsRequest moves a client's balance by a signed amount.
type AdjustCreditsRequest struct {
	ServiceType string `json:"service_type" binding:"required"`
	Amount      int64  `json:"amount" binding:"required"`
	Reason      string `json:"reason"`
}

// SubscribeRequest holds data to start a credit plan.
type SubscribeRequest struct {
	Plan string `json:"plan" binding:"required"`
}

// BalanceDTO is a client's usable balance, per service type when one is given.
type BalanceDTO struct {
	ClientID    uuid.UUID `json:"client_id"`
	ServiceType string    `json:"service_type,omitempty"`
	Balance     int64     `json:"balance"`
}

// BatchDTO is the API response for a credit batch.
type BatchDTO struct {
	ID          uuid.UUID  `json:"id"`
	ServiceType string     `json:"service_type"`
	Amount      int64      `json:"amount"`
	Remaining   int64      `json:"remaining"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	Expired     bool       `json:"expired"`
	Source      string     `json:"source"`
	CreatedAt   time.Time  `json:"created_at"`
}

// TransactionDTO is one journal row.
type TransactionDTO struct {
	ID        uuid.UUID  `json:"id"`
	BatchID   uuid.UUID  `json:"batch_id"`
	BookingID *uuid.UUID `json:"booking_id,omitempty"`
	Kind      string     `json:"kind"`
	Amount    int64      `json:"amount"`
	Reason    string     `json:"reason,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// SubscriptionDTO is the API response for a subscription.
type SubscriptionDTO struct {
	ID          uuid.UUID `json:"id"`
	ClientID    uuid.UUID `json:"client_id"`
	Plan        string    `json:"plan"`
	PriceCents  int64     `json:"price_cents"`
	PeriodStart time.Time `json:"period_start"`
	PeriodEnd   time.Time `json:"period_end"`
	Status      string    `json:"status"`
	AutoRenew   bool      `json:"auto_renew"`
	Renewals    int       `json:"renewals"`
	CreatedAt   time.Time `json:"created_at"`
}

// CreditService handles the prepaid credit ledger and credit plans.
type CreditService struct {
	ledger  credit.LedgerRepository
	subs    credit.SubscriptionRepository
	policy  credit.ExpiryPolicy
	metrics *metrics.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

// NewCreditService creates a new CreditService.
func NewCreditService(
	ledger credit.LedgerRepository,
	subs credit.SubscriptionRepository,
	policy credit.ExpiryPolicy,
	m *metrics.Metrics,
	logger *zap.Logger,
) *CreditService {
	return &CreditService{
		ledger:  ledger,
		subs:    subs,
		policy:  policy,
		metrics: m,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// TopUp grants a new batch with the configured expiry.
func (s *CreditService) TopUp(ctx context.Context, clientID uuid.UUID, req TopUpRequest) (*BatchDTO, error) {
	st, err := catalog.ParseServiceType(req.ServiceType)
	if err != nil {
		return nil, err
	}
	b, err := s.grant(ctx, clientID, st, req.Amount, credit.SourceTopUp, nil, reasonOr(req.Reason, "top-up"))
	if err != nil {
		return nil, err
	}
	dto := s.toBatchDTO(b)
	return &dto, nil
}

// AdjustCredits grants a positive amount or consumes a negative one and
// returns the new balance for the service type. Consumption either fully
// succeeds or leaves every batch untouched.
func (s *CreditService) AdjustCredits(ctx context.Context, clientID uuid.UUID, req AdjustCreditsRequest) (*BalanceDTO, error) {
	st, err := catalog.ParseServiceType(req.ServiceType)
	if err != nil {
		return nil, err
	}
	reason := reasonOr(req.Reason, "admin adjustment")
	switch {
	case req.Amount > 0:
		if _, err := s.grant(ctx, clientID, st, req.Amount, credit.SourceAdjustment, nil, reason); err != nil {
			return nil, err
		}
	case req.Amount < 0:
		if err := s.debit(ctx, clientID, st, -req.Amount, credit.KindAdjustment, nil, reason); err != nil {
			return nil, err
		}
	default:
		return nil, domain.NewValidationError("adjustment amount must be non-zero")
	}
	return s.Balance(ctx, clientID, &st)
}

// Balance returns the usable balance, optionally for one service type.
func (s *CreditService) Balance(ctx context.Context, clientID uuid.UUID, st *catalog.ServiceType) (*BalanceDTO, error) {
	batches, err := s.ledger.FindBatches(ctx, clientID, st)
	if err != nil {
		return nil, err
	}
	dto := &BalanceDTO{ClientID: clientID, Balance: credit.Balance(batches, s.now(), s.policy)}
	if st != nil {
		dto.ServiceType = string(*st)
	}
	return dto, nil
}

// ListBatches returns a client's batches, optionally for one service type.
func (s *CreditService) ListBatches(ctx context.Context, clientID uuid.UUID, st *catalog.ServiceType) ([]BatchDTO, error) {
	batches, err := s.ledger.FindBatches(ctx, clientID, st)
	if err != nil {
		return nil, err
	}
	out := make([]BatchDTO, len(batches))
	for i, b := range batches {
		out[i] = s.toBatchDTO(b)
	}
	return out, nil
}

// ListTransactions returns a client's journal, newest first.
func (s *CreditService) ListTransactions(ctx context.Context, clientID uuid.UUID, page, limit int) ([]TransactionDTO, int64, error) {
	txs, total, err := s.ledger.ListTransactions(ctx, clientID, page, limit)
	if err != nil {
		return nil, 0, err
	}
	out := make([]TransactionDTO, len(txs))
	for i, t := range txs {
		out[i] = TransactionDTO{
			ID: t.ID, BatchID: t.BatchID, BookingID: t.BookingID,
			Kind: string(t.Kind), Amount: t.Amount, Reason: t.Reason, CreatedAt: t.CreatedAt,
		}
	}
	return out, total, nil
}

// RedeemForBooking consumes units credits to settle a booking.
func (s *CreditService) RedeemForBooking(ctx context.Context, clientID, bookingID uuid.UUID, st catalog.ServiceType, units int64) error {
	return s.debit(ctx, clientID, st, units, credit.KindConsume, &bookingID, "booking "+bookingID.String())
}

// RestoreForBooking returns credits of a cancelled credit-settled booking as
// a fresh adjustment batch.
func (s *CreditService) RestoreForBooking(ctx context.Context, clientID, bookingID uuid.UUID, st catalog.ServiceType, units int64) error {
	_, err := s.grant(ctx, clientID, st, units, credit.SourceAdjustment, nil, "cancelled booking "+bookingID.String())
	return err
}

// --- Plans ---

// ListPlans returns all credit plans.
func (s *CreditService) ListPlans() []credit.PlanInfo {
	return credit.AvailablePlans()
}

// Subscribe starts a credit plan and grants its first batch atomically.
func (s *CreditService) Subscribe(ctx context.Context, clientID uuid.UUID, req SubscribeRequest) (*SubscriptionDTO, error) {
	existing, err := s.subs.FindActiveByClientID(ctx, clientID)
	if err != nil {
		return nil, err
	}
	for _, sub := range existing {
		if sub.Plan() == credit.PlanType(req.Plan) && sub.IsActive() {
			return nil, domain.NewConflictError(fmt.Sprintf("an active %s subscription already exists", sub.Plan()))
		}
	}

	sub, err := credit.NewSubscription(clientID, credit.PlanType(req.Plan))
	if err != nil {
		return nil, err
	}
	b, tx, err := s.planGrant(sub)
	if err != nil {
		return nil, err
	}
	if err := s.subs.SaveWithGrant(ctx, sub, b, tx); err != nil {
		return nil, fmt.Errorf("failed to save subscription: %w", err)
	}
	s.metrics.CreditOperations.WithLabelValues(string(tx.Kind)).Inc()

	s.logger.Info("subscription created",
		zap.String("client_id", clientID.String()),
		zap.String("plan", req.Plan),
	)
	return toSubDTO(sub), nil
}

// GetSubscriptions returns a client's active subscriptions.
func (s *CreditService) GetSubscriptions(ctx context.Context, clientID uuid.UUID) ([]*SubscriptionDTO, error) {
	subs, err := s.subs.FindActiveByClientID(ctx, clientID)
	if err != nil {
		return nil, err
	}
	out := make([]*SubscriptionDTO, len(subs))
	for i, sub := range subs {
		out[i] = toSubDTO(sub)
	}
	return out, nil
}

// CancelSubscription stops renewals. Already granted credits stay usable.
func (s *CreditService) CancelSubscription(ctx context.Context, clientID, subID uuid.UUID) (*SubscriptionDTO, error) {
	sub, err := s.subs.FindByID(ctx, subID)
	if err != nil {
		return nil, err
	}
	if sub.ClientID() != clientID {
		return nil, domain.NewUnauthorizedError("subscription belongs to another client")
	}
	sub.Cancel()
	if err := s.subs.Update(ctx, sub); err != nil {
		return nil, err
	}
	s.logger.Info("subscription cancelled", zap.String("subscription_id", subID.String()))
	return toSubDTO(sub), nil
}

// RenewDueSubscriptions renews every auto-renewing subscription whose period
// has ended, granting a fresh batch for each. It returns the number renewed.
func (s *CreditService) RenewDueSubscriptions(ctx context.Context, limit int) (int, error) {
	now := s.now()
	due, err := s.subs.FindDueForRenewal(ctx, now, limit)
	if err != nil {
		return 0, err
	}

	renewed := 0
	for _, sub := range due {
		previousEnd := sub.PeriodEnd()
		if err := sub.Renew(now); err != nil {
			continue
		}
		b, tx, err := s.planGrant(sub)
		if err != nil {
			return renewed, err
		}
		if err := s.subs.RenewWithGrant(ctx, sub, previousEnd, b, tx); err != nil {
			if errors.Is(err, domain.ErrConflict) {
				// another instance renewed it first
				continue
			}
			s.logger.Error("failed to renew subscription",
				zap.String("subscription_id", sub.ID().String()),
				zap.Error(err),
			)
			continue
		}
		s.metrics.CreditOperations.WithLabelValues(string(tx.Kind)).Inc()
		renewed++
	}

	if renewed > 0 {
		s.logger.Info("subscriptions renewed", zap.Int("count", renewed))
	}
	return renewed, nil
}

func (s *CreditService) planGrant(sub *credit.Subscription) (*credit.Batch, *credit.Transaction, error) {
	info, err := credit.FindPlan(sub.Plan())
	if err != nil {
		return nil, nil, err
	}
	subID := sub.ID()
	b, err := credit.NewBatch(sub.ClientID(), info.ServiceType, info.Credits, s.policy.ExpiryFrom(s.now()), credit.SourceSubscription, &subID)
	if err != nil {
		return nil, nil, err
	}
	return b, credit.NewGrant(b, fmt.Sprintf("%s period %d", sub.Plan(), sub.Renewals()+1)), nil
}

func (s *CreditService) grant(ctx context.Context, clientID uuid.UUID, st catalog.ServiceType, amount int64, source credit.Source, subID *uuid.UUID, reason string) (*credit.Batch, error) {
	b, err := credit.NewBatch(clientID, st, amount, s.policy.ExpiryFrom(s.now()), source, subID)
	if err != nil {
		return nil, err
	}
	tx := credit.NewGrant(b, reason)
	if err := s.ledger.Grant(ctx, b, tx); err != nil {
		return nil, err
	}
	s.metrics.CreditOperations.WithLabelValues(string(tx.Kind)).Inc()
	s.logger.Info("credits granted",
		zap.String("client_id", clientID.String()),
		zap.String("service_type", string(st)),
		zap.Int64("amount", amount),
		zap.String("source", string(source)),
	)
	return b, nil
}

// debit plans a soonest-expiry-first deduction and applies it in one
// transaction. A lost race with a concurrent debit is retried once on fresh
// batches.
func (s *CreditService) debit(ctx context.Context, clientID uuid.UUID, st catalog.ServiceType, amount int64, kind credit.TransactionKind, bookingID *uuid.UUID, reason string) error {
	if amount <= 0 {
		return domain.NewValidationError("credit amount must be positive")
	}
	var err error
	for attempt := 0; attempt < 2; attempt++ {
		var batches []*credit.Batch
		batches, err = s.ledger.FindBatches(ctx, clientID, &st)
		if err != nil {
			return err
		}
		allocs, remainder := credit.Allocate(batches, amount, s.now(), s.policy)
		if remainder > 0 {
			return domain.NewInsufficientCreditsError(amount, amount-remainder)
		}
		txs := credit.NewDebits(clientID, allocs, kind, bookingID, reason)
		err = s.ledger.ApplyAllocations(ctx, allocs, txs)
		if err == nil {
			s.metrics.CreditOperations.WithLabelValues(string(kind)).Inc()
			s.logger.Info("credits consumed",
				zap.String("client_id", clientID.String()),
				zap.String("service_type", string(st)),
				zap.Int64("amount", amount),
				zap.Int("batches", len(allocs)),
			)
			return nil
		}
		if !errors.Is(err, domain.ErrConflict) {
			return err
		}
	}
	return err
}

func (s *CreditService) toBatchDTO(b *credit.Batch) BatchDTO {
	return BatchDTO{
		ID:          b.ID(),
		ServiceType: string(b.ServiceType()),
		Amount:      b.Amount(),
		Remaining:   b.Remaining(),
		ExpiresAt:   b.ExpiresAt(),
		Expired:     b.Expired(s.now()),
		Source:      string(b.Source()),
		CreatedAt:   b.CreatedAt(),
	}
}

func toSubDTO(sub *credit.Subscription) *SubscriptionDTO {
	return &SubscriptionDTO{
		ID:          sub.ID(),
		ClientID:    sub.ClientID(),
		Plan:        string(sub.Plan()),
		PriceCents:  sub.PriceCents(),
		PeriodStart: sub.PeriodStart(),
		PeriodEnd:   sub.PeriodEnd(),
		Status:      string(sub.Status()),
		AutoRenew:   sub.AutoRenew(),
		Renewals:    sub.Renewals(),
		CreatedAt:   sub.CreatedAt(),
	}
}

func reasonOr(reason, fallback string) string {
	if reason == "" {
		return fallback
	}
	return reason
}
