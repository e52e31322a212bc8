package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	paymentDomain "github.com/Kilat-Pet-Delivery/service-boarding/internal/domain/payment"
	"github.com/Kilat-Pet-Delivery/service-boarding/pkg/domain"
)

// PaymentModel is the GORM persistence model for the payments table.
type PaymentModel struct {
	ID                    uuid.UUID  `gorm:"type:uuid;primaryKey"`
	BookingID             uuid.UUID  `gorm:"type:uuid;uniqueIndex;not null"`
	ClientID              uuid.UUID  `gorm:"type:uuid;not null;index"`
	Status                string     `gorm:"type:varchar(20);not null;default:'NONE';index"`
	AmountCents           int64      `gorm:"not null"`
	Currency              string     `gorm:"type:varchar(3);not null;default:'EUR'"`
	GatewayRef            string     `gorm:"type:varchar(255);index"`
	PaidAt                *time.Time `gorm:"type:timestamptz"`
	RefundedAt            *time.Time `gorm:"type:timestamptz"`
	RefundAmountCents     int64      `gorm:"not null;default:0"`
	RefundRef             string     `gorm:"type:varchar(255)"`
	FailureReason         string     `gorm:"type:text"`
	ReconciliationPending bool       `gorm:"not null;default:false;index"`
	ReconciliationNote    string     `gorm:"type:text"`
	Version               int64      `gorm:"not null;default:1"`
	CreatedAt             time.Time  `gorm:"type:timestamptz;not null;default:now()"`
	UpdatedAt             time.Time  `gorm:"type:timestamptz;not null;default:now()"`
}

// TableName specifies the table name for GORM.
func (PaymentModel) TableName() string {
	return "payments"
}

// PaymentRepositoryImpl is the GORM-based implementation of PaymentRepository.
type PaymentRepositoryImpl struct {
	db *gorm.DB
}

// NewPaymentRepository creates a new GORM-based payment repository.
func NewPaymentRepository(db *gorm.DB) *PaymentRepositoryImpl {
	return &PaymentRepositoryImpl{db: db}
}

// FindByID retrieves a payment by its unique ID.
func (r *PaymentRepositoryImpl) FindByID(ctx context.Context, id uuid.UUID) (*paymentDomain.Payment, error) {
	var model PaymentModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Payment", id.String())
		}
		return nil, err
	}
	return toPaymentDomain(&model), nil
}

// FindByBookingID retrieves a payment by the associated booking ID.
func (r *PaymentRepositoryImpl) FindByBookingID(ctx context.Context, bookingID uuid.UUID) (*paymentDomain.Payment, error) {
	var model PaymentModel
	if err := r.db.WithContext(ctx).Where("booking_id = ?", bookingID).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Payment", bookingID.String())
		}
		return nil, err
	}
	return toPaymentDomain(&model), nil
}

// FindByGatewayRef returns every payment carrying the gateway reference.
func (r *PaymentRepositoryImpl) FindByGatewayRef(ctx context.Context, ref string) ([]*paymentDomain.Payment, error) {
	var models []PaymentModel
	if err := r.db.WithContext(ctx).Where("gateway_ref = ?", ref).Find(&models).Error; err != nil {
		return nil, err
	}
	return toPaymentDomains(models), nil
}

// Save persists a new payment aggregate.
func (r *PaymentRepositoryImpl) Save(ctx context.Context, payment *paymentDomain.Payment) error {
	model := toPaymentModel(payment)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.NewConflictError("booking already has a payment")
		}
		return err
	}
	return nil
}

// Update persists changes to an existing payment with optimistic locking.
func (r *PaymentRepositoryImpl) Update(ctx context.Context, payment *paymentDomain.Payment) error {
	return updatePayment(r.db.WithContext(ctx), payment)
}

func updatePayment(db *gorm.DB, payment *paymentDomain.Payment) error {
	model := toPaymentModel(payment)
	previousVersion := payment.Version() - 1

	result := db.Model(&PaymentModel{}).
		Where("id = ? AND version = ?", model.ID, previousVersion).
		Select("*").
		Updates(model)

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return domain.NewConflictError("payment was modified by another transaction")
	}

	return nil
}

// ListAll retrieves all payments with pagination (admin).
func (r *PaymentRepositoryImpl) ListAll(ctx context.Context, page, limit int) ([]*paymentDomain.Payment, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&PaymentModel{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var models []PaymentModel
	offset := (page - 1) * limit
	if err := r.db.WithContext(ctx).Order("created_at DESC").Offset(offset).Limit(limit).Find(&models).Error; err != nil {
		return nil, 0, err
	}
	return toPaymentDomains(models), total, nil
}

// ListReconciliationPending returns payments flagged for manual follow-up.
func (r *PaymentRepositoryImpl) ListReconciliationPending(ctx context.Context) ([]*paymentDomain.Payment, error) {
	var models []PaymentModel
	if err := r.db.WithContext(ctx).
		Where("reconciliation_pending = ?", true).
		Order("updated_at ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	return toPaymentDomains(models), nil
}

// GetRevenueStats returns payment statistics (admin).
func (r *PaymentRepositoryImpl) GetRevenueStats(ctx context.Context) (int64, map[string]int64, error) {
	var captured int64
	if err := r.db.WithContext(ctx).Model(&PaymentModel{}).
		Where("status = ?", string(paymentDomain.StatusSucceeded)).
		Select("COALESCE(SUM(amount_cents), 0)").
		Scan(&captured).Error; err != nil {
		return 0, nil, err
	}

	type statusCount struct {
		Status string
		Count  int64
	}
	var results []statusCount
	if err := r.db.WithContext(ctx).Model(&PaymentModel{}).
		Select("status, count(*) as count").
		Group("status").
		Find(&results).Error; err != nil {
		return 0, nil, err
	}

	counts := make(map[string]int64)
	for _, sc := range results {
		counts[sc.Status] = sc.Count
	}
	return captured, counts, nil
}

func toPaymentDomains(models []PaymentModel) []*paymentDomain.Payment {
	payments := make([]*paymentDomain.Payment, len(models))
	for i := range models {
		payments[i] = toPaymentDomain(&models[i])
	}
	return payments
}

// toPaymentDomain maps a PaymentModel to the domain Payment aggregate.
func toPaymentDomain(model *PaymentModel) *paymentDomain.Payment {
	return paymentDomain.Reconstitute(
		model.ID,
		model.BookingID,
		model.ClientID,
		paymentDomain.Status(model.Status),
		model.AmountCents,
		model.Currency,
		model.GatewayRef,
		model.PaidAt,
		model.RefundedAt,
		model.RefundAmountCents,
		model.RefundRef,
		model.FailureReason,
		model.ReconciliationPending,
		model.ReconciliationNote,
		model.Version,
		model.CreatedAt,
		model.UpdatedAt,
	)
}

// toPaymentModel maps a domain Payment aggregate to a PaymentModel for persistence.
func toPaymentModel(p *paymentDomain.Payment) *PaymentModel {
	return &PaymentModel{
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
		RefundRef:             p.RefundRef(),
		FailureReason:         p.FailureReason(),
		ReconciliationPending: p.ReconciliationPending(),
		ReconciliationNote:    p.ReconciliationNote(),
		Version:               p.Version(),
		CreatedAt:             p.CreatedAt(),
		UpdatedAt:             p.UpdatedAt(),
	}
}
