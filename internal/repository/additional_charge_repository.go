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

// AdditionalChargeModel is the GORM model for the additional_charges table.
type AdditionalChargeModel struct {
	ID            uuid.UUID  `gorm:"type:uuid;primaryKey"`
	BookingID     uuid.UUID  `gorm:"type:uuid;not null;index"`
	ClientID      uuid.UUID  `gorm:"type:uuid;not null;index"`
	AmountCents   int64      `gorm:"not null"`
	Currency      string     `gorm:"type:varchar(3);not null"`
	Reason        string     `gorm:"type:text;not null"`
	Status        string     `gorm:"type:varchar(20);not null"`
	GatewayRef    string     `gorm:"type:varchar(255);index"`
	FailureReason string     `gorm:"type:text"`
	Declined      bool       `gorm:"not null;default:false"`
	ChargedAt     *time.Time `gorm:"type:timestamptz"`
	Version       int64      `gorm:"not null;default:1"`
	CreatedAt     time.Time  `gorm:"type:timestamptz;not null"`
	UpdatedAt     time.Time  `gorm:"type:timestamptz;not null"`
}

// TableName sets the table name.
func (AdditionalChargeModel) TableName() string { return "additional_charges" }

// GormAdditionalChargeRepository implements AdditionalChargeRepository using GORM.
type GormAdditionalChargeRepository struct {
	db *gorm.DB
}

// NewGormAdditionalChargeRepository creates a new GormAdditionalChargeRepository.
func NewGormAdditionalChargeRepository(db *gorm.DB) *GormAdditionalChargeRepository {
	return &GormAdditionalChargeRepository{db: db}
}

// Save persists a new charge.
func (r *GormAdditionalChargeRepository) Save(ctx context.Context, c *paymentDomain.AdditionalCharge) error {
	return r.db.WithContext(ctx).Create(toChargeModel(c)).Error
}

// Update persists a charge with optimistic locking.
func (r *GormAdditionalChargeRepository) Update(ctx context.Context, c *paymentDomain.AdditionalCharge) error {
	model := toChargeModel(c)
	result := r.db.WithContext(ctx).
		Model(&AdditionalChargeModel{}).
		Where("id = ? AND version = ?", model.ID, c.Version()-1).
		Select("*").
		Updates(model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.NewConflictError("additional charge was modified by another transaction")
	}
	return nil
}

// FindByID retrieves a charge by ID.
func (r *GormAdditionalChargeRepository) FindByID(ctx context.Context, id uuid.UUID) (*paymentDomain.AdditionalCharge, error) {
	var model AdditionalChargeModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("AdditionalCharge", id.String())
		}
		return nil, err
	}
	return toChargeDomain(&model), nil
}

// FindByGatewayRef retrieves a charge by its gateway reference.
func (r *GormAdditionalChargeRepository) FindByGatewayRef(ctx context.Context, ref string) (*paymentDomain.AdditionalCharge, error) {
	var model AdditionalChargeModel
	if err := r.db.WithContext(ctx).Where("gateway_ref = ?", ref).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("AdditionalCharge", ref)
		}
		return nil, err
	}
	return toChargeDomain(&model), nil
}

// ListByBooking returns a booking's charges, oldest first.
func (r *GormAdditionalChargeRepository) ListByBooking(ctx context.Context, bookingID uuid.UUID) ([]*paymentDomain.AdditionalCharge, error) {
	var models []AdditionalChargeModel
	if err := r.db.WithContext(ctx).Where("booking_id = ?", bookingID).Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]*paymentDomain.AdditionalCharge, len(models))
	for i := range models {
		out[i] = toChargeDomain(&models[i])
	}
	return out, nil
}

func toChargeModel(c *paymentDomain.AdditionalCharge) *AdditionalChargeModel {
	return &AdditionalChargeModel{
		ID:            c.ID(),
		BookingID:     c.BookingID(),
		ClientID:      c.ClientID(),
		AmountCents:   c.AmountCents(),
		Currency:      c.Currency(),
		Reason:        c.Reason(),
		Status:        string(c.Status()),
		GatewayRef:    c.GatewayRef(),
		FailureReason: c.FailureReason(),
		Declined:      c.Declined(),
		ChargedAt:     c.ChargedAt(),
		Version:       c.Version(),
		CreatedAt:     c.CreatedAt(),
		UpdatedAt:     c.UpdatedAt(),
	}
}

func toChargeDomain(m *AdditionalChargeModel) *paymentDomain.AdditionalCharge {
	return paymentDomain.ReconstituteCharge(
		m.ID, m.BookingID, m.ClientID,
		m.AmountCents, m.Currency, m.Reason,
		paymentDomain.ChargeStatus(m.Status), m.GatewayRef, m.FailureReason, m.Declined,
		m.ChargedAt, m.Version, m.CreatedAt, m.UpdatedAt,
	)
}
