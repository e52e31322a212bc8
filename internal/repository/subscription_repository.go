package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Kilat-Pet-Delivery/service-boarding/internal/domain/credit"
	"github.com/Kilat-Pet-Delivery/service-boarding/pkg/domain"
)

// SubscriptionModel is the GORM model for the subscriptions table.
type SubscriptionModel struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	ClientID    uuid.UUID `gorm:"type:uuid;not null;index"`
	Plan        string    `gorm:"type:varchar(20);not null"`
	PriceCents  int64     `gorm:"not null"`
	PeriodStart time.Time `gorm:"type:timestamptz;not null"`
	PeriodEnd   time.Time `gorm:"type:timestamptz;not null;index"`
	Status      string    `gorm:"type:varchar(20);not null;default:'active'"`
	AutoRenew   bool      `gorm:"not null;default:true"`
	Renewals    int       `gorm:"not null;default:0"`
	CreatedAt   time.Time `gorm:"type:timestamptz;not null"`
	UpdatedAt   time.Time `gorm:"type:timestamptz;not null"`
}

// TableName sets the table name.
func (SubscriptionModel) TableName() string { return "subscriptions" }

// GormSubscriptionRepository implements SubscriptionRepository using GORM.
type GormSubscriptionRepository struct {
	db *gorm.DB
}

// NewGormSubscriptionRepository creates a new GormSubscriptionRepository.
func NewGormSubscriptionRepository(db *gorm.DB) *GormSubscriptionRepository {
	return &GormSubscriptionRepository{db: db}
}

// SaveWithGrant persists a new subscription and its first credit batch.
func (r *GormSubscriptionRepository) SaveWithGrant(ctx context.Context, s *credit.Subscription, b *credit.Batch, tx *credit.Transaction) error {
	return r.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		model := toSubModel(s)
		if err := db.Create(&model).Error; err != nil {
			return err
		}
		return grant(db, b, tx)
	})
}

// Update updates a subscription.
func (r *GormSubscriptionRepository) Update(ctx context.Context, s *credit.Subscription) error {
	model := toSubModel(s)
	return r.db.WithContext(ctx).Save(&model).Error
}

// FindActiveByClientID returns a client's active subscriptions.
func (r *GormSubscriptionRepository) FindActiveByClientID(ctx context.Context, clientID uuid.UUID) ([]*credit.Subscription, error) {
	var models []SubscriptionModel
	if err := r.db.WithContext(ctx).
		Where("client_id = ? AND status = ?", clientID, string(credit.StatusActive)).
		Order("created_at DESC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	return toSubDomains(models), nil
}

// FindByID returns a subscription by ID.
func (r *GormSubscriptionRepository) FindByID(ctx context.Context, id uuid.UUID) (*credit.Subscription, error) {
	var model SubscriptionModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Subscription", id.String())
		}
		return nil, err
	}
	return toSubDomain(&model), nil
}

// FindDueForRenewal returns auto-renewing subscriptions whose period has ended.
func (r *GormSubscriptionRepository) FindDueForRenewal(ctx context.Context, now time.Time, limit int) ([]*credit.Subscription, error) {
	var models []SubscriptionModel
	if err := r.db.WithContext(ctx).
		Where("status = ? AND auto_renew = ? AND period_end <= ?", string(credit.StatusActive), true, now).
		Order("period_end ASC").
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, err
	}
	return toSubDomains(models), nil
}

// RenewWithGrant advances the period and grants the new batch atomically.
// The stored period end must still equal previousPeriodEnd.
func (r *GormSubscriptionRepository) RenewWithGrant(ctx context.Context, s *credit.Subscription, previousPeriodEnd time.Time, b *credit.Batch, tx *credit.Transaction) error {
	return r.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		res := db.Model(&SubscriptionModel{}).
			Where("id = ? AND period_end = ?", s.ID(), previousPeriodEnd).
			Updates(map[string]interface{}{
				"period_start": s.PeriodStart(),
				"period_end":   s.PeriodEnd(),
				"renewals":     s.Renewals(),
				"updated_at":   s.UpdatedAt(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.NewConflictError("subscription was already renewed")
		}
		return grant(db, b, tx)
	})
}

func toSubDomains(models []SubscriptionModel) []*credit.Subscription {
	out := make([]*credit.Subscription, len(models))
	for i := range models {
		out[i] = toSubDomain(&models[i])
	}
	return out
}

func toSubModel(s *credit.Subscription) SubscriptionModel {
	return SubscriptionModel{
		ID: s.ID(), ClientID: s.ClientID(), Plan: string(s.Plan()),
		PriceCents: s.PriceCents(), PeriodStart: s.PeriodStart(), PeriodEnd: s.PeriodEnd(),
		Status: string(s.Status()), AutoRenew: s.AutoRenew(), Renewals: s.Renewals(),
		CreatedAt: s.CreatedAt(), UpdatedAt: s.UpdatedAt(),
	}
}

func toSubDomain(m *SubscriptionModel) *credit.Subscription {
	return credit.ReconstructSubscription(
		m.ID, m.ClientID, credit.PlanType(m.Plan), m.PriceCents,
		m.PeriodStart, m.PeriodEnd, credit.SubStatus(m.Status), m.AutoRenew, m.Renewals,
		m.CreatedAt, m.UpdatedAt,
	)
}
