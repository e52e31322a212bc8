package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	bookingDomain "github.com/Kilat-Pet-Delivery/service-boarding/internal/domain/booking"
	"github.com/Kilat-Pet-Delivery/service-boarding/internal/domain/catalog"
	"github.com/Kilat-Pet-Delivery/service-boarding/internal/domain/coupon"
	paymentDomain "github.com/Kilat-Pet-Delivery/service-boarding/internal/domain/payment"
	"github.com/Kilat-Pet-Delivery/service-boarding/internal/domain/pricing"
	"github.com/Kilat-Pet-Delivery/service-boarding/pkg/domain"
)

// BookingModel is the GORM persistence model for the bookings table.
type BookingModel struct {
	ID            uuid.UUID  `gorm:"type:uuid;primaryKey"`
	ClientID      uuid.UUID  `gorm:"type:uuid;not null;index"`
	ServiceType   string     `gorm:"type:varchar(20);not null"`
	StartDate     time.Time  `gorm:"type:timestamptz;not null;index"`
	EndDate       time.Time  `gorm:"type:timestamptz;not null;index"`
	StartAt       *time.Time `gorm:"type:timestamptz"`
	EndAt         *time.Time `gorm:"type:timestamptz"`
	Visits        string     `gorm:"type:jsonb;not null;default:'[]'"`
	Breakdown     string     `gorm:"type:jsonb;not null;default:'{}'"`
	SubtotalCents int64      `gorm:"not null"`
	DiscountCents int64      `gorm:"not null;default:0"`
	TotalCents    int64      `gorm:"not null"`
	DepositCents  int64      `gorm:"not null;default:0"`
	Currency      string     `gorm:"type:varchar(3);not null"`
	CouponID      *uuid.UUID `gorm:"type:uuid"`
	CouponCode    string     `gorm:"type:varchar(50)"`
	Settlement    string     `gorm:"type:varchar(10);not null;default:'CARD'"`
	PriceLocked   bool       `gorm:"not null;default:false"`
	Status        string     `gorm:"type:varchar(20);not null;index"`
	Notes         string     `gorm:"type:text"`
	CancelReason  string     `gorm:"type:text"`
	CancelledBy   *uuid.UUID `gorm:"type:uuid"`
	ConfirmedAt   *time.Time `gorm:"type:timestamptz"`
	CancelledAt   *time.Time `gorm:"type:timestamptz"`
	StartedAt     *time.Time `gorm:"type:timestamptz"`
	CompletedAt   *time.Time `gorm:"type:timestamptz"`
	Version       int64      `gorm:"not null;default:1"`
	CreatedAt     time.Time  `gorm:"type:timestamptz;not null;index"`
	UpdatedAt     time.Time  `gorm:"type:timestamptz;not null"`
}

// TableName specifies the table name for GORM.
func (BookingModel) TableName() string { return "bookings" }

// BookingPetModel is the many-to-many join between bookings and pets.
type BookingPetModel struct {
	BookingID uuid.UUID `gorm:"type:uuid;primaryKey"`
	PetID     uuid.UUID `gorm:"type:uuid;primaryKey;index"`
}

// TableName specifies the table name for GORM.
func (BookingPetModel) TableName() string { return "booking_pets" }

// GormBookingRepository is the GORM-based implementation of BookingRepository.
type GormBookingRepository struct {
	db *gorm.DB
}

// NewGormBookingRepository creates a new GormBookingRepository.
func NewGormBookingRepository(db *gorm.DB) *GormBookingRepository {
	return &GormBookingRepository{db: db}
}

// FindByID retrieves a booking with its pets.
func (r *GormBookingRepository) FindByID(ctx context.Context, id uuid.UUID) (*bookingDomain.Booking, error) {
	var model BookingModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Booking", id.String())
		}
		return nil, err
	}
	out, err := r.hydrate(ctx, r.db, []BookingModel{model})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// List returns bookings matching filter, newest first.
func (r *GormBookingRepository) List(ctx context.Context, filter bookingDomain.ListFilter) ([]*bookingDomain.Booking, int64, error) {
	q := r.db.WithContext(ctx).Model(&BookingModel{})
	if filter.ClientID != nil {
		q = q.Where("client_id = ?", *filter.ClientID)
	}
	if filter.Status != nil {
		q = q.Where("status = ?", string(*filter.Status))
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page, limit := filter.Page, filter.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	var models []BookingModel
	if err := q.Order("created_at DESC").Offset((page - 1) * limit).Limit(limit).Find(&models).Error; err != nil {
		return nil, 0, err
	}
	out, err := r.hydrate(ctx, r.db, models)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// FindConflicts returns bookings in statuses sharing a pet with petIDs whose
// span overlaps [start, end] inclusively.
func (r *GormBookingRepository) FindConflicts(ctx context.Context, petIDs []uuid.UUID, start, end time.Time, statuses []bookingDomain.Status, excludeID uuid.UUID) ([]*bookingDomain.Booking, error) {
	return r.findConflicts(ctx, r.db, petIDs, start, end, statuses, excludeID)
}

func (r *GormBookingRepository) findConflicts(ctx context.Context, db *gorm.DB, petIDs []uuid.UUID, start, end time.Time, statuses []bookingDomain.Status, excludeID uuid.UUID) ([]*bookingDomain.Booking, error) {
	if len(petIDs) == 0 || len(statuses) == 0 {
		return nil, nil
	}
	var models []BookingModel
	err := db.WithContext(ctx).
		Model(&BookingModel{}).
		Select("DISTINCT bookings.*").
		Joins("JOIN booking_pets bp ON bp.booking_id = bookings.id").
		Where("bp.pet_id IN ?", petIDs).
		Where("bookings.status IN ?", statusStrings(statuses)).
		Where("bookings.id <> ?", excludeID).
		Where("bookings.start_date <= ? AND bookings.end_date >= ?", end, start).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return r.hydrate(ctx, db, models)
}

// CreateWithNoOverlap inserts a PENDING booking after locking its pets and
// rejecting blocking overlaps, consuming the coupon use in the same transaction.
func (r *GormBookingRepository) CreateWithNoOverlap(ctx context.Context, b *bookingDomain.Booking, usage *coupon.Usage) error {
	model, err := toBookingModel(b)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockPets(tx, b.PetIDs()); err != nil {
			return err
		}
		if err := r.rejectConflicts(ctx, tx, b); err != nil {
			return err
		}

		if usage != nil {
			res := tx.Exec(
				"UPDATE coupons SET current_uses = current_uses + 1, updated_at = ? WHERE id = ? AND is_active = TRUE AND (max_uses IS NULL OR current_uses < max_uses)",
				time.Now().UTC(), usage.CouponID,
			)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return domain.NewConflictError("coupon usage limit reached")
			}
			if err := tx.Create(toUsageModel(usage)).Error; err != nil {
				return err
			}
		}

		if err := tx.Create(model).Error; err != nil {
			return err
		}
		return tx.Create(bookingPetRows(b)).Error
	})
}

// Update persists booking changes with optimistic locking.
func (r *GormBookingRepository) Update(ctx context.Context, b *bookingDomain.Booking) error {
	return updateBooking(r.db.WithContext(ctx), b)
}

// ConfirmWithPayment re-checks blocking overlaps under the pet locks, then
// persists the booking and its payment together.
func (r *GormBookingRepository) ConfirmWithPayment(ctx context.Context, b *bookingDomain.Booking, p *paymentDomain.Payment) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockPets(tx, b.PetIDs()); err != nil {
			return err
		}
		if err := r.rejectConflicts(ctx, tx, b); err != nil {
			return err
		}
		if err := updateBooking(tx, b); err != nil {
			return err
		}
		if p != nil {
			return updatePayment(tx, p)
		}
		return nil
	})
}

// SaveCancellation persists a cancelled booking and its payment together.
func (r *GormBookingRepository) SaveCancellation(ctx context.Context, b *bookingDomain.Booking, p *paymentDomain.Payment) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := updateBooking(tx, b); err != nil {
			return err
		}
		if p != nil {
			return updatePayment(tx, p)
		}
		return nil
	})
}

// FindStalePending returns card-settled PENDING bookings created before
// cutoff that never got a payment row.
func (r *GormBookingRepository) FindStalePending(ctx context.Context, cutoff time.Time, limit int) ([]*bookingDomain.Booking, error) {
	var models []BookingModel
	err := r.db.WithContext(ctx).
		Where("status = ? AND settlement = ? AND created_at < ?",
			string(bookingDomain.StatusPending), string(bookingDomain.SettlementCard), cutoff).
		Where("NOT EXISTS (SELECT 1 FROM payments p WHERE p.booking_id = bookings.id)").
		Order("created_at ASC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return r.hydrate(ctx, r.db, models)
}

// FindStuckProcessing returns PENDING bookings whose payment has stayed
// PROCESSING since before cutoff.
func (r *GormBookingRepository) FindStuckProcessing(ctx context.Context, cutoff time.Time, limit int) ([]*bookingDomain.Booking, error) {
	var models []BookingModel
	err := r.db.WithContext(ctx).
		Model(&BookingModel{}).
		Select("bookings.*").
		Joins("JOIN payments p ON p.booking_id = bookings.id").
		Where("bookings.status = ? AND p.status = ? AND p.updated_at < ?",
			string(bookingDomain.StatusPending), string(paymentDomain.StatusProcessing), cutoff).
		Order("bookings.created_at ASC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return r.hydrate(ctx, r.db, models)
}

// DeletePending hard-deletes a booking that is still PENDING together with
// its pets and payment, provided the payment still matches cond.
func (r *GormBookingRepository) DeletePending(ctx context.Context, id uuid.UUID, cond bookingDomain.DeleteCondition) (bool, error) {
	deleted := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var model BookingModel
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ? AND status = ?", id, string(bookingDomain.StatusPending)).
			First(&model).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		var pm PaymentModel
		err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("booking_id = ?", id).
			First(&pm).Error
		hasPayment := err == nil
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if !cond.Allows(hasPayment, paymentDomain.Status(pm.Status), pm.UpdatedAt) {
			return nil
		}

		if err := tx.Where("booking_id = ?", id).Delete(&PaymentModel{}).Error; err != nil {
			return err
		}
		if err := tx.Where("booking_id = ?", id).Delete(&BookingPetModel{}).Error; err != nil {
			return err
		}
		if err := tx.Where("id = ?", id).Delete(&BookingModel{}).Error; err != nil {
			return err
		}
		deleted = true
		return nil
	})
	return deleted, err
}

func (r *GormBookingRepository) rejectConflicts(ctx context.Context, tx *gorm.DB, b *bookingDomain.Booking) error {
	conflicts, err := r.findConflicts(ctx, tx, b.PetIDs(), b.StartDate(), b.EndDate(), bookingDomain.BlockingStatuses, b.ID())
	if err != nil {
		return err
	}
	for _, other := range conflicts {
		if b.ConflictsWith(other) {
			return &domain.DomainError{
				Err:     domain.ErrConflict,
				Message: "pet already has a confirmed booking overlapping these dates",
				Details: map[string]interface{}{"conflicting_booking_id": other.ID().String()},
			}
		}
	}
	return nil
}

// lockPets takes row locks on the pets in a stable order so concurrent
// bookings for the same animal serialize instead of deadlocking.
func lockPets(tx *gorm.DB, petIDs []uuid.UUID) error {
	var pets []PetModel
	return tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", petIDs).
		Order("id").
		Find(&pets).Error
}

func updateBooking(db *gorm.DB, b *bookingDomain.Booking) error {
	model, err := toBookingModel(b)
	if err != nil {
		return err
	}
	result := db.Model(&BookingModel{}).
		Where("id = ? AND version = ?", model.ID, b.Version()-1).
		Select("*").
		Updates(model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.NewConflictError("booking was modified by another transaction")
	}
	return nil
}

// hydrate attaches pet IDs and decodes JSON columns.
func (r *GormBookingRepository) hydrate(ctx context.Context, db *gorm.DB, models []BookingModel) ([]*bookingDomain.Booking, error) {
	if len(models) == 0 {
		return nil, nil
	}
	ids := make([]uuid.UUID, len(models))
	for i, m := range models {
		ids[i] = m.ID
	}
	var rows []BookingPetModel
	if err := db.WithContext(ctx).Where("booking_id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	pets := make(map[uuid.UUID][]uuid.UUID, len(models))
	for _, row := range rows {
		pets[row.BookingID] = append(pets[row.BookingID], row.PetID)
	}

	out := make([]*bookingDomain.Booking, len(models))
	for i := range models {
		b, err := toBookingDomain(&models[i], pets[models[i].ID])
		if err != nil {
			return nil, err
		}
		out[i] = b
	}
	return out, nil
}

func statusStrings(statuses []bookingDomain.Status) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func bookingPetRows(b *bookingDomain.Booking) []BookingPetModel {
	rows := make([]BookingPetModel, len(b.PetIDs()))
	for i, p := range b.PetIDs() {
		rows[i] = BookingPetModel{BookingID: b.ID(), PetID: p}
	}
	return rows
}

func toBookingModel(b *bookingDomain.Booking) (*BookingModel, error) {
	visits := b.Visits()
	if visits == nil {
		visits = []pricing.Occurrence{}
	}
	visitsJSON, err := json.Marshal(visits)
	if err != nil {
		return nil, fmt.Errorf("failed to encode visits: %w", err)
	}
	breakdownJSON, err := json.Marshal(b.Breakdown())
	if err != nil {
		return nil, fmt.Errorf("failed to encode breakdown: %w", err)
	}
	return &BookingModel{
		ID:            b.ID(),
		ClientID:      b.ClientID(),
		ServiceType:   string(b.ServiceType()),
		StartDate:     b.StartDate(),
		EndDate:       b.EndDate(),
		StartAt:       b.StartAt(),
		EndAt:         b.EndAt(),
		Visits:        string(visitsJSON),
		Breakdown:     string(breakdownJSON),
		SubtotalCents: b.SubtotalCents(),
		DiscountCents: b.DiscountCents(),
		TotalCents:    b.TotalCents(),
		DepositCents:  b.DepositCents(),
		Currency:      b.Currency(),
		CouponID:      b.CouponID(),
		CouponCode:    b.CouponCode(),
		Settlement:    string(b.Settlement()),
		PriceLocked:   b.PriceLocked(),
		Status:        string(b.Status()),
		Notes:         b.Notes(),
		CancelReason:  b.CancelReason(),
		CancelledBy:   b.CancelledBy(),
		ConfirmedAt:   b.ConfirmedAt(),
		CancelledAt:   b.CancelledAt(),
		StartedAt:     b.StartedAt(),
		CompletedAt:   b.CompletedAt(),
		Version:       b.Version(),
		CreatedAt:     b.CreatedAt(),
		UpdatedAt:     b.UpdatedAt(),
	}, nil
}

func toBookingDomain(m *BookingModel, petIDs []uuid.UUID) (*bookingDomain.Booking, error) {
	var visits []pricing.Occurrence
	if err := json.Unmarshal([]byte(m.Visits), &visits); err != nil {
		return nil, fmt.Errorf("failed to decode visits of booking %s: %w", m.ID, err)
	}
	var bd pricing.Breakdown
	if err := json.Unmarshal([]byte(m.Breakdown), &bd); err != nil {
		return nil, fmt.Errorf("failed to decode breakdown of booking %s: %w", m.ID, err)
	}
	return bookingDomain.Reconstitute(bookingDomain.Snapshot{
		ID:            m.ID,
		ClientID:      m.ClientID,
		PetIDs:        petIDs,
		ServiceType:   catalog.ServiceType(m.ServiceType),
		StartDate:     m.StartDate,
		EndDate:       m.EndDate,
		StartAt:       m.StartAt,
		EndAt:         m.EndAt,
		Visits:        visits,
		Breakdown:     bd,
		SubtotalCents: m.SubtotalCents,
		DiscountCents: m.DiscountCents,
		TotalCents:    m.TotalCents,
		DepositCents:  m.DepositCents,
		Currency:      m.Currency,
		CouponID:      m.CouponID,
		CouponCode:    m.CouponCode,
		Settlement:    bookingDomain.Settlement(m.Settlement),
		PriceLocked:   m.PriceLocked,
		Status:        bookingDomain.Status(m.Status),
		Notes:         m.Notes,
		CancelReason:  m.CancelReason,
		CancelledBy:   m.CancelledBy,
		ConfirmedAt:   m.ConfirmedAt,
		CancelledAt:   m.CancelledAt,
		StartedAt:     m.StartedAt,
		CompletedAt:   m.CompletedAt,
		Version:       m.Version,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}), nil
}
