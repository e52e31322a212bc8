package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Kilat-Pet-Delivery/service-boarding/internal/domain/calendar"
	"github.com/Kilat-Pet-Delivery/service-boarding/internal/domain/catalog"
	"github.com/Kilat-Pet-Delivery/service-boarding/pkg/domain"
)

// AvailabilityModel is the GORM model for the availabilities table.
type AvailabilityModel struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	Date        time.Time `gorm:"type:timestamptz;not null;uniqueIndex:idx_availability_day"`
	ServiceType string    `gorm:"type:varchar(20);not null;uniqueIndex:idx_availability_day"`
	Available   bool      `gorm:"not null"`
	MaxSlots    int       `gorm:"not null;default:0"`
	Notes       string    `gorm:"type:text"`
	CreatedAt   time.Time `gorm:"type:timestamptz;not null"`
	UpdatedAt   time.Time `gorm:"type:timestamptz;not null"`
}

// TableName sets the table name.
func (AvailabilityModel) TableName() string { return "availabilities" }

// GormAvailabilityRepository implements AvailabilityRepository using GORM.
type GormAvailabilityRepository struct {
	db *gorm.DB
}

// NewGormAvailabilityRepository creates a new GormAvailabilityRepository.
func NewGormAvailabilityRepository(db *gorm.DB) *GormAvailabilityRepository {
	return &GormAvailabilityRepository{db: db}
}

// FindRange returns explicit records between from and to inclusive.
func (r *GormAvailabilityRepository) FindRange(ctx context.Context, serviceType catalog.ServiceType, from, to time.Time) ([]*calendar.Availability, error) {
	var models []AvailabilityModel
	if err := r.db.WithContext(ctx).
		Where("service_type = ? AND date BETWEEN ? AND ?", string(serviceType), calendar.NormalizeDate(from), calendar.NormalizeDate(to)).
		Order("date ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]*calendar.Availability, len(models))
	for i := range models {
		out[i] = toAvailabilityDomain(&models[i])
	}
	return out, nil
}

// FindByDate returns the record for one day.
func (r *GormAvailabilityRepository) FindByDate(ctx context.Context, serviceType catalog.ServiceType, date time.Time) (*calendar.Availability, error) {
	var model AvailabilityModel
	err := r.db.WithContext(ctx).
		Where("service_type = ? AND date = ?", string(serviceType), calendar.NormalizeDate(date)).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Availability", calendar.DateKey(date))
		}
		return nil, err
	}
	return toAvailabilityDomain(&model), nil
}

// Upsert inserts the record or overwrites the one with the same day and service type.
func (r *GormAvailabilityRepository) Upsert(ctx context.Context, a *calendar.Availability) error {
	model := AvailabilityModel{
		ID:          a.ID(),
		Date:        a.Date(),
		ServiceType: string(a.ServiceType()),
		Available:   a.Available(),
		MaxSlots:    a.MaxSlots(),
		Notes:       a.Notes(),
		CreatedAt:   a.CreatedAt(),
		UpdatedAt:   a.UpdatedAt(),
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "date"}, {Name: "service_type"}},
		DoUpdates: clause.AssignmentColumns([]string{"available", "max_slots", "notes", "updated_at"}),
	}).Create(&model).Error
}

func toAvailabilityDomain(m *AvailabilityModel) *calendar.Availability {
	return calendar.Reconstruct(m.ID, m.Date, catalog.ServiceType(m.ServiceType),
		m.Available, m.MaxSlots, m.Notes, m.CreatedAt, m.UpdatedAt)
}
