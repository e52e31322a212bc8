package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	clientDomain "github.com/Kilat-Pet-Delivery/service-boarding/internal/domain/client"
	"github.com/Kilat-Pet-Delivery/service-boarding/pkg/domain"
)

// ClientModel is the GORM model for the clients table.
type ClientModel struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey"`
	Email          string    `gorm:"type:varchar(255);uniqueIndex;not null"`
	Name           string    `gorm:"type:varchar(255)"`
	CustomerRef    string    `gorm:"type:varchar(255)"`
	InstrumentRef  string    `gorm:"type:varchar(255)"`
	CardBrand      string    `gorm:"type:varchar(50)"`
	CardLast4      string    `gorm:"type:varchar(4)"`
	AutoCouponCode string    `gorm:"type:varchar(50)"`
	Version        int64     `gorm:"not null;default:1"`
	CreatedAt      time.Time `gorm:"type:timestamptz;not null"`
	UpdatedAt      time.Time `gorm:"type:timestamptz;not null"`
}

// TableName sets the table name.
func (ClientModel) TableName() string { return "clients" }

// PetModel is the GORM model for the pets table. Booking creation locks pet
// rows to serialize overlapping requests for the same animal.
type PetModel struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey"`
	OwnerID   uuid.UUID  `gorm:"type:uuid;not null;index"`
	Name      string     `gorm:"type:varchar(255);not null"`
	Species   string     `gorm:"type:varchar(50)"`
	BirthDate *time.Time `gorm:"type:date"`
	CreatedAt time.Time  `gorm:"type:timestamptz;not null;default:now()"`
}

// TableName sets the table name.
func (PetModel) TableName() string { return "pets" }

// GormClientRepository implements ClientRepository using GORM.
type GormClientRepository struct {
	db *gorm.DB
}

// NewGormClientRepository creates a new GormClientRepository.
func NewGormClientRepository(db *gorm.DB) *GormClientRepository {
	return &GormClientRepository{db: db}
}

// FindByID retrieves a client.
func (r *GormClientRepository) FindByID(ctx context.Context, id uuid.UUID) (*clientDomain.Client, error) {
	var m ClientModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Client", id.String())
		}
		return nil, err
	}
	return clientDomain.Reconstruct(m.ID, m.Email, m.Name, m.CustomerRef, m.InstrumentRef,
		m.CardBrand, m.CardLast4, m.AutoCouponCode, m.Version, m.CreatedAt, m.UpdatedAt), nil
}

// Save persists a new client.
func (r *GormClientRepository) Save(ctx context.Context, c *clientDomain.Client) error {
	if err := r.db.WithContext(ctx).Create(toClientModel(c)).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.NewConflictError("client email already registered")
		}
		return err
	}
	return nil
}

// Update persists a client with optimistic locking.
func (r *GormClientRepository) Update(ctx context.Context, c *clientDomain.Client) error {
	model := toClientModel(c)
	result := r.db.WithContext(ctx).
		Model(&ClientModel{}).
		Where("id = ? AND version = ?", model.ID, c.Version()-1).
		Select("*").
		Updates(model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.NewConflictError("client was modified by another transaction")
	}
	return nil
}

// FindPets returns the pets with the given IDs. Unknown IDs are omitted.
func (r *GormClientRepository) FindPets(ctx context.Context, ids []uuid.UUID) ([]clientDomain.Pet, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var models []PetModel
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&models).Error; err != nil {
		return nil, err
	}
	return toPets(models), nil
}

// ListPets returns an owner's pets.
func (r *GormClientRepository) ListPets(ctx context.Context, ownerID uuid.UUID) ([]clientDomain.Pet, error) {
	var models []PetModel
	if err := r.db.WithContext(ctx).Where("owner_id = ?", ownerID).Order("name ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	return toPets(models), nil
}

func toPets(models []PetModel) []clientDomain.Pet {
	pets := make([]clientDomain.Pet, len(models))
	for i, m := range models {
		pets[i] = clientDomain.Pet{ID: m.ID, OwnerID: m.OwnerID, Name: m.Name, Species: m.Species, BirthDate: m.BirthDate}
	}
	return pets
}

func toClientModel(c *clientDomain.Client) *ClientModel {
	return &ClientModel{
		ID:             c.ID(),
		Email:          c.Email(),
		Name:           c.Name(),
		CustomerRef:    c.CustomerRef(),
		InstrumentRef:  c.InstrumentRef(),
		CardBrand:      c.CardBrand(),
		CardLast4:      c.CardLast4(),
		AutoCouponCode: c.AutoCouponCode(),
		Version:        c.Version(),
		CreatedAt:      c.CreatedAt(),
		UpdatedAt:      c.UpdatedAt(),
	}
}
