package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Kilat-Pet-Delivery/service-boarding/internal/domain/catalog"
	couponDomain "github.com/Kilat-Pet-Delivery/service-boarding/internal/domain/coupon"
	"github.com/Kilat-Pet-Delivery/service-boarding/pkg/domain"
)

// CouponModel is the GORM model for the coupons table. List-valued fields are
// stored comma separated; neither e-mails nor service types contain commas.
type CouponModel struct {
	ID                 uuid.UUID  `gorm:"type:uuid;primaryKey"`
	Code               string     `gorm:"type:varchar(50);uniqueIndex;not null"`
	Description        string     `gorm:"type:text"`
	DiscountType       string     `gorm:"type:varchar(20);not null"`
	DiscountValue      int64      `gorm:"not null"`
	MinAmountCents     *int64     `gorm:""`
	MaxUses            *int       `gorm:""`
	CurrentUses        int        `gorm:"not null;default:0"`
	ValidFrom          *time.Time `gorm:"type:timestamptz"`
	ValidUntil         *time.Time `gorm:"type:timestamptz"`
	RestrictedToEmails string     `gorm:"type:text;not null;default:''"`
	ServiceTypes       string     `gorm:"type:text;not null;default:''"`
	IsActive           bool       `gorm:"not null;default:true"`
	CreatedBy          uuid.UUID  `gorm:"type:uuid;not null"`
	CreatedAt          time.Time  `gorm:"type:timestamptz;not null"`
	UpdatedAt          time.Time  `gorm:"type:timestamptz;not null"`
}

// TableName sets the table name.
func (CouponModel) TableName() string { return "coupons" }

// CouponUsageModel is the GORM model for the coupon_usages table.
type CouponUsageModel struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey"`
	CouponID      uuid.UUID `gorm:"type:uuid;not null;index"`
	ClientID      uuid.UUID `gorm:"type:uuid;not null;index"`
	BookingID     uuid.UUID `gorm:"type:uuid;not null"`
	DiscountCents int64     `gorm:"not null"`
	UsedAt        time.Time `gorm:"type:timestamptz;not null"`
}

// TableName sets the table name.
func (CouponUsageModel) TableName() string { return "coupon_usages" }

// GormCouponRepository implements CouponRepository using GORM.
type GormCouponRepository struct {
	db *gorm.DB
}

// NewGormCouponRepository creates a new GormCouponRepository.
func NewGormCouponRepository(db *gorm.DB) *GormCouponRepository {
	return &GormCouponRepository{db: db}
}

// Save persists a new coupon.
func (r *GormCouponRepository) Save(ctx context.Context, c *couponDomain.Coupon) error {
	model := toCouponModel(c)
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.NewConflictError("coupon code already exists")
		}
		return err
	}
	return nil
}

// Update writes the mutable coupon fields. The usage counter is only ever
// changed by the guarded increment in booking creation.
func (r *GormCouponRepository) Update(ctx context.Context, c *couponDomain.Coupon) error {
	result := r.db.WithContext(ctx).
		Model(&CouponModel{}).
		Where("id = ?", c.ID()).
		Updates(map[string]interface{}{
			"description": c.Description(),
			"is_active":   c.IsActive(),
			"updated_at":  c.UpdatedAt(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.NewNotFoundError("Coupon", c.ID().String())
	}
	return nil
}

// FindByCode returns a coupon by its normalized code.
func (r *GormCouponRepository) FindByCode(ctx context.Context, code string) (*couponDomain.Coupon, error) {
	var model CouponModel
	if err := r.db.WithContext(ctx).Where("code = ?", couponDomain.NormalizeCode(code)).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Coupon", code)
		}
		return nil, err
	}
	return toCouponDomain(&model), nil
}

// FindByID returns a coupon by ID.
func (r *GormCouponRepository) FindByID(ctx context.Context, id uuid.UUID) (*couponDomain.Coupon, error) {
	var model CouponModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Coupon", id.String())
		}
		return nil, err
	}
	return toCouponDomain(&model), nil
}

// FindActive returns all currently usable coupons.
func (r *GormCouponRepository) FindActive(ctx context.Context) ([]*couponDomain.Coupon, error) {
	var models []CouponModel
	now := time.Now().UTC()
	if err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Where("valid_from IS NULL OR valid_from <= ?", now).
		Where("valid_until IS NULL OR valid_until >= ?", now).
		Where("max_uses IS NULL OR current_uses < max_uses").
		Order("code ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}

	coupons := make([]*couponDomain.Coupon, len(models))
	for i := range models {
		coupons[i] = toCouponDomain(&models[i])
	}
	return coupons, nil
}

// ListUsages returns a coupon's redemptions, newest first.
func (r *GormCouponRepository) ListUsages(ctx context.Context, couponID uuid.UUID) ([]*couponDomain.Usage, error) {
	var models []CouponUsageModel
	if err := r.db.WithContext(ctx).Where("coupon_id = ?", couponID).Order("used_at DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	usages := make([]*couponDomain.Usage, len(models))
	for i, m := range models {
		usages[i] = &couponDomain.Usage{
			ID:            m.ID,
			CouponID:      m.CouponID,
			ClientID:      m.ClientID,
			BookingID:     m.BookingID,
			DiscountCents: m.DiscountCents,
			UsedAt:        m.UsedAt,
		}
	}
	return usages, nil
}

func toUsageModel(u *couponDomain.Usage) *CouponUsageModel {
	return &CouponUsageModel{
		ID:            u.ID,
		CouponID:      u.CouponID,
		ClientID:      u.ClientID,
		BookingID:     u.BookingID,
		DiscountCents: u.DiscountCents,
		UsedAt:        u.UsedAt,
	}
}

func toCouponModel(c *couponDomain.Coupon) CouponModel {
	types := make([]string, len(c.ServiceTypes()))
	for i, st := range c.ServiceTypes() {
		types[i] = string(st)
	}
	return CouponModel{
		ID:                 c.ID(),
		Code:               c.Code(),
		Description:        c.Description(),
		DiscountType:       string(c.DiscountType()),
		DiscountValue:      c.DiscountValue(),
		MinAmountCents:     c.MinAmountCents(),
		MaxUses:            c.MaxUses(),
		CurrentUses:        c.CurrentUses(),
		ValidFrom:          c.ValidFrom(),
		ValidUntil:         c.ValidUntil(),
		RestrictedToEmails: strings.Join(c.RestrictedToEmails(), ","),
		ServiceTypes:       strings.Join(types, ","),
		IsActive:           c.IsActive(),
		CreatedBy:          c.CreatedBy(),
		CreatedAt:          c.CreatedAt(),
		UpdatedAt:          c.UpdatedAt(),
	}
}

func toCouponDomain(m *CouponModel) *couponDomain.Coupon {
	var types []catalog.ServiceType
	for _, s := range splitList(m.ServiceTypes) {
		types = append(types, catalog.ServiceType(s))
	}
	return couponDomain.Reconstruct(
		m.ID, m.Code, m.Description,
		couponDomain.DiscountType(m.DiscountType), m.DiscountValue,
		m.MinAmountCents, m.MaxUses, m.CurrentUses,
		m.ValidFrom, m.ValidUntil,
		splitList(m.RestrictedToEmails), types,
		m.IsActive, m.CreatedBy, m.CreatedAt, m.UpdatedAt,
	)
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}
