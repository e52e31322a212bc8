package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Kilat-Pet-Delivery/service-boarding/internal/domain/catalog"
	"github.com/Kilat-Pet-Delivery/service-boarding/internal/domain/client"
	couponDomain "github.com/Kilat-Pet-Delivery/service-boarding/internal/domain/coupon"
	"github.com/Kilat-Pet-Delivery/service-boarding/pkg/domain"
)

// CreateCouponRequest holds data to create a coupon.
type CreateCouponRequest struct {
	Code               string     `json:"code" binding:"required"`
	Description        string     `json:"description"`
	DiscountType       string     `json:"discount_type" binding:"required"`
	DiscountValue      int64      `json:"discount_value" binding:"required"`
	MinAmountCents     *int64     `json:"min_amount_cents"`
	MaxUses            *int       `json:"max_uses"`
	ValidFrom          *time.Time `json:"valid_from"`
	ValidUntil         *time.Time `json:"valid_until"`
	RestrictedToEmails []string   `json:"restricted_to_emails"`
	ServiceTypes       []string   `json:"service_types"`
}

// ValidateCouponRequest holds data to validate a coupon against an amount.
type ValidateCouponRequest struct {
	Code        string `json:"code" binding:"required"`
	AmountCents int64  `json:"amount_cents" binding:"required,gt=0"`
	ServiceType string `json:"service_type" binding:"required"`
	Duration    int    `json:"duration"`
}

// CouponDTO is the API response representation of a coupon.
type CouponDTO struct {
	ID                 uuid.UUID  `json:"id"`
	Code               string     `json:"code"`
	Description        string     `json:"description,omitempty"`
	DiscountType       string     `json:"discount_type"`
	DiscountValue      int64      `json:"discount_value"`
	MinAmountCents     *int64     `json:"min_amount_cents,omitempty"`
	MaxUses            *int       `json:"max_uses,omitempty"`
	CurrentUses        int        `json:"current_uses"`
	ValidFrom          *time.Time `json:"valid_from,omitempty"`
	ValidUntil         *time.Time `json:"valid_until,omitempty"`
	RestrictedToEmails []string   `json:"restricted_to_emails,omitempty"`
	ServiceTypes       []string   `json:"service_types,omitempty"`
	IsActive           bool       `json:"is_active"`
	CreatedAt          time.Time  `json:"created_at"`
}

// CouponValidationDTO is the result of validating a coupon.
type CouponValidationDTO struct {
	Valid            bool       `json:"valid"`
	Code             string     `json:"code"`
	Reason           string     `json:"reason,omitempty"`
	Message          string     `json:"message,omitempty"`
	DiscountCents    int64      `json:"discount_cents"`
	FinalAmountCents int64      `json:"final_amount_cents"`
	Coupon           *CouponDTO `json:"coupon,omitempty"`
}

// CouponUsageDTO is one redemption of a coupon.
type CouponUsageDTO struct {
	ClientID      uuid.UUID `json:"client_id"`
	BookingID     uuid.UUID `json:"booking_id"`
	DiscountCents int64     `json:"discount_cents"`
	UsedAt        time.Time `json:"used_at"`
}

// CouponService handles coupon administration and evaluation.
type CouponService struct {
	repo    couponDomain.CouponRepository
	clients client.ClientRepository
	logger  *zap.Logger
}

// NewCouponService creates a new CouponService.
func NewCouponService(repo couponDomain.CouponRepository, clients client.ClientRepository, logger *zap.Logger) *CouponService {
	return &CouponService{repo: repo, clients: clients, logger: logger}
}

// CreateCoupon creates a new coupon (admin only).
func (s *CouponService) CreateCoupon(ctx context.Context, createdBy uuid.UUID, req CreateCouponRequest) (*CouponDTO, error) {
	serviceTypes := make([]catalog.ServiceType, 0, len(req.ServiceTypes))
	for _, raw := range req.ServiceTypes {
		st, err := catalog.ParseServiceType(raw)
		if err != nil {
			return nil, err
		}
		serviceTypes = append(serviceTypes, st)
	}

	c, err := couponDomain.NewCoupon(couponDomain.Params{
		Code:               req.Code,
		Description:        req.Description,
		DiscountType:       couponDomain.DiscountType(req.DiscountType),
		DiscountValue:      req.DiscountValue,
		MinAmountCents:     req.MinAmountCents,
		MaxUses:            req.MaxUses,
		ValidFrom:          req.ValidFrom,
		ValidUntil:         req.ValidUntil,
		RestrictedToEmails: req.RestrictedToEmails,
		ServiceTypes:       serviceTypes,
		CreatedBy:          createdBy,
	})
	if err != nil {
		return nil, err
	}

	if err := s.repo.Save(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to save coupon: %w", err)
	}

	s.logger.Info("coupon created", zap.String("code", c.Code()))
	return toCouponDTO(c), nil
}

// ValidateCoupon runs the evaluator for a client. A rejected coupon is a
// normal result, not an error.
func (s *CouponService) ValidateCoupon(ctx context.Context, clientID uuid.UUID, req ValidateCouponRequest) (*CouponValidationDTO, error) {
	st, err := catalog.ParseServiceType(req.ServiceType)
	if err != nil {
		return nil, err
	}

	var email string
	if c, err := s.clients.FindByID(ctx, clientID); err == nil {
		email = c.Email()
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	res, err := s.Evaluate(ctx, req.Code, couponDomain.Request{
		AmountCents: req.AmountCents,
		ServiceType: st,
		Duration:    req.Duration,
		Email:       email,
	})
	if err != nil {
		return nil, err
	}

	dto := &CouponValidationDTO{
		Valid:            res.Valid,
		Code:             couponDomain.NormalizeCode(req.Code),
		Reason:           string(res.Reason),
		Message:          res.Message,
		DiscountCents:    res.DiscountCents,
		FinalAmountCents: res.FinalAmountCents,
	}
	if res.Coupon != nil {
		dto.Coupon = toCouponDTO(res.Coupon)
	}
	return dto, nil
}

// Evaluate looks up code and evaluates it. Only store failures are returned
// as errors; an unknown code is a rejected result.
func (s *CouponService) Evaluate(ctx context.Context, code string, req couponDomain.Request) (couponDomain.Result, error) {
	c, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return couponDomain.Result{}, err
		}
		c = nil
	}
	return couponDomain.Evaluate(c, req), nil
}

// ListActiveCoupons returns all active coupons.
func (s *CouponService) ListActiveCoupons(ctx context.Context) ([]*CouponDTO, error) {
	coupons, err := s.repo.FindActive(ctx)
	if err != nil {
		return nil, err
	}
	dtos := make([]*CouponDTO, len(coupons))
	for i, c := range coupons {
		dtos[i] = toCouponDTO(c)
	}
	return dtos, nil
}

// DeactivateCoupon stops a coupon from validating (admin only).
func (s *CouponService) DeactivateCoupon(ctx context.Context, id uuid.UUID) (*CouponDTO, error) {
	c, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	c.Deactivate()
	if err := s.repo.Update(ctx, c); err != nil {
		return nil, err
	}
	s.logger.Info("coupon deactivated", zap.String("code", c.Code()))
	return toCouponDTO(c), nil
}

// ListUsages returns the redemptions of a coupon (admin only).
func (s *CouponService) ListUsages(ctx context.Context, id uuid.UUID) ([]CouponUsageDTO, error) {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return nil, err
	}
	usages, err := s.repo.ListUsages(ctx, id)
	if err != nil {
		return nil, err
	}
	out := make([]CouponUsageDTO, len(usages))
	for i, u := range usages {
		out[i] = CouponUsageDTO{ClientID: u.ClientID, BookingID: u.BookingID, DiscountCents: u.DiscountCents, UsedAt: u.UsedAt}
	}
	return out, nil
}

func toCouponDTO(c *couponDomain.Coupon) *CouponDTO {
	sts := make([]string, len(c.ServiceTypes()))
	for i, st := range c.ServiceTypes() {
		sts[i] = string(st)
	}
	return &CouponDTO{
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
		RestrictedToEmails: c.RestrictedToEmails(),
		ServiceTypes:       sts,
		IsActive:           c.IsActive(),
		CreatedAt:          c.CreatedAt(),
	}
}
