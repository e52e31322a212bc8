package application

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Kilat-Pet-Delivery/service-boarding/internal/adapter"
	"github.com/Kilat-Pet-Delivery/service-boarding/internal/domain/client"
	"github.com/Kilat-Pet-Delivery/service-boarding/pkg/domain"
)

// ClientDTO is the API response for a client profile.
type ClientDTO struct {
	ID             uuid.UUID `json:"id"`
	Email          string    `json:"email"`
	Name           string    `json:"name"`
	HasCard        bool      `json:"has_card"`
	CardBrand      string    `json:"card_brand,omitempty"`
	CardLast4      string    `json:"card_last4,omitempty"`
	AutoCouponCode string    `json:"auto_coupon_code,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// PetDTO is the API response for a pet.
type PetDTO struct {
	ID        uuid.UUID  `json:"id"`
	OwnerID   uuid.UUID  `json:"owner_id"`
	Name      string     `json:"name"`
	Species   string     `json:"species,omitempty"`
	BirthDate *time.Time `json:"birth_date,omitempty"`
}

// SetAutoCouponRequest attaches a VIP coupon to a client. An empty code clears it.
type SetAutoCouponRequest struct {
	Code string `json:"code"`
}

// ClientService handles the client and pet directory.
type ClientService struct {
	repo    client.ClientRepository
	gateway adapter.Gateway
	logger  *zap.Logger
}

// NewClientService creates a new ClientService.
func NewClientService(repo client.ClientRepository, gateway adapter.Gateway, logger *zap.Logger) *ClientService {
	return &ClientService{repo: repo, gateway: gateway, logger: logger}
}

// GetClient returns a client profile.
func (s *ClientService) GetClient(ctx context.Context, id uuid.UUID) (*ClientDTO, error) {
	c, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return toClientDTO(c), nil
}

// ListPets returns the pets owned by a client.
func (s *ClientService) ListPets(ctx context.Context, ownerID uuid.UUID) ([]PetDTO, error) {
	pets, err := s.repo.ListPets(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	out := make([]PetDTO, len(pets))
	for i, p := range pets {
		out[i] = toPetDTO(p)
	}
	return out, nil
}

// SetAutoCoupon attaches or clears a client's auto-apply coupon (admin).
func (s *ClientService) SetAutoCoupon(ctx context.Context, clientID uuid.UUID, req SetAutoCouponRequest) (*ClientDTO, error) {
	c, err := s.repo.FindByID(ctx, clientID)
	if err != nil {
		return nil, err
	}
	c.SetAutoCoupon(req.Code)
	c.IncrementVersion()
	if err := s.repo.Update(ctx, c); err != nil {
		return nil, err
	}
	return toClientDTO(c), nil
}

// EnsureGatewayCustomer creates the gateway customer on first use and stores
// its reference on c.
func (s *ClientService) EnsureGatewayCustomer(ctx context.Context, c *client.Client) error {
	if c.CustomerRef() != "" {
		return nil
	}
	ref, err := s.gateway.CreateCustomer(ctx, c.Email(), c.Name())
	if err != nil {
		return err
	}
	c.SetCustomerRef(ref)
	c.IncrementVersion()
	if err := s.repo.Update(ctx, c); err != nil {
		return err
	}
	s.logger.Info("gateway customer created",
		zap.String("client_id", c.ID().String()),
		zap.String("customer_ref", ref),
	)
	return nil
}

// SavePaymentMethod stores the reusable instrument from a first successful
// authorization. Calling it again is a no-op.
func (s *ClientService) SavePaymentMethod(ctx context.Context, clientID uuid.UUID, instrumentRef, brand, last4 string) error {
	for attempt := 0; attempt < 2; attempt++ {
		c, err := s.repo.FindByID(ctx, clientID)
		if err != nil {
			return err
		}
		if !c.SavePaymentMethod(instrumentRef, brand, last4) {
			return nil
		}
		c.IncrementVersion()
		err = s.repo.Update(ctx, c)
		if err == nil {
			s.logger.Info("payment method saved",
				zap.String("client_id", clientID.String()),
				zap.String("card_brand", brand),
				zap.String("card_last4", last4),
			)
			return nil
		}
		if !errors.Is(err, domain.ErrConflict) {
			return err
		}
	}
	return domain.NewConflictError("client was modified concurrently")
}

func toClientDTO(c *client.Client) *ClientDTO {
	return &ClientDTO{
		ID:             c.ID(),
		Email:          c.Email(),
		Name:           c.Name(),
		HasCard:        c.HasInstrument(),
		CardBrand:      c.CardBrand(),
		CardLast4:      c.CardLast4(),
		AutoCouponCode: c.AutoCouponCode(),
		CreatedAt:      c.CreatedAt(),
	}
}

func toPetDTO(p client.Pet) PetDTO {
	return PetDTO{ID: p.ID, OwnerID: p.OwnerID, Name: p.Name, Species: p.Species, BirthDate: p.BirthDate}
}
