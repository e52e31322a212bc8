package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/Kilat-Pet-Delivery/service-boarding/internal/application"
	"github.com/Kilat-Pet-Delivery/service-boarding/pkg/auth"
	"github.com/Kilat-Pet-Delivery/service-boarding/pkg/middleware"
	"github.com/Kilat-Pet-Delivery/service-boarding/pkg/response"
)

// ClientHandler serves the authenticated client's profile and pets.
type ClientHandler struct {
	service *application.ClientService
}

// NewClientHandler creates a new ClientHandler.
func NewClientHandler(service *application.ClientService) *ClientHandler {
	return &ClientHandler{service: service}
}

// RegisterRoutes registers client routes.
func (h *ClientHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	me := r.Group("/clients/me")
	me.Use(middleware.AuthMiddleware(jwtManager), middleware.RequireRole(auth.RoleClient))
	{
		me.GET("", h.GetProfile)
		me.GET("/pets", h.ListPets)
	}
}

// GetProfile handles GET /api/v1/clients/me
func (h *ClientHandler) GetProfile(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	dto, err := h.service.GetClient(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto)
}

// ListPets handles GET /api/v1/clients/me/pets
func (h *ClientHandler) ListPets(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	pets, err := h.service.ListPets(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, pets)
}
