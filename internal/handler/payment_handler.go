package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/Kilat-Pet-Delivery/service-boarding/internal/application"
	"github.com/Kilat-Pet-Delivery/service-boarding/pkg/auth"
	"github.com/Kilat-Pet-Delivery/service-boarding/pkg/middleware"
	"github.com/Kilat-Pet-Delivery/service-boarding/pkg/response"
)

// PaymentHandler handles HTTP requests for checkout, payments and gateway webhooks.
type PaymentHandler struct {
	service *application.PaymentService
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(service *application.PaymentService) *PaymentHandler {
	return &PaymentHandler{service: service}
}

// RegisterRoutes registers all payment routes on the given router group.
// The webhook route is unauthenticated; the gateway adapter verifies payloads.
func (h *PaymentHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	r.POST("/webhooks/gateway", h.GatewayWebhook)

	payments := r.Group("/payments")
	payments.Use(middleware.AuthMiddleware(jwtManager))
	{
		payments.POST("/checkout", middleware.RequireRole(auth.RoleClient), h.Checkout)
		payments.GET("/:id", h.GetPayment)
		payments.GET("/booking/:bookingId", h.GetPaymentByBooking)
	}
}

// Checkout handles POST /api/v1/payments/checkout
func (h *PaymentHandler) Checkout(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req application.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	dto, err := h.service.Checkout(c.Request.Context(), userID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto)
}

// GetPayment handles GET /api/v1/payments/:id
func (h *PaymentHandler) GetPayment(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	paymentID, ok := pathID(c, "id", "payment")
	if !ok {
		return
	}

	dto, err := h.service.GetPayment(c.Request.Context(), paymentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	if dto.ClientID != userID && !isStaff(c) {
		response.Forbidden(c, "payment belongs to another client")
		return
	}

	response.Success(c, dto)
}

// GetPaymentByBooking handles GET /api/v1/payments/booking/:bookingId
func (h *PaymentHandler) GetPaymentByBooking(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	bookingID, ok := pathID(c, "bookingId", "booking")
	if !ok {
		return
	}

	dto, err := h.service.GetPaymentByBooking(c.Request.Context(), userID, isStaff(c), bookingID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto)
}

// GatewayWebhook handles POST /api/v1/webhooks/gateway. Duplicate and
// unmatched events are acknowledged so the gateway stops redelivering.
func (h *PaymentHandler) GatewayWebhook(c *gin.Context) {
	payload, err := c.GetRawData()
	if err != nil {
		response.BadRequest(c, "unreadable body")
		return
	}

	if err := h.service.HandleGatewayWebhook(c.Request.Context(), payload); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, gin.H{"received": true})
}
