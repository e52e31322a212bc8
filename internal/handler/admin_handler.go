package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/Kilat-Pet-Delivery/service-boarding/internal/application"
	"github.com/Kilat-Pet-Delivery/service-boarding/pkg/auth"
	"github.com/Kilat-Pet-Delivery/service-boarding/pkg/middleware"
	"github.com/Kilat-Pet-Delivery/service-boarding/pkg/response"
)

// AdminHandler handles admin HTTP requests for payments, reconciliation and client accounts.
type AdminHandler struct {
	paymentService *application.PaymentService
	creditService  *application.CreditService
	clientService  *application.ClientService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(
	paymentService *application.PaymentService,
	creditService *application.CreditService,
	clientService *application.ClientService,
) *AdminHandler {
	return &AdminHandler{
		paymentService: paymentService,
		creditService:  creditService,
		clientService:  clientService,
	}
}

// RegisterRoutes registers admin routes.
func (h *AdminHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	authMW := middleware.AuthMiddleware(jwtManager)
	adminRole := middleware.RequireRole(auth.RoleAdmin)

	admin := r.Group("/admin")
	admin.Use(authMW, adminRole)
	{
		admin.GET("/payments", h.ListPayments)
		admin.GET("/stats/payments", h.PaymentStats)
		admin.GET("/reconciliation", h.ListReconciliation)
		admin.POST("/reconciliation/:id/resolve", h.ResolveReconciliation)
		admin.POST("/clients/:id/credits/top-up", h.TopUpCredits)
		admin.POST("/clients/:id/credits/adjust", h.AdjustCredits)
		admin.PUT("/clients/:id/auto-coupon", h.SetAutoCoupon)
	}
}

// ListPayments handles GET /api/v1/admin/payments.
func (h *AdminHandler) ListPayments(c *gin.Context) {
	page, limit := pagination(c)

	payments, total, err := h.paymentService.ListAllPayments(c.Request.Context(), page, limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Paginated(c, payments, total, page, limit)
}

// PaymentStats handles GET /api/v1/admin/stats/payments.
func (h *AdminHandler) PaymentStats(c *gin.Context) {
	stats, err := h.paymentService.GetPaymentStats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, stats)
}

// ListReconciliation handles GET /api/v1/admin/reconciliation.
func (h *AdminHandler) ListReconciliation(c *gin.Context) {
	payments, err := h.paymentService.ListReconciliation(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, payments)
}

// ResolveReconciliation handles POST /api/v1/admin/reconciliation/:id/resolve.
func (h *AdminHandler) ResolveReconciliation(c *gin.Context) {
	paymentID, ok := pathID(c, "id", "payment")
	if !ok {
		return
	}

	dto, err := h.paymentService.ResolveReconciliation(c.Request.Context(), paymentID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto)
}

// TopUpCredits handles POST /api/v1/admin/clients/:id/credits/top-up.
func (h *AdminHandler) TopUpCredits(c *gin.Context) {
	clientID, ok := pathID(c, "id", "client")
	if !ok {
		return
	}

	var req application.TopUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	dto, err := h.creditService.TopUp(c.Request.Context(), clientID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto)
}

// AdjustCredits handles POST /api/v1/admin/clients/:id/credits/adjust.
func (h *AdminHandler) AdjustCredits(c *gin.Context) {
	clientID, ok := pathID(c, "id", "client")
	if !ok {
		return
	}

	var req application.AdjustCreditsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	dto, err := h.creditService.AdjustCredits(c.Request.Context(), clientID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto)
}

// SetAutoCoupon handles PUT /api/v1/admin/clients/:id/auto-coupon.
func (h *AdminHandler) SetAutoCoupon(c *gin.Context) {
	clientID, ok := pathID(c, "id", "client")
	if !ok {
		return
	}

	var req application.SetAutoCouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	dto, err := h.clientService.SetAutoCoupon(c.Request.Context(), clientID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto)
}
