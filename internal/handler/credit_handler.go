package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/Kilat-Pet-Delivery/service-boarding/internal/application"
	"github.com/Kilat-Pet-Delivery/service-boarding/pkg/auth"
	"github.com/Kilat-Pet-Delivery/service-boarding/pkg/middleware"
	"github.com/Kilat-Pet-Delivery/service-boarding/pkg/response"
)

// CreditHandler handles HTTP requests for a client's credits and credit plans.
type CreditHandler struct {
	service *application.CreditService
}

// NewCreditHandler creates a new CreditHandler.
func NewCreditHandler(service *application.CreditService) *CreditHandler {
	return &CreditHandler{service: service}
}

// RegisterRoutes registers credit routes for the authenticated client.
func (h *CreditHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	credits := r.Group("/credits")
	credits.Use(middleware.AuthMiddleware(jwtManager), middleware.RequireRole(auth.RoleClient))
	{
		credits.GET("/balance", h.GetBalance)
		credits.GET("/batches", h.ListBatches)
		credits.GET("/transactions", h.ListTransactions)
		credits.GET("/plans", h.ListPlans)
		credits.POST("/subscriptions", h.Subscribe)
		credits.GET("/subscriptions", h.ListSubscriptions)
		credits.POST("/subscriptions/:id/cancel", h.CancelSubscription)
	}
}

// GetBalance handles GET /api/v1/credits/balance
func (h *CreditHandler) GetBalance(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	st, ok := serviceTypeQuery(c)
	if !ok {
		return
	}

	dto, err := h.service.Balance(c.Request.Context(), userID, st)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto)
}

// ListBatches handles GET /api/v1/credits/batches
func (h *CreditHandler) ListBatches(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	st, ok := serviceTypeQuery(c)
	if !ok {
		return
	}

	batches, err := h.service.ListBatches(c.Request.Context(), userID, st)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, batches)
}

// ListTransactions handles GET /api/v1/credits/transactions
func (h *CreditHandler) ListTransactions(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	page, limit := pagination(c)

	txs, total, err := h.service.ListTransactions(c.Request.Context(), userID, page, limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Paginated(c, txs, total, page, limit)
}

// ListPlans handles GET /api/v1/credits/plans
func (h *CreditHandler) ListPlans(c *gin.Context) {
	response.Success(c, h.service.ListPlans())
}

// Subscribe handles POST /api/v1/credits/subscriptions
func (h *CreditHandler) Subscribe(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req application.SubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	dto, err := h.service.Subscribe(c.Request.Context(), userID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto)
}

// ListSubscriptions handles GET /api/v1/credits/subscriptions
func (h *CreditHandler) ListSubscriptions(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	subs, err := h.service.GetSubscriptions(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, subs)
}

// CancelSubscription handles POST /api/v1/credits/subscriptions/:id/cancel
func (h *CreditHandler) CancelSubscription(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	subID, ok := pathID(c, "id", "subscription")
	if !ok {
		return
	}

	dto, err := h.service.CancelSubscription(c.Request.Context(), userID, subID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto)
}
