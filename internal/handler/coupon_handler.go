package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/Kilat-Pet-Delivery/service-boarding/internal/application"
	"github.com/Kilat-Pet-Delivery/service-boarding/pkg/auth"
	"github.com/Kilat-Pet-Delivery/service-boarding/pkg/middleware"
	"github.com/Kilat-Pet-Delivery/service-boarding/pkg/response"
)

// CouponHandler handles HTTP requests for coupon validation and administration.
type CouponHandler struct {
	service *application.CouponService
}

// NewCouponHandler creates a new CouponHandler.
func NewCouponHandler(service *application.CouponService) *CouponHandler {
	return &CouponHandler{service: service}
}

// RegisterRoutes registers coupon routes.
func (h *CouponHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	adminRole := middleware.RequireRole(auth.RoleAdmin)

	coupons := r.Group("/coupons")
	coupons.Use(middleware.AuthMiddleware(jwtManager))
	{
		coupons.POST("/validate", h.ValidateCoupon)
		coupons.GET("", adminRole, h.ListCoupons)
		coupons.POST("", adminRole, h.CreateCoupon)
		coupons.POST("/:id/deactivate", adminRole, h.DeactivateCoupon)
		coupons.GET("/:id/usages", adminRole, h.ListUsages)
	}
}

// ValidateCoupon handles POST /api/v1/coupons/validate
func (h *CouponHandler) ValidateCoupon(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req application.ValidateCouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.ValidateCoupon(c.Request.Context(), userID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// ListCoupons handles GET /api/v1/coupons
func (h *CouponHandler) ListCoupons(c *gin.Context) {
	coupons, err := h.service.ListActiveCoupons(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, coupons)
}

// CreateCoupon handles POST /api/v1/coupons
func (h *CouponHandler) CreateCoupon(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req application.CreateCouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	dto, err := h.service.CreateCoupon(c.Request.Context(), userID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto)
}

// DeactivateCoupon handles POST /api/v1/coupons/:id/deactivate
func (h *CouponHandler) DeactivateCoupon(c *gin.Context) {
	couponID, ok := pathID(c, "id", "coupon")
	if !ok {
		return
	}

	dto, err := h.service.DeactivateCoupon(c.Request.Context(), couponID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto)
}

// ListUsages handles GET /api/v1/coupons/:id/usages
func (h *CouponHandler) ListUsages(c *gin.Context) {
	couponID, ok := pathID(c, "id", "coupon")
	if !ok {
		return
	}

	usages, err := h.service.ListUsages(c.Request.Context(), couponID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, usages)
}
