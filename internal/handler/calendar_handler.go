package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/Kilat-Pet-Delivery/service-boarding/internal/application"
	"github.com/Kilat-Pet-Delivery/service-boarding/pkg/auth"
	"github.com/Kilat-Pet-Delivery/service-boarding/pkg/middleware"
	"github.com/Kilat-Pet-Delivery/service-boarding/pkg/response"
)

// CalendarHandler handles HTTP requests for the sitter's availability calendar.
type CalendarHandler struct {
	service *application.CalendarService
}

// NewCalendarHandler creates a new CalendarHandler.
func NewCalendarHandler(service *application.CalendarService) *CalendarHandler {
	return &CalendarHandler{service: service}
}

// RegisterRoutes registers calendar routes. Reads are open to any
// authenticated user; writes need the sitter or admin role.
func (h *CalendarHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	cal := r.Group("/calendar")
	cal.Use(middleware.AuthMiddleware(jwtManager))
	{
		cal.GET("", h.GetAvailability)
		cal.POST("/check", h.CheckAvailability)
		cal.PUT("", middleware.RequireRole(auth.RoleAdmin, auth.RoleSitter), h.UpsertAvailability)
	}
}

// GetAvailability handles GET /api/v1/calendar?service_type=&from=&to=
func (h *CalendarHandler) GetAvailability(c *gin.Context) {
	days, err := h.service.GetAvailability(c.Request.Context(), c.Query("service_type"), c.Query("from"), c.Query("to"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, days)
}

// CheckAvailability handles POST /api/v1/calendar/check
func (h *CalendarHandler) CheckAvailability(c *gin.Context) {
	var req application.CheckAvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	report, err := h.service.CheckAvailability(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, report)
}

// UpsertAvailability handles PUT /api/v1/calendar
func (h *CalendarHandler) UpsertAvailability(c *gin.Context) {
	var req application.UpsertAvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	dto, err := h.service.UpsertAvailability(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto)
}
