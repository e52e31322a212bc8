package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kilat-Pet-Delivery/service-boarding/internal/domain/catalog"
	"github.com/Kilat-Pet-Delivery/service-boarding/pkg/auth"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testContext(target string) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, target, nil)
	return c, w
}

func TestPagination(t *testing.T) {
	tests := []struct {
		query     string
		wantPage  int
		wantLimit int
	}{
		{"", 1, 20},
		{"?page=3&limit=50", 3, 50},
		{"?page=0&limit=0", 1, 20},
		{"?page=-2&limit=500", 1, 20},
		{"?page=abc&limit=xyz", 1, 20},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			c, _ := testContext("/x" + tt.query)
			page, limit := pagination(c)
			assert.Equal(t, tt.wantPage, page)
			assert.Equal(t, tt.wantLimit, limit)
		})
	}
}

func TestPathID(t *testing.T) {
	id := uuid.New()
	c, _ := testContext("/bookings/" + id.String())
	c.Params = gin.Params{{Key: "id", Value: id.String()}}
	got, ok := pathID(c, "id", "booking")
	require.True(t, ok)
	assert.Equal(t, id, got)

	c, w := testContext("/bookings/nope")
	c.Params = gin.Params{{Key: "id", Value: "nope"}}
	_, ok = pathID(c, "id", "booking")
	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid booking ID")
}

func TestServiceTypeQuery(t *testing.T) {
	c, _ := testContext("/credits/balance")
	st, ok := serviceTypeQuery(c)
	require.True(t, ok)
	assert.Nil(t, st)

	c, _ = testContext("/credits/balance?service_type=DAY_CARE")
	st, ok = serviceTypeQuery(c)
	require.True(t, ok)
	require.NotNil(t, st)
	assert.Equal(t, catalog.DayCare, *st)

	c, w := testContext("/credits/balance?service_type=GROOMING")
	_, ok = serviceTypeQuery(c)
	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCouponRoutes_Authorization(t *testing.T) {
	jwtManager := auth.NewJWTManager("test-secret", time.Hour, 24*time.Hour)
	r := gin.New()
	NewCouponHandler(nil).RegisterRoutes(r.Group("/api/v1"), jwtManager)

	clientToken, err := jwtManager.GenerateAccessToken(uuid.New(), "owner@example.com", auth.RoleClient)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"no token", "", http.StatusUnauthorized},
		{"garbage token", "Bearer not-a-jwt", http.StatusUnauthorized},
		{"client on admin route", "Bearer " + clientToken, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/coupons", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}
