package coupon

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kilat-Pet-Delivery/service-boarding/internal/domain/catalog"
	"github.com/Kilat-Pet-Delivery/service-boarding/pkg/domain"
)

func ptr[T any](v T) *T { return &v }

func mustCoupon(t *testing.T, p Params) *Coupon {
	t.Helper()
	if p.Code == "" {
		p.Code = "summer"
	}
	p.CreatedBy = uuid.New()
	c, err := NewCoupon(p)
	require.NoError(t, err)
	return c
}

func TestEvaluate_FixedAmountPerNight(t *testing.T) {
	c := mustCoupon(t, Params{DiscountType: DiscountFixedAmount, DiscountValue: 700})

	res := Evaluate(c, Request{AmountCents: 15000, ServiceType: catalog.Boarding, Duration: 3})
	require.True(t, res.Valid)
	assert.Equal(t, int64(2100), res.DiscountCents)
	assert.Equal(t, int64(12900), res.FinalAmountCents)
	assert.Contains(t, res.Message, "21.00")
	assert.NoError(t, res.Err())
}

func TestEvaluate_Percentage(t *testing.T) {
	c := mustCoupon(t, Params{DiscountType: DiscountPercentage, DiscountValue: 15})

	res := Evaluate(c, Request{AmountCents: 9999, ServiceType: catalog.DayCare, Duration: 1})
	require.True(t, res.Valid)
	assert.Equal(t, int64(1499), res.DiscountCents)
	assert.Equal(t, int64(8500), res.FinalAmountCents)
}

func TestEvaluate_Rejections(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	yesterday, tomorrow := now.AddDate(0, 0, -1), now.AddDate(0, 0, 1)

	exhausted := mustCoupon(t, Params{DiscountType: DiscountPercentage, DiscountValue: 10, MaxUses: ptr(1)})
	require.NoError(t, exhausted.IncrementUses())

	inactive := mustCoupon(t, Params{DiscountType: DiscountPercentage, DiscountValue: 10})
	inactive.Deactivate()

	tests := []struct {
		name   string
		coupon *Coupon
		reason Reason
	}{
		{"unknown code", nil, ReasonNotFound},
		{"wrong service", mustCoupon(t, Params{DiscountType: DiscountPercentage, DiscountValue: 10, ServiceTypes: []catalog.ServiceType{catalog.DogWalking}}), ReasonServiceType},
		{"inactive", inactive, ReasonInactive},
		{"not yet valid", mustCoupon(t, Params{DiscountType: DiscountPercentage, DiscountValue: 10, ValidFrom: &tomorrow}), ReasonNotYetValid},
		{"expired", mustCoupon(t, Params{DiscountType: DiscountPercentage, DiscountValue: 10, ValidUntil: &yesterday}), ReasonExpired},
		{"usage exhausted", exhausted, ReasonUsageExhausted},
		{"below minimum", mustCoupon(t, Params{DiscountType: DiscountPercentage, DiscountValue: 10, MinAmountCents: ptr(int64(20000))}), ReasonBelowMinimum},
		{"email not allowed", mustCoupon(t, Params{DiscountType: DiscountPercentage, DiscountValue: 10, RestrictedToEmails: []string{"vip@example.com"}}), ReasonEmailNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Evaluate(tt.coupon, Request{
				AmountCents: 15000,
				ServiceType: catalog.Boarding,
				Duration:    3,
				Email:       "someone@example.com",
				Now:         now,
			})
			assert.False(t, res.Valid)
			assert.Equal(t, tt.reason, res.Reason)
			assert.Equal(t, int64(15000), res.FinalAmountCents)
			assert.Zero(t, res.DiscountCents)

			var de *domain.DomainError
			require.True(t, errors.As(res.Err(), &de))
			assert.Equal(t, string(tt.reason), de.Details["reason"])
		})
	}
}

func TestEvaluate_NotFoundMapsToNotFound(t *testing.T) {
	res := Evaluate(nil, Request{AmountCents: 100, ServiceType: catalog.Boarding})
	assert.True(t, errors.Is(res.Err(), domain.ErrNotFound))
}

func TestEvaluate_EmailMatchIgnoresCase(t *testing.T) {
	c := mustCoupon(t, Params{DiscountType: DiscountPercentage, DiscountValue: 10, RestrictedToEmails: []string{" VIP@Example.com "}})
	res := Evaluate(c, Request{AmountCents: 1000, ServiceType: catalog.Boarding, Duration: 1, Email: "vip@example.COM"})
	assert.True(t, res.Valid)
}

func TestComputeDiscount(t *testing.T) {
	tests := []struct {
		name     string
		typ      DiscountType
		value    int64
		amount   int64
		duration int
		want     int64
	}{
		{"percentage", DiscountPercentage, 20, 10000, 2, 2000},
		{"fixed per unit", DiscountFixedAmount, 500, 10000, 4, 2000},
		{"fixed with zero duration counts one unit", DiscountFixedAmount, 500, 10000, 0, 500},
		{"capped at amount", DiscountFixedAmount, 5000, 6000, 3, 6000},
		{"full percentage", DiscountPercentage, 100, 4321, 1, 4321},
		{"zero amount", DiscountPercentage, 50, 0, 1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ComputeDiscount(tt.typ, tt.value, tt.amount, tt.duration))
		})
	}
}

func TestNewCoupon_Validation(t *testing.T) {
	_, err := NewCoupon(Params{Code: " ", DiscountType: DiscountPercentage, DiscountValue: 10})
	assert.True(t, errors.Is(err, domain.ErrValidation))

	_, err = NewCoupon(Params{Code: "X", DiscountType: DiscountPercentage, DiscountValue: 101})
	assert.True(t, errors.Is(err, domain.ErrValidation))

	_, err = NewCoupon(Params{Code: "X", DiscountType: "BOGO", DiscountValue: 1})
	assert.True(t, errors.Is(err, domain.ErrValidation))

	from := time.Now()
	until := from.Add(-time.Hour)
	_, err = NewCoupon(Params{Code: "X", DiscountType: DiscountFixedAmount, DiscountValue: 1, ValidFrom: &from, ValidUntil: &until})
	assert.True(t, errors.Is(err, domain.ErrValidation))

	c, err := NewCoupon(Params{Code: " spring10 ", DiscountType: DiscountPercentage, DiscountValue: 10})
	require.NoError(t, err)
	assert.Equal(t, "SPRING10", c.Code())
}

func TestIncrementUses_RespectsLimit(t *testing.T) {
	c := mustCoupon(t, Params{DiscountType: DiscountPercentage, DiscountValue: 10, MaxUses: ptr(2)})
	require.NoError(t, c.IncrementUses())
	require.NoError(t, c.IncrementUses())
	err := c.IncrementUses()
	assert.True(t, errors.Is(err, domain.ErrConflict))
	assert.Equal(t, 2, c.CurrentUses())
}

func TestFormatCents(t *testing.T) {
	assert.Equal(t, "21.00", FormatCents(2100))
	assert.Equal(t, "0.05", FormatCents(5))
	assert.Equal(t, "-1.50", FormatCents(-150))
}
