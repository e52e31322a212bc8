package payment

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kilat-Pet-Delivery/service-boarding/pkg/domain"
)

func newPayment(t *testing.T) *Payment {
	t.Helper()
	p, err := NewPayment(uuid.New(), uuid.New(), 10000, "EUR")
	require.NoError(t, err)
	return p
}

func TestNewPayment(t *testing.T) {
	p := newPayment(t)
	assert.Equal(t, StatusNone, p.Status())
	assert.Equal(t, int64(1), p.Version())

	_, err := NewPayment(uuid.New(), uuid.New(), 0, "EUR")
	assert.True(t, errors.Is(err, domain.ErrValidation))
}

func TestPayment_HappyPath(t *testing.T) {
	p := newPayment(t)
	require.NoError(t, p.StartProcessing())
	require.NoError(t, p.AttachHold("chrg_1"))
	require.NoError(t, p.Authorize())
	require.NoError(t, p.Capture())
	assert.Equal(t, StatusSucceeded, p.Status())
	require.NotNil(t, p.PaidAt())

	require.NoError(t, p.Refund("rfnd_1"))
	assert.Equal(t, StatusRefunded, p.Status())
	assert.Equal(t, int64(10000), p.RefundAmountCents())
	assert.Equal(t, "rfnd_1", p.RefundRef())
	assert.True(t, p.Status().Terminal())
}

func TestPayment_IllegalTransitions(t *testing.T) {
	tests := []struct {
		name  string
		setup func(p *Payment)
		move  func(p *Payment) error
	}{
		{"capture without authorization", func(p *Payment) { _ = p.StartProcessing() }, (*Payment).Capture},
		{"authorize from none", func(*Payment) {}, (*Payment).Authorize},
		{"refund while authorized", func(p *Payment) { _ = p.StartProcessing(); _ = p.Authorize() }, func(p *Payment) error { return p.Refund("r") }},
		{"fail after authorization", func(p *Payment) { _ = p.StartProcessing(); _ = p.Authorize() }, func(p *Payment) error { return p.Fail("x") }},
		{"cancel after capture", func(p *Payment) { _ = p.StartProcessing(); _ = p.Authorize(); _ = p.Capture() }, (*Payment).CancelHold},
		{"anything after failure", func(p *Payment) { _ = p.StartProcessing(); _ = p.Fail("declined") }, (*Payment).Authorize},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newPayment(t)
			tt.setup(p)
			before := p.Status()
			err := tt.move(p)
			assert.True(t, errors.Is(err, domain.ErrInvalidState))
			assert.Equal(t, before, p.Status())
		})
	}
}

func TestPayment_CancelHold(t *testing.T) {
	processing := newPayment(t)
	require.NoError(t, processing.StartProcessing())
	require.NoError(t, processing.CancelHold())
	assert.Equal(t, StatusCancelled, processing.Status())

	authorized := newPayment(t)
	require.NoError(t, authorized.StartProcessing())
	require.NoError(t, authorized.Authorize())
	require.NoError(t, authorized.CancelHold())
	assert.True(t, authorized.Status().Terminal())
}

func TestPayment_AttachHoldRequiresProcessing(t *testing.T) {
	p := newPayment(t)
	assert.True(t, errors.Is(p.AttachHold("chrg_1"), domain.ErrInvalidState))
	require.NoError(t, p.StartProcessing())
	assert.True(t, errors.Is(p.AttachHold(""), domain.ErrValidation))
}

func TestPayment_Reconciliation(t *testing.T) {
	p := newPayment(t)
	assert.True(t, errors.Is(p.ResolveReconciliation(), domain.ErrInvalidState))

	p.FlagReconciliation("refund failed")
	assert.True(t, p.ReconciliationPending())
	assert.Equal(t, "refund failed", p.ReconciliationNote())
	require.NoError(t, p.ResolveReconciliation())
	assert.False(t, p.ReconciliationPending())
}

func TestPayment_CloneIsIndependent(t *testing.T) {
	p := newPayment(t)
	c := p.Clone()
	require.NoError(t, c.StartProcessing())
	c.IncrementVersion()
	assert.Equal(t, StatusNone, p.Status())
	assert.Equal(t, int64(1), p.Version())
}

func TestAdditionalCharge(t *testing.T) {
	_, err := NewAdditionalCharge(uuid.New(), uuid.New(), -1, "EUR", "extra")
	assert.True(t, errors.Is(err, domain.ErrValidation))

	ok, err := NewAdditionalCharge(uuid.New(), uuid.New(), 1500, "EUR", "grooming")
	require.NoError(t, err)
	assert.Equal(t, ChargeProcessing, ok.Status())
	require.NoError(t, ok.MarkSucceeded("chrg_9"))
	assert.Equal(t, "chrg_9", ok.GatewayRef())
	assert.NotNil(t, ok.ChargedAt())
	assert.Error(t, ok.MarkFailed("late", false))

	declined, err := NewAdditionalCharge(uuid.New(), uuid.New(), 1500, "EUR", "grooming")
	require.NoError(t, err)
	require.NoError(t, declined.MarkFailed("card declined", true))
	assert.True(t, declined.Declined())
	assert.Equal(t, ChargeFailed, declined.Status())
}
