package adapter

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Kilat-Pet-Delivery/service-boarding/internal/metrics"
	"github.com/Kilat-Pet-Delivery/service-boarding/pkg/domain"
)

// InstrumentedGateway decorates a Gateway with a per-call timeout, a trace
// span and Prometheus metrics. It never retries.
type InstrumentedGateway struct {
	next    Gateway
	timeout time.Duration
	tracer  trace.Tracer
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewInstrumentedGateway wraps next.
func NewInstrumentedGateway(next Gateway, timeout time.Duration, m *metrics.Metrics, logger *zap.Logger) *InstrumentedGateway {
	return &InstrumentedGateway{
		next:    next,
		timeout: timeout,
		tracer:  otel.Tracer("service-boarding"),
		metrics: m,
		logger:  logger,
	}
}

func (g *InstrumentedGateway) call(ctx context.Context, op string, attrs []attribute.KeyValue, fn func(ctx context.Context) error) error {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}
	ctx, span := g.tracer.Start(ctx, "gateway."+op, trace.WithAttributes(attrs...))
	defer span.End()

	started := time.Now()
	err := fn(ctx)

	outcome := "ok"
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrCardDeclined):
		outcome = "declined"
	default:
		outcome = "error"
	}
	g.metrics.ObserveGatewayCall(op, outcome, started)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		g.logger.Warn("gateway call failed",
			zap.String("operation", op),
			zap.String("outcome", outcome),
			zap.Error(err),
		)
		if !errors.Is(err, domain.ErrGateway) && !errors.Is(err, domain.ErrValidation) {
			err = domain.NewGatewayError(op, false, err)
		}
	}
	return err
}

func (g *InstrumentedGateway) CreateCustomer(ctx context.Context, email, description string) (string, error) {
	var ref string
	err := g.call(ctx, "create_customer", nil, func(ctx context.Context) error {
		var err error
		ref, err = g.next.CreateCustomer(ctx, email, description)
		return err
	})
	return ref, err
}

func (g *InstrumentedGateway) CreateHold(ctx context.Context, req HoldRequest) (*HoldResult, error) {
	var res *HoldResult
	attrs := []attribute.KeyValue{
		attribute.Int64("amount_cents", req.AmountCents),
		attribute.String("currency", req.Currency),
	}
	err := g.call(ctx, "create_hold", attrs, func(ctx context.Context) error {
		var err error
		res, err = g.next.CreateHold(ctx, req)
		return err
	})
	return res, err
}

func (g *InstrumentedGateway) Capture(ctx context.Context, holdRef string) error {
	return g.call(ctx, "capture", []attribute.KeyValue{attribute.String("hold_ref", holdRef)}, func(ctx context.Context) error {
		return g.next.Capture(ctx, holdRef)
	})
}

func (g *InstrumentedGateway) CancelHold(ctx context.Context, holdRef string) error {
	return g.call(ctx, "cancel_hold", []attribute.KeyValue{attribute.String("hold_ref", holdRef)}, func(ctx context.Context) error {
		return g.next.CancelHold(ctx, holdRef)
	})
}

func (g *InstrumentedGateway) Refund(ctx context.Context, captureRef string, amountCents int64) (string, error) {
	var ref string
	attrs := []attribute.KeyValue{
		attribute.String("charge_ref", captureRef),
		attribute.Int64("amount_cents", amountCents),
	}
	err := g.call(ctx, "refund", attrs, func(ctx context.Context) error {
		var err error
		ref, err = g.next.Refund(ctx, captureRef, amountCents)
		return err
	})
	return ref, err
}

func (g *InstrumentedGateway) OffSessionCharge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	var res *ChargeResult
	attrs := []attribute.KeyValue{
		attribute.Int64("amount_cents", req.AmountCents),
		attribute.String("currency", req.Currency),
	}
	err := g.call(ctx, "off_session_charge", attrs, func(ctx context.Context) error {
		var err error
		res, err = g.next.OffSessionCharge(ctx, req)
		return err
	})
	return res, err
}

func (g *InstrumentedGateway) ParseWebhook(ctx context.Context, payload []byte) (*GatewayEvent, error) {
	var ev *GatewayEvent
	err := g.call(ctx, "parse_webhook", nil, func(ctx context.Context) error {
		var err error
		ev, err = g.next.ParseWebhook(ctx, payload)
		return err
	})
	return ev, err
}
