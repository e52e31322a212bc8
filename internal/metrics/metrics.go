package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors of the boarding service.
type Metrics struct {
	BookingTransitions *prometheus.CounterVec
	GatewayCalls       *prometheus.CounterVec
	GatewayLatency     *prometheus.HistogramVec
	WebhookEvents      *prometheus.CounterVec
	CreditOperations   *prometheus.CounterVec
	CleanupDeleted     *prometheus.CounterVec
}

// New registers the collectors on reg. A nil registerer yields unregistered
// collectors, which is what tests use.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		BookingTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "boarding_booking_transitions_total",
			Help: "Booking status transitions",
		}, []string{"to"}),
		GatewayCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "boarding_gateway_calls_total",
			Help: "Payment gateway calls by operation and outcome",
		}, []string{"operation", "outcome"}),
		GatewayLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "boarding_gateway_call_duration_seconds",
			Help:    "Duration of payment gateway calls in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		WebhookEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "boarding_webhook_events_total",
			Help: "Gateway webhook events by type and result",
		}, []string{"type", "result"}),
		CreditOperations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "boarding_credit_operations_total",
			Help: "Credit ledger movements by kind",
		}, []string{"kind"}),
		CleanupDeleted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "boarding_cleanup_deleted_total",
			Help: "Bookings removed by the stale cleanup job",
		}, []string{"reason"}),
	}
}

// ObserveGatewayCall records one gateway call.
func (m *Metrics) ObserveGatewayCall(operation, outcome string, started time.Time) {
	m.GatewayCalls.WithLabelValues(operation, outcome).Inc()
	m.GatewayLatency.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}
