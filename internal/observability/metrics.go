package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BookingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booking_sagas_total",
			Help: "Booking sagas by outcome",
		},
		[]string{"outcome"},
	)

	CancellationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booking_cancellations_total",
			Help: "Cancellation sagas by outcome",
		},
		[]string{"outcome"},
	)

	CompensationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booking_compensations_total",
			Help: "Compensating seat releases by result",
		},
		[]string{"result"},
	)

	InventoryCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "booking_inventory_call_seconds",
			Help:    "Duration of flight inventory calls",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)

	EventPublishFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "booking_event_publish_failures_total",
			Help: "Booking events dropped after a failed publish",
		},
	)

	SagaSweepLag = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "booking_saga_sweep_lag_seconds",
			Help: "Age of the oldest unswept stale saga",
		},
	)

	RateLimitExceeded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "booking_rate_limit_exceeded_total",
			Help: "Requests rejected by the rate limiter",
		},
	)
)
