// Package metrics holds the Prometheus collectors of the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ridehail"

var (
	TripTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "trip_transitions_total", Help: "Trip status transitions by resulting status"},
		[]string{"status"},
	)
	TripTransitionRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "trip_transition_rejections_total", Help: "Rejected trip operations by operation"},
		[]string{"operation"},
	)
	FareAmount = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fare_amount",
			Help:      "Computed fares by kind (estimate, final)",
			Buckets:   prometheus.ExponentialBuckets(100, 2, 14),
		},
		[]string{"kind", "vehicle_class"},
	)
	NotificationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "notification_failures_total", Help: "Failed best-effort notifications by channel"},
		[]string{"channel"},
	)
	RealtimeConnections = promauto.NewGauge(
		prometheus.GaugeOpts{Namespace: namespace, Name: "realtime_connections", Help: "Connected realtime users"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
