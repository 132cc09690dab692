package transport

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	attemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fxarchive_transport_attempts_total",
		Help: "HTTP attempts by outcome (ok, status class, network, timeout)",
	}, []string{"outcome"})

	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fxarchive_transport_retries_total",
		Help: "Retries scheduled, by status code or failure kind",
	}, []string{"reason"})

	backoffSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "fxarchive_transport_backoff_seconds",
		Help:    "Delay waited before a retry",
		Buckets: []float64{0.5, 1, 2, 4, 8, 16, 32, 64, 120},
	})

	exhaustedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fxarchive_transport_retry_exhausted_total",
		Help: "Requests that used their whole attempt budget",
	})

	requestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "fxarchive_transport_request_duration_seconds",
		Help:    "Duration of a logical request including retries",
		Buckets: prometheus.DefBuckets,
	})
)
