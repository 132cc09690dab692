package downloader

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	inFlightGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fxarchive_dispatch_inflight",
		Help: "Workers currently fetching an item",
	})

	outcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fxarchive_dispatch_outcomes_total",
		Help: "Finished items by result",
	}, []string{"result"})
)
