package archiver

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fxarchive_runs_total",
		Help: "Pipeline runs by result (complete, partial, declined, empty, error)",
	}, []string{"result"})

	lastRunTimestamp = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fxarchive_last_run_timestamp_seconds",
		Help: "Unix time the last run finished",
	})
)
