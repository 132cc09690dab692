package crawler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fxarchive_crawl_pages_total",
		Help: "History pages fetched, by kind (full, empty_list, missing_list, malformed)",
	}, []string{"kind"})

	itemsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fxarchive_crawl_items_total",
		Help: "Item records collected by the crawler",
	})

	haltsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fxarchive_crawl_halts_total",
		Help: "Crawls stopped early by a fault",
	})
)
