package pagination

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pageFetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "admin_page_fetches_total",
		Help: "Total page fetches by collection and outcome",
	}, []string{"collection", "outcome"})

	pageFetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "admin_page_fetch_duration_seconds",
		Help:    "Page fetch duration in seconds by collection",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	}, []string{"collection"})

	stalePagesDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "admin_stale_pages_dropped_total",
		Help: "Pages dropped because the collection was reset while they were in flight",
	}, []string{"collection"})

	batchPagesFetched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "admin_batch_pages_fetched_total",
		Help: "Pages fetched by the batch fetcher by result",
	}, []string{"result"})
)
