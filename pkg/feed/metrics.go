package feed

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	feedResyncsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "admin_feed_resyncs_total",
		Help: "Total collection resets followed by a page-1 reload",
	}, []string{"collection"})

	backgroundLoadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "admin_feed_background_loads_total",
		Help: "Total page loads started by the trigger policy or a resync",
	}, []string{"collection"})

	feedRecords = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "admin_feed_records",
		Help: "Records currently loaded per collection",
	}, []string{"collection"})
)
