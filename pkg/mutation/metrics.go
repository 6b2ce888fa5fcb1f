package mutation

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	mutationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "admin_mutations_total",
		Help: "Total record mutations by collection, kind and result",
	}, []string{"collection", "kind", "result"})

	mutationsInFlight = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "admin_mutations_in_flight",
		Help: "Records with a mutation in flight by collection",
	}, []string{"collection"})
)
