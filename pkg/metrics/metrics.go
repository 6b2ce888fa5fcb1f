// Package metrics is the catalogue of the Prometheus metrics exported by the
// admin client and the handler that serves them.
//
// Metrics are defined with promauto in the package that updates them
// (client, cache, ratelimit, pagination, mutation, feed) so that this
// package has no dependency on them.
package metrics

import (
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the registerer all packages register with via promauto.
var Registry = prometheus.DefaultRegisterer

// Gatherer collects the registered metrics for Handler.
var Gatherer prometheus.Gatherer = prometheus.DefaultGatherer

// Prefix is shared by every metric name in the catalogue.
const Prefix = "admin_"

// Kind is the Prometheus metric type.
type Kind string

// Metric kinds.
const (
	Counter   Kind = "counter"
	Gauge     Kind = "gauge"
	Histogram Kind = "histogram"
)

// Metric describes one exported metric.
type Metric struct {
	Name    string
	Kind    Kind
	Labels  []string
	Package string
}

// Catalog lists every metric exported by the module.
var Catalog = []Metric{
	// pkg/client
	{Name: "admin_api_requests_total", Kind: Counter, Labels: []string{"endpoint", "status"}, Package: "client"},
	{Name: "admin_api_request_duration_seconds", Kind: Histogram, Labels: []string{"endpoint"}, Package: "client"},
	{Name: "admin_api_errors_total", Kind: Counter, Labels: []string{"class"}, Package: "client"},
	{Name: "admin_api_retries_total", Kind: Counter, Labels: []string{"error_class"}, Package: "client"},
	{Name: "admin_api_retry_backoff_seconds", Kind: Histogram, Labels: []string{"error_class"}, Package: "client"},
	{Name: "admin_api_retry_exhausted_total", Kind: Counter, Labels: []string{"error_class"}, Package: "client"},

	// pkg/cache
	{Name: "admin_cache_hits_total", Kind: Counter, Package: "cache"},
	{Name: "admin_cache_misses_total", Kind: Counter, Package: "cache"},
	{Name: "admin_cache_stored_bytes_total", Kind: Counter, Package: "cache"},
	{Name: "admin_cache_conditional_requests_total", Kind: Counter, Package: "cache"},
	{Name: "admin_cache_not_modified_total", Kind: Counter, Package: "cache"},
	{Name: "admin_cache_errors_total", Kind: Counter, Labels: []string{"operation"}, Package: "cache"},

	// pkg/ratelimit
	{Name: "admin_quota_remaining", Kind: Gauge, Package: "ratelimit"},
	{Name: "admin_quota_blocks_total", Kind: Counter, Package: "ratelimit"},
	{Name: "admin_quota_throttles_total", Kind: Counter, Package: "ratelimit"},
	{Name: "admin_limiter_wait_seconds", Kind: Histogram, Package: "ratelimit"},

	// pkg/pagination
	{Name: "admin_page_fetches_total", Kind: Counter, Labels: []string{"collection", "outcome"}, Package: "pagination"},
	{Name: "admin_page_fetch_duration_seconds", Kind: Histogram, Labels: []string{"collection"}, Package: "pagination"},
	{Name: "admin_stale_pages_dropped_total", Kind: Counter, Labels: []string{"collection"}, Package: "pagination"},
	{Name: "admin_batch_pages_fetched_total", Kind: Counter, Labels: []string{"result"}, Package: "pagination"},

	// pkg/mutation
	{Name: "admin_mutations_total", Kind: Counter, Labels: []string{"collection", "kind", "result"}, Package: "mutation"},
	{Name: "admin_mutations_in_flight", Kind: Gauge, Labels: []string{"collection"}, Package: "mutation"},

	// pkg/feed
	{Name: "admin_feed_resyncs_total", Kind: Counter, Labels: []string{"collection"}, Package: "feed"},
	{Name: "admin_feed_background_loads_total", Kind: Counter, Labels: []string{"collection"}, Package: "feed"},
	{Name: "admin_feed_records", Kind: Gauge, Labels: []string{"collection"}, Package: "feed"},
}

// Lookup returns the catalogue entry for name.
func Lookup(name string) (Metric, bool) {
	for _, m := range Catalog {
		if m.Name == name {
			return m, true
		}
	}
	return Metric{}, false
}

// Handler serves the gathered metrics in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Own reports whether a gathered metric family belongs to this module.
func Own(name string) bool {
	return strings.HasPrefix(name, Prefix)
}

// Example Prometheus Queries:
//
//   # Page fetch failure rate per collection
//   sum by (collection) (rate(admin_page_fetches_total{outcome="failed"}[5m]))
//
//   # Rejected mutations
//   sum by (collection, kind) (rate(admin_mutations_total{result="rejected"}[5m]))
//
//   # Resyncs per minute
//   sum by (collection) (rate(admin_feed_resyncs_total[1m])) * 60
//
//   # Quota headroom
//   admin_quota_remaining < 10
//
//   # P95 store latency
//   histogram_quantile(0.95, rate(admin_api_request_duration_seconds_bucket[5m]))
//
//   # Revalidation hit rate
//   rate(admin_cache_not_modified_total[5m]) / rate(admin_cache_conditional_requests_total[5m])
