// Package metrics exposes the Prometheus registry shared by the offline runtime.
// All metrics are defined in their respective packages via promauto to keep
// packages independent; this package documents them and serves them over HTTP.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the registerer every runtime package registers into.
var Registry = prometheus.DefaultRegisterer

// Gatherer collects the metrics registered in Registry.
var Gatherer = prometheus.DefaultGatherer

// Handler serves the runtime metrics in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Cache Metrics (pkg/cache):
//   - offline_cache_hits_total{namespace, result} (Counter): Responses served from a namespace (result: hit, stale, offline)
//   - offline_cache_misses_total{namespace} (Counter): Lookups that found no entry
//   - offline_cache_writes_total{namespace} (Counter): Entries written
//   - offline_cache_evictions_total{namespace} (Counter): Entries removed by capacity bounds
//   - offline_cache_errors_total{operation} (Counter): Store operation errors
//
// Strategy Metrics (pkg/strategy):
//   - offline_strategy_requests_total{strategy, outcome} (Counter): Intercepted requests
//   - offline_strategy_duration_seconds{strategy} (Histogram): Strategy execution time
//   - offline_strategy_network_timeouts_total{rule} (Counter): NetworkFirst races lost to the timer
//   - offline_strategy_revalidations_total{rule, result} (Counter): Background refreshes
//
// Fetch Metrics (pkg/client):
//   - offline_fetch_requests_total{method, status} (Counter): Network fetches
//   - offline_fetch_duration_seconds{method} (Histogram): Fetch duration
//   - offline_fetch_errors_total{class} (Counter): Errors by class (server, network)
//
// Lifecycle Metrics (pkg/lifecycle):
//   - offline_lifecycle_precached_total (Counter): Resources precached at install
//   - offline_lifecycle_install_failures_total (Counter): Failed installs
//   - offline_lifecycle_namespaces_deleted_total{reason} (Counter): Deleted namespaces (superseded, cleared)
//   - offline_lifecycle_transitions_total{state} (Counter): Role state transitions
//
// Sync Metrics (pkg/syncqueue):
//   - offline_sync_items_enqueued_total{queue} (Counter)
//   - offline_sync_items_replayed_total{queue} (Counter)
//   - offline_sync_drains_total{queue, result} (Counter)
//   - offline_sync_drain_duration_seconds{queue} (Histogram)
//   - offline_sync_retries_total{queue} (Counter)
//   - offline_sync_retry_backoff_seconds{queue} (Histogram)
//   - offline_sync_retry_exhausted_total{queue} (Counter)
//   - offline_sync_store_errors_total{operation} (Counter)
//
// Push, Control and Event Metrics:
//   - offline_push_notifications_total (Counter)
//   - offline_push_parse_errors_total (Counter)
//   - offline_push_clicks_total{action} (Counter)
//   - offline_control_messages_total{type, result} (Counter)
//   - offline_events_published_total{kind} (Counter)
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(offline_cache_hits_total[5m])) /
//   (sum(rate(offline_cache_hits_total[5m])) + sum(rate(offline_cache_misses_total[5m])))
//
//   # Stale Serving Rate
//   sum(rate(offline_cache_hits_total{result="stale"}[5m]))
//
//   # Pending Replays Failing
//   rate(offline_sync_drains_total{result="error"}[5m])
//
//   # P95 Fetch Latency
//   histogram_quantile(0.95, rate(offline_fetch_duration_seconds_bucket[5m]))
