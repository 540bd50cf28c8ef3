package syncqueue

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// itemsEnqueued counts recorded items per queue
	itemsEnqueued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "offline_sync_items_enqueued_total",
			Help: "Total number of items added to sync queues",
		},
		[]string{"queue"},
	)

	// itemsReplayed counts items removed after a confirmed replay
	itemsReplayed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "offline_sync_items_replayed_total",
			Help: "Total number of items replayed and removed from sync queues",
		},
		[]string{"queue"},
	)

	// drainsTotal counts drains by result ("success", "failure")
	drainsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "offline_sync_drains_total",
			Help: "Total number of sync queue drains by result",
		},
		[]string{"queue", "result"},
	)

	// drainDuration tracks successful replay time
	drainDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "offline_sync_drain_duration_seconds",
			Help:    "Sync replay duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"queue"},
	)

	syncRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "offline_sync_retries_total",
		Help: "Total number of drain retry attempts by queue",
	}, []string{"queue"})

	syncRetryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "offline_sync_retry_backoff_seconds",
		Help:    "Backoff duration before drain retries by queue",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"queue"})

	syncRetryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "offline_sync_retry_exhausted_total",
		Help: "Total number of times drain retries were exhausted by queue",
	}, []string{"queue"})

	// storeErrors counts durable store failures by operation
	storeErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "offline_sync_store_errors_total",
			Help: "Total number of sync queue store errors",
		},
		[]string{"operation"}, // "append", "list", "remove", "queues"
	)
)
