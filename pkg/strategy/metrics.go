package strategy

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// strategyRequestsTotal counts handled requests by strategy and outcome
	// ("network", "hit", "stale", "offline", "error", "store_error", "method", "unmatched")
	strategyRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "offline_strategy_requests_total",
			Help: "Total number of intercepted requests by strategy and outcome",
		},
		[]string{"strategy", "outcome"},
	)

	// strategyDuration tracks strategy execution time
	strategyDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "offline_strategy_duration_seconds",
			Help:    "Strategy execution duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"strategy"},
	)

	// networkTimeoutsTotal counts NetworkFirst races lost to the timer
	networkTimeoutsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "offline_strategy_network_timeouts_total",
			Help: "Total number of network races lost to the timeout",
		},
		[]string{"rule"},
	)

	// revalidationsTotal counts background refreshes by result ("success", "error")
	revalidationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "offline_strategy_revalidations_total",
			Help: "Total number of background revalidations",
		},
		[]string{"rule", "result"},
	)
)
