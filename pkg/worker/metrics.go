package worker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "offline_runtime_events_total",
			Help: "Total number of runtime events dispatched by type and result",
		},
		[]string{"event", "result"},
	)

	proxyResponsesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "offline_runtime_proxy_responses_total",
			Help: "Total number of proxied responses by status class",
		},
		[]string{"class"}, // "2xx", "3xx", "4xx", "5xx"
	)
)
