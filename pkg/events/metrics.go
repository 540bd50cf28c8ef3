package events

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var eventsPublished = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "offline_events_published_total",
		Help: "Total number of events published on the runtime bus",
	},
	[]string{"kind"},
)
