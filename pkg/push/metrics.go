package push

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	notificationsShown = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "offline_push_notifications_total",
			Help: "Total number of notifications shown",
		},
	)

	parseErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "offline_push_parse_errors_total",
			Help: "Total number of malformed push payloads",
		},
	)

	clicksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "offline_push_clicks_total",
			Help: "Total number of notification clicks by action",
		},
		[]string{"action"},
	)
)
