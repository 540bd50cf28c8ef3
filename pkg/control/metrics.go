package control

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// messagesTotal counts control messages by type and result ("ok", "error", "ignored")
var messagesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "offline_control_messages_total",
		Help: "Total number of control messages by type and result",
	},
	[]string{"type", "result"},
)
