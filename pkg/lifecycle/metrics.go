package lifecycle

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// precachedResources counts manifest resources written at install
	precachedResources = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "offline_lifecycle_precached_total",
			Help: "Total number of resources precached at install",
		},
	)

	// precacheFailures counts failed installs
	precacheFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "offline_lifecycle_install_failures_total",
			Help: "Total number of failed installs",
		},
	)

	// namespacesDeleted counts deleted namespaces by reason ("superseded", "cleared")
	namespacesDeleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "offline_lifecycle_namespaces_deleted_total",
			Help: "Total number of deleted cache namespaces",
		},
		[]string{"reason"},
	)

	// stateTransitions counts role transitions by target state
	stateTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "offline_lifecycle_transitions_total",
			Help: "Total number of namespace role state transitions",
		},
		[]string{"state"},
	)
)
