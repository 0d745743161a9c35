package outcome

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	predictionsStaged = promauto.NewCounter(prometheus.CounterOpts{
		Name: "caliper_predictions_staged_total",
		Help: "Predictions recorded for later outcome correlation.",
	})
	outcomesResolved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "caliper_outcomes_resolved_total",
		Help: "Outcomes matched to a staged prediction.",
	})
	outcomesOrphaned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "caliper_outcomes_orphaned_total",
		Help: "Outcomes whose prediction was unknown or expired.",
	})
)
