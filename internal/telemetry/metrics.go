package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "caliper_events_total",
		Help: "Telemetry events by name.",
	}, []string{"event"})

	exceptionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "caliper_exceptions_total",
		Help: "Swallowed backend failures by operation.",
	}, []string{"operation"})

	trackedMetrics = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "caliper_metric",
		Help: "Last value of each tracked metric.",
	}, []string{"name"})
)
