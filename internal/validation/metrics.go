package validation

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var validationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "caliper_validations_total",
	Help: "Validation attempts by resulting status.",
}, []string{"status"})
