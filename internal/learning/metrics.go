package learning

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "caliper_weight_cache_hits_total",
		Help: "Weight lookups served from cache.",
	})
	cacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "caliper_weight_cache_misses_total",
		Help: "Weight lookups that fell through to the store.",
	})
	failOpens = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "caliper_fail_open_total",
		Help: "Operations degraded to their safe default by backend failure.",
	}, []string{"operation"})
	learnUpdates = promauto.NewCounter(prometheus.CounterOpts{
		Name: "caliper_learn_updates_total",
		Help: "Accepted online weight updates.",
	})
	learnRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "caliper_learn_rejected_total",
		Help: "Learning signals discarded before applying an update.",
	}, []string{"reason"})
	rollbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "caliper_rollbacks_total",
		Help: "Weight records reset to defaults.",
	})
)
