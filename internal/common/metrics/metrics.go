// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ScoreComputations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "score_computations_total",
			Help: "Total number of score computations by result",
		},
		[]string{"result"},
	)

	ScoreCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "score_cache_hits_total",
			Help: "Total number of score cache hits",
		},
	)

	ScoreCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "score_cache_misses_total",
			Help: "Total number of score cache misses",
		},
	)

	ScoringDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scoring_duration_seconds",
			Help:    "Duration of scoring collaborator calls in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		},
	)

	ApplicationTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "application_transitions_total",
			Help: "Total number of application status transitions",
		},
		[]string{"from", "to"},
	)

	TransitionConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "transition_conflicts_total",
			Help: "Total number of transitions lost to a concurrent update",
		},
	)
)
