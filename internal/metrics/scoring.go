package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Scoring pipeline Prometheus metrics.
var (
	ScoringResultsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "llmrank",
			Name:      "scoring_results_total",
			Help:      "Scored documents by outcome",
		},
		[]string{"outcome"},
	)

	ScoringScore = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "llmrank",
			Name:      "scoring_score",
			Help:      "Distribution of parsed relevance scores",
			Buckets:   prometheus.LinearBuckets(0.1, 0.1, 10),
		},
	)

	ScoringRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "llmrank",
			Name:      "scoring_retries_total",
			Help:      "Backend invocations retried by the orchestrator",
		},
	)

	ScoringRunDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "llmrank",
			Name:      "scoring_run_duration_seconds",
			Help:      "Wall time of a scoring run",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"status"}, // "ok" / "deadline" / "canceled"
	)

	ScoringInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "llmrank",
			Name:      "scoring_in_flight",
			Help:      "Backend invocations currently outstanding",
		},
	)
)

var scoringOnce sync.Once

// RegisterScoringMetrics registers scoring metrics with the default registry.
// Safe to call more than once.
func RegisterScoringMetrics() {
	scoringOnce.Do(func() {
		prometheus.MustRegister(
			ScoringResultsTotal,
			ScoringScore,
			ScoringRetriesTotal,
			ScoringRunDuration,
			ScoringInFlight,
		)
	})
}
