package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Backend (completion provider) Prometheus metrics.
var (
	BackendRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "llmrank",
			Name:      "backend_requests_total",
			Help:      "Total number of completion requests sent to the backend",
		},
		[]string{"provider", "model", "status"},
	)

	BackendRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "llmrank",
			Name:      "backend_request_duration_seconds",
			Help:      "Completion request duration in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"provider", "model"},
	)

	BackendTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "llmrank",
			Name:      "backend_tokens_total",
			Help:      "Total tokens consumed by completion requests",
		},
		[]string{"provider", "model", "type"}, // "prompt" / "completion" / "total"
	)

	BackendErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "llmrank",
			Name:      "backend_errors_total",
			Help:      "Total completion errors",
		},
		[]string{"provider", "model", "error_type"},
	)

	BudgetTokensRemaining = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "llmrank",
			Name:      "budget_tokens_remaining",
			Help:      "Remaining token budget",
		},
		[]string{"provider", "period"},
	)
)

var backendOnce sync.Once

// RegisterBackendMetrics registers backend metrics with the default registry.
// Safe to call more than once.
func RegisterBackendMetrics() {
	backendOnce.Do(func() {
		prometheus.MustRegister(
			BackendRequestsTotal,
			BackendRequestDuration,
			BackendTokensTotal,
			BackendErrorsTotal,
			BudgetTokensRemaining,
		)
	})
}
