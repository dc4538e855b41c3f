package metrics

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Collectors returns the backend and scoring collectors.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		BackendRequestsTotal,
		BackendRequestDuration,
		BackendTokensTotal,
		BackendErrorsTotal,
		BudgetTokensRemaining,
		ScoringResultsTotal,
		ScoringScore,
		ScoringRetriesTotal,
		ScoringRunDuration,
		ScoringInFlight,
	}
}

// RegisterWith registers Collectors with reg, skipping any already registered there.
func RegisterWith(reg prometheus.Registerer) error {
	for _, c := range Collectors() {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return fmt.Errorf("register collector: %w", err)
		}
	}
	return nil
}
