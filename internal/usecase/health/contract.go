package health

import (
	"context"

	"github.com/kailas-cloud/llmrank/internal/domain"
)

// Scorer runs the scoring pipeline over a small batch.
type Scorer interface {
	ScoreAll(ctx context.Context, query string, docs []string) ([]domain.ScoredResult, error)
}

// StorePinger checks budget store availability.
type StorePinger interface {
	Ping(ctx context.Context) error
}

// BackendChecker verifies backend connectivity without generating text.
type BackendChecker interface {
	HealthCheck(ctx context.Context) error
}
