package usage

import (
	"context"
	"time"

	domusage "github.com/kailas-cloud/llmrank/internal/domain/usage"
)

// Service handles usage reporting.
type Service struct {
	br  BudgetReader
	now func() time.Time
}

// New creates a Service. br can be nil (unlimited mode, nothing tracked).
func New(br BudgetReader) *Service {
	return &Service{br: br, now: time.Now}
}

// GetReport builds a usage report for the given period.
func (s *Service) GetReport(_ context.Context, period domusage.Period) domusage.Report {
	start, end := period.Bounds(s.now())

	var requests, tokens, limit int64
	if s.br != nil {
		requests, tokens, limit = s.br.Usage(period)
	}

	return domusage.NewReport(period, start, end, requests, tokens, limit)
}
