package usage

import domusage "github.com/kailas-cloud/llmrank/internal/domain/usage"

// BudgetReader provides read-only access to token budget state.
type BudgetReader interface {
	Usage(p domusage.Period) (requests, tokens, limit int64)
}
