package scoring

import (
	"context"
	"time"
)

// Invoker sends one prompt to the backend and returns its raw text.
type Invoker interface {
	Invoke(ctx context.Context, prompt string, timeout time.Duration) (string, error)
}

// PromptBuilder renders the judgment prompt for a (query, document) pair.
type PromptBuilder interface {
	Build(query, document string) string
}
