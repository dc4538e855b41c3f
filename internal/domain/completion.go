package domain

import "context"

// Completer is the backend boundary: one prompt in, free-form text out.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (Completion, error)
}

// HealthChecker verifies backend connectivity without generating text.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// CompletionRequest is a single generation request. Generation parameters are
// fixed by configuration, not per call.
type CompletionRequest struct {
	Prompt      string
	Model       string
	Temperature float32
	MaxTokens   int
}

// Completion carries the backend text and token usage through the decorator chain.
type Completion struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}
