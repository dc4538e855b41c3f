package llmrank

import (
	"context"

	"github.com/kailas-cloud/llmrank/internal/domain"
	"github.com/kailas-cloud/llmrank/internal/usecase/scoring"
)

// Outcome records how a result's score was obtained.
type Outcome string

// Result outcomes. Everything except OutcomeScored carries score 0.
const (
	OutcomeScored           Outcome = Outcome(domain.OutcomeScored)
	OutcomeInvocationFailed Outcome = Outcome(domain.OutcomeInvocationFailed)
	OutcomeParseFailed      Outcome = Outcome(domain.OutcomeParseFailed)
	OutcomeDeadlineSkipped  Outcome = Outcome(domain.OutcomeDeadlineSkipped)
)

// Result is the score of one input document.
type Result struct {
	Position int // 0-based index in the input
	Document string
	Score    float64
	Outcome  Outcome
}

// Failed reports whether Score is the fallback rather than a backend judgment.
func (r Result) Failed() bool { return r.Outcome != OutcomeScored }

func resultFromDomain(r domain.ScoredResult) Result {
	return Result{
		Position: r.Position,
		Document: r.Document,
		Score:    r.Score.Float64(),
		Outcome:  Outcome(r.Outcome),
	}
}

// DeadlinePolicy decides what a run timeout does to documents not yet scored.
type DeadlinePolicy string

const (
	// DeadlineFallback emits score 0 with OutcomeDeadlineSkipped for each of them.
	DeadlineFallback = DeadlinePolicy(scoring.DeadlineFallback)
	// DeadlineDrop stops emitting.
	DeadlineDrop = DeadlinePolicy(scoring.DeadlineDrop)
)

// Completer is a custom text-generation backend. Use it to score with a
// model the built-in OpenAI-compatible transport cannot reach.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (Completion, error)
}

// CompletionRequest is one prompt with the configured generation parameters.
type CompletionRequest struct {
	Prompt      string
	Model       string
	Temperature float32
	MaxTokens   int
}

// Completion is the backend's free-form answer and its token usage.
type Completion struct {
	Text         string
	PromptTokens int
	TotalTokens  int
}

// completerAdapter wraps a public Completer to satisfy domain.Completer.
type completerAdapter struct {
	inner Completer
}

func (a *completerAdapter) Complete(ctx context.Context, req domain.CompletionRequest) (domain.Completion, error) {
	c, err := a.inner.Complete(ctx, CompletionRequest{
		Prompt:      req.Prompt,
		Model:       req.Model,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return domain.Completion{}, err //nolint:wrapcheck // classified by the invoker
	}
	return domain.Completion{
		Text:             c.Text,
		PromptTokens:     c.PromptTokens,
		CompletionTokens: c.TotalTokens - c.PromptTokens,
		TotalTokens:      c.TotalTokens,
	}, nil
}

// HealthStatus represents the aggregated system health.
type HealthStatus struct {
	Status string            // "ok", "degraded"
	Checks map[string]string // component → "ok"/"error"
}

// UsageReport is the backend consumption for one period.
type UsageReport struct {
	Period          string // "day" or "month"
	Requests        int64
	Tokens          int64
	TokensLimit     int64 // 0 = unlimited
	TokensRemaining int64 // -1 = unlimited
	IsExhausted     bool
}
