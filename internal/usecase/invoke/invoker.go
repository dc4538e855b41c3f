// Package invoke performs single, bounded backend calls for the scoring pipeline.
package invoke

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/llmrank/internal/domain"
	"github.com/kailas-cloud/llmrank/internal/logger"
)

// Invoker sends one prompt to the backend per call. It never retries;
// retry policy belongs to the caller.
type Invoker struct {
	completer domain.Completer
	gen       domain.GenerationConfig
	redactor  redactor
}

// New creates an Invoker. secrets (API keys, tokens) are scrubbed from error messages.
func New(c domain.Completer, gen domain.GenerationConfig, secrets ...string) *Invoker {
	return &Invoker{
		completer: c,
		gen:       gen,
		redactor:  newRedactor(secrets),
	}
}

// Invoke sends prompt and returns the raw backend text. A timeout <= 0
// disables the per-call deadline. Every failure is an *InvocationError.
func (i *Invoker) Invoke(ctx context.Context, prompt string, timeout time.Duration) (string, error) {
	callCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	res, err := i.completer.Complete(callCtx, i.gen.Request(prompt))
	if err == nil {
		logger.FromContext(ctx).Debug("backend call completed",
			zap.Duration("duration", time.Since(start)),
			zap.Int("total_tokens", res.TotalTokens),
		)
		return res.Text, nil
	}

	kind := KindBackend
	if ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		kind = KindTimeout
	}
	return "", &InvocationError{Kind: kind, Err: err, msg: i.redactor.redact(err.Error())}
}
