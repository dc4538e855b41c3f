// Package scoring drives the relevance pipeline: prompt, invoke, parse, emit.
package scoring

import (
	"context"
	"iter"
	"slices"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/llmrank/internal/domain"
)

const tracerName = "github.com/kailas-cloud/llmrank/internal/usecase/scoring"

// Service scores document streams against a query. It is safe for
// concurrent use; each Score call is an independent run.
type Service struct {
	invoker Invoker
	prompts PromptBuilder
	opts    Options
	limiter *rate.Limiter
	tracer  trace.Tracer
}

// New creates a Service. Zero-valued options take their defaults.
func New(inv Invoker, prompts PromptBuilder, opts Options) *Service {
	opts = opts.withDefaults()

	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}

	return &Service{
		invoker: inv,
		prompts: prompts,
		opts:    opts,
		limiter: limiter,
		tracer:  otel.Tracer(tracerName),
	}
}

// WithTracerProvider replaces the global tracer provider for this Service.
func (s *Service) WithTracerProvider(tp trace.TracerProvider) *Service {
	s.tracer = tp.Tracer(tracerName)
	return s
}

// Options returns the effective options after defaults.
func (s *Service) Options() Options { return s.opts }

// Score starts a lazy run over docs. Nothing is pulled or invoked until
// the returned Stream is ranged over. Each input document yields exactly
// one result unless the run is cut short (see Stream.Err).
func (s *Service) Score(ctx context.Context, query string, docs iter.Seq[string]) *Stream {
	return &Stream{run: func(yield func(domain.ScoredResult) bool) error {
		return newRun(ctx, s, query, docs).execute(yield)
	}}
}

// ScoreAll scores a slice and collects the results. On a run-level error
// the results gathered so far are returned with it.
func (s *Service) ScoreAll(ctx context.Context, query string, docs []string) ([]domain.ScoredResult, error) {
	st := s.Score(ctx, query, slices.Values(docs))
	out := make([]domain.ScoredResult, 0, len(docs))
	for res := range st.All() {
		out = append(out, res)
	}
	return out, st.Err()
}

// throttle waits for the rate limiter. When the wait would outlast ctx
// it blocks until ctx is done, since no call may start before then anyway.
func (s *Service) throttle(ctx context.Context) error {
	if s.limiter == nil {
		return nil
	}
	if err := s.limiter.Wait(ctx); err != nil {
		if ctx.Err() == nil {
			<-ctx.Done()
		}
		return ctx.Err()
	}
	return nil
}
