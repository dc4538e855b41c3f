package scoring

import (
	"context"
	"errors"
	"iter"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/kailas-cloud/llmrank/internal/domain"
	"github.com/kailas-cloud/llmrank/internal/domain/verdict"
	"github.com/kailas-cloud/llmrank/internal/logger"
	"github.com/kailas-cloud/llmrank/internal/metrics"
	"github.com/kailas-cloud/llmrank/internal/usecase/invoke"
)

// run is the state of a single Score call. All fields except ctx are
// owned by the consumer's goroutine.
type run struct {
	svc   *Service
	query string
	docs  iter.Seq[string]
	id    string

	parent context.Context // caller context: cancellation aborts the run
	ctx    context.Context // parent plus the run timeout

	out      *emitter
	counts   map[domain.Outcome]int
	pulled   int
	err      error
	deadline bool
}

func newRun(ctx context.Context, svc *Service, query string, docs iter.Seq[string]) *run {
	id := uuid.NewString()
	return &run{
		svc:    svc,
		query:  query,
		docs:   docs,
		id:     id,
		parent: logger.With(ctx, zap.String("run_id", id)),
		counts: make(map[domain.Outcome]int, 4),
	}
}

func (r *run) execute(yield func(domain.ScoredResult) bool) error {
	opts := r.svc.opts
	start := time.Now()

	ctx, span := r.svc.tracer.Start(r.parent, "scoring.Run", trace.WithAttributes(
		attribute.String("llmrank.run_id", r.id),
		attribute.Int("llmrank.max_in_flight", opts.MaxInFlight),
		attribute.Bool("llmrank.preserve_order", opts.PreserveOrder),
	))
	defer span.End()
	r.parent = ctx

	release := context.CancelFunc(func() {})
	r.ctx = ctx
	if opts.RunTimeout > 0 {
		r.ctx, release = context.WithTimeout(ctx, opts.RunTimeout)
	}

	r.out = newEmitter(func(res domain.ScoredResult) bool {
		r.record(res)
		return yield(res)
	}, opts.PreserveOrder && opts.MaxInFlight > 1)

	if opts.MaxInFlight > 1 {
		r.concurrent(release)
	} else {
		r.sequential()
		release()
	}

	if r.err == nil && r.deadline {
		r.err = domain.ErrRunDeadline
	}
	r.summarize(span, time.Since(start))
	return r.err
}

// sequential scores one document at a time in the consumer's goroutine.
func (r *run) sequential() {
	for doc := range r.docs {
		pos := r.pulled
		r.pulled++

		if r.aborted() {
			return
		}
		if r.expired() {
			if !r.skip(pos, doc) {
				return
			}
			continue
		}

		res, ok := r.scoreOne(r.ctx, pos, doc)
		if !ok {
			if r.aborted() || !r.skip(pos, doc) {
				return
			}
			continue
		}
		if !r.out.push(res) {
			return
		}
	}
}

type workerResult struct {
	res domain.ScoredResult
	ok  bool
}

// concurrent scores up to MaxInFlight documents at once. Documents are
// pulled only when a slot is free. release is called once every started
// call has finished, even if the consumer left early.
func (r *run) concurrent(release context.CancelFunc) {
	n := r.svc.opts.MaxInFlight
	sem := semaphore.NewWeighted(int64(n))
	// One spare slot: a worker launched right after a drain may finish
	// together with the n already running before the next drain.
	results := make(chan workerResult, n+1)
	inflight := 0

	defer func() {
		go func(left int) {
			for range left {
				<-results
			}
			release()
		}(inflight)
	}()

	handle := func(w workerResult) bool {
		inflight--
		if w.ok {
			return r.out.push(w.res)
		}
		if r.aborted() {
			return false
		}
		if !r.skip(w.res.Position, w.res.Document) {
			return false
		}
		return !r.out.stopped
	}

	drainReady := func() bool {
		for {
			select {
			case w := <-results:
				if !handle(w) {
					return false
				}
			default:
				return true
			}
		}
	}

	for doc := range r.docs {
		pos := r.pulled
		r.pulled++

		if !drainReady() || r.aborted() {
			return
		}
		if !r.expired() {
			if err := sem.Acquire(r.ctx, 1); err == nil {
				inflight++
				go func() {
					res, ok := r.scoreOne(r.ctx, pos, doc)
					results <- workerResult{res: res, ok: ok}
					sem.Release(1)
				}()
				continue
			}
			if r.aborted() {
				return
			}
		}
		if !r.skip(pos, doc) {
			break
		}
	}

	// Calls that finished before the deadline still count under both policies.
	for inflight > 0 && !r.out.stopped {
		if !handle(<-results) {
			return
		}
	}
}

// aborted records the caller's cancellation as the run error.
func (r *run) aborted() bool {
	if err := r.parent.Err(); err != nil {
		r.err = err
		return true
	}
	return false
}

// expired reports whether the run timeout, not the caller, ended the run context.
func (r *run) expired() bool {
	return r.ctx.Err() != nil && r.parent.Err() == nil
}

// skip applies the deadline policy to a document that will not be scored.
// It returns false when no further documents should be pulled.
func (r *run) skip(pos int, doc string) bool {
	r.deadline = true
	if r.svc.opts.DeadlinePolicy == DeadlineDrop {
		r.out.drop(pos)
		return false
	}
	return r.out.push(domain.NewFallback(pos, doc, domain.OutcomeDeadlineSkipped))
}

// scoreOne runs prompt, invoke and parse for one document. ok is false
// when ctx ended before a verdict was reached.
func (r *run) scoreOne(ctx context.Context, pos int, doc string) (domain.ScoredResult, bool) {
	ctx, span := r.svc.tracer.Start(ctx, "scoring.Document",
		trace.WithAttributes(attribute.Int("llmrank.position", pos)))
	defer span.End()

	log := logger.FromContext(ctx).With(zap.Int("position", pos))

	raw, err := r.invoke(ctx, r.svc.prompts.Build(r.query, doc))
	if err != nil {
		if ctx.Err() != nil {
			span.SetStatus(codes.Error, "interrupted")
			return domain.ScoredResult{Position: pos, Document: doc}, false
		}
		log.Warn("Document invocation failed",
			zap.String("outcome", string(domain.OutcomeInvocationFailed)),
			zap.Error(err),
		)
		span.RecordError(err)
		span.SetStatus(codes.Error, string(domain.OutcomeInvocationFailed))
		return domain.NewFallback(pos, doc, domain.OutcomeInvocationFailed), true
	}

	score, err := verdict.Parse(raw)
	if err != nil {
		log.Warn("Document response unparsable",
			zap.String("outcome", string(domain.OutcomeParseFailed)),
			zap.Error(err),
		)
		span.RecordError(err)
		span.SetStatus(codes.Error, string(domain.OutcomeParseFailed))
		return domain.NewFallback(pos, doc, domain.OutcomeParseFailed), true
	}

	span.SetAttributes(attribute.Float64("llmrank.score", score.Float64()))
	return domain.NewScored(pos, doc, score), true
}

// invoke calls the backend, retrying retryable failures with exponential backoff.
func (r *run) invoke(ctx context.Context, prompt string) (string, error) {
	opts := r.svc.opts
	attempt := 0

	op := func() (string, error) {
		if err := r.svc.throttle(ctx); err != nil {
			return "", backoff.Permanent(err)
		}
		attempt++
		if attempt > 1 {
			metrics.ScoringRetriesTotal.Inc()
		}

		metrics.ScoringInFlight.Inc()
		raw, err := r.svc.invoker.Invoke(ctx, prompt, opts.CallTimeout)
		metrics.ScoringInFlight.Dec()

		if err != nil && !invoke.IsRetryable(err) {
			return "", backoff.Permanent(err)
		}
		return raw, err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = opts.RetryBaseDelay
	b.MaxInterval = opts.RetryMaxDelay

	return backoff.Retry(ctx, op, //nolint:wrapcheck // InvocationError is already descriptive
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(opts.MaxAttempts)),
	)
}

func (r *run) record(res domain.ScoredResult) {
	r.counts[res.Outcome]++
	metrics.ScoringResultsTotal.WithLabelValues(string(res.Outcome)).Inc()
	if res.Outcome == domain.OutcomeScored {
		metrics.ScoringScore.Observe(res.Score.Float64())
	}
}

func (r *run) summarize(span trace.Span, elapsed time.Duration) {
	status := "ok"
	switch {
	case errors.Is(r.err, domain.ErrRunDeadline):
		status = "deadline"
	case r.err != nil:
		status = "canceled"
	}
	metrics.ScoringRunDuration.WithLabelValues(status).Observe(elapsed.Seconds())

	emitted := 0
	for _, c := range r.counts {
		emitted += c
	}
	span.SetAttributes(
		attribute.Int("llmrank.documents", r.pulled),
		attribute.Int("llmrank.results", emitted),
		attribute.String("llmrank.status", status),
	)
	if r.err != nil {
		span.SetStatus(codes.Error, r.err.Error())
	}

	logger.FromContext(r.parent).Info("Scoring run finished",
		zap.String("status", status),
		zap.Int("documents", r.pulled),
		zap.Int("results", emitted),
		zap.Int("scored", r.counts[domain.OutcomeScored]),
		zap.Int("invocation_failed", r.counts[domain.OutcomeInvocationFailed]),
		zap.Int("parse_failed", r.counts[domain.OutcomeParseFailed]),
		zap.Int("deadline_skipped", r.counts[domain.OutcomeDeadlineSkipped]),
		zap.Duration("duration", elapsed),
	)
}
