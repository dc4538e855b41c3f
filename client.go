package llmrank

import (
	"context"
	"fmt"
	"iter"
	"slices"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/llmrank/internal/app"
	domusage "github.com/kailas-cloud/llmrank/internal/domain/usage"
	"github.com/kailas-cloud/llmrank/internal/usecase/scoring"
)

// Client scores documents against queries. It is safe for concurrent use.
type Client struct {
	app *app.App
	obs *observer
}

// New resolves the backend and wires the pipeline. The context bounds the
// Redis readiness wait when WithRedis is set. It fails with ErrNoBackend
// when no backend can be resolved.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := defaultClientConfig()
	for _, o := range opts {
		o.apply(cfg)
	}
	cfg.cfg.ApplyDefaults()
	if err := cfg.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("llmrank: %w", err)
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	// Without WithPrometheus the pipeline collectors go to a private registry nobody scrapes.
	reg := cfg.metricsReg
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	appOpts := []app.Option{app.WithRegisterer(reg)}
	if cfg.completer != nil {
		appOpts = append(appOpts, app.WithCompleter(&completerAdapter{inner: cfg.completer}))
	}
	if cfg.httpClient != nil {
		appOpts = append(appOpts, app.WithHTTPClient(cfg.httpClient))
	}
	if cfg.tracer != nil {
		appOpts = append(appOpts, app.WithTracerProvider(cfg.tracer))
	}

	a, err := app.New(ctx, cfg.cfg, zap.NewNop(), appOpts...)
	if err != nil {
		return nil, fmt.Errorf("llmrank: %w", err)
	}

	if cfg.logger != nil {
		cfg.logger.Info("llmrank client ready",
			"provider", a.Backend.Provider,
			"model", a.Backend.Model,
			"source", a.Backend.Source,
		)
	}
	return &Client{app: a, obs: obs}, nil
}

// Close releases all resources.
func (c *Client) Close() {
	if c.app != nil {
		c.app.Close()
	}
}

// Model returns the model the client asks.
func (c *Client) Model() string { return c.app.Backend.Model }

// Score starts a lazy run: documents are pulled from docs only while the
// returned Stream is ranged over, and breaking out of the loop stops the run.
func (c *Client) Score(ctx context.Context, query string, docs iter.Seq[string]) *Stream {
	return &Stream{client: c, ctx: ctx, query: query, docs: docs}
}

// ScoreAll scores a slice and returns the results with the run error, if any.
func (c *Client) ScoreAll(ctx context.Context, query string, docs []string) ([]Result, error) {
	st := c.Score(ctx, query, slices.Values(docs))
	out := make([]Result, 0, len(docs))
	for r := range st.All() {
		out = append(out, r)
	}
	return out, st.Err()
}

// Available scores a canned query/document pair through the full pipeline
// and reports whether a real score came back within the probe timeout.
func (c *Client) Available(ctx context.Context) bool {
	start := time.Now()
	ok := c.app.Health.IsAvailable(ctx)
	var err error
	if !ok {
		err = ErrBackendUnavailable
	}
	c.obs.observe("available", start, err)
	return ok
}

// Health checks the backend and, when configured, the Redis store.
func (c *Client) Health(ctx context.Context) HealthStatus {
	report := c.app.Health.Check(ctx)
	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}
	return HealthStatus{
		Status: string(report.Status),
		Checks: checks,
	}
}

// Usage reports consumption for "day" or "month" ("" means day).
func (c *Client) Usage(ctx context.Context, period string) (UsageReport, error) {
	p, err := domusage.ParsePeriod(period)
	if err != nil {
		return UsageReport{}, fmt.Errorf("llmrank: %w", err)
	}
	r := c.app.Usage.GetReport(ctx, p)
	return UsageReport{
		Period:          string(r.Period()),
		Requests:        r.Requests(),
		Tokens:          r.Tokens(),
		TokensLimit:     r.TokensLimit(),
		TokensRemaining: r.TokensRemaining(),
		IsExhausted:     r.IsExhausted(),
	}, nil
}

// Stream is the lazy output of one Score call.
type Stream struct {
	client *Client
	ctx    context.Context
	query  string
	docs   iter.Seq[string]

	inner *scoring.Stream
	err   error
}

// All yields one Result per input document. It can be ranged over once.
func (s *Stream) All() iter.Seq[Result] {
	return func(yield func(Result) bool) {
		if s.inner != nil || s.err != nil {
			return
		}
		start := time.Now()
		n := 0
		defer func() { s.client.obs.observe("score", start, s.Err(), "results", n) }()

		if err := s.client.app.Ready(s.ctx); err != nil {
			s.err = err
			return
		}

		s.inner = s.client.app.Scoring.Score(s.ctx, s.query, s.docs)
		for r := range s.inner.All() {
			n++
			if !yield(resultFromDomain(r)) {
				return
			}
		}
	}
}

// Err reports why the run ended early once the range over All is done:
// ErrBackendUnavailable, ErrRunDeadline or the context's error.
// Per-document failures never show up here.
func (s *Stream) Err() error {
	if s.err != nil {
		return s.err
	}
	if s.inner == nil {
		return nil
	}
	return s.inner.Err()
}
