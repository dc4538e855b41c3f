// Package app is the composition root: it turns a Config into a wired
// scoring pipeline shared by the HTTP server, the CLI and the SDK.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/kailas-cloud/llmrank/internal/config"
	dbRedis "github.com/kailas-cloud/llmrank/internal/db/redis"
	"github.com/kailas-cloud/llmrank/internal/domain"
	"github.com/kailas-cloud/llmrank/internal/domain/prompt"
	"github.com/kailas-cloud/llmrank/internal/metrics"
	budgetrepo "github.com/kailas-cloud/llmrank/internal/repository/budget"
	openaiBackend "github.com/kailas-cloud/llmrank/internal/transport/openai"
	completionuc "github.com/kailas-cloud/llmrank/internal/usecase/completion"
	healthuc "github.com/kailas-cloud/llmrank/internal/usecase/health"
	"github.com/kailas-cloud/llmrank/internal/usecase/invoke"
	"github.com/kailas-cloud/llmrank/internal/usecase/scoring"
	usageuc "github.com/kailas-cloud/llmrank/internal/usecase/usage"
)

// Budget counter TTLs in the store: long enough to outlive their period.
const (
	budgetDailyTTL   = 48 * time.Hour
	budgetMonthlyTTL = 62 * 24 * time.Hour
)

// App holds the wired services.
type App struct {
	Backend config.Backend
	Scoring *scoring.Service
	Health  *healthuc.Service
	Usage   *usageuc.Service

	skipIfUnavailable bool
	budget            *completionuc.BudgetTracker
	store             *dbRedis.Store
	logger            *zap.Logger
}

type settings struct {
	completer  domain.Completer
	httpClient *http.Client
	registerer prometheus.Registerer
	tracer     trace.TracerProvider
}

// Option customizes New.
type Option func(*settings)

// WithCompleter replaces the OpenAI-compatible transport. Budgeting still applies.
func WithCompleter(c domain.Completer) Option {
	return func(s *settings) { s.completer = c }
}

// WithHTTPClient sets the HTTP client used to reach the backend.
func WithHTTPClient(c *http.Client) Option {
	return func(s *settings) { s.httpClient = c }
}

// WithRegisterer registers pipeline metrics with reg instead of the default registry.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(s *settings) { s.registerer = reg }
}

// WithTracerProvider sets the tracer provider for scoring spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *settings) { s.tracer = tp }
}

// New wires the pipeline. It fails with domain.ErrNoBackend when no backend
// resolves, and when a configured store never becomes ready.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	var st settings
	for _, o := range opts {
		o(&st)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if st.registerer == nil {
		st.registerer = prometheus.DefaultRegisterer
	}
	if err := metrics.RegisterWith(st.registerer); err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}

	backend, err := config.ResolveBackend(cfg.Backend)
	if err != nil {
		if st.completer == nil {
			return nil, fmt.Errorf("resolve backend: %w", err)
		}
		backend = config.Backend{Provider: "custom", Model: cfg.Backend.Model, Source: "option"}
	}
	logger.Info("Backend resolved",
		zap.String("source", backend.Source),
		zap.String("provider", backend.Provider),
		zap.String("base_url", backend.BaseURL),
		zap.String("model", backend.Model),
	)

	a := &App{
		Backend:           backend,
		skipIfUnavailable: cfg.SkipIfUnavailable,
		logger:            logger,
	}

	if cfg.Store.Enabled() {
		if err := a.connectStore(ctx, cfg.Store); err != nil {
			return nil, err
		}
	}

	// Pass a nil interface, not a typed nil pointer, when no budget is set.
	var budget completionuc.BudgetChecker
	var budgetReader usageuc.BudgetReader
	if cfg.Budget.Enabled() {
		action := completionuc.BudgetActionWarn
		if cfg.Budget.Action == string(completionuc.BudgetActionReject) {
			action = completionuc.BudgetActionReject
		}
		tracker := completionuc.NewBudgetTracker(
			backend.Provider, cfg.Budget.DailyTokenLimit, cfg.Budget.MonthlyTokenLimit, action, logger,
		)
		if a.store != nil {
			tracker.WithStore(ctx, budgetrepo.New(a.store, budgetDailyTTL, budgetMonthlyTTL))
		}
		budget, budgetReader = tracker, tracker
		a.budget = tracker
	}

	var base domain.Completer = st.completer
	if base == nil {
		base = openaiBackend.NewCompleter(&openaiBackend.Config{
			APIKey:     backend.APIKey,
			BaseURL:    backend.BaseURL,
			Provider:   backend.Provider,
			HTTPClient: st.httpClient,
			Logger:     logger,
		})
	}
	completer := completionuc.NewInstrumentedCompleter(base, backend.Provider, budget, logger)

	inv := invoke.New(completer, domain.GenerationConfig{
		Model:       backend.Model,
		Temperature: cfg.Backend.Temperature,
		MaxTokens:   cfg.Backend.MaxTokens,
	}, backend.APIKey)

	scoringOpts := ScoringOptions(cfg.Scoring)
	if err := scoringOpts.Validate(); err != nil {
		a.Close()
		return nil, fmt.Errorf("scoring options: %w", err)
	}
	a.Scoring = scoring.New(inv, prompt.Builder{
		MaxQueryRunes:    cfg.Scoring.MaxQueryRunes,
		MaxDocumentRunes: cfg.Scoring.MaxDocumentRunes,
	}, scoringOpts)
	if st.tracer != nil {
		a.Scoring.WithTracerProvider(st.tracer)
	}

	var store healthuc.StorePinger
	if a.store != nil {
		store = a.store
	}
	a.Health = healthuc.New(a.Scoring, store, cfg.Probe.Timeout).WithConnectivity(completer)
	a.Usage = usageuc.New(budgetReader)

	return a, nil
}

func (a *App) connectStore(ctx context.Context, cfg config.StoreConfig) error {
	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Addrs,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err != nil {
		return fmt.Errorf("create store: %w", err)
	}
	if err := store.WaitForReady(ctx, time.Duration(cfg.ReadinessTimeout)*time.Second); err != nil {
		store.Close()
		return fmt.Errorf("store not ready: %w", err)
	}
	a.logger.Info("Connected to budget store", zap.Strings("addrs", cfg.Addrs))
	a.store = store
	return nil
}

// Ready runs the availability probe when skip_if_unavailable is set and
// returns domain.ErrBackendUnavailable if it fails.
func (a *App) Ready(ctx context.Context) error {
	if !a.skipIfUnavailable {
		return nil
	}
	if !a.Health.IsAvailable(ctx) {
		return domain.ErrBackendUnavailable
	}
	return nil
}

// Close waits for pending budget writes, then releases the store connection.
func (a *App) Close() {
	if a.budget != nil {
		a.budget.Close()
	}
	if a.store != nil {
		a.store.Close()
	}
}

// ScoringOptions maps the scoring config section onto orchestrator options.
func ScoringOptions(c config.ScoringConfig) scoring.Options {
	return scoring.Options{
		MaxInFlight:       c.MaxInFlight,
		PreserveOrder:     c.PreserveOrder,
		CallTimeout:       c.CallTimeout,
		MaxAttempts:       c.MaxAttempts,
		RetryBaseDelay:    c.RetryBaseDelay,
		RetryMaxDelay:     c.RetryMaxDelay,
		RequestsPerSecond: c.RequestsPerSecond,
		RunTimeout:        c.RunTimeout,
		DeadlinePolicy:    scoring.DeadlinePolicy(c.DeadlinePolicy),
	}
}
