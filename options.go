package llmrank

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"

	"github.com/kailas-cloud/llmrank/internal/config"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	cfg config.Config

	completer  Completer
	httpClient *http.Client

	logger     *slog.Logger
	metricsReg prometheus.Registerer
	tracer     trace.TracerProvider
}

func defaultClientConfig() *clientConfig {
	return &clientConfig{cfg: config.Default()}
}

// WithBackend sets an OpenAI-compatible endpoint and key, bypassing environment resolution.
// An empty baseURL means api.openai.com.
func WithBackend(baseURL, apiKey string) Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg.Backend.BaseURL = baseURL
		c.cfg.Backend.APIKey = apiKey
	})
}

// WithModel sets the model asked to judge relevance.
func WithModel(model string) Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg.Backend.Model = model
	})
}

// WithGeneration sets the sampling temperature and the answer token cap.
// Defaults: 0 and 16.
func WithGeneration(temperature float32, maxTokens int) Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg.Backend.Temperature = temperature
		c.cfg.Backend.MaxTokens = maxTokens
	})
}

// WithoutLocalFallback makes New fail with ErrNoBackend instead of trying a local Ollama.
func WithoutLocalFallback() Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg.Backend.DisableLocalFallback = true
	})
}

// WithCompleter replaces the built-in transport with a custom backend.
func WithCompleter(cm Completer) Option {
	return optionFunc(func(c *clientConfig) {
		c.completer = cm
	})
}

// WithHTTPClient sets the HTTP client of the built-in transport.
func WithHTTPClient(hc *http.Client) Option {
	return optionFunc(func(c *clientConfig) {
		c.httpClient = hc
	})
}

// WithConcurrency caps backend calls in flight per run. Default: 1 (sequential).
func WithConcurrency(n int) Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg.Scoring.MaxInFlight = n
	})
}

// WithPreserveOrder makes concurrent runs emit results in input order.
// Sequential runs always do.
func WithPreserveOrder() Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg.Scoring.PreserveOrder = true
	})
}

// WithCallTimeout bounds a single backend call. Default: 30s.
func WithCallTimeout(d time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg.Scoring.CallTimeout = d
	})
}

// WithRetry retries rate-limited, timed-out and 5xx calls with exponential
// backoff starting at baseDelay. maxAttempts counts the first try. Default: no retries.
func WithRetry(maxAttempts int, baseDelay time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg.Scoring.MaxAttempts = maxAttempts
		c.cfg.Scoring.RetryBaseDelay = baseDelay
	})
}

// WithRequestsPerSecond throttles backend calls across all runs of the client.
func WithRequestsPerSecond(rps float64) Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg.Scoring.RequestsPerSecond = rps
	})
}

// WithRunTimeout bounds a whole Score call; policy decides what happens to
// documents not scored in time. Stream.Err reports ErrRunDeadline either way.
func WithRunTimeout(d time.Duration, policy DeadlinePolicy) Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg.Scoring.RunTimeout = d
		c.cfg.Scoring.DeadlinePolicy = string(policy)
	})
}

// WithPromptCaps sets the query and document length caps in runes.
func WithPromptCaps(queryRunes, documentRunes int) Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg.Scoring.MaxQueryRunes = queryRunes
		c.cfg.Scoring.MaxDocumentRunes = documentRunes
	})
}

// WithProbeTimeout bounds Available. Default: 5s.
func WithProbeTimeout(d time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg.Probe.Timeout = d
	})
}

// WithSkipIfUnavailable probes the backend before each run; when the probe
// fails the run yields nothing and Err returns ErrBackendUnavailable.
func WithSkipIfUnavailable() Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg.SkipIfUnavailable = true
	})
}

// WithTokenBudget caps tokens per UTC day and month (0 = unlimited). With
// reject, calls over budget fail with ErrQuotaExceeded and score 0;
// otherwise they are only logged.
func WithTokenBudget(daily, monthly int64, reject bool) Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg.Budget.DailyTokenLimit = daily
		c.cfg.Budget.MonthlyTokenLimit = monthly
		c.cfg.Budget.Action = "warn"
		if reject {
			c.cfg.Budget.Action = "reject"
		}
	})
}

// WithRedis persists budget counters in Redis so limits hold across processes.
func WithRedis(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg.Store.Addrs = []string{addr}
		c.cfg.Store.Password = password
	})
}

// WithLogger enables structured logging for SDK operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers pipeline and SDK metrics on the given registerer.
// Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}

// WithTracerProvider emits a span per run and per document.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return optionFunc(func(c *clientConfig) {
		c.tracer = tp
	})
}
