package app

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kailas-cloud/llmrank/internal/config"
	"github.com/kailas-cloud/llmrank/internal/domain"
	"github.com/kailas-cloud/llmrank/internal/domain/usage"
	"github.com/kailas-cloud/llmrank/internal/usecase/health"
	"github.com/kailas-cloud/llmrank/internal/usecase/scoring"
)

// --- Mocks ---

type fakeCompleter struct {
	text   string
	err    error
	tokens int
	calls  atomic.Int32
	model  atomic.Value
}

func (f *fakeCompleter) Complete(_ context.Context, req domain.CompletionRequest) (domain.Completion, error) {
	f.calls.Add(1)
	f.model.Store(req.Model)
	if f.err != nil {
		return domain.Completion{}, f.err
	}
	return domain.Completion{Text: f.text, TotalTokens: f.tokens}, nil
}

func newTestApp(t *testing.T, cfg config.Config, c domain.Completer) *App {
	t.Helper()
	a, err := New(context.Background(), cfg, nil,
		WithCompleter(c),
		WithRegisterer(prometheus.NewRegistry()),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(a.Close)
	return a
}

// --- Tests ---

func TestNew_ScoresThroughPipeline(t *testing.T) {
	cfg := config.Default()
	cfg.Backend.Model = "test-model"
	fc := &fakeCompleter{text: "Relevance: 0.7"}
	a := newTestApp(t, cfg, fc)

	rs, err := a.Scoring.ScoreAll(context.Background(), "reset password", []string{"doc"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rs) != 1 || rs[0].Score != 0.7 || rs[0].Outcome != domain.OutcomeScored {
		t.Fatalf("unexpected results: %+v", rs)
	}
	if fc.model.Load() != "test-model" {
		t.Errorf("configured model not sent, got %v", fc.model.Load())
	}
}

func TestNew_RejectBudgetFallsBack(t *testing.T) {
	cfg := config.Default()
	cfg.Budget = config.BudgetConfig{DailyTokenLimit: 10, Action: "reject"}
	cfg.Scoring.MaxAttempts = 3
	fc := &fakeCompleter{text: "0.9", tokens: 10}
	a := newTestApp(t, cfg, fc)

	rs, err := a.Scoring.ScoreAll(context.Background(), "q", []string{"a", "b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rs[0].Outcome != domain.OutcomeScored {
		t.Errorf("first document must be scored, got %q", rs[0].Outcome)
	}
	if rs[1].Outcome != domain.OutcomeInvocationFailed || rs[1].Score != domain.FallbackScore {
		t.Errorf("second document must fall back on quota, got %+v", rs[1])
	}
	if fc.calls.Load() != 1 {
		t.Errorf("exhausted budget must block the call without retries, got %d calls", fc.calls.Load())
	}

	r := a.Usage.GetReport(context.Background(), usage.PeriodDay)
	if r.Tokens() != 10 || !r.IsExhausted() {
		t.Errorf("unexpected usage report: tokens=%d exhausted=%v", r.Tokens(), r.IsExhausted())
	}
}

func TestNew_HealthWithoutStore(t *testing.T) {
	a := newTestApp(t, config.Default(), &fakeCompleter{text: "0.8"})

	r := a.Health.Check(context.Background())
	if r.Status != health.Healthy {
		t.Errorf("expected healthy, got %q (%v)", r.Status, r.Checks)
	}
	if _, ok := r.Checks["store"]; ok {
		t.Error("store check must be absent without a store")
	}
}

func TestReady_SkipIfUnavailable(t *testing.T) {
	cfg := config.Default()
	cfg.SkipIfUnavailable = true
	a := newTestApp(t, cfg, &fakeCompleter{err: errors.New("connection refused")})

	if err := a.Ready(context.Background()); !errors.Is(err, domain.ErrBackendUnavailable) {
		t.Fatalf("expected ErrBackendUnavailable, got %v", err)
	}
}

func TestReady_ProbeDisabled(t *testing.T) {
	fc := &fakeCompleter{err: errors.New("connection refused")}
	a := newTestApp(t, config.Default(), fc)

	if err := a.Ready(context.Background()); err != nil {
		t.Fatalf("Ready must not probe without skip_if_unavailable: %v", err)
	}
	if fc.calls.Load() != 0 {
		t.Error("no backend call expected")
	}
}

func TestNew_InvalidScoringOptions(t *testing.T) {
	cfg := config.Default()
	cfg.Scoring.DeadlinePolicy = "wait"

	_, err := New(context.Background(), cfg, nil,
		WithCompleter(&fakeCompleter{}),
		WithRegisterer(prometheus.NewRegistry()),
	)
	if err == nil {
		t.Fatal("expected error for unknown deadline policy")
	}
}

func TestScoringOptions(t *testing.T) {
	cfg := config.Default()
	cfg.Scoring.MaxInFlight = 4
	cfg.Scoring.PreserveOrder = true
	cfg.Scoring.DeadlinePolicy = "drop"

	o := ScoringOptions(cfg.Scoring)
	if o.MaxInFlight != 4 || !o.PreserveOrder || o.DeadlinePolicy != scoring.DeadlineDrop {
		t.Errorf("unexpected options: %+v", o)
	}
	if o.CallTimeout != cfg.Scoring.CallTimeout {
		t.Errorf("call timeout = %v", o.CallTimeout)
	}
}

func TestHealth_UnreachableBackend(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	baseURL := srv.URL + "/v1"
	srv.Close()

	cfg := config.Default()
	cfg.Backend.BaseURL = baseURL
	cfg.Backend.APIKey = "sk-test"
	cfg.Probe.Timeout = 2 * time.Second

	a, err := New(context.Background(), cfg, nil, WithRegisterer(prometheus.NewRegistry()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(a.Close)

	start := time.Now()
	if a.Health.IsAvailable(context.Background()) {
		t.Fatal("closed port must be unavailable")
	}
	if elapsed := time.Since(start); elapsed > cfg.Probe.Timeout {
		t.Errorf("availability check took %v, longer than its %v timeout", elapsed, cfg.Probe.Timeout)
	}

	r := a.Health.Check(context.Background())
	if r.Status != health.Degraded || r.Checks["connectivity"] != health.CheckError {
		t.Errorf("unexpected report: %+v", r)
	}
}
