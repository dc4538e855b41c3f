package completion

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"github.com/kailas-cloud/llmrank/internal/domain"
	"github.com/kailas-cloud/llmrank/internal/metrics"
)

func TestMain(m *testing.M) {
	metrics.RegisterBackendMetrics()
	os.Exit(m.Run())
}

type mockCompleter struct {
	result    domain.Completion
	err       error
	calls     int
	healthErr error
}

func (m *mockCompleter) Complete(_ context.Context, _ domain.CompletionRequest) (domain.Completion, error) {
	m.calls++
	return m.result, m.err
}

func (m *mockCompleter) HealthCheck(_ context.Context) error { return m.healthErr }

func TestInstrumentedCompleter_Success(t *testing.T) {
	inner := &mockCompleter{result: domain.Completion{Text: "0.9", TotalTokens: 12}}
	c := NewInstrumentedCompleter(inner, "test", nil, zap.NewNop())

	res, err := c.Complete(context.Background(), domain.CompletionRequest{Prompt: "p", Model: "m"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Text != "0.9" {
		t.Errorf("Text = %q", res.Text)
	}
}

func TestInstrumentedCompleter_InnerError(t *testing.T) {
	inner := &mockCompleter{err: domain.ErrRateLimited}
	c := NewInstrumentedCompleter(inner, "test", nil, zap.NewNop())

	_, err := c.Complete(context.Background(), domain.CompletionRequest{})
	if !errors.Is(err, domain.ErrRateLimited) {
		t.Fatalf("expected wrapped ErrRateLimited, got %v", err)
	}
}

func TestInstrumentedCompleter_BudgetRejectsBeforeCall(t *testing.T) {
	bt := NewBudgetTracker("test", 10, 0, BudgetActionReject, zap.NewNop())
	bt.Record(10)

	inner := &mockCompleter{result: domain.Completion{Text: "1"}}
	c := NewInstrumentedCompleter(inner, "test", bt, zap.NewNop())

	_, err := c.Complete(context.Background(), domain.CompletionRequest{})
	if !errors.Is(err, domain.ErrQuotaExceeded) {
		t.Fatalf("expected ErrQuotaExceeded, got %v", err)
	}
	if inner.calls != 0 {
		t.Errorf("backend must not be called with exhausted budget, got %d calls", inner.calls)
	}
}

func TestInstrumentedCompleter_RecordsUsage(t *testing.T) {
	bt := NewBudgetTracker("gauge-test", 100, 1000, BudgetActionReject, zap.NewNop())
	inner := &mockCompleter{result: domain.Completion{Text: "0.5", TotalTokens: 30}}
	c := NewInstrumentedCompleter(inner, "gauge-test", bt, zap.NewNop())

	if _, err := c.Complete(context.Background(), domain.CompletionRequest{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := bt.RemainingDaily(); got != 70 {
		t.Errorf("RemainingDaily = %d, want 70", got)
	}
	if got := testutil.ToFloat64(metrics.BudgetTokensRemaining.WithLabelValues("gauge-test", "daily")); got != 70 {
		t.Errorf("daily gauge = %v, want 70", got)
	}
	if got := testutil.ToFloat64(metrics.BudgetTokensRemaining.WithLabelValues("gauge-test", "monthly")); got != 970 {
		t.Errorf("monthly gauge = %v, want 970", got)
	}
}

func TestInstrumentedCompleter_FailedCallNotRecorded(t *testing.T) {
	bt := NewBudgetTracker("test", 100, 0, BudgetActionReject, zap.NewNop())
	inner := &mockCompleter{err: domain.ErrBackendFailure}
	c := NewInstrumentedCompleter(inner, "test", bt, zap.NewNop())

	_, _ = c.Complete(context.Background(), domain.CompletionRequest{})

	if got := bt.RemainingDaily(); got != 100 {
		t.Errorf("failed call must not consume budget, remaining %d", got)
	}
}

func TestInstrumentedCompleter_HealthCheck(t *testing.T) {
	inner := &mockCompleter{healthErr: errors.New("down")}
	c := NewInstrumentedCompleter(inner, "test", nil, zap.NewNop())

	if err := c.HealthCheck(context.Background()); err == nil {
		t.Fatal("expected health error to propagate")
	}

	inner.healthErr = nil
	if err := c.HealthCheck(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
