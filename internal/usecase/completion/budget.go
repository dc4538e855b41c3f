package completion

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/llmrank/internal/domain"
	"github.com/kailas-cloud/llmrank/internal/domain/usage"
)

// BudgetAction defines behavior when token budget is exceeded.
type BudgetAction string

const (
	// BudgetActionWarn logs a warning but allows the request.
	BudgetActionWarn BudgetAction = "warn"
	// BudgetActionReject blocks the request.
	BudgetActionReject BudgetAction = "reject"
)

// BudgetStore is the persistence interface for budget counters.
type BudgetStore interface {
	IncrBy(ctx context.Context, key string, val int64) error
	Get(ctx context.Context, key string) (int64, error)
}

// counter holds one period's consumption.
type counter struct {
	tokens   int64
	requests int64
	since    time.Time
}

// persistTimeout bounds one background write of the budget counters.
const persistTimeout = 2 * time.Second

// BudgetTracker is an in-memory token budget with optional write-behind persistence.
// Check never leaves the process; Record updates memory and hands the store
// writes to a background goroutine. Close waits for pending writes.
type BudgetTracker struct {
	mu           sync.Mutex
	pending      sync.WaitGroup
	persistAfter time.Duration
	daily        counter
	monthly      counter
	dailyLimit   int64
	monthlyLimit int64
	action       BudgetAction
	provider     string
	now          func() time.Time
	store        BudgetStore
	logger       *zap.Logger
}

// NewBudgetTracker creates a budget tracker with the given limits. A zero limit is unlimited.
func NewBudgetTracker(
	provider string, dailyLimit, monthlyLimit int64,
	action BudgetAction, logger *zap.Logger,
) *BudgetTracker {
	b := &BudgetTracker{
		dailyLimit:   dailyLimit,
		monthlyLimit: monthlyLimit,
		action:       action,
		provider:     provider,
		now:          time.Now,
		logger:       logger,
		persistAfter: persistTimeout,
	}
	b.resetIfNeeded()
	return b
}

// WithStore attaches a persistence store and loads the current period's counters.
func (b *BudgetTracker) WithStore(ctx context.Context, store BudgetStore) *BudgetTracker {
	b.store = store
	b.loadFromStore(ctx)
	return b
}

func (b *BudgetTracker) loadFromStore(ctx context.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.resetIfNeeded()
	now := b.now().UTC()

	for _, item := range []struct {
		key string
		dst *int64
	}{
		{b.key("budget", usage.PeriodDay, now), &b.daily.tokens},
		{b.key("budget", usage.PeriodMonth, now), &b.monthly.tokens},
		{b.key("requests", usage.PeriodDay, now), &b.daily.requests},
		{b.key("requests", usage.PeriodMonth, now), &b.monthly.requests},
	} {
		val, err := b.store.Get(ctx, item.key)
		if err != nil {
			b.logger.Warn("Failed to load budget counter", zap.String("key", item.key), zap.Error(err))
			continue
		}
		*item.dst = val
	}

	b.logger.Info("Budget loaded from store",
		zap.String("provider", b.provider),
		zap.Int64("daily_used", b.daily.tokens),
		zap.Int64("monthly_used", b.monthly.tokens),
	)
}

func (b *BudgetTracker) key(kind string, p usage.Period, t time.Time) string {
	if p == usage.PeriodMonth {
		return fmt.Sprintf("%s%s:%s:monthly:%s", domain.KeyPrefix, kind, b.provider, t.Format("2006-01"))
	}
	return fmt.Sprintf("%s%s:%s:daily:%s", domain.KeyPrefix, kind, b.provider, t.Format("2006-01-02"))
}

// Check reports whether the budget allows another request.
// With BudgetActionReject an exhausted budget yields domain.ErrQuotaExceeded.
func (b *BudgetTracker) Check(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.resetIfNeeded()

	dailyExceeded := b.dailyLimit > 0 && b.daily.tokens >= b.dailyLimit
	monthlyExceeded := b.monthlyLimit > 0 && b.monthly.tokens >= b.monthlyLimit
	if !dailyExceeded && !monthlyExceeded {
		return nil
	}

	if b.action == BudgetActionReject {
		if dailyExceeded {
			return fmt.Errorf("daily limit %d: %w", b.dailyLimit, domain.ErrQuotaExceeded)
		}
		return fmt.Errorf("monthly limit %d: %w", b.monthlyLimit, domain.ErrQuotaExceeded)
	}

	b.logger.Warn("Token budget exceeded",
		zap.String("provider", b.provider),
		zap.Int64("daily_used", b.daily.tokens),
		zap.Int64("daily_limit", b.dailyLimit),
		zap.Int64("monthly_used", b.monthly.tokens),
		zap.Int64("monthly_limit", b.monthlyLimit),
	)
	return nil
}

// Record registers one completed request and its tokens.
func (b *BudgetTracker) Record(tokens int64) {
	b.mu.Lock()
	b.resetIfNeeded()
	b.daily.tokens += tokens
	b.monthly.tokens += tokens
	b.daily.requests++
	b.monthly.requests++
	store := b.store
	now := b.now().UTC()
	b.mu.Unlock()

	if store == nil {
		return
	}

	b.pending.Go(func() { b.persist(store, tokens, now) })
}

// persist writes one request's increments under its own deadline.
func (b *BudgetTracker) persist(store BudgetStore, tokens int64, now time.Time) {
	ctx, cancel := context.WithTimeout(context.Background(), b.persistAfter)
	defer cancel()

	for _, w := range []struct {
		key string
		val int64
	}{
		{b.key("budget", usage.PeriodDay, now), tokens},
		{b.key("budget", usage.PeriodMonth, now), tokens},
		{b.key("requests", usage.PeriodDay, now), 1},
		{b.key("requests", usage.PeriodMonth, now), 1},
	} {
		if w.val == 0 {
			continue
		}
		if err := store.IncrBy(ctx, w.key, w.val); err != nil {
			b.logger.Warn("Failed to persist budget counter", zap.String("key", w.key), zap.Error(err))
		}
	}
}

// Close waits for background counter writes to finish.
func (b *BudgetTracker) Close() {
	b.pending.Wait()
}

// RemainingDaily returns tokens left in the daily budget (-1 if unlimited).
func (b *BudgetTracker) RemainingDaily() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resetIfNeeded()
	return remaining(b.dailyLimit, b.daily.tokens)
}

// RemainingMonthly returns tokens left in the monthly budget (-1 if unlimited).
func (b *BudgetTracker) RemainingMonthly() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resetIfNeeded()
	return remaining(b.monthlyLimit, b.monthly.tokens)
}

// Usage returns requests, tokens and the limit for the current period.
func (b *BudgetTracker) Usage(p usage.Period) (requests, tokens, limit int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resetIfNeeded()
	if p == usage.PeriodMonth {
		return b.monthly.requests, b.monthly.tokens, b.monthlyLimit
	}
	return b.daily.requests, b.daily.tokens, b.dailyLimit
}

func remaining(limit, used int64) int64 {
	if limit == 0 {
		return -1
	}
	return max(limit-used, 0)
}

// resetIfNeeded zeroes counters when the day or month rolls over. Caller holds mu.
func (b *BudgetTracker) resetIfNeeded() {
	now := b.now()
	day, _ := usage.PeriodDay.Bounds(now)
	month, _ := usage.PeriodMonth.Bounds(now)

	if day.After(b.daily.since) {
		b.daily = counter{since: day}
	}
	if month.After(b.monthly.since) {
		b.monthly = counter{since: month}
	}
}
