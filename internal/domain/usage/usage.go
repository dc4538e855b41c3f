// Package usage describes backend token consumption reports.
package usage

import (
	"fmt"
	"time"
)

// Period is the aggregation granularity.
type Period string

// Aggregation period constants.
const (
	PeriodDay   Period = "day"
	PeriodMonth Period = "month"
)

// ParsePeriod validates a period name. Empty means PeriodDay.
func ParsePeriod(s string) (Period, error) {
	switch Period(s) {
	case "", PeriodDay:
		return PeriodDay, nil
	case PeriodMonth:
		return PeriodMonth, nil
	default:
		return "", fmt.Errorf("unknown period %q", s)
	}
}

// Bounds returns the UTC [start, end) window of the period containing t.
func (p Period) Bounds(t time.Time) (time.Time, time.Time) {
	t = t.UTC()
	if p == PeriodMonth {
		start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
		return start, start.AddDate(0, 1, 0)
	}
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 0, 1)
}

// Report is a token usage snapshot for one period.
type Report struct {
	period      Period
	periodStart time.Time
	periodEnd   time.Time
	requests    int64
	tokens      int64
	limit       int64
	remaining   int64
}

// NewReport creates a usage report. limit 0 means unlimited, in which case
// remaining is reported as -1.
func NewReport(period Period, start, end time.Time, requests, tokens, limit int64) Report {
	remaining := int64(-1)
	if limit > 0 {
		remaining = max(limit-tokens, 0)
	}
	return Report{
		period:      period,
		periodStart: start,
		periodEnd:   end,
		requests:    requests,
		tokens:      tokens,
		limit:       limit,
		remaining:   remaining,
	}
}

// Period returns the aggregation granularity.
func (r Report) Period() Period { return r.period }

// PeriodStart returns the inclusive period start.
func (r Report) PeriodStart() time.Time { return r.periodStart }

// PeriodEnd returns the exclusive period end, which is also when the budget resets.
func (r Report) PeriodEnd() time.Time { return r.periodEnd }

// Requests returns the number of backend calls recorded in the period.
func (r Report) Requests() int64 { return r.requests }

// Tokens returns the total tokens consumed in the period.
func (r Report) Tokens() int64 { return r.tokens }

// TokensLimit returns the token cap (0 if unlimited).
func (r Report) TokensLimit() int64 { return r.limit }

// TokensRemaining returns tokens left (-1 if unlimited).
func (r Report) TokensRemaining() int64 { return r.remaining }

// IsExhausted reports whether a limited budget is spent.
func (r Report) IsExhausted() bool { return r.limit > 0 && r.remaining == 0 }
