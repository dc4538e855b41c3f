package scoring

import (
	"fmt"
	"time"
)

// DeadlinePolicy decides what happens to unscored documents when the run timeout elapses.
type DeadlinePolicy string

const (
	// DeadlineFallback emits FallbackScore with outcome deadline_skipped for every remaining document.
	DeadlineFallback DeadlinePolicy = "fallback"
	// DeadlineDrop stops emitting at the deadline.
	DeadlineDrop DeadlinePolicy = "drop"
)

// Defaults applied to zero-valued Options fields.
const (
	DefaultMaxInFlight    = 1
	DefaultMaxAttempts    = 1
	DefaultCallTimeout    = 30 * time.Second
	DefaultRetryBaseDelay = 200 * time.Millisecond
	DefaultRetryMaxDelay  = 5 * time.Second
)

// Options tunes a scoring Service.
type Options struct {
	// MaxInFlight caps outstanding backend calls. 1 scores sequentially.
	MaxInFlight int
	// PreserveOrder makes concurrent runs emit in input order. Sequential runs always do.
	PreserveOrder bool
	// CallTimeout bounds a single backend call. Negative disables it.
	CallTimeout time.Duration
	// MaxAttempts is the number of tries for a retryable invocation failure.
	MaxAttempts int
	// RetryBaseDelay and RetryMaxDelay shape the exponential backoff between tries.
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
	// RequestsPerSecond throttles backend calls across all runs of the Service. 0 is unlimited.
	RequestsPerSecond float64
	// RunTimeout bounds a whole Score call. 0 is unlimited.
	RunTimeout time.Duration
	// DeadlinePolicy applies when RunTimeout elapses. Empty means DeadlineFallback.
	DeadlinePolicy DeadlinePolicy
}

// Validate rejects settings that cannot be normalized.
func (o Options) Validate() error {
	switch {
	case o.MaxInFlight < 0:
		return fmt.Errorf("max in-flight must be >= 0, got %d", o.MaxInFlight)
	case o.MaxAttempts < 0:
		return fmt.Errorf("max attempts must be >= 0, got %d", o.MaxAttempts)
	case o.RequestsPerSecond < 0:
		return fmt.Errorf("requests per second must be >= 0, got %v", o.RequestsPerSecond)
	case o.RunTimeout < 0:
		return fmt.Errorf("run timeout must be >= 0, got %v", o.RunTimeout)
	}
	switch o.DeadlinePolicy {
	case "", DeadlineFallback, DeadlineDrop:
		return nil
	default:
		return fmt.Errorf("unknown deadline policy %q", o.DeadlinePolicy)
	}
}

func (o Options) withDefaults() Options {
	if o.MaxInFlight <= 0 {
		o.MaxInFlight = DefaultMaxInFlight
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	if o.CallTimeout == 0 {
		o.CallTimeout = DefaultCallTimeout
	}
	if o.RetryBaseDelay <= 0 {
		o.RetryBaseDelay = DefaultRetryBaseDelay
	}
	if o.RetryMaxDelay <= 0 {
		o.RetryMaxDelay = DefaultRetryMaxDelay
	}
	if o.DeadlinePolicy != DeadlineDrop {
		o.DeadlinePolicy = DeadlineFallback
	}
	return o
}
