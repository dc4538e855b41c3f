package invoke

import (
	"context"
	"errors"

	"github.com/kailas-cloud/llmrank/internal/domain"
)

// Kind classifies an invocation failure.
type Kind string

const (
	// KindTimeout means the backend did not answer within the per-call timeout.
	KindTimeout Kind = "timeout"
	// KindBackend covers transport errors and backend-reported errors.
	KindBackend Kind = "backend"
)

// InvocationError is returned by Invoke for every failed call.
// Its message is stripped of credentials; errors.Is still reaches the cause.
type InvocationError struct {
	Kind Kind
	Err  error
	msg  string
}

func (e *InvocationError) Error() string {
	return "invoke " + string(e.Kind) + ": " + e.msg
}

func (e *InvocationError) Unwrap() error { return e.Err }

// Is matches domain.ErrBackendTimeout for KindTimeout and domain.ErrBackendFailure for KindBackend.
func (e *InvocationError) Is(target error) bool {
	switch e.Kind {
	case KindTimeout:
		return target == domain.ErrBackendTimeout
	case KindBackend:
		return target == domain.ErrBackendFailure
	}
	return false
}

// Retryable reports whether repeating the call may succeed: timeouts,
// rate limits, 5xx and transport errors are; quota, rejected requests
// and caller cancellation are not.
func (e *InvocationError) Retryable() bool {
	if e.Kind == KindTimeout {
		return true
	}
	switch {
	case errors.Is(e.Err, domain.ErrQuotaExceeded),
		errors.Is(e.Err, domain.ErrBackendRejected),
		errors.Is(e.Err, context.Canceled):
		return false
	}
	return true
}

// IsRetryable reports whether err is an InvocationError that may be retried.
func IsRetryable(err error) bool {
	var ie *InvocationError
	return errors.As(err, &ie) && ie.Retryable()
}
