package llmrank

import "github.com/kailas-cloud/llmrank/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrNoBackend          = domain.ErrNoBackend
	ErrBackendUnavailable = domain.ErrBackendUnavailable
	ErrBackendTimeout     = domain.ErrBackendTimeout
	ErrBackendFailure     = domain.ErrBackendFailure
	ErrRateLimited        = domain.ErrRateLimited
	ErrQuotaExceeded      = domain.ErrQuotaExceeded
	ErrParseFailure       = domain.ErrParseFailure
	ErrRunDeadline        = domain.ErrRunDeadline
)
