package domain

import "errors"

var (
	// ErrNoBackend signals that no configuration provider yielded a usable backend.
	ErrNoBackend = errors.New("no backend configured")
	// ErrBackendUnavailable signals that the availability probe failed.
	ErrBackendUnavailable = errors.New("backend unavailable")

	// ErrBackendTimeout signals a backend call that did not answer in time.
	ErrBackendTimeout = errors.New("backend timeout")
	// ErrBackendFailure signals a transport-level or backend-reported error.
	ErrBackendFailure = errors.New("backend failure")
	// ErrBackendRejected signals a backend refusal that will not succeed on retry
	// (bad credentials, unknown model, malformed request). It is always wrapped
	// alongside ErrBackendFailure.
	ErrBackendRejected = errors.New("backend rejected request")
	// ErrRateLimited signals a rate limit hit on the backend.
	ErrRateLimited = errors.New("rate limited")
	// ErrQuotaExceeded signals an exhausted token budget.
	ErrQuotaExceeded = errors.New("token quota exceeded")

	// ErrParseFailure signals a backend response without a numeric judgment.
	ErrParseFailure = errors.New("no score in response")

	// ErrRunDeadline signals that the global run timeout elapsed.
	ErrRunDeadline = errors.New("scoring run deadline exceeded")
	// ErrInvalidRequest signals a malformed scoring request.
	ErrInvalidRequest = errors.New("invalid request")
)
