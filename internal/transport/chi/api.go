package chi

import "time"

// ErrorCode is a machine-readable error identifier in error responses.
type ErrorCode string

const (
	ErrorCodeBadRequest         ErrorCode = "bad_request"
	ErrorCodeValidationFailed   ErrorCode = "validation_failed"
	ErrorCodeUnauthorized       ErrorCode = "unauthorized"
	ErrorCodeNotFound           ErrorCode = "not_found"
	ErrorCodeMethodNotAllowed   ErrorCode = "method_not_allowed"
	ErrorCodeBackendUnavailable ErrorCode = "backend_unavailable"
	ErrorCodeNoBackend          ErrorCode = "no_backend"
	ErrorCodeQuotaExceeded      ErrorCode = "quota_exceeded"
	ErrorCodeRateLimited        ErrorCode = "rate_limited"
	ErrorCodeRunDeadline        ErrorCode = "run_deadline"
	ErrorCodeCanceled           ErrorCode = "canceled"
	ErrorCodeInternalError      ErrorCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// RerankRequest is the body of POST /v1/rerank.
type RerankRequest struct {
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	// ReturnDocuments echoes each document text in its result line.
	ReturnDocuments bool `json:"return_documents,omitempty"`
}

// ResultLine is one NDJSON line of a rerank response.
type ResultLine struct {
	Position int     `json:"position"`
	Score    float64 `json:"score"`
	Outcome  string  `json:"outcome"`
	Document *string `json:"document,omitempty"`
}

// SummaryLine terminates a rerank response. Error is set when the run was cut short.
type SummaryLine struct {
	Done    bool           `json:"done"`
	Results int            `json:"results"`
	Error   *ErrorResponse `json:"error,omitempty"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// UsageResponse is the body of GET /usage.
type UsageResponse struct {
	Period      string       `json:"period"`
	PeriodStart time.Time    `json:"period_start"`
	PeriodEnd   time.Time    `json:"period_end"`
	Usage       UsageMetrics `json:"usage"`
	Budget      BudgetStatus `json:"budget"`
}

// UsageMetrics counts backend consumption in a period.
type UsageMetrics struct {
	Requests int64 `json:"requests"`
	Tokens   int64 `json:"tokens"`
}

// BudgetStatus reports the token budget. TokensLimit 0 and TokensRemaining -1 mean unlimited.
type BudgetStatus struct {
	TokensLimit     int64 `json:"tokens_limit"`
	TokensRemaining int64 `json:"tokens_remaining"`
	IsExhausted     bool  `json:"is_exhausted"`
}
