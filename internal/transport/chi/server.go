// Package chi serves the rerank HTTP API on a chi router.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"slices"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/llmrank/internal/domain"
	domusage "github.com/kailas-cloud/llmrank/internal/domain/usage"
	"github.com/kailas-cloud/llmrank/internal/logger"
	healthuc "github.com/kailas-cloud/llmrank/internal/usecase/health"
	"github.com/kailas-cloud/llmrank/internal/usecase/scoring"
	usageuc "github.com/kailas-cloud/llmrank/internal/usecase/usage"
)

// DefaultMaxDocuments caps documents per rerank request when none is configured.
const DefaultMaxDocuments = 1000

// Scorer starts a lazy scoring run.
type Scorer interface {
	Score(ctx context.Context, query string, docs iter.Seq[string]) *scoring.Stream
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error) bool

// Server holds the HTTP handlers.
type Server struct {
	scorer        Scorer
	ready         func(ctx context.Context) error
	usage         *usageuc.Service
	health        *healthuc.Service
	logger        *zap.Logger
	maxDocuments  int
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server. ready runs before every rerank
// (the skip-if-unavailable gate) and may be nil.
func NewServer(
	scorer Scorer,
	ready func(ctx context.Context) error,
	usage *usageuc.Service,
	health *healthuc.Service,
	logger *zap.Logger,
) *Server {
	s := &Server{
		scorer:       scorer,
		ready:        ready,
		usage:        usage,
		health:       health,
		logger:       logger,
		maxDocuments: DefaultMaxDocuments,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrInvalidRequest, http.StatusBadRequest, ErrorCodeValidationFailed),
		sentinelHandler(domain.ErrBackendUnavailable, http.StatusServiceUnavailable, ErrorCodeBackendUnavailable),
		sentinelHandler(domain.ErrNoBackend, http.StatusServiceUnavailable, ErrorCodeNoBackend),
		sentinelHandler(domain.ErrQuotaExceeded, http.StatusPaymentRequired, ErrorCodeQuotaExceeded),
		sentinelHandler(domain.ErrRateLimited, http.StatusTooManyRequests, ErrorCodeRateLimited),
		sentinelHandler(domain.ErrRunDeadline, http.StatusGatewayTimeout, ErrorCodeRunDeadline),
	}
	return s
}

// WithMaxDocuments sets the per-request document cap.
func (s *Server) WithMaxDocuments(n int) *Server {
	if n > 0 {
		s.maxDocuments = n
	}
	return s
}

// Rerank handles POST /v1/rerank. Results are streamed as NDJSON, one
// line per document as soon as it is scored, then a summary line.
func (s *Server) Rerank(w http.ResponseWriter, r *http.Request) {
	var req RerankRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if err := s.validate(req); err != nil {
		s.handleDomainError(w, err)
		return
	}
	if s.ready != nil {
		if err := s.ready(r.Context()); err != nil {
			s.handleDomainError(w, err)
			return
		}
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)

	rc := http.NewResponseController(w)
	enc := json.NewEncoder(w)
	stream := s.scorer.Score(r.Context(), req.Query, slices.Values(req.Documents))

	n := 0
	for res := range stream.All() {
		line := ResultLine{Position: res.Position, Score: res.Score.Float64(), Outcome: string(res.Outcome)}
		if req.ReturnDocuments {
			line.Document = &res.Document
		}
		if err := enc.Encode(line); err != nil {
			logger.FromContext(r.Context()).Debug("Client went away", zap.Error(err))
			return
		}
		_ = rc.Flush()
		n++
	}

	_ = enc.Encode(NewSummary(n, stream.Err()))
	_ = rc.Flush()
}

func (s *Server) validate(req RerankRequest) error {
	switch {
	case req.Query == "":
		return fmt.Errorf("%w: query is required", domain.ErrInvalidRequest)
	case len(req.Documents) == 0:
		return fmt.Errorf("%w: documents must not be empty", domain.ErrInvalidRequest)
	case len(req.Documents) > s.maxDocuments:
		return fmt.Errorf("%w: at most %d documents per request, got %d",
			domain.ErrInvalidRequest, s.maxDocuments, len(req.Documents))
	}
	return nil
}

// NewSummary builds the closing line of a result stream. err is the run error, if any.
func NewSummary(results int, err error) SummaryLine {
	summary := SummaryLine{Done: true, Results: results}
	if err != nil {
		summary.Error = &ErrorResponse{Code: runErrorCode(err), Message: err.Error()}
	}
	return summary
}

func runErrorCode(err error) ErrorCode {
	switch {
	case errors.Is(err, domain.ErrRunDeadline):
		return ErrorCodeRunDeadline
	case errors.Is(err, domain.ErrBackendUnavailable):
		return ErrorCodeBackendUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ErrorCodeCanceled
	}
	return ErrorCodeInternalError
}

// Health handles GET /health.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// Usage handles GET /usage?period=day|month.
func (s *Server) Usage(w http.ResponseWriter, r *http.Request) {
	period, err := domusage.ParsePeriod(r.URL.Query().Get("period"))
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, err.Error())
		return
	}

	report := s.usage.GetReport(r.Context(), period)

	writeJSON(w, http.StatusOK, UsageResponse{
		Period:      string(report.Period()),
		PeriodStart: report.PeriodStart(),
		PeriodEnd:   report.PeriodEnd(),
		Usage: UsageMetrics{
			Requests: report.Requests(),
			Tokens:   report.Tokens(),
		},
		Budget: BudgetStatus{
			TokensLimit:     report.TokensLimit(),
			TokensRemaining: report.TokensRemaining(),
			IsExhausted:     report.IsExhausted(),
		},
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
// Validation errors keep their detail; the rest expose only the sentinel text.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		msg := sentinel.Error()
		if errors.Is(sentinel, domain.ErrInvalidRequest) {
			msg = err.Error()
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	for _, h := range s.errorHandlers {
		if h(w, err) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, ErrorCodeInternalError, "internal error")
}
