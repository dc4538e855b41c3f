// Package health answers whether the scoring backend is usable right now.
package health

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/llmrank/internal/domain"
	"github.com/kailas-cloud/llmrank/internal/logger"
)

// DefaultProbeTimeout bounds a single availability probe.
const DefaultProbeTimeout = 5 * time.Second

// The canned pair every reachable backend must be able to score.
const (
	ProbeQuery    = "reset password"
	ProbeDocument = "To reset your password, open Settings, choose Security and click Forgot password. " +
		"We will email you a link to set a new password."
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates at least one failing component.
	Degraded Status = "degraded"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	CheckOK    CheckResult = "ok"
	CheckError CheckResult = "error"
)

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service probes the backend and, optionally, the budget store.
type Service struct {
	scorer       Scorer
	store        StorePinger
	connectivity BackendChecker
	timeout      time.Duration
}

// New creates a Service. store can be nil; timeout <= 0 uses DefaultProbeTimeout.
func New(scorer Scorer, store StorePinger, timeout time.Duration) *Service {
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	return &Service{scorer: scorer, store: store, timeout: timeout}
}

// WithConnectivity adds a "connectivity" check (model listing) to Check reports.
func (s *Service) WithConnectivity(c BackendChecker) *Service {
	s.connectivity = c
	return s
}

// IsAvailable scores the canned pair through the production pipeline.
// It is true only when the backend answered and the answer parsed, within
// the probe timeout. It never returns an error.
func (s *Service) IsAvailable(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	results, err := s.scorer.ScoreAll(ctx, ProbeQuery, []string{ProbeDocument})
	log := logger.FromContext(ctx).With(zap.Duration("duration", time.Since(start)))

	if err != nil {
		log.Warn("Availability probe failed", zap.Error(err))
		return false
	}
	if len(results) != 1 || results[0].Outcome != domain.OutcomeScored {
		outcome := "missing"
		if len(results) > 0 {
			outcome = string(results[0].Outcome)
		}
		log.Warn("Availability probe failed", zap.String("outcome", outcome))
		return false
	}

	log.Debug("Availability probe passed", zap.Float64("score", results[0].Score.Float64()))
	return true
}

// bounded runs one component check under the probe timeout.
func (s *Service) bounded(ctx context.Context, name string, check func(context.Context) error) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := check(ctx); err != nil {
		logger.FromContext(ctx).Warn("Health check failed", zap.String("check", name), zap.Error(err))
		return CheckError
	}
	return CheckOK
}

// Check runs the probe plus the optional connectivity and store checks,
// each bounded by the probe timeout.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult, 3)

	checks["backend"] = CheckError
	if s.IsAvailable(ctx) {
		checks["backend"] = CheckOK
	}

	if s.connectivity != nil {
		checks["connectivity"] = s.bounded(ctx, "connectivity", s.connectivity.HealthCheck)
	}

	if s.store != nil {
		checks["store"] = s.bounded(ctx, "store", s.store.Ping)
	}

	status := Healthy
	for _, v := range checks {
		if v == CheckError {
			status = Degraded
			break
		}
	}

	return Report{Status: status, Checks: checks}
}
