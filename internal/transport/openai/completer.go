package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/llmrank/internal/domain"
	"github.com/kailas-cloud/llmrank/internal/metrics"
)

// Completer is a text-generation backend speaking the OpenAI-compatible
// chat completions API (OpenAI, Ollama, vLLM, Nebius).
type Completer struct {
	client   *openai.Client
	provider string
	logger   *zap.Logger
}

// Config holds the backend connection settings.
type Config struct {
	APIKey     string
	BaseURL    string
	Provider   string
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// NewCompleter creates an OpenAI-compatible completion backend.
func NewCompleter(cfg *Config) *Completer {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if cfg.HTTPClient != nil {
		clientCfg.HTTPClient = cfg.HTTPClient
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Completer{
		client:   openai.NewClientWithConfig(clientCfg),
		provider: cfg.Provider,
		logger:   logger,
	}
}

// Complete implements domain.Completer. The prompt is sent as a single user message.
func (c *Completer) Complete(ctx context.Context, req domain.CompletionRequest) (domain.Completion, error) {
	chatReq := openai.ChatCompletionRequest{
		Model: req.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
		},
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, chatReq)
	duration := time.Since(start)

	if err != nil {
		errType := "api_error"
		if ctx.Err() != nil {
			errType = "canceled"
		}
		metrics.BackendRequestsTotal.WithLabelValues(c.provider, req.Model, "error").Inc()
		metrics.BackendErrorsTotal.WithLabelValues(c.provider, req.Model, errType).Inc()
		return domain.Completion{}, parseAPIError(err)
	}

	if len(resp.Choices) == 0 {
		metrics.BackendRequestsTotal.WithLabelValues(c.provider, req.Model, "error").Inc()
		metrics.BackendErrorsTotal.WithLabelValues(c.provider, req.Model, "empty_response").Inc()
		return domain.Completion{}, fmt.Errorf("empty completion response: %w", domain.ErrBackendFailure)
	}

	metrics.BackendRequestsTotal.WithLabelValues(c.provider, req.Model, "success").Inc()
	metrics.BackendRequestDuration.WithLabelValues(c.provider, req.Model).Observe(duration.Seconds())

	usage := resp.Usage
	if usage.TotalTokens > 0 {
		metrics.BackendTokensTotal.WithLabelValues(c.provider, req.Model, "prompt").Add(float64(usage.PromptTokens))
		metrics.BackendTokensTotal.WithLabelValues(c.provider, req.Model, "completion").Add(float64(usage.CompletionTokens))
		metrics.BackendTokensTotal.WithLabelValues(c.provider, req.Model, "total").Add(float64(usage.TotalTokens))
	}

	c.logger.Debug("completion done",
		zap.String("model", req.Model),
		zap.Duration("duration", duration),
		zap.Int("total_tokens", usage.TotalTokens),
		zap.String("finish_reason", string(resp.Choices[0].FinishReason)),
	)

	return domain.Completion{
		Text:             resp.Choices[0].Message.Content,
		PromptTokens:     usage.PromptTokens,
		CompletionTokens: usage.CompletionTokens,
		TotalTokens:      usage.TotalTokens,
	}, nil
}

// HealthCheck verifies API availability via ListModels, which costs no tokens.
func (c *Completer) HealthCheck(ctx context.Context) error {
	if _, err := c.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", parseAPIError(err))
	}
	return nil
}

// parseAPIError extracts a human-readable error from the API response and
// classifies it: 429 is ErrRateLimited, other 4xx are ErrBackendRejected,
// everything else is ErrBackendFailure.
func parseAPIError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("completion request: %w: %w", domain.ErrBackendFailure, err)
	}

	status, detail := 0, ""

	var reqErr *openai.RequestError
	var apiErr *openai.APIError
	switch {
	case errors.As(err, &apiErr):
		status, detail = apiErr.HTTPStatusCode, apiErr.Message
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
		detail = extractDetail(reqErr.Body)
		if detail == "" {
			detail = string(reqErr.Body)
		}
	default:
		return fmt.Errorf("completion request failed: %w: %w", domain.ErrBackendFailure, err)
	}

	if kind := classify(status); kind != nil {
		return fmt.Errorf("completion API error %d: %s: %w: %w", status, detail, kind, domain.ErrBackendFailure)
	}
	return fmt.Errorf("completion API error %d: %s: %w", status, detail, domain.ErrBackendFailure)
}

// classify returns the sentinel refining ErrBackendFailure for status, if any.
func classify(status int) error {
	switch {
	case status == http.StatusTooManyRequests:
		return domain.ErrRateLimited
	case status >= 400 && status < 500 && status != http.StatusRequestTimeout:
		return domain.ErrBackendRejected
	default:
		return nil
	}
}

// extractDetail extracts the "detail" field from a JSON error body (vLLM and Nebius error format).
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}
