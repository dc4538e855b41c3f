package chi

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/llmrank/internal/domain"
	"github.com/kailas-cloud/llmrank/internal/domain/prompt"
	healthuc "github.com/kailas-cloud/llmrank/internal/usecase/health"
	"github.com/kailas-cloud/llmrank/internal/usecase/scoring"
	usageuc "github.com/kailas-cloud/llmrank/internal/usecase/usage"
)

// --- Mocks ---

type funcInvoker func(ctx context.Context, prompt string) (string, error)

func (f funcInvoker) Invoke(ctx context.Context, p string, _ time.Duration) (string, error) {
	return f(ctx, p)
}

// keyword answers 0.9 for prompts containing "password" and 0.1 otherwise.
func keyword(ctx context.Context, p string) (string, error) {
	if strings.Contains(p, "hang") {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if strings.Contains(p, "broken") {
		return "", errors.New("backend exploded")
	}
	if strings.Contains(strings.ToLower(p), "password") && strings.Contains(p, "Forgot") {
		return "0.9", nil
	}
	return "0.1", nil
}

type testServer struct {
	handler http.Handler
	ready   error
}

func newTestServer(t *testing.T, opts scoring.Options, keys ...string) *testServer {
	t.Helper()
	ts := &testServer{}
	svc := scoring.New(funcInvoker(keyword), prompt.Builder{}, opts)
	srv := NewServer(
		svc,
		func(context.Context) error { return ts.ready },
		usageuc.New(nil),
		healthuc.New(svc, nil, time.Second),
		zap.NewNop(),
	).WithMaxDocuments(3)
	ts.handler = NewRouter(srv, keys, zap.NewNop())
	return ts
}

func (ts *testServer) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	return rr
}

func decodeNDJSON(t *testing.T, body []byte) ([]ResultLine, SummaryLine) {
	t.Helper()
	var lines []ResultLine
	var summary SummaryLine
	sc := bufio.NewScanner(bytes.NewReader(body))
	for sc.Scan() {
		raw := sc.Bytes()
		if bytes.Contains(raw, []byte(`"done"`)) {
			if err := json.Unmarshal(raw, &summary); err != nil {
				t.Fatalf("decode summary %q: %v", raw, err)
			}
			continue
		}
		var l ResultLine
		if err := json.Unmarshal(raw, &l); err != nil {
			t.Fatalf("decode line %q: %v", raw, err)
		}
		lines = append(lines, l)
	}
	return lines, summary
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var e ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&e); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	return e
}

// --- Rerank ---

func TestRerank_StreamsOneLinePerDocument(t *testing.T) {
	ts := newTestServer(t, scoring.Options{})

	rr := ts.do(http.MethodPost, "/v1/rerank", `{
		"query": "reset password",
		"documents": ["Office hours are 9 to 5.", "Click Forgot password to reset it.", "broken"]
	}`)

	if rr.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/x-ndjson" {
		t.Errorf("content type %q", ct)
	}

	lines, summary := decodeNDJSON(t, rr.Body.Bytes())
	if len(lines) != 3 || !summary.Done || summary.Results != 3 || summary.Error != nil {
		t.Fatalf("unexpected stream: %+v %+v", lines, summary)
	}
	if lines[1].Score <= lines[0].Score {
		t.Errorf("relevant document must outscore the other: %+v", lines)
	}
	if lines[2].Outcome != string(domain.OutcomeInvocationFailed) || lines[2].Score != 0 {
		t.Errorf("failed document must carry the fallback: %+v", lines[2])
	}
	if lines[0].Document != nil {
		t.Error("documents must not be echoed unless requested")
	}
}

func TestRerank_ReturnDocuments(t *testing.T) {
	ts := newTestServer(t, scoring.Options{})

	rr := ts.do(http.MethodPost, "/v1/rerank", `{"query":"q","documents":["alpha"],"return_documents":true}`)

	lines, _ := decodeNDJSON(t, rr.Body.Bytes())
	if len(lines) != 1 || lines[0].Document == nil || *lines[0].Document != "alpha" {
		t.Fatalf("expected echoed document, got %+v", lines)
	}
}

func TestRerank_Validation(t *testing.T) {
	ts := newTestServer(t, scoring.Options{})

	tests := []struct {
		name string
		body string
		code ErrorCode
	}{
		{"malformed json", `{"query":`, ErrorCodeBadRequest},
		{"missing query", `{"documents":["a"]}`, ErrorCodeValidationFailed},
		{"no documents", `{"query":"q","documents":[]}`, ErrorCodeValidationFailed},
		{"too many documents", `{"query":"q","documents":["a","b","c","d"]}`, ErrorCodeValidationFailed},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := ts.do(http.MethodPost, "/v1/rerank", tc.body)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status %d, want 400", rr.Code)
			}
			if e := decodeError(t, rr); e.Code != tc.code {
				t.Errorf("code %q, want %q", e.Code, tc.code)
			}
		})
	}
}

func TestRerank_BackendUnavailable(t *testing.T) {
	ts := newTestServer(t, scoring.Options{})
	ts.ready = domain.ErrBackendUnavailable

	rr := ts.do(http.MethodPost, "/v1/rerank", `{"query":"q","documents":["a"]}`)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status %d, want 503", rr.Code)
	}
	if e := decodeError(t, rr); e.Code != ErrorCodeBackendUnavailable {
		t.Errorf("code %q", e.Code)
	}
}

func TestRerank_RunDeadlineInSummary(t *testing.T) {
	ts := newTestServer(t, scoring.Options{RunTimeout: 50 * time.Millisecond})

	rr := ts.do(http.MethodPost, "/v1/rerank", `{"query":"q","documents":["a","hang","b"]}`)

	if rr.Code != http.StatusOK {
		t.Fatalf("status %d", rr.Code)
	}
	lines, summary := decodeNDJSON(t, rr.Body.Bytes())
	if len(lines) != 3 {
		t.Fatalf("fallback policy keeps one line per document, got %d", len(lines))
	}
	if lines[1].Outcome != string(domain.OutcomeDeadlineSkipped) {
		t.Errorf("hung document outcome %q", lines[1].Outcome)
	}
	if summary.Error == nil || summary.Error.Code != ErrorCodeRunDeadline {
		t.Errorf("summary must report the deadline: %+v", summary)
	}
}

func TestRerank_RequiresAuth(t *testing.T) {
	ts := newTestServer(t, scoring.Options{}, "secret")

	rr := ts.do(http.MethodPost, "/v1/rerank", `{"query":"q","documents":["a"]}`)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status %d, want 401", rr.Code)
	}
}

// --- Health, usage, metrics ---

func TestHealth(t *testing.T) {
	ts := newTestServer(t, scoring.Options{})

	rr := ts.do(http.MethodGet, "/health", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rr.Code, rr.Body.String())
	}
	var resp HealthResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != "ok" || resp.Checks["backend"] != "ok" {
		t.Errorf("unexpected health: %+v", resp)
	}
}

func TestHealth_Unavailable(t *testing.T) {
	svc := scoring.New(funcInvoker(func(context.Context, string) (string, error) {
		return "no idea", nil
	}), prompt.Builder{}, scoring.Options{})
	srv := NewServer(svc, nil, usageuc.New(nil), healthuc.New(svc, nil, time.Second), zap.NewNop())

	rr := httptest.NewRecorder()
	NewRouter(srv, nil, zap.NewNop()).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", http.NoBody))

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status %d, want 503", rr.Code)
	}
}

func TestUsage(t *testing.T) {
	ts := newTestServer(t, scoring.Options{})

	for _, period := range []string{"", "day", "month"} {
		rr := ts.do(http.MethodGet, "/usage?period="+period, "")
		if rr.Code != http.StatusOK {
			t.Fatalf("period %q: status %d", period, rr.Code)
		}
		var resp UsageResponse
		if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
			t.Fatal(err)
		}
		want := period
		if want == "" {
			want = "day"
		}
		if resp.Period != want {
			t.Errorf("period = %q, want %q", resp.Period, want)
		}
		if resp.Budget.TokensRemaining != -1 || resp.Budget.IsExhausted {
			t.Errorf("unlimited budget expected, got %+v", resp.Budget)
		}
	}
}

func TestUsage_InvalidPeriod(t *testing.T) {
	ts := newTestServer(t, scoring.Options{})

	rr := ts.do(http.MethodGet, "/usage?period=year", "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", rr.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, scoring.Options{})

	rr := ts.do(http.MethodGet, "/metrics", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d", rr.Code)
	}
}

func TestNotFound(t *testing.T) {
	ts := newTestServer(t, scoring.Options{})

	rr := ts.do(http.MethodGet, "/collections", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status %d", rr.Code)
	}
	if e := decodeError(t, rr); e.Code != ErrorCodeNotFound {
		t.Errorf("code %q", e.Code)
	}
}

func TestRequestIDHeader(t *testing.T) {
	ts := newTestServer(t, scoring.Options{})

	rr := ts.do(http.MethodGet, "/usage", "")
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header")
	}
}
