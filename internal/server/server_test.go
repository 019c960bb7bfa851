package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgard/codegenius/internal/config"
	"github.com/edgard/codegenius/internal/gateway"
	"github.com/edgard/codegenius/internal/metrics"
	"github.com/edgard/codegenius/internal/resilience"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeService struct {
	mu       sync.Mutex
	err      error
	calls    int
	messages []gateway.ChatMessage
	system   string
	codes    []string
	panic    bool
}

func (f *fakeService) record(code string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.codes = append(f.codes, code)
	if f.panic {
		panic("boom")
	}
	return f.err
}

func (f *fakeService) AnalyzeCode(_ context.Context, code, language string) (gateway.DebugResult, error) {
	if err := f.record(code); err != nil {
		return gateway.DebugResult{}, err
	}
	return gateway.DebugResult{
		Issues:        []string{"missing braces"},
		Explanation:   "The function body needs braces.",
		CorrectedCode: "function f(x) { return x+1 }",
	}, nil
}

func (f *fakeService) TranslateCode(_ context.Context, code, from, to string) (gateway.TranslationResult, error) {
	if err := f.record(code); err != nil {
		return gateway.TranslationResult{}, err
	}
	return gateway.TranslationResult{TranslatedCode: "def f(x): return x+1", Explanation: from + " to " + to}, nil
}

func (f *fakeService) ExplainCode(_ context.Context, code, language string) (gateway.ExplanationResult, error) {
	if err := f.record(code); err != nil {
		return gateway.ExplanationResult{}, err
	}
	return gateway.ExplanationResult{Overview: "adds one", DetailedExplanation: "", KeyComponents: []string{}}, nil
}

func (f *fakeService) ChatWithModel(_ context.Context, messages []gateway.ChatMessage, systemPrompt string) (gateway.ChatMessage, error) {
	if err := f.record(""); err != nil {
		return gateway.ChatMessage{}, err
	}
	f.mu.Lock()
	f.messages = messages
	f.system = systemPrompt
	f.mu.Unlock()
	return gateway.ChatMessage{Role: gateway.RoleAssistant, Content: "hello"}, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() config.ServerConfig {
	return config.ServerConfig{
		Addr:            "127.0.0.1:0",
		RequestTimeout:  5 * time.Second,
		ShutdownTimeout: 5 * time.Second,
		MaxBodyBytes:    1 << 20,
	}
}

func newTestServer(t *testing.T, svc Service, cfg config.ServerConfig) (*Server, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	return New(svc, cfg, discardLogger(), metrics.New(reg), WithRetryAfter(30*time.Second)), reg
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) APIError {
	t.Helper()
	var body struct {
		Error APIError `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body.Error
}

func TestHandlers_Success(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, &fakeService{}, testConfig())

	tests := []struct {
		name     string
		path     string
		body     string
		wantKeys []string
	}{
		{
			name:     "Debug",
			path:     "/api/debug",
			body:     `{"code":"function f(x) return x+1","language":"javascript"}`,
			wantKeys: []string{"issues", "explanation", "correctedCode"},
		},
		{
			name:     "Translate",
			path:     "/api/translate",
			body:     `{"code":"x","fromLanguage":"javascript","toLanguage":"Python"}`,
			wantKeys: []string{"translatedCode", "explanation"},
		},
		{
			name:     "Explain",
			path:     "/api/explain",
			body:     `{"code":"x","language":"go"}`,
			wantKeys: []string{"overview", "detailedExplanation", "keyComponents"},
		},
		{
			name:     "Chat",
			path:     "/api/chat",
			body:     `{"messages":[{"role":"user","content":"hi"}]}`,
			wantKeys: []string{"role", "content"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec := do(t, srv.Handler(), http.MethodPost, tt.path, tt.body)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			var got map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
			for _, k := range tt.wantKeys {
				assert.Contains(t, got, k)
			}
		})
	}
}

func TestHandleChat_PassesTranscript(t *testing.T) {
	t.Parallel()

	svc := &fakeService{}
	srv, _ := newTestServer(t, svc, testConfig())

	rec := do(t, srv.Handler(), http.MethodPost, "/api/chat", `{
		"messages": [
			{"role":"user","content":"What does this do?"},
			{"role":"assistant","content":"It adds one."},
			{"role":"user","content":"Why?"}
		],
		"systemPrompt": "Be brief."
	}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, []gateway.ChatMessage{
		{Role: gateway.RoleUser, Content: "What does this do?"},
		{Role: gateway.RoleAssistant, Content: "It adds one."},
		{Role: gateway.RoleUser, Content: "Why?"},
	}, svc.messages)
	assert.Equal(t, "Be brief.", svc.system)
	assert.JSONEq(t, `{"role":"assistant","content":"hello"}`, rec.Body.String())
}

func TestHandlers_TrimCode(t *testing.T) {
	t.Parallel()

	svc := &fakeService{}
	srv, _ := newTestServer(t, svc, testConfig())

	for _, req := range []struct{ path, body string }{
		{"/api/debug", `{"code":"\n  x = 1\n","language":"python"}`},
		{"/api/explain", `{"code":"\tx = 1  ","language":"python"}`},
		{"/api/translate", `{"code":" x = 1\n\n","fromLanguage":"python","toLanguage":"go"}`},
	} {
		rec := do(t, srv.Handler(), http.MethodPost, req.path, req.body)
		require.Equal(t, http.StatusOK, rec.Code, "%s: %s", req.path, rec.Body.String())
	}

	assert.Equal(t, []string{"x = 1", "x = 1", "x = 1"}, svc.codes)
}

func TestHandlers_BindingErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		path        string
		body        string
		wantMessage string
	}{
		{name: "Malformed JSON", path: "/api/debug", body: `{"code":`, wantMessage: "Invalid JSON body"},
		{name: "Missing code", path: "/api/debug", body: `{"language":"python"}`, wantMessage: "code is required"},
		{name: "Unsupported language", path: "/api/explain", body: `{"code":"x","language":"cobol"}`, wantMessage: `language: unsupported language "cobol"`},
		{name: "Missing target", path: "/api/translate", body: `{"code":"x","fromLanguage":"python"}`, wantMessage: "toLanguage is required"},
		{name: "Missing messages", path: "/api/chat", body: `{}`, wantMessage: "messages is required"},
		{name: "Empty messages", path: "/api/chat", body: `{"messages":[]}`, wantMessage: "messages must contain at least 1 item(s)"},
		{name: "Bad role", path: "/api/chat", body: `{"messages":[{"role":"system","content":"x"}]}`, wantMessage: "messages[0].role must be one of [user assistant]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			svc := &fakeService{}
			srv, _ := newTestServer(t, svc, testConfig())

			rec := do(t, srv.Handler(), http.MethodPost, tt.path, tt.body)
			require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

			apiErr := decodeError(t, rec)
			assert.Equal(t, ErrCodeBadRequest, apiErr.Code)
			assert.Contains(t, apiErr.Message, tt.wantMessage)
			assert.Zero(t, svc.calls, "service must not be called")
		})
	}
}

func TestHandlers_GatewayErrors(t *testing.T) {
	t.Parallel()

	upstream := &gateway.UpstreamTransientError{Op: gateway.OpDebug, Err: errors.New("503")}

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantRetry  int64
	}{
		{
			name:       "Invalid input",
			err:        &gateway.InvalidInputError{Field: "code", Reason: "must not be blank"},
			wantStatus: http.StatusBadRequest,
			wantCode:   ErrCodeBadRequest,
		},
		{
			name:       "Circuit open",
			err:        fmt.Errorf("gemini: %w", resilience.ErrCircuitOpen),
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   ErrCodeAIServiceUnavailable,
			wantRetry:  30000,
		},
		{
			name:       "Exhausted retries",
			err:        &resilience.ExhaustedRetriesError{Attempts: 3, Err: upstream},
			wantStatus: http.StatusInternalServerError,
			wantCode:   ErrCodeAIRequestFailed,
		},
		{
			name:       "Upstream",
			err:        upstream,
			wantStatus: http.StatusInternalServerError,
			wantCode:   ErrCodeAIRequestFailed,
		},
		{
			name:       "Deadline",
			err:        context.DeadlineExceeded,
			wantStatus: http.StatusGatewayTimeout,
			wantCode:   ErrCodeRequestTimeout,
		},
		{
			name:       "Unknown",
			err:        errors.New("boom"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   ErrCodeInternalError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv, _ := newTestServer(t, &fakeService{err: tt.err}, testConfig())

			rec := do(t, srv.Handler(), http.MethodPost, "/api/debug", `{"code":"x","language":"python"}`)
			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())

			apiErr := decodeError(t, rec)
			assert.Equal(t, tt.wantCode, apiErr.Code)
			assert.Equal(t, tt.wantRetry, apiErr.RetryAfter)
			assert.NotContains(t, apiErr.Message, "503", "upstream detail must not leak")
		})
	}
}

func TestRequestID(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, &fakeService{}, testConfig())

	rec := do(t, srv.Handler(), http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, rec.Header().Get(RequestIDHeader), 36, "generated id should be a uuid")

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "caller-id")
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, "caller-id", rec.Header().Get(RequestIDHeader))
}

func TestRecovery(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, &fakeService{panic: true}, testConfig())

	rec := do(t, srv.Handler(), http.MethodPost, "/api/explain", `{"code":"x","language":"python"}`)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, ErrCodeInternalError, decodeError(t, rec).Code)
}

func TestNotFound(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, &fakeService{}, testConfig())

	rec := do(t, srv.Handler(), http.MethodGet, "/api/logs", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, ErrCodeNotFound, decodeError(t, rec).Code)
}

func TestBodyLimit(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.MaxBodyBytes = 64
	svc := &fakeService{}
	srv, _ := newTestServer(t, svc, cfg)

	body := fmt.Sprintf(`{"code":%q,"language":"python"}`, strings.Repeat("x", 256))
	rec := do(t, srv.Handler(), http.MethodPost, "/api/debug", body)
	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code, rec.Body.String())
	assert.Equal(t, ErrCodePayloadTooLarge, decodeError(t, rec).Code)
	assert.Zero(t, svc.calls)
}

func TestRateLimit(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.RateLimit = 0.001
	cfg.RateBurst = 2
	srv, _ := newTestServer(t, &fakeService{}, cfg)

	body := `{"code":"x","language":"python"}`
	for i := range 2 {
		rec := do(t, srv.Handler(), http.MethodPost, "/api/debug", body)
		require.Equal(t, http.StatusOK, rec.Code, "request %d", i)
	}

	rec := do(t, srv.Handler(), http.MethodPost, "/api/debug", body)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	apiErr := decodeError(t, rec)
	assert.Equal(t, ErrCodeRateLimited, apiErr.Code)
	assert.Positive(t, apiErr.RetryAfter)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	health := do(t, srv.Handler(), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, health.Code, "health must not be rate limited")
}

func doFrom(t *testing.T, h http.Handler, remoteAddr, forwardedFor string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/debug", strings.NewReader(`{"code":"x","language":"python"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Forwarded-For", forwardedFor)
	req.RemoteAddr = remoteAddr
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRateLimit_IgnoresForwardedForByDefault(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.RateLimit = 0.001
	cfg.RateBurst = 1
	srv, _ := newTestServer(t, &fakeService{}, cfg)

	var allowed, limited int
	for i := range 20 {
		rec := doFrom(t, srv.Handler(), "203.0.113.7:1234", fmt.Sprintf("198.51.100.%d", i+1))
		switch rec.Code {
		case http.StatusOK:
			allowed++
		case http.StatusTooManyRequests:
			limited++
		default:
			t.Fatalf("request %d: status = %d, body = %s", i, rec.Code, rec.Body.String())
		}
	}
	assert.Equal(t, 1, allowed)
	assert.Equal(t, 19, limited)
}

func TestRateLimit_TrustedProxyForwardsClientIP(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.RateLimit = 0.001
	cfg.RateBurst = 1
	cfg.TrustedProxies = []string{"203.0.113.7"}
	srv, _ := newTestServer(t, &fakeService{}, cfg)

	assert.Equal(t, http.StatusOK, doFrom(t, srv.Handler(), "203.0.113.7:1234", "198.51.100.1").Code)
	assert.Equal(t, http.StatusOK, doFrom(t, srv.Handler(), "203.0.113.7:1234", "198.51.100.2").Code)
	assert.Equal(t, http.StatusTooManyRequests, doFrom(t, srv.Handler(), "203.0.113.7:1234", "198.51.100.1").Code)

	// An untrusted peer is keyed on its own address.
	assert.Equal(t, http.StatusOK, doFrom(t, srv.Handler(), "192.0.2.9:5555", "198.51.100.3").Code)
	assert.Equal(t, http.StatusTooManyRequests, doFrom(t, srv.Handler(), "192.0.2.9:5555", "198.51.100.4").Code)
}

func TestRateLimiter_PerClient(t *testing.T) {
	t.Parallel()

	now := time.Unix(0, 0)
	rl := NewRateLimiter(1, 1)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
	assert.True(t, rl.Allow("b"), "clients have independent buckets")

	now = now.Add(time.Second)
	assert.True(t, rl.Allow("a"), "bucket refills over time")

	now = now.Add(time.Hour)
	rl.Allow("c")
	rl.mu.Lock()
	_, stale := rl.clients["a"]
	rl.mu.Unlock()
	assert.False(t, stale, "idle buckets are swept")
}

func TestTimeout(t *testing.T) {
	t.Parallel()

	r := gin.New()
	r.Use(Timeout(time.Millisecond))
	r.GET("/slow", func(c *gin.Context) {
		<-c.Request.Context().Done()
		c.String(http.StatusOK, c.Request.Context().Err().Error())
	})

	rec := do(t, r, http.MethodGet, "/slow", "")
	assert.Equal(t, context.DeadlineExceeded.Error(), rec.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	srv, reg := newTestServer(t, &fakeService{}, testConfig())

	do(t, srv.Handler(), http.MethodPost, "/api/debug", `{"code":"x","language":"python"}`)
	do(t, srv.Handler(), http.MethodPost, "/api/debug", `{}`)

	expected := `
# HELP codegenius_http_requests_total HTTP requests served, by route and status code.
# TYPE codegenius_http_requests_total counter
codegenius_http_requests_total{route="/api/debug",status="200"} 1
codegenius_http_requests_total{route="/api/debug",status="400"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "codegenius_http_requests_total"))

	rec := do(t, srv.Handler(), http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "codegenius_http_requests_total")
}

func TestHealth(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, &fakeService{}, testConfig())

	rec := do(t, srv.Handler(), http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var got struct {
		Status    string   `json:"status"`
		Languages []string `json:"languages"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "healthy", got.Status)
	assert.Contains(t, got.Languages, "javascript")
}

func TestSupportedLanguages(t *testing.T) {
	t.Parallel()

	for _, lang := range []string{"javascript", "Python", " java ", "CPP"} {
		assert.True(t, IsSupportedLanguage(lang), lang)
	}
	for _, lang := range []string{"", "cobol", "js "} {
		assert.False(t, IsSupportedLanguage(lang), lang)
	}
	assert.IsIncreasing(t, SupportedLanguages())
}

func TestServe_GracefulShutdown(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, &fakeService{}, testConfig())
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	url := "http://" + ln.Addr().String()
	resp, err := http.Post(url+"/api/debug", "application/json", bytes.NewBufferString(`{"code":"x","language":"python"}`))
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve() did not return after cancellation")
	}
}
