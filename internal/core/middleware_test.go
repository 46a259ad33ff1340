package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/BogdanDubenets/weather-bot-telegram/internal/config"
	"github.com/BogdanDubenets/weather-bot-telegram/internal/types"
)

func testServer(t *testing.T, logger *slog.Logger) *Server {
	t.Helper()
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(bytes.NewBuffer(nil), nil))
	}
	s, err := NewServer(&config.Config{}, logger, nil)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return s
}

func TestRequestIDMiddleware_GeneratesID(t *testing.T) {
	var seen string
	h := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = types.GetRequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if seen == "" {
		t.Fatal("expected a generated request ID in context")
	}
	if got := rec.Header().Get("X-Request-Id"); got != seen {
		t.Errorf("response header %q does not match context ID %q", got, seen)
	}
}

func TestRequestIDMiddleware_PropagatesIncoming(t *testing.T) {
	var seen string
	h := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = types.GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-Id", "incoming-123")
	h.ServeHTTP(httptest.NewRecorder(), req)

	if seen != "incoming-123" {
		t.Errorf("expected propagated ID, got %q", seen)
	}
}

func TestRecoverer_CatchesPanic(t *testing.T) {
	s := testServer(t, nil)
	h := s.Recoverer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), string(types.ErrCodeInternalUnexpected)) {
		t.Errorf("expected error code in body, got %s", rec.Body.String())
	}
}

func TestRequestLogger_RedactsSecretHeader(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	h := RequestLogger(logger, []string{"X-Telegram-Bot-Api-Secret-Token"})(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}),
	)

	req := httptest.NewRequest(http.MethodPost, "/webhook/telegram", nil)
	req.Header.Set("X-Telegram-Bot-Api-Secret-Token", "hunter2hunter2hunter2")
	h.ServeHTTP(httptest.NewRecorder(), req)

	out := buf.String()
	if strings.Contains(out, "hunter2") {
		t.Fatal("secret header value leaked into the log")
	}
	if !strings.Contains(out, "REDACTED") {
		t.Error("expected redaction marker in log output")
	}
}

func TestContextTimeoutMiddleware(t *testing.T) {
	var deadlineSet bool
	h := ContextTimeoutMiddleware(time.Second)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, deadlineSet = r.Context().Deadline()
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if !deadlineSet {
		t.Error("expected a context deadline")
	}
}

func TestError_AppErrorMapsStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	Error(rec, req, types.NewAppError(types.ErrCodeAuthSecretInvalid, "nope", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "auth_webhook_secret_invalid") {
		t.Errorf("expected code in body, got %s", rec.Body.String())
	}
}

func TestError_GenericErrorIsOpaque500(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	Error(rec, req, errors.New("pg: connection to 10.0.0.5 refused"))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "10.0.0.5") {
		t.Error("internal error details leaked to the client")
	}
}

func TestMetricsMiddleware_RecordsRequests(t *testing.T) {
	s := testServer(t, nil)
	s.Metrics = NewMetrics()

	h := s.MetricsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))

	// Scrape the private registry and look for the counter.
	rec := httptest.NewRecorder()
	s.Metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if !strings.Contains(rec.Body.String(), `bot_http_requests_total{method="GET",path="/x",status="418"} 1`) {
		t.Errorf("expected request counter in scrape output:\n%s", rec.Body.String())
	}
}

func TestHandleHealth_AllHealthy(t *testing.T) {
	s := testServer(t, nil)
	s.HealthProbes = []HealthProbe{
		ProbeFunc{ProbeName: "database", Fn: func(ctx context.Context) error { return nil }},
		ProbeFunc{ProbeName: "redis", Fn: func(ctx context.Context) error { return nil }},
	}

	rec := httptest.NewRecorder()
	s.HandleHealth(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"status":"healthy"`) {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
}

func TestHandleHealth_UnhealthyDependency(t *testing.T) {
	s := testServer(t, nil)
	s.HealthProbes = []HealthProbe{
		ProbeFunc{ProbeName: "database", Fn: func(ctx context.Context) error { return nil }},
		ProbeFunc{ProbeName: "redis", Fn: func(ctx context.Context) error { return fmt.Errorf("connection refused") }},
	}

	rec := httptest.NewRecorder()
	s.HandleHealth(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"redis":{"status":"unhealthy"`) {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
}

func TestMountRoutes_WebhookAndHealthWired(t *testing.T) {
	s := testServer(t, nil)
	s.MountRoutes(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("healthz: expected 200, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook/telegram", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("webhook: expected 200, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/webhook/telegram", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("webhook GET: expected 405, got %d", rec.Code)
	}
}
