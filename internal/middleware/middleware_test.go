package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/octobees/turmeric-buyers/internal/config"
)

func observeLogs(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	restore := zap.ReplaceGlobals(zap.New(core))
	t.Cleanup(restore)
	return logs
}

func TestLoggingMiddleware(t *testing.T) {
	logs := observeLogs(t)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set(ContextKeyRequestID, "rid-123")

	err := Logging()(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	entries := logs.FilterField(zap.String("request_id", "rid-123")).All()
	if len(entries) != 1 {
		t.Fatalf("expected one log entry with request id, got %d", len(entries))
	}
	if entries[0].ContextMap()["status"] != int64(http.StatusOK) {
		t.Fatalf("expected status field, got %v", entries[0].ContextMap())
	}

	// errors are propagated and logged at warn level
	rec = httptest.NewRecorder()
	c = e.NewContext(req, rec)
	c.Set(ContextKeyRequestID, "rid-456")
	expected := errors.New("boom")
	err = Logging()(func(c echo.Context) error {
		return expected
	})(c)
	if !errors.Is(err, expected) {
		t.Fatalf("expected error to bubble up")
	}
	failed := logs.FilterField(zap.String("request_id", "rid-456")).All()
	if len(failed) != 1 || failed[0].Level != zapcore.WarnLevel {
		t.Fatalf("expected warn entry for failed request, got %+v", failed)
	}
}

func TestRequestID(t *testing.T) {
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	_ = RequestID()(func(c echo.Context) error { return nil })(c)
	generated := RequestIDFromContext(c)
	if generated == "" || rec.Header().Get("X-Request-ID") != generated {
		t.Fatalf("expected generated request id to be echoed, got %q", generated)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "caller-id")
	rec = httptest.NewRecorder()
	c = e.NewContext(req, rec)
	_ = RequestID()(func(c echo.Context) error { return nil })(c)
	if RequestIDFromContext(c) != "caller-id" {
		t.Fatalf("expected caller request id to be kept")
	}
}

func TestPathRateLimiter(t *testing.T) {
	cfg := config.RateLimitConfig{Requests: 1, Interval: time.Second}
	mw := PathRateLimiter(cfg, "/collect")

	e := echo.New()
	nextCalls := 0
	next := func(c echo.Context) error {
		nextCalls++
		return c.NoContent(http.StatusOK)
	}

	call := func(mw echo.MiddlewareFunc, method, path string) int {
		req := httptest.NewRequest(method, path, nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetPath(path)
		_ = mw(next)(c)
		return rec.Code
	}

	if code := call(mw, http.MethodPost, "/collect"); code != http.StatusOK {
		t.Fatalf("expected first request to pass, got %d", code)
	}
	if code := call(mw, http.MethodPost, "/collect"); code != http.StatusTooManyRequests {
		t.Fatalf("expected second request rejected, got %d", code)
	}
	if code := call(mw, http.MethodGet, "/healthz"); code != http.StatusOK {
		t.Fatalf("expected unlimited path to pass, got %d", code)
	}

	disabled := PathRateLimiter(config.RateLimitConfig{}, "/collect")
	if code := call(disabled, http.MethodPost, "/collect"); code != http.StatusOK {
		t.Fatalf("expected passthrough when limiter disabled")
	}
	if nextCalls != 3 {
		t.Fatalf("expected next handler to run three times, got %d", nextCalls)
	}
}

func TestRequireRole(t *testing.T) {
	e := echo.New()
	mw := RequireRole("operator")

	cases := map[string]struct {
		role       string
		expectCode int
	}{
		"missing role":   {expectCode: http.StatusForbidden},
		"incorrect role": {role: "viewer", expectCode: http.StatusForbidden},
		"success":        {role: "operator", expectCode: http.StatusOK},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)
			if tc.role != "" {
				c.Set(ContextKeyRole, tc.role)
			}

			_ = mw(func(c echo.Context) error { return c.NoContent(http.StatusOK) })(c)
			if rec.Code != tc.expectCode {
				t.Fatalf("expected %d, got %d", tc.expectCode, rec.Code)
			}
		})
	}
}
