package middleware

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

func TestRequestID_GeneratesAndEchoes(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := RequestID()(func(c echo.Context) error {
		if RequestIDFrom(c) == "" {
			t.Error("request id not set on context")
		}
		return c.NoContent(http.StatusOK)
	})
	if err := h(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("request id not echoed in response header")
	}
}

func TestRequestID_HonorsCallerID(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "rid-123")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := RequestID()(func(c echo.Context) error {
		if got := RequestIDFrom(c); got != "rid-123" {
			t.Errorf("request id = %q, want rid-123", got)
		}
		return c.NoContent(http.StatusOK)
	})
	if err := h(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := rec.Header().Get("X-Request-ID"); got != "rid-123" {
		t.Errorf("echoed id = %q, want rid-123", got)
	}
}

func TestLogger_CorrelatesAndLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	e := echo.New()

	run := func(handler echo.HandlerFunc) string {
		buf.Reset()
		req := httptest.NewRequest(http.MethodGet, "/patients", nil)
		req.Header.Set("X-Request-ID", "rid-456")
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		_ = RequestID()(Logger(logger)(handler))(c)
		return buf.String()
	}

	line := run(func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	if !strings.Contains(line, `"level":"info"`) {
		t.Errorf("2xx should log at info, got %s", line)
	}
	if !strings.Contains(line, `"request_id":"rid-456"`) {
		t.Errorf("log line missing request id correlation: %s", line)
	}

	line = run(func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusNotFound, "missing")
	})
	if !strings.Contains(line, `"level":"warn"`) || !strings.Contains(line, `"status":404`) {
		t.Errorf("4xx should log at warn with its status, got %s", line)
	}

	line = run(func(c echo.Context) error { return errors.New("boom") })
	if !strings.Contains(line, `"level":"error"`) || !strings.Contains(line, `"status":500`) {
		t.Errorf("plain error should log at error with status 500, got %s", line)
	}
}

func TestRecovery_ConvertsPanicTo500(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := Recovery(logger)(func(c echo.Context) error { panic("boom") })
	err := h(c)

	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 HTTPError, got %v", err)
	}
	if !strings.Contains(buf.String(), "panic recovered") {
		t.Error("panic not logged")
	}
}
