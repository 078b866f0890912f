package middleware

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestParseLimit(t *testing.T) {
	tests := []struct {
		input string
		want  int64
	}{
		{"1M", 1 << 20},
		{"10M", 10 << 20},
		{"10MB", 10 << 20},
		{"512K", 512 << 10},
		{"1G", 1 << 30},
		{"1024", 1024},
		{" 2M ", 2 << 20},
		{"", 1 << 20},
		{"invalid", 1 << 20},
		{"-5M", 1 << 20},
	}

	for _, tt := range tests {
		if got := parseLimit(tt.input); got != tt.want {
			t.Errorf("parseLimit(%q) = %d, want %d", tt.input, got, tt.want)
		}
	}
}

func postBody(body io.Reader) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func wantTooLarge(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error for oversized body")
	}
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected 413, got %d", httpErr.Code)
	}
}

func TestBodyLimit_AllowsSmallBody(t *testing.T) {
	c, _ := postBody(strings.NewReader(`{"title":"Prescription"}`))

	h := BodyLimit("1M")(func(c echo.Context) error {
		b, err := io.ReadAll(c.Request().Body)
		if err != nil {
			t.Fatalf("read body: %v", err)
		}
		if !bytes.Contains(b, []byte("Prescription")) {
			t.Errorf("body = %q, want original content", b)
		}
		return c.String(http.StatusCreated, "created")
	})

	if err := h(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestBodyLimit_RejectsByContentLength(t *testing.T) {
	c, _ := postBody(bytes.NewReader(bytes.Repeat([]byte("x"), 2048)))

	h := BodyLimit("1K")(func(c echo.Context) error {
		t.Error("handler should not run when declared length exceeds limit")
		return nil
	})

	wantTooLarge(t, h(c))
}

func TestBodyLimit_RejectsDuringRead(t *testing.T) {
	// No usable Content-Length, so the limit can only trip while reading.
	c, _ := postBody(bytes.NewReader(bytes.Repeat([]byte("a"), 1024)))
	c.Request().ContentLength = -1

	h := BodyLimit("512")(func(c echo.Context) error {
		_, err := io.ReadAll(c.Request().Body)
		return err
	})

	wantTooLarge(t, h(c))
}

func TestBodyLimit_SkipsNilBody(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/documents", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	called := false
	h := BodyLimit("1M")(func(c echo.Context) error {
		called = true
		return c.String(http.StatusOK, "ok")
	})

	if err := h(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Error("expected handler to be called for GET with no body")
	}
}

func TestBodyLimit_ExactLimitPasses(t *testing.T) {
	payload := bytes.Repeat([]byte("b"), 512)
	c, _ := postBody(bytes.NewReader(payload))
	c.Request().ContentLength = -1

	h := BodyLimit("512")(func(c echo.Context) error {
		b, err := io.ReadAll(c.Request().Body)
		if err != nil {
			return err
		}
		if len(b) != len(payload) {
			t.Errorf("read %d bytes, want %d", len(b), len(payload))
		}
		return c.NoContent(http.StatusOK)
	})

	if err := h(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
