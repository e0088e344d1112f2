package interceptors

import (
	"bytes"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"

	"credential-lifecycle/backend/internal/logging"
)

func TestRequestLog(t *testing.T) {
	var buf bytes.Buffer
	app := fiber.New()
	app.Use(RequestLog(logging.New(&buf, "text", "info"), map[string]bool{"/healthz": true}))
	app.Get("/healthz", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })
	app.Get("/missing", func(c *fiber.Ctx) error { return fiber.ErrNotFound })

	if _, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/healthz", nil)); err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("skipped path was logged: %s", buf.String())
	}

	req := httptest.NewRequest(fiber.MethodGet, "/missing", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	if _, err := app.Test(req); err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"path=/missing", "status=404", "client_ip=203.0.113.7"} {
		if !strings.Contains(out, want) {
			t.Errorf("log line missing %q: %s", want, out)
		}
	}
}

func TestClientIP(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString(ClientIP(c)) })

	tests := []struct {
		name    string
		headers map[string]string
		want    string
	}{
		{"forwarded for", map[string]string{"X-Forwarded-For": "198.51.100.1"}, "198.51.100.1"},
		{"forwarded chain", map[string]string{"X-Forwarded-For": " 198.51.100.1 , 10.0.0.2"}, "198.51.100.1"},
		{"real ip", map[string]string{"X-Real-IP": "198.51.100.9"}, "198.51.100.9"},
		{"forwarded wins", map[string]string{"X-Forwarded-For": "198.51.100.1", "X-Real-IP": "198.51.100.9"}, "198.51.100.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(fiber.MethodGet, "/", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			resp, err := app.Test(req)
			if err != nil {
				t.Fatalf("app.Test: %v", err)
			}
			var body bytes.Buffer
			_, _ = body.ReadFrom(resp.Body)
			if body.String() != tt.want {
				t.Errorf("ClientIP = %q, want %q", body.String(), tt.want)
			}
		})
	}
}
