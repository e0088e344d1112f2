package interceptors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"

	"credential-lifecycle/backend/internal/platform/fault"
)

func TestErrorHandler_MapsFaultKinds(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantDetail string
	}{
		{"invalid", fmt.Errorf("%w: refresh token could not be revoked", fault.ErrInvalid), 400, "invalid: refresh token could not be revoked"},
		{"unauthorized", fmt.Errorf("%w: wrong password for alice", fault.ErrUnauthorized), 401, "invalid credentials"},
		{"conflict", fmt.Errorf("%w: username", fault.ErrConflict), 409, "already exists"},
		{"unavailable", fmt.Errorf("%w: redis: dial tcp", fault.ErrUnavailable), 503, "service temporarily unavailable"},
		{"fiber error", fiber.NewError(fiber.StatusUnprocessableEntity, "bad input"), 422, "bad input"},
		{"unknown", errors.New("boom"), 500, "internal server error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(nil)})
			app.Get("/", func(c *fiber.Ctx) error { return tt.err })

			resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/", nil))
			if err != nil {
				t.Fatalf("app.Test: %v", err)
			}
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			var body map[string]string
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body["detail"] != tt.wantDetail {
				t.Errorf("detail = %q, want %q", body["detail"], tt.wantDetail)
			}
			if tt.wantStatus == 401 && resp.Header.Get("WWW-Authenticate") != "Bearer" {
				t.Error("401 without WWW-Authenticate: Bearer")
			}
		})
	}
}
