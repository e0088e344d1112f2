package interceptors

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"credential-lifecycle/backend/internal/logging"
)

// RequestLog returns middleware that logs one line per request after the handler ran.
// skipPaths is the set of paths not logged (e.g. liveness checks).
func RequestLog(log logging.Logger, skipPaths map[string]bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		if skipPaths[c.Path()] {
			return err
		}
		status := c.Response().StatusCode()
		if err != nil {
			status = fiber.StatusInternalServerError
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			}
		}
		args := []any{
			"method", c.Method(),
			"path", c.Path(),
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
			"client_ip", ClientIP(c),
		}
		if userID, ok := GetUserID(c.UserContext()); ok {
			args = append(args, "user_id", userID)
		}
		log.Info(c.UserContext(), "http request", args...)
		return err
	}
}

// ClientIP returns the client IP from X-Forwarded-For, X-Real-IP or the connection, or "unknown".
func ClientIP(c *fiber.Ctx) string {
	if s := strings.TrimSpace(c.Get(fiber.HeaderXForwardedFor)); s != "" {
		if i := strings.Index(s, ","); i > 0 {
			s = strings.TrimSpace(s[:i])
		}
		return s
	}
	if s := strings.TrimSpace(c.Get("X-Real-IP")); s != "" {
		return s
	}
	if ip := c.IP(); ip != "" {
		return ip
	}
	return "unknown"
}
