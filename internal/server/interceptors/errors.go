package interceptors

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"credential-lifecycle/backend/internal/logging"
	"credential-lifecycle/backend/internal/platform/fault"
)

// ErrorHandler returns the fiber error handler shared by every route. It maps fault kinds to HTTP
// statuses with a {"detail": ...} body. Unauthorized responses carry a fixed message so clients
// never learn which credential was wrong; server-side failures are logged and answered generically.
func ErrorHandler(log logging.Logger) fiber.ErrorHandler {
	if log == nil {
		log = logging.Nop()
	}
	return func(c *fiber.Ctx, err error) error {
		status, detail := classify(err)
		if status >= fiber.StatusInternalServerError {
			log.Error(c.UserContext(), "request failed", "method", c.Method(), "path", c.Path(), "error", err)
		}
		if status == fiber.StatusUnauthorized {
			c.Set(fiber.HeaderWWWAuthenticate, "Bearer")
		}
		return c.Status(status).JSON(fiber.Map{"detail": detail})
	}
}

func classify(err error) (int, string) {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code, fe.Message
	}
	switch fault.Kind(err) {
	case fault.ErrInvalid:
		return fiber.StatusBadRequest, err.Error()
	case fault.ErrUnauthorized:
		return fiber.StatusUnauthorized, "invalid credentials"
	case fault.ErrConflict:
		return fiber.StatusConflict, "already exists"
	case fault.ErrUnavailable:
		return fiber.StatusServiceUnavailable, "service temporarily unavailable"
	default:
		return fiber.StatusInternalServerError, "internal server error"
	}
}
