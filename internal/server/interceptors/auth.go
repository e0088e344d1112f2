package interceptors

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"credential-lifecycle/backend/internal/platform/fault"
	"credential-lifecycle/backend/internal/security"
)

const bearerPrefix = "bearer "

// Authenticator admits an access token: it must verify and must not be revoked.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (*security.AccessClaims, error)
}

// RequireBearer returns middleware that admits the Bearer token from the Authorization header and
// stores its claims in the request's user context. Missing, malformed, invalid and revoked tokens
// all get the same 401; a revocation store failure is passed to the error handler.
func RequireBearer(auth Authenticator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := extractBearer(c.Get(fiber.HeaderAuthorization))
		if token == "" {
			return unauthorized(c)
		}
		claims, err := auth.Authenticate(c.UserContext(), token)
		if errors.Is(err, fault.ErrUnauthorized) {
			return unauthorized(c)
		}
		if err != nil {
			return err
		}
		c.SetUserContext(WithClaims(c.UserContext(), claims))
		return c.Next()
	}
}

func unauthorized(c *fiber.Ctx) error {
	c.Set(fiber.HeaderWWWAuthenticate, "Bearer")
	return fiber.NewError(fiber.StatusUnauthorized, "missing or invalid authorization")
}

// extractBearer returns the token from an Authorization header value, or "" if missing or malformed.
func extractBearer(header string) string {
	v := strings.TrimSpace(header)
	if len(v) < len(bearerPrefix) {
		return ""
	}
	if !strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(v[len(bearerPrefix):])
}
