package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/paywallet/internal/auth"
	"github.com/congo-pay/paywallet/internal/domain"
)

// APIKeyHeader carries a service credential.
const APIKeyHeader = "x-api-key"

// KeyAuthenticator resolves an API key secret.
type KeyAuthenticator interface {
	Authenticate(ctx context.Context, secret string) (domain.APIKey, error)
}

// Authenticate resolves the caller from an API key or a bearer token and
// stores the principal for downstream handlers. An API key wins when both
// are present.
func Authenticate(secret []byte, keys KeyAuthenticator, logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if raw := c.Get(APIKeyHeader); raw != "" {
			key, err := keys.Authenticate(c.UserContext(), raw)
			if err != nil {
				switch {
				case errors.Is(err, domain.ErrInvalidAPIKey),
					errors.Is(err, domain.ErrAPIKeyRevoked),
					errors.Is(err, domain.ErrAPIKeyExpired):
					return fiber.NewError(http.StatusUnauthorized, err.Error())
				default:
					logger.Error("api key lookup failed", slog.String("error", err.Error()))
					return fiber.NewError(http.StatusInternalServerError, "authentication failed")
				}
			}
			auth.SetPrincipal(c, auth.Principal{
				UserID:      key.UserID,
				APIKeyID:    key.ID,
				Permissions: key.Permissions,
			})
			return c.Next()
		}

		authz := c.Get(fiber.HeaderAuthorization)
		if len(authz) < len("bearer ") || !strings.EqualFold(authz[:len("bearer ")], "bearer ") {
			return fiber.NewError(http.StatusUnauthorized, "missing credentials")
		}
		claims, err := auth.ParseToken(strings.TrimSpace(authz[len("bearer "):]), secret)
		if err != nil {
			return fiber.NewError(http.StatusUnauthorized, "invalid token")
		}
		auth.SetPrincipal(c, auth.Principal{UserID: claims.Subject, Email: claims.Email})
		return c.Next()
	}
}

// RequirePermission rejects API key callers whose key lacks perm. Bearer
// callers pass.
func RequirePermission(perm domain.Permission) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, ok := auth.PrincipalFrom(c)
		if !ok {
			return fiber.NewError(http.StatusUnauthorized, "missing user context")
		}
		if !p.Can(perm) {
			return fiber.NewError(http.StatusForbidden, "API key missing "+string(perm)+" permission")
		}
		return c.Next()
	}
}
