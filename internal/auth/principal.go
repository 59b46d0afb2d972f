package auth

import (
	"slices"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/paywallet/internal/domain"
)

const principalKey = "principal"

// Principal is the resolved caller of a request.
type Principal struct {
	UserID string
	Email  string

	// APIKeyID is set when the caller authenticated with an API key; the
	// key's permissions then restrict what the caller may do.
	APIKeyID    string
	Permissions []domain.Permission
}

// IsAPIKey reports whether the principal came from an API key.
func (p Principal) IsAPIKey() bool {
	return p.APIKeyID != ""
}

// Can reports whether the principal may perform perm. Bearer-token users
// have full access.
func (p Principal) Can(perm domain.Permission) bool {
	if !p.IsAPIKey() {
		return true
	}
	return slices.Contains(p.Permissions, perm)
}

// SetPrincipal stores p on the request context.
func SetPrincipal(c *fiber.Ctx, p Principal) {
	c.Locals(principalKey, p)
}

// PrincipalFrom returns the principal stored by the authentication middleware.
func PrincipalFrom(c *fiber.Ctx) (Principal, bool) {
	p, ok := c.Locals(principalKey).(Principal)
	if !ok || p.UserID == "" {
		return Principal{}, false
	}
	return p, true
}
