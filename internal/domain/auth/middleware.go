package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/sorewa/gatehouse/internal/utils"
)

const (
	// IdentityKey is the key used to store the identity in Fiber context
	IdentityKey = "identity"
)

// Middleware verifies the bearer token and stores the caller identity
// in the request context.
func Middleware(signer *Signer) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return utils.ErrorResponse(c, "missing_authorization_header", fiber.StatusUnauthorized)
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			return utils.ErrorResponse(c, "invalid_authorization_header", fiber.StatusUnauthorized)
		}

		claims, err := signer.Verify(parts[1])
		if err != nil {
			return utils.ErrorResponse(c, "invalid_token", fiber.StatusUnauthorized)
		}

		c.Locals(IdentityKey, &Identity{
			UserID:    claims.Subject(),
			Username:  claims.Username(),
			SessionID: claims.Sid(),
			ClientKey: claims.ClientKey(),
			IsAdmin:   claims.IsAdmin(),
		})

		return c.Next()
	}
}

// AdminMiddleware additionally requires the admin claim and the
// configured admin username. It must run after Middleware.
func AdminMiddleware(adminUsername string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		identity := GetIdentity(c)
		if identity == nil || !identity.IsAdmin || identity.Username != adminUsername {
			return utils.ErrorResponse(c, "admin_required", fiber.StatusForbidden)
		}
		return c.Next()
	}
}

// GetIdentity extracts the identity from Fiber context
func GetIdentity(c *fiber.Ctx) *Identity {
	identity, ok := c.Locals(IdentityKey).(*Identity)
	if !ok {
		return nil
	}
	return identity
}
