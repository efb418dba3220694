package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/garmsy/marketplace/internal/config"
	"github.com/garmsy/marketplace/internal/dto"
	"github.com/garmsy/marketplace/internal/models"
)

// RequireRole allows the request through only when the session role is one
// of the listed roles. Unknown roles are denied; there is no fall-through.
func RequireRole(roles ...models.Role) fiber.Handler {
	allowed := map[models.Role]bool{}
	for _, role := range roles {
		allowed[role] = true
	}

	return func(c *fiber.Ctx) error {
		session := SessionFrom(c)
		if session == nil {
			return unauthorized(c)
		}

		switch session.Role {
		case models.RoleBuyer, models.RoleSeller, models.RoleAdmin:
			if allowed[session.Role] {
				return c.Next()
			}
		}
		return forbidden(c)
	}
}

// AdminRequired admits admins by role, or by membership in the configured
// admin email override list.
func AdminRequired(cfg *config.Config) fiber.Handler {
	overrides := cfg.AdminEmailList()

	return func(c *fiber.Ctx) error {
		session := SessionFrom(c)
		if session == nil {
			return unauthorized(c)
		}
		if IsAdmin(session.Role, session.Email, overrides) {
			return c.Next()
		}
		return forbidden(c)
	}
}

// IsAdmin is the single admin predicate shared by the API middleware and
// the page gate.
func IsAdmin(role models.Role, email string, overrideEmails []string) bool {
	if role == models.RoleAdmin {
		return true
	}
	lowered := strings.ToLower(email)
	for _, override := range overrideEmails {
		if override == lowered {
			return true
		}
	}
	return false
}

func forbidden(c *fiber.Ctx) error {
	return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{
		Error:   true,
		Message: "Insufficient permissions",
	})
}
