package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/garmsy/marketplace/internal/config"
	"github.com/garmsy/marketplace/internal/models"
)

var authPages = map[string]bool{
	"/login":           true,
	"/signup":          true,
	"/seller/register": true,
}

var accountPrefixes = []string{"/profile", "/settings"}

// Gate routes page requests by session state. The checks are order
// sensitive and the first match wins, so a request is redirected at most
// once:
//
//  1. auth pages with a live session go home;
//  2. the account area without a session goes to /login;
//  3. /admin needs an admin (role or email override), else home;
//  4. /seller (except registration) needs the SELLER role, else home;
//  5. everything else passes through.
//
// LoadSession must run before this handler.
func Gate(cfg *config.Config) fiber.Handler {
	overrides := cfg.AdminEmailList()

	return func(c *fiber.Ctx) error {
		path := c.Path()
		session := SessionFrom(c)

		if authPages[path] {
			if session != nil {
				return c.Redirect("/", fiber.StatusSeeOther)
			}
			return c.Next()
		}

		for _, prefix := range accountPrefixes {
			if strings.HasPrefix(path, prefix) {
				if session == nil {
					return c.Redirect("/login", fiber.StatusSeeOther)
				}
				return c.Next()
			}
		}

		if strings.HasPrefix(path, "/admin") {
			if session == nil || !IsAdmin(session.Role, session.Email, overrides) {
				return c.Redirect("/", fiber.StatusSeeOther)
			}
			return c.Next()
		}

		if strings.HasPrefix(path, "/seller") && path != "/seller/register" {
			if session == nil || session.Role != models.RoleSeller {
				return c.Redirect("/", fiber.StatusSeeOther)
			}
			return c.Next()
		}

		return c.Next()
	}
}
