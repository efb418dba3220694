package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/garmsy/marketplace/internal/config"
	"github.com/garmsy/marketplace/internal/services"
)

// SessionKey is the Locals key holding the request's *services.Session.
const SessionKey = "session"

// SetSessionCookie writes the session cookie with the contract every auth
// flow shares: HTTP-only, SameSite=Lax, Path=/ and Secure in production.
func SetSessionCookie(c *fiber.Ctx, cfg *config.Config, token string, expires time.Time) {
	c.Cookie(&fiber.Cookie{
		Name:     cfg.SessionCookieName(),
		Value:    token,
		Expires:  expires,
		Path:     "/",
		HTTPOnly: true,
		Secure:   cfg.IsProduction(),
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

// ClearSessionCookie expires the session cookie immediately.
func ClearSessionCookie(c *fiber.Ctx, cfg *config.Config) {
	c.Cookie(&fiber.Cookie{
		Name:     cfg.SessionCookieName(),
		Value:    "",
		Expires:  time.Now().Add(-time.Hour),
		Path:     "/",
		HTTPOnly: true,
		Secure:   cfg.IsProduction(),
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

// LoadSession resolves the session cookie once per request. An invalid or
// expired cookie is cleared and the request continues anonymously. Tokens
// past the sliding threshold are re-minted and the cookie re-set, so active
// users stay signed in without the absolute expiry ever being bypassed.
func LoadSession(cfg *config.Config, tokens *services.TokenService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := c.Cookies(cfg.SessionCookieName())
		if raw == "" {
			return c.Next()
		}

		session, err := tokens.Parse(raw)
		if err != nil {
			ClearSessionCookie(c, cfg)
			return c.Next()
		}

		if session.NeedsRefresh(time.Now(), cfg.SessionSliding) {
			if refreshed, fresh, err := tokens.Refresh(session); err == nil {
				SetSessionCookie(c, cfg, refreshed, fresh.ExpiresAt)
				session = fresh
			}
		}

		c.Locals(SessionKey, session)
		return c.Next()
	}
}

// SessionFrom returns the request's session, or nil when anonymous.
func SessionFrom(c *fiber.Ctx) *services.Session {
	session, _ := c.Locals(SessionKey).(*services.Session)
	return session
}
