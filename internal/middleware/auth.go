package middleware

import (
	jwtware "github.com/gofiber/contrib/jwt"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/garmsy/marketplace/internal/config"
	"github.com/garmsy/marketplace/internal/dto"
	"github.com/garmsy/marketplace/internal/services"
)

// JWTProtected guards the JSON API. The token is accepted from the session
// cookie or a bearer header, and the decoded claims are converted into the
// same *services.Session the page gate uses.
func JWTProtected(cfg *config.Config) fiber.Handler {
	return jwtware.New(jwtware.Config{
		SigningKey:  jwtware.SigningKey{Key: []byte(cfg.JWTSecret)},
		TokenLookup: "cookie:" + cfg.SessionCookieName() + ",header:Authorization",
		AuthScheme:  "Bearer",
		SuccessHandler: func(c *fiber.Ctx) error {
			token, ok := c.Locals("user").(*jwt.Token)
			if !ok || token == nil {
				return unauthorized(c)
			}
			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				return unauthorized(c)
			}
			session, err := services.SessionFromClaims(claims)
			if err != nil {
				return unauthorized(c)
			}
			c.Locals(SessionKey, session)
			return c.Next()
		},
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return unauthorized(c)
		},
	})
}

func unauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
		Error:   true,
		Message: "Unauthorized: invalid or expired token",
	})
}
