package handlers

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/garmsy/marketplace/internal/dto"
	"github.com/garmsy/marketplace/internal/middleware"
	"github.com/garmsy/marketplace/internal/services"
)

// fail translates the service error taxonomy into HTTP responses. Field
// validation failures carry their field map; authentication failures stay
// deliberately generic; anything unrecognized is logged and becomes a 500.
func fail(c *fiber.Ctx, err error) error {
	var fieldsErr interface {
		error
		Fields() map[string]string
	}
	if errors.As(err, &fieldsErr) {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(dto.ErrorResponse{
			Error:   true,
			Message: "Validation failed",
			Errors:  fieldsErr.Fields(),
		})
	}

	var twoFactor *services.TwoFactorRequiredError
	if errors.As(err, &twoFactor) {
		return c.JSON(dto.TwoFactorRequiredResponse{
			RequiresTwoFactor: true,
			UserEmail:         twoFactor.Email,
		})
	}

	switch {
	case errors.Is(err, services.ErrInvalidCredentials),
		errors.Is(err, services.ErrInvalidTwoFactorCode),
		errors.Is(err, services.ErrInvalidSession):
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid credentials",
		})

	case errors.Is(err, services.ErrRateLimited):
		return c.Status(fiber.StatusTooManyRequests).JSON(dto.ErrorResponse{
			Error: true, Message: "Too many attempts. Please try again later.",
		})

	case errors.Is(err, services.ErrEmailTaken):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{
			Error: true, Message: "An account with this email already exists",
		})

	case errors.Is(err, services.ErrSamePassword):
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "New password must be different from the current password",
		})

	case errors.Is(err, services.ErrTwoFactorAlreadyEnabled),
		errors.Is(err, services.ErrTwoFactorNotPending),
		errors.Is(err, services.ErrTwoFactorNotEnabled):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{
			Error: true, Message: err.Error(),
		})

	case errors.Is(err, services.ErrCategoryNotFound),
		errors.Is(err, services.ErrProductNotFound),
		errors.Is(err, services.ErrOrderNotFound),
		errors.Is(err, services.ErrAddressNotFound),
		errors.Is(err, services.ErrUserNotFound):
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{
			Error: true, Message: err.Error(),
		})

	case errors.Is(err, services.ErrNotProductOwner),
		errors.Is(err, services.ErrNotOrderViewer):
		return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{
			Error: true, Message: err.Error(),
		})

	case errors.Is(err, services.ErrEmptyCart),
		errors.Is(err, services.ErrProductUnavailable),
		errors.Is(err, services.ErrQuantityTooLarge),
		errors.Is(err, services.ErrNotInCart):
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: err.Error(),
		})
	}

	slog.Error("request failed", "path", c.Path(), "error", err)
	return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
		Error: true, Message: "Internal server error",
	})
}

func badBody(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
		Error: true, Message: "Invalid request body",
	})
}

// requestContext captures the audit fields every auth operation records.
func requestContext(c *fiber.Ctx) services.RequestContext {
	return services.RequestContext{
		IP:        c.IP(),
		UserAgent: c.Get("User-Agent"),
	}
}

func sessionOr401(c *fiber.Ctx) (*services.Session, error) {
	session := middleware.SessionFrom(c)
	if session == nil {
		return nil, c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
			Error: true, Message: "Unauthorized",
		})
	}
	return session, nil
}
