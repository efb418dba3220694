package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/garmsy/marketplace/internal/config"
	"github.com/garmsy/marketplace/internal/dto"
	"github.com/garmsy/marketplace/internal/middleware"
	"github.com/garmsy/marketplace/internal/models"
	"github.com/garmsy/marketplace/internal/services"
	"github.com/garmsy/marketplace/internal/store"
)

type AuthHandler struct {
	cfg   *config.Config
	auth  *services.AuthService
	users store.UserStore
}

func NewAuthHandler(cfg *config.Config, auth *services.AuthService, users store.UserStore) *AuthHandler {
	return &AuthHandler{cfg: cfg, auth: auth, users: users}
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}

	result, err := h.auth.Login(c.Context(), &req, requestContext(c))
	if err != nil {
		return fail(c, err)
	}

	middleware.SetSessionCookie(c, h.cfg, result.Token, result.Session.ExpiresAt)
	return c.JSON(dto.AuthResponse{User: userResponse(result.User)})
}

func (h *AuthHandler) TwoFactorLogin(c *fiber.Ctx) error {
	var req dto.TwoFactorLoginRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}

	result, err := h.auth.TwoFactorLogin(c.Context(), &req, requestContext(c))
	if err != nil {
		return fail(c, err)
	}

	middleware.SetSessionCookie(c, h.cfg, result.Token, result.Session.ExpiresAt)
	return c.JSON(dto.AuthResponse{User: userResponse(result.User)})
}

// Logout succeeds with or without a live session; the cookie is cleared
// either way.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	h.auth.Logout(c.Context(), middleware.SessionFrom(c), requestContext(c))
	middleware.ClearSessionCookie(c, h.cfg)
	return c.JSON(fiber.Map{"message": "Logged out successfully"})
}

func (h *AuthHandler) Signup(c *fiber.Ctx) error {
	var req dto.SignupRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}

	result, err := h.auth.Signup(c.Context(), &req, requestContext(c))
	if err != nil {
		return fail(c, err)
	}

	if result.Token != "" {
		middleware.SetSessionCookie(c, h.cfg, result.Token, result.Session.ExpiresAt)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.AuthResponse{User: userResponse(result.User)})
}

func (h *AuthHandler) SellerRegistration(c *fiber.Ctx) error {
	var req dto.SellerRegistrationRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}

	result, err := h.auth.SellerRegistration(c.Context(), &req, requestContext(c))
	if err != nil {
		return fail(c, err)
	}

	if result.Token != "" {
		middleware.SetSessionCookie(c, h.cfg, result.Token, result.Session.ExpiresAt)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.AuthResponse{User: userResponse(result.User)})
}

func (h *AuthHandler) ChangePassword(c *fiber.Ctx) error {
	session, err := sessionOr401(c)
	if session == nil {
		return err
	}

	var req dto.ChangePasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}

	if err := h.auth.ChangePassword(c.Context(), session.UserID, &req, requestContext(c)); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"message": "Password changed successfully"})
}

// Me returns the caller's profile, freshly read so administrative changes
// show up without waiting for a token refresh.
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	session, err := sessionOr401(c)
	if session == nil {
		return err
	}

	user, err := h.users.FindUserByID(c.Context(), session.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			middleware.ClearSessionCookie(c, h.cfg)
			return fail(c, services.ErrUserNotFound)
		}
		return fail(c, err)
	}
	return c.JSON(userResponse(user))
}

func userResponse(user *models.User) dto.UserResponse {
	resp := dto.UserResponse{
		ID:          user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		FirstName:   user.FirstName,
		LastName:    user.LastName,
		Role:        string(user.Role),
		Verified:    user.Verified,
		TwoFactor:   user.TwoFactorEnabled,
		LastLoginAt: user.LastLoginAt,
	}
	if user.Seller != nil {
		resp.Seller = &dto.SellerResponse{
			ID:        user.Seller.ID,
			StoreName: user.Seller.StoreName,
			Verified:  user.Seller.Verified,
		}
	}
	return resp
}
