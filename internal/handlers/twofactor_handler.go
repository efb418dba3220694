package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/garmsy/marketplace/internal/dto"
	"github.com/garmsy/marketplace/internal/services"
)

type TwoFactorHandler struct {
	twoFactor *services.TwoFactorService
}

func NewTwoFactorHandler(twoFactor *services.TwoFactorService) *TwoFactorHandler {
	return &TwoFactorHandler{twoFactor: twoFactor}
}

// Setup returns the provisioning material exactly once; nothing is armed
// until the user verifies a code.
func (h *TwoFactorHandler) Setup(c *fiber.Ctx) error {
	session, err := sessionOr401(c)
	if session == nil {
		return err
	}

	material, err := h.twoFactor.Setup(c.Context(), session.UserID)
	if err != nil {
		return fail(c, err)
	}

	return c.JSON(dto.TwoFactorSetupResponse{
		Secret:          material.Secret,
		ProvisioningURL: material.ProvisioningURL,
		QRCode:          material.QRPNGBase64,
		BackupCodes:     material.BackupCodes,
	})
}

func (h *TwoFactorHandler) Activate(c *fiber.Ctx) error {
	session, err := sessionOr401(c)
	if session == nil {
		return err
	}

	var req dto.TwoFactorVerifyRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}

	if err := h.twoFactor.Activate(c.Context(), session.UserID, req.Code, requestContext(c)); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"message": "Two-factor authentication enabled"})
}

func (h *TwoFactorHandler) Disable(c *fiber.Ctx) error {
	session, err := sessionOr401(c)
	if session == nil {
		return err
	}

	var req dto.TwoFactorDisableRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}

	if err := h.twoFactor.Disable(c.Context(), session.UserID, req.Password, requestContext(c)); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"message": "Two-factor authentication disabled"})
}

func (h *TwoFactorHandler) RegenerateBackupCodes(c *fiber.Ctx) error {
	session, err := sessionOr401(c)
	if session == nil {
		return err
	}

	var req dto.TwoFactorDisableRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}

	codes, err := h.twoFactor.RegenerateBackupCodes(c.Context(), session.UserID, req.Password, requestContext(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"backup_codes": codes})
}
