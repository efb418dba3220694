package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/garmsy/marketplace/internal/dto"
	"github.com/garmsy/marketplace/internal/services"
)

type CartHandler struct {
	cart *services.CartService
}

func NewCartHandler(cart *services.CartService) *CartHandler {
	return &CartHandler{cart: cart}
}

func (h *CartHandler) Get(c *fiber.Ctx) error {
	session, err := sessionOr401(c)
	if session == nil {
		return err
	}

	view, err := h.cart.Get(c.Context(), session.UserID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(view)
}

func (h *CartHandler) AddItem(c *fiber.Ctx) error {
	session, err := sessionOr401(c)
	if session == nil {
		return err
	}

	var req dto.CartItemRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}
	productID, err := uuid.Parse(req.ProductID)
	if err != nil {
		return badID(c)
	}

	view, err := h.cart.AddItem(c.Context(), session.UserID, productID, req.Quantity)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(view)
}

func (h *CartHandler) SetQuantity(c *fiber.Ctx) error {
	session, err := sessionOr401(c)
	if session == nil {
		return err
	}

	productID, err := uuid.Parse(c.Params("productId"))
	if err != nil {
		return badID(c)
	}

	var req dto.CartQuantityRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}

	view, err := h.cart.SetQuantity(c.Context(), session.UserID, productID, req.Quantity)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(view)
}

func (h *CartHandler) RemoveItem(c *fiber.Ctx) error {
	session, err := sessionOr401(c)
	if session == nil {
		return err
	}

	productID, err := uuid.Parse(c.Params("productId"))
	if err != nil {
		return badID(c)
	}

	view, err := h.cart.RemoveItem(c.Context(), session.UserID, productID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(view)
}

func (h *CartHandler) Clear(c *fiber.Ctx) error {
	session, err := sessionOr401(c)
	if session == nil {
		return err
	}

	if err := h.cart.Clear(c.Context(), session.UserID); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"message": "Cart cleared"})
}
