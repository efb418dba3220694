package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/garmsy/marketplace/internal/dto"
	"github.com/garmsy/marketplace/internal/pagination"
	"github.com/garmsy/marketplace/internal/services"
)

type OrderHandler struct {
	orders *services.OrderService
}

func NewOrderHandler(orders *services.OrderService) *OrderHandler {
	return &OrderHandler{orders: orders}
}

func (h *OrderHandler) Checkout(c *fiber.Ctx) error {
	session, err := sessionOr401(c)
	if session == nil {
		return err
	}

	var req dto.CheckoutRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}
	addressID, err := uuid.Parse(req.ShippingAddressID)
	if err != nil {
		return badID(c)
	}

	order, err := h.orders.Checkout(c.Context(), session.UserID, addressID)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(order)
}

func (h *OrderHandler) Get(c *fiber.Ctx) error {
	session, err := sessionOr401(c)
	if session == nil {
		return err
	}

	orderID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badID(c)
	}

	order, err := h.orders.Get(c.Context(), session, orderID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(order)
}

// List returns the caller's orders: own purchases for buyers, orders with
// the seller's items for sellers, everything for admins.
func (h *OrderHandler) List(c *fiber.Ctx) error {
	session, err := sessionOr401(c)
	if session == nil {
		return err
	}

	params := pagination.FromCtx(c)
	orders, total, err := h.orders.List(c.Context(), session, params.PerPage, params.Offset)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(pagination.NewResult(orders, total, params))
}
