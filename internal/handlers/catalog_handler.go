package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/garmsy/marketplace/internal/dto"
	"github.com/garmsy/marketplace/internal/middleware"
	"github.com/garmsy/marketplace/internal/models"
	"github.com/garmsy/marketplace/internal/pagination"
	"github.com/garmsy/marketplace/internal/services"
	"github.com/garmsy/marketplace/internal/store"
)

type CatalogHandler struct {
	catalog *services.CatalogService
}

func NewCatalogHandler(catalog *services.CatalogService) *CatalogHandler {
	return &CatalogHandler{catalog: catalog}
}

func (h *CatalogHandler) ListCategories(c *fiber.Ctx) error {
	session := middleware.SessionFrom(c)
	includeInactive := c.QueryBool("include_inactive") &&
		session != nil && session.Role == models.RoleAdmin

	categories, err := h.catalog.ListCategories(c.Context(), includeInactive)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"categories": categories})
}

func (h *CatalogHandler) CreateCategory(c *fiber.Ctx) error {
	var req dto.CreateCategoryRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}

	category, err := h.catalog.CreateCategory(c.Context(), &req)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(category)
}

func (h *CatalogHandler) UpdateCategory(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badID(c)
	}

	var req dto.UpdateCategoryRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}

	category, err := h.catalog.UpdateCategory(c.Context(), id, &req)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(category)
}

func (h *CatalogHandler) ListProducts(c *fiber.Ctx) error {
	params := pagination.FromCtx(c)
	filter := store.ProductFilter{
		ActiveOnly: true,
		Limit:      params.PerPage,
		Offset:     params.Offset,
	}
	if raw := c.Query("category_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return badID(c)
		}
		filter.CategoryID = &id
	}
	if raw := c.Query("seller_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return badID(c)
		}
		filter.SellerID = &id
	}

	products, total, err := h.catalog.ListProducts(c.Context(), filter)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(pagination.NewResult(products, total, params))
}

// ListMyProducts shows the calling seller's products, inactive included.
func (h *CatalogHandler) ListMyProducts(c *fiber.Ctx) error {
	session, err := sessionOr401(c)
	if session == nil {
		return err
	}
	if session.Seller == nil {
		return fail(c, services.ErrNotProductOwner)
	}

	params := pagination.FromCtx(c)
	products, total, err := h.catalog.ListProducts(c.Context(), store.ProductFilter{
		SellerID: &session.Seller.ID,
		Limit:    params.PerPage,
		Offset:   params.Offset,
	})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(pagination.NewResult(products, total, params))
}

func (h *CatalogHandler) GetProduct(c *fiber.Ctx) error {
	product, err := h.catalog.GetProductBySlug(c.Context(), c.Params("slug"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(product)
}

func (h *CatalogHandler) CreateProduct(c *fiber.Ctx) error {
	session, err := sessionOr401(c)
	if session == nil {
		return err
	}
	if session.Seller == nil {
		return fail(c, services.ErrNotProductOwner)
	}

	var req dto.CreateProductRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}

	product, err := h.catalog.CreateProduct(c.Context(), session.Seller.ID, &req)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(product)
}

func (h *CatalogHandler) UpdateProduct(c *fiber.Ctx) error {
	session, err := sessionOr401(c)
	if session == nil {
		return err
	}

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badID(c)
	}

	var req dto.UpdateProductRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}

	sellerID, isAdmin := actorSeller(session)
	product, err := h.catalog.UpdateProduct(c.Context(), sellerID, isAdmin, id, &req)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(product)
}

func (h *CatalogHandler) DeleteProduct(c *fiber.Ctx) error {
	session, err := sessionOr401(c)
	if session == nil {
		return err
	}

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badID(c)
	}

	sellerID, isAdmin := actorSeller(session)
	if err := h.catalog.DeleteProduct(c.Context(), sellerID, isAdmin, id); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"message": "Product deleted"})
}

func actorSeller(session *services.Session) (uuid.UUID, bool) {
	sellerID := uuid.Nil
	if session.Seller != nil {
		sellerID = session.Seller.ID
	}
	return sellerID, session.Role == models.RoleAdmin
}

func badID(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
		Error: true, Message: "Invalid id",
	})
}
