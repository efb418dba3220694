package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/garmsy/marketplace/internal/dto"
	"github.com/garmsy/marketplace/internal/models"
	"github.com/garmsy/marketplace/internal/slug"
	"github.com/garmsy/marketplace/internal/store"
	"github.com/garmsy/marketplace/internal/validation"
)

var (
	ErrCategoryNotFound = errors.New("category not found")
	ErrProductNotFound  = errors.New("product not found")
	ErrNotProductOwner  = errors.New("you can only manage your own products")
)

// CatalogService implements category administration and seller-owned
// product CRUD. Listing endpoints are public; mutations are gated by the
// caller's session upstream and by ownership checks here.
type CatalogService struct {
	catalog store.CatalogStore
}

func NewCatalogService(catalog store.CatalogStore) *CatalogService {
	return &CatalogService{catalog: catalog}
}

func (s *CatalogService) CreateCategory(ctx context.Context, req *dto.CreateCategoryRequest) (*models.Category, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	category := &models.Category{
		Name:   req.Name,
		Slug:   slug.Make(req.Name),
		Active: true,
	}
	if req.ParentID != "" {
		parentID, err := uuid.Parse(req.ParentID)
		if err != nil {
			return nil, validation.NewFieldError("parent_id", "must be a valid UUID")
		}
		if _, err := s.catalog.FindCategoryByID(ctx, parentID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, ErrCategoryNotFound
			}
			return nil, fmt.Errorf("parent category lookup: %w", err)
		}
		category.ParentID = &parentID
	}

	if err := s.catalog.CreateCategory(ctx, category); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, validation.NewFieldError("name", "a category with this name already exists")
		}
		return nil, fmt.Errorf("create category: %w", err)
	}
	return category, nil
}

func (s *CatalogService) UpdateCategory(ctx context.Context, id uuid.UUID, req *dto.UpdateCategoryRequest) (*models.Category, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	fields := map[string]any{}
	if req.Name != nil {
		fields["name"] = *req.Name
		fields["slug"] = slug.Make(*req.Name)
	}
	if req.Active != nil {
		fields["active"] = *req.Active
	}
	if len(fields) == 0 {
		return s.GetCategory(ctx, id)
	}

	if err := s.catalog.UpdateCategory(ctx, id, fields); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrCategoryNotFound
		}
		return nil, fmt.Errorf("update category: %w", err)
	}
	return s.GetCategory(ctx, id)
}

func (s *CatalogService) GetCategory(ctx context.Context, id uuid.UUID) (*models.Category, error) {
	category, err := s.catalog.FindCategoryByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrCategoryNotFound
		}
		return nil, fmt.Errorf("category lookup: %w", err)
	}
	return category, nil
}

func (s *CatalogService) ListCategories(ctx context.Context, includeInactive bool) ([]models.Category, error) {
	return s.catalog.ListCategories(ctx, !includeInactive)
}

// CreateProduct creates a product owned by sellerID. The slug is derived
// from the name; collisions get a short random discriminator.
func (s *CatalogService) CreateProduct(ctx context.Context, sellerID uuid.UUID, req *dto.CreateProductRequest) (*models.Product, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	categoryID, err := uuid.Parse(req.CategoryID)
	if err != nil {
		return nil, validation.NewFieldError("category_id", "must be a valid UUID")
	}
	if _, err := s.catalog.FindCategoryByID(ctx, categoryID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrCategoryNotFound
		}
		return nil, fmt.Errorf("category lookup: %w", err)
	}

	productSlug, err := s.uniqueSlug(ctx, req.Name)
	if err != nil {
		return nil, err
	}

	product := &models.Product{
		SellerID:    sellerID,
		CategoryID:  categoryID,
		Name:        req.Name,
		Slug:        productSlug,
		Description: req.Description,
		PriceCents:  req.PriceCents,
		Stock:       req.Stock,
		ImageURL:    req.ImageURL,
		Active:      true,
	}
	if err := s.catalog.CreateProduct(ctx, product); err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}
	return product, nil
}

// UpdateProduct mutates a product after checking ownership. Admin callers
// pass isAdmin to override the ownership check (deactivation etc.).
func (s *CatalogService) UpdateProduct(ctx context.Context, actorSellerID uuid.UUID, isAdmin bool, productID uuid.UUID, req *dto.UpdateProductRequest) (*models.Product, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	product, err := s.getOwnedProduct(ctx, actorSellerID, isAdmin, productID)
	if err != nil {
		return nil, err
	}

	fields := map[string]any{}
	if req.Name != nil {
		fields["name"] = *req.Name
	}
	if req.Description != nil {
		fields["description"] = *req.Description
	}
	if req.PriceCents != nil {
		fields["price_cents"] = *req.PriceCents
	}
	if req.Stock != nil {
		fields["stock"] = *req.Stock
	}
	if req.ImageURL != nil {
		fields["image_url"] = *req.ImageURL
	}
	if req.Active != nil {
		fields["active"] = *req.Active
	}
	if len(fields) == 0 {
		return product, nil
	}

	if err := s.catalog.UpdateProduct(ctx, productID, fields); err != nil {
		return nil, fmt.Errorf("update product: %w", err)
	}
	return s.catalog.FindProductByID(ctx, productID)
}

func (s *CatalogService) DeleteProduct(ctx context.Context, actorSellerID uuid.UUID, isAdmin bool, productID uuid.UUID) error {
	if _, err := s.getOwnedProduct(ctx, actorSellerID, isAdmin, productID); err != nil {
		return err
	}
	if err := s.catalog.DeleteProduct(ctx, productID); err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	return nil
}

func (s *CatalogService) GetProductBySlug(ctx context.Context, productSlug string) (*models.Product, error) {
	product, err := s.catalog.FindProductBySlug(ctx, productSlug)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("product lookup: %w", err)
	}
	return product, nil
}

func (s *CatalogService) ListProducts(ctx context.Context, filter store.ProductFilter) ([]models.Product, int64, error) {
	return s.catalog.ListProducts(ctx, filter)
}

func (s *CatalogService) getOwnedProduct(ctx context.Context, actorSellerID uuid.UUID, isAdmin bool, productID uuid.UUID) (*models.Product, error) {
	product, err := s.catalog.FindProductByID(ctx, productID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("product lookup: %w", err)
	}
	if !isAdmin && product.SellerID != actorSellerID {
		return nil, ErrNotProductOwner
	}
	return product, nil
}

func (s *CatalogService) uniqueSlug(ctx context.Context, name string) (string, error) {
	base := slug.Make(name)
	_, err := s.catalog.FindProductBySlug(ctx, base)
	if errors.Is(err, store.ErrNotFound) {
		return base, nil
	}
	if err != nil {
		return "", fmt.Errorf("slug lookup: %w", err)
	}
	return slug.WithSuffix(base, uuid.NewString()[:8]), nil
}
