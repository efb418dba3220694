package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/garmsy/marketplace/internal/models"
)

var (
	ErrNotFound          = errors.New("record not found")
	ErrDuplicate         = errors.New("record already exists")
	ErrInsufficientStock = errors.New("insufficient stock")
)

// UserStore is the credential-store surface the auth layer consumes. The
// seller-registration flow composes its calls inside Transaction so the
// User, Address and Seller rows commit or roll back together.
type UserStore interface {
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	FindUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	CreateUser(ctx context.Context, user *models.User) error
	UpdateUser(ctx context.Context, id uuid.UUID, fields map[string]any) error
	CreateAddress(ctx context.Context, address *models.Address) error
	FindAddressByID(ctx context.Context, id uuid.UUID) (*models.Address, error)
	ListAddressesByUser(ctx context.Context, userID uuid.UUID) ([]models.Address, error)
	CreateSeller(ctx context.Context, seller *models.Seller) error
	FindSellerByUserID(ctx context.Context, userID uuid.UUID) (*models.Seller, error)

	Transaction(ctx context.Context, fn func(UserStore) error) error
}

// AuditStore is a write-only sink plus the single window count the login
// rate limiter reads.
type AuditStore interface {
	AppendEvent(ctx context.Context, event *models.AuditEvent) error
	CountEventsSince(ctx context.Context, email string, since time.Time) (int64, error)
}

// ProductFilter narrows product listings.
type ProductFilter struct {
	CategoryID *uuid.UUID
	SellerID   *uuid.UUID
	ActiveOnly bool
	Limit      int
	Offset     int
}

type CatalogStore interface {
	CreateCategory(ctx context.Context, category *models.Category) error
	UpdateCategory(ctx context.Context, id uuid.UUID, fields map[string]any) error
	FindCategoryByID(ctx context.Context, id uuid.UUID) (*models.Category, error)
	FindCategoryBySlug(ctx context.Context, slug string) (*models.Category, error)
	ListCategories(ctx context.Context, activeOnly bool) ([]models.Category, error)

	CreateProduct(ctx context.Context, product *models.Product) error
	UpdateProduct(ctx context.Context, id uuid.UUID, fields map[string]any) error
	DeleteProduct(ctx context.Context, id uuid.UUID) error
	FindProductByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	FindProductBySlug(ctx context.Context, slug string) (*models.Product, error)
	ListProducts(ctx context.Context, filter ProductFilter) ([]models.Product, int64, error)

	// TakeStock atomically decrements stock, failing with
	// ErrInsufficientStock when fewer than qty units remain.
	TakeStock(ctx context.Context, productID uuid.UUID, qty int) error
}

type OrderStore interface {
	CreateOrder(ctx context.Context, order *models.Order) error
	FindOrderByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	ListOrdersByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Order, int64, error)
	ListOrdersBySeller(ctx context.Context, sellerID uuid.UUID, limit, offset int) ([]models.Order, int64, error)
	ListOrders(ctx context.Context, limit, offset int) ([]models.Order, int64, error)

	CheckoutTransaction(ctx context.Context, fn func(catalog CatalogStore, orders OrderStore) error) error
}
