package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/garmsy/marketplace/internal/models"
	"github.com/garmsy/marketplace/internal/store"
)

type mockUserStore struct {
	mock.Mock
}

func (m *mockUserStore) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if u := args.Get(0); u != nil {
		return u.(*models.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockUserStore) FindUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	args := m.Called(ctx, id)
	if u := args.Get(0); u != nil {
		return u.(*models.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockUserStore) CreateUser(ctx context.Context, user *models.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *mockUserStore) UpdateUser(ctx context.Context, id uuid.UUID, fields map[string]any) error {
	return m.Called(ctx, id, fields).Error(0)
}

func (m *mockUserStore) CreateAddress(ctx context.Context, address *models.Address) error {
	return m.Called(ctx, address).Error(0)
}

func (m *mockUserStore) FindAddressByID(ctx context.Context, id uuid.UUID) (*models.Address, error) {
	args := m.Called(ctx, id)
	if a := args.Get(0); a != nil {
		return a.(*models.Address), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockUserStore) ListAddressesByUser(ctx context.Context, userID uuid.UUID) ([]models.Address, error) {
	args := m.Called(ctx, userID)
	if a := args.Get(0); a != nil {
		return a.([]models.Address), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockUserStore) CreateSeller(ctx context.Context, seller *models.Seller) error {
	return m.Called(ctx, seller).Error(0)
}

func (m *mockUserStore) FindSellerByUserID(ctx context.Context, userID uuid.UUID) (*models.Seller, error) {
	args := m.Called(ctx, userID)
	if s := args.Get(0); s != nil {
		return s.(*models.Seller), args.Error(1)
	}
	return nil, args.Error(1)
}

// Transaction runs fn against the same mock, so per-call expectations
// decide whether the "transaction" commits or rolls back.
func (m *mockUserStore) Transaction(ctx context.Context, fn func(store.UserStore) error) error {
	m.Called(ctx, mock.Anything)
	return fn(m)
}

type mockAuditStore struct {
	mock.Mock
}

func (m *mockAuditStore) AppendEvent(ctx context.Context, event *models.AuditEvent) error {
	return m.Called(ctx, event).Error(0)
}

func (m *mockAuditStore) CountEventsSince(ctx context.Context, email string, since time.Time) (int64, error) {
	args := m.Called(ctx, email, since)
	return args.Get(0).(int64), args.Error(1)
}

// kinds returns the audit kinds appended so far, in call order.
func (m *mockAuditStore) kinds() []models.AuditKind {
	var kinds []models.AuditKind
	for _, call := range m.Calls {
		if call.Method == "AppendEvent" {
			kinds = append(kinds, call.Arguments.Get(1).(*models.AuditEvent).Kind)
		}
	}
	return kinds
}

type mockCatalogStore struct {
	mock.Mock
}

func (m *mockCatalogStore) CreateCategory(ctx context.Context, category *models.Category) error {
	return m.Called(ctx, category).Error(0)
}

func (m *mockCatalogStore) UpdateCategory(ctx context.Context, id uuid.UUID, fields map[string]any) error {
	return m.Called(ctx, id, fields).Error(0)
}

func (m *mockCatalogStore) FindCategoryByID(ctx context.Context, id uuid.UUID) (*models.Category, error) {
	args := m.Called(ctx, id)
	if c := args.Get(0); c != nil {
		return c.(*models.Category), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockCatalogStore) FindCategoryBySlug(ctx context.Context, slug string) (*models.Category, error) {
	args := m.Called(ctx, slug)
	if c := args.Get(0); c != nil {
		return c.(*models.Category), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockCatalogStore) ListCategories(ctx context.Context, activeOnly bool) ([]models.Category, error) {
	args := m.Called(ctx, activeOnly)
	if c := args.Get(0); c != nil {
		return c.([]models.Category), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockCatalogStore) CreateProduct(ctx context.Context, product *models.Product) error {
	return m.Called(ctx, product).Error(0)
}

func (m *mockCatalogStore) UpdateProduct(ctx context.Context, id uuid.UUID, fields map[string]any) error {
	return m.Called(ctx, id, fields).Error(0)
}

func (m *mockCatalogStore) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockCatalogStore) FindProductByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	args := m.Called(ctx, id)
	if p := args.Get(0); p != nil {
		return p.(*models.Product), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockCatalogStore) FindProductBySlug(ctx context.Context, slug string) (*models.Product, error) {
	args := m.Called(ctx, slug)
	if p := args.Get(0); p != nil {
		return p.(*models.Product), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockCatalogStore) ListProducts(ctx context.Context, filter store.ProductFilter) ([]models.Product, int64, error) {
	args := m.Called(ctx, filter)
	if p := args.Get(0); p != nil {
		return p.([]models.Product), args.Get(1).(int64), args.Error(2)
	}
	return nil, args.Get(1).(int64), args.Error(2)
}

func (m *mockCatalogStore) TakeStock(ctx context.Context, productID uuid.UUID, qty int) error {
	return m.Called(ctx, productID, qty).Error(0)
}

type mockOrderStore struct {
	mock.Mock
	catalog *mockCatalogStore
}

func (m *mockOrderStore) CreateOrder(ctx context.Context, order *models.Order) error {
	return m.Called(ctx, order).Error(0)
}

func (m *mockOrderStore) FindOrderByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	args := m.Called(ctx, id)
	if o := args.Get(0); o != nil {
		return o.(*models.Order), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockOrderStore) ListOrdersByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Order, int64, error) {
	args := m.Called(ctx, userID, limit, offset)
	return args.Get(0).([]models.Order), args.Get(1).(int64), args.Error(2)
}

func (m *mockOrderStore) ListOrdersBySeller(ctx context.Context, sellerID uuid.UUID, limit, offset int) ([]models.Order, int64, error) {
	args := m.Called(ctx, sellerID, limit, offset)
	return args.Get(0).([]models.Order), args.Get(1).(int64), args.Error(2)
}

func (m *mockOrderStore) ListOrders(ctx context.Context, limit, offset int) ([]models.Order, int64, error) {
	args := m.Called(ctx, limit, offset)
	return args.Get(0).([]models.Order), args.Get(1).(int64), args.Error(2)
}

func (m *mockOrderStore) CheckoutTransaction(ctx context.Context, fn func(store.CatalogStore, store.OrderStore) error) error {
	m.Called(ctx, mock.Anything)
	return fn(m.catalog, m)
}

type mockCartStore struct {
	mock.Mock
}

func (m *mockCartStore) GetCart(ctx context.Context, userID uuid.UUID) (*store.Cart, error) {
	args := m.Called(ctx, userID)
	if c := args.Get(0); c != nil {
		return c.(*store.Cart), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockCartStore) SaveCart(ctx context.Context, cart *store.Cart) error {
	return m.Called(ctx, cart).Error(0)
}

func (m *mockCartStore) DeleteCart(ctx context.Context, userID uuid.UUID) error {
	return m.Called(ctx, userID).Error(0)
}
