package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/garmsy/marketplace/internal/models"
)

// Gorm implements every store interface on a shared *gorm.DB.
type Gorm struct {
	db *gorm.DB
}

func NewGorm(db *gorm.DB) *Gorm {
	return &Gorm{db: db}
}

func (s *Gorm) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).
		Preload("Seller").
		Where("email = ?", strings.ToLower(email)).
		First(&user).Error
	if err != nil {
		return nil, wrapNotFound(err, "user by email")
	}
	return &user, nil
}

func (s *Gorm) FindUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Preload("Seller").First(&user, "id = ?", id).Error
	if err != nil {
		return nil, wrapNotFound(err, "user by id")
	}
	return &user, nil
}

func (s *Gorm) CreateUser(ctx context.Context, user *models.User) error {
	user.Email = strings.ToLower(user.Email)
	err := s.db.WithContext(ctx).Create(user).Error
	if err != nil && errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicate
	}
	return err
}

func (s *Gorm) UpdateUser(ctx context.Context, id uuid.UUID, fields map[string]any) error {
	result := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Gorm) CreateAddress(ctx context.Context, address *models.Address) error {
	return s.db.WithContext(ctx).Create(address).Error
}

func (s *Gorm) FindAddressByID(ctx context.Context, id uuid.UUID) (*models.Address, error) {
	var address models.Address
	if err := s.db.WithContext(ctx).First(&address, "id = ?", id).Error; err != nil {
		return nil, wrapNotFound(err, "address by id")
	}
	return &address, nil
}

func (s *Gorm) ListAddressesByUser(ctx context.Context, userID uuid.UUID) ([]models.Address, error) {
	var addresses []models.Address
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("is_default DESC, created_at ASC").
		Find(&addresses).Error
	return addresses, err
}

func (s *Gorm) CreateSeller(ctx context.Context, seller *models.Seller) error {
	return s.db.WithContext(ctx).Create(seller).Error
}

func (s *Gorm) FindSellerByUserID(ctx context.Context, userID uuid.UUID) (*models.Seller, error) {
	var seller models.Seller
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&seller).Error
	if err != nil {
		return nil, wrapNotFound(err, "seller by user id")
	}
	return &seller, nil
}

// Transaction runs fn against a store bound to a database transaction.
func (s *Gorm) Transaction(ctx context.Context, fn func(UserStore) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Gorm{db: tx})
	})
}

// --- audit ---

func (s *Gorm) AppendEvent(ctx context.Context, event *models.AuditEvent) error {
	return s.db.WithContext(ctx).Create(event).Error
}

func (s *Gorm) CountEventsSince(ctx context.Context, email string, since time.Time) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.AuditEvent{}).
		Where("email = ? AND created_at >= ?", strings.ToLower(email), since).
		Count(&count).Error
	return count, err
}

// --- catalog ---

func (s *Gorm) CreateCategory(ctx context.Context, category *models.Category) error {
	err := s.db.WithContext(ctx).Create(category).Error
	if err != nil && errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicate
	}
	return err
}

func (s *Gorm) UpdateCategory(ctx context.Context, id uuid.UUID, fields map[string]any) error {
	result := s.db.WithContext(ctx).Model(&models.Category{}).Where("id = ?", id).Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Gorm) FindCategoryByID(ctx context.Context, id uuid.UUID) (*models.Category, error) {
	var category models.Category
	if err := s.db.WithContext(ctx).First(&category, "id = ?", id).Error; err != nil {
		return nil, wrapNotFound(err, "category by id")
	}
	return &category, nil
}

func (s *Gorm) FindCategoryBySlug(ctx context.Context, slug string) (*models.Category, error) {
	var category models.Category
	if err := s.db.WithContext(ctx).Where("slug = ?", slug).First(&category).Error; err != nil {
		return nil, wrapNotFound(err, "category by slug")
	}
	return &category, nil
}

func (s *Gorm) ListCategories(ctx context.Context, activeOnly bool) ([]models.Category, error) {
	var categories []models.Category
	q := s.db.WithContext(ctx).Order("name ASC")
	if activeOnly {
		q = q.Where("active = true")
	}
	if err := q.Find(&categories).Error; err != nil {
		return nil, err
	}
	return categories, nil
}

func (s *Gorm) CreateProduct(ctx context.Context, product *models.Product) error {
	err := s.db.WithContext(ctx).Create(product).Error
	if err != nil && errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicate
	}
	return err
}

func (s *Gorm) UpdateProduct(ctx context.Context, id uuid.UUID, fields map[string]any) error {
	result := s.db.WithContext(ctx).Model(&models.Product{}).Where("id = ?", id).Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Gorm) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	result := s.db.WithContext(ctx).Delete(&models.Product{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Gorm) FindProductByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := s.db.WithContext(ctx).First(&product, "id = ?", id).Error; err != nil {
		return nil, wrapNotFound(err, "product by id")
	}
	return &product, nil
}

func (s *Gorm) FindProductBySlug(ctx context.Context, slug string) (*models.Product, error) {
	var product models.Product
	if err := s.db.WithContext(ctx).Where("slug = ?", slug).First(&product).Error; err != nil {
		return nil, wrapNotFound(err, "product by slug")
	}
	return &product, nil
}

func (s *Gorm) ListProducts(ctx context.Context, filter ProductFilter) ([]models.Product, int64, error) {
	q := s.db.WithContext(ctx).Model(&models.Product{})
	if filter.CategoryID != nil {
		q = q.Where("category_id = ?", *filter.CategoryID)
	}
	if filter.SellerID != nil {
		q = q.Where("seller_id = ?", *filter.SellerID)
	}
	if filter.ActiveOnly {
		q = q.Where("active = true")
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var products []models.Product
	err := q.Order("created_at DESC").
		Limit(filter.Limit).
		Offset(filter.Offset).
		Find(&products).Error
	if err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

func (s *Gorm) TakeStock(ctx context.Context, productID uuid.UUID, qty int) error {
	result := s.db.WithContext(ctx).Model(&models.Product{}).
		Where("id = ? AND stock >= ?", productID, qty).
		Update("stock", gorm.Expr("stock - ?", qty))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrInsufficientStock
	}
	return nil
}

// --- orders ---

func (s *Gorm) CreateOrder(ctx context.Context, order *models.Order) error {
	return s.db.WithContext(ctx).Create(order).Error
}

func (s *Gorm) FindOrderByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := s.db.WithContext(ctx).Preload("Items").First(&order, "id = ?", id).Error; err != nil {
		return nil, wrapNotFound(err, "order by id")
	}
	return &order, nil
}

func (s *Gorm) ListOrdersByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Order, int64, error) {
	q := s.db.WithContext(ctx).Model(&models.Order{}).Where("user_id = ?", userID)
	return s.listOrders(q, limit, offset)
}

func (s *Gorm) ListOrdersBySeller(ctx context.Context, sellerID uuid.UUID, limit, offset int) ([]models.Order, int64, error) {
	q := s.db.WithContext(ctx).Model(&models.Order{}).
		Where("id IN (?)", s.db.Model(&models.OrderItem{}).
			Select("order_id").
			Where("seller_id = ?", sellerID))
	return s.listOrders(q, limit, offset)
}

func (s *Gorm) ListOrders(ctx context.Context, limit, offset int) ([]models.Order, int64, error) {
	return s.listOrders(s.db.WithContext(ctx).Model(&models.Order{}), limit, offset)
}

func (s *Gorm) listOrders(q *gorm.DB, limit, offset int) ([]models.Order, int64, error) {
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var orders []models.Order
	err := q.Preload("Items").
		Order(clause.OrderByColumn{Column: clause.Column{Name: "created_at"}, Desc: true}).
		Limit(limit).
		Offset(offset).
		Find(&orders).Error
	if err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// CheckoutTransaction binds catalog and order stores to one transaction so
// stock decrements and the order row commit together.
func (s *Gorm) CheckoutTransaction(ctx context.Context, fn func(CatalogStore, OrderStore) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		bound := &Gorm{db: tx}
		return fn(bound, bound)
	})
}

func wrapNotFound(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return err
}
