package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/garmsy/marketplace/internal/events"
	"github.com/garmsy/marketplace/internal/models"
	"github.com/garmsy/marketplace/internal/store"
	"github.com/garmsy/marketplace/internal/validation"
)

const (
	taxRatePercent    = 8
	shippingFlatCents = 599
	freeShippingFloor = 10000
)

var (
	ErrEmptyCart       = errors.New("cart is empty")
	ErrOrderNotFound   = errors.New("order not found")
	ErrNotOrderViewer  = errors.New("you can only view your own orders")
	ErrAddressNotFound = errors.New("shipping address not found")
)

// OrderService turns a cart into a paid order. Payment is simulated: the
// order is created as PAID with a generated reference, so the checkout
// transaction only has to cover stock and order rows.
type OrderService struct {
	users    store.UserStore
	orders   store.OrderStore
	cart     *CartService
	producer *events.Producer
}

func NewOrderService(users store.UserStore, orders store.OrderStore, cart *CartService, producer *events.Producer) *OrderService {
	return &OrderService{users: users, orders: orders, cart: cart, producer: producer}
}

// OrderTotals breaks down a checkout total in integer cents.
type OrderTotals struct {
	SubtotalCents int64 `json:"subtotal_cents"`
	TaxCents      int64 `json:"tax_cents"`
	ShippingCents int64 `json:"shipping_cents"`
	TotalCents    int64 `json:"total_cents"`
}

// ComputeTotals applies the flat tax and shipping rules. Tax is integer
// math, rounded half up. Shipping is waived at the free floor.
func ComputeTotals(subtotal int64) OrderTotals {
	tax := (subtotal*taxRatePercent + 50) / 100
	shipping := int64(shippingFlatCents)
	if subtotal >= freeShippingFloor {
		shipping = 0
	}
	return OrderTotals{
		SubtotalCents: subtotal,
		TaxCents:      tax,
		ShippingCents: shipping,
		TotalCents:    subtotal + tax + shipping,
	}
}

// Checkout converts the user's cart into an order. Product prices are
// re-read inside the transaction and stock is decremented atomically, so
// concurrent checkouts cannot oversell.
func (s *OrderService) Checkout(ctx context.Context, userID, shippingAddressID uuid.UUID) (*models.Order, error) {
	address, err := s.users.FindAddressByID(ctx, shippingAddressID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrAddressNotFound
		}
		return nil, fmt.Errorf("checkout address lookup: %w", err)
	}
	if address.UserID != userID {
		return nil, ErrAddressNotFound
	}

	stored, err := s.cart.carts.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(stored.Items) == 0 {
		return nil, ErrEmptyCart
	}

	var order *models.Order
	err = s.orders.CheckoutTransaction(ctx, func(catalog store.CatalogStore, orders store.OrderStore) error {
		var subtotal int64
		items := make([]models.OrderItem, 0, len(stored.Items))

		for _, line := range stored.Items {
			product, err := catalog.FindProductByID(ctx, line.ProductID)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return ErrProductUnavailable
				}
				return fmt.Errorf("checkout product lookup: %w", err)
			}
			if !product.Active {
				return ErrProductUnavailable
			}
			if err := catalog.TakeStock(ctx, product.ID, line.Quantity); err != nil {
				if errors.Is(err, store.ErrInsufficientStock) {
					return validation.NewFieldError("items", fmt.Sprintf("not enough stock for %q", product.Name))
				}
				return fmt.Errorf("take stock: %w", err)
			}

			subtotal += product.PriceCents * int64(line.Quantity)
			items = append(items, models.OrderItem{
				ProductID:  product.ID,
				SellerID:   product.SellerID,
				Name:       product.Name,
				PriceCents: product.PriceCents,
				Quantity:   line.Quantity,
			})
		}

		totals := ComputeTotals(subtotal)
		order = &models.Order{
			UserID:            userID,
			Status:            models.OrderPaid,
			SubtotalCents:     totals.SubtotalCents,
			TaxCents:          totals.TaxCents,
			ShippingCents:     totals.ShippingCents,
			TotalCents:        totals.TotalCents,
			PaymentRef:        "sim_" + uuid.NewString(),
			ShippingAddressID: shippingAddressID,
			Items:             items,
		}
		return orders.CreateOrder(ctx, order)
	})
	if err != nil {
		return nil, err
	}

	if err := s.cart.Clear(ctx, userID); err != nil {
		slog.Error("cart clear after checkout failed", "user_id", userID, "error", err)
	}
	s.producer.Publish(ctx, events.TopicOrderPlaced, order.ID.String(), "order.placed", events.OrderPlaced{
		OrderID:    order.ID.String(),
		UserID:     userID.String(),
		TotalCents: order.TotalCents,
		ItemCount:  len(order.Items),
	})
	return order, nil
}

// Get returns one order. Buyers see their own orders, sellers orders that
// contain at least one of their items, admins everything.
func (s *OrderService) Get(ctx context.Context, viewer *Session, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.orders.FindOrderByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("order lookup: %w", err)
	}

	switch {
	case viewer.Role == models.RoleAdmin:
		return order, nil
	case order.UserID == viewer.UserID:
		return order, nil
	case viewer.Seller != nil:
		for _, item := range order.Items {
			if item.SellerID == viewer.Seller.ID {
				return order, nil
			}
		}
	}
	return nil, ErrNotOrderViewer
}

// List returns the orders the viewer is entitled to see, paginated.
func (s *OrderService) List(ctx context.Context, viewer *Session, limit, offset int) ([]models.Order, int64, error) {
	switch {
	case viewer.Role == models.RoleAdmin:
		return s.orders.ListOrders(ctx, limit, offset)
	case viewer.Role == models.RoleSeller && viewer.Seller != nil:
		return s.orders.ListOrdersBySeller(ctx, viewer.Seller.ID, limit, offset)
	default:
		return s.orders.ListOrdersByUser(ctx, viewer.UserID, limit, offset)
	}
}
