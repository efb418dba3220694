package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/garmsy/marketplace/internal/events"
	"github.com/garmsy/marketplace/internal/store"
)

const maxCartQuantity = 50

var (
	ErrProductUnavailable = errors.New("product is not available")
	ErrQuantityTooLarge   = errors.New("quantity exceeds the per-item limit")
	ErrNotInCart          = errors.New("product is not in the cart")
)

// CartLine is a cart item hydrated with current catalog data.
type CartLine struct {
	ProductID  uuid.UUID `json:"product_id"`
	Name       string    `json:"name"`
	Slug       string    `json:"slug"`
	ImageURL   string    `json:"image_url"`
	PriceCents int64     `json:"price_cents"`
	Quantity   int       `json:"quantity"`
	LineCents  int64     `json:"line_cents"`
	InStock    bool      `json:"in_stock"`
}

// CartView is the hydrated cart returned to clients. Prices are always
// re-read from the catalog, never trusted from the stored document.
type CartView struct {
	Items         []CartLine `json:"items"`
	ItemCount     int        `json:"item_count"`
	SubtotalCents int64      `json:"subtotal_cents"`
}

type CartService struct {
	carts    store.CartStore
	catalog  store.CatalogStore
	producer *events.Producer
}

func NewCartService(carts store.CartStore, catalog store.CatalogStore, producer *events.Producer) *CartService {
	return &CartService{carts: carts, catalog: catalog, producer: producer}
}

// Get hydrates the stored cart against the live catalog. Lines whose
// product has since been deleted or deactivated are dropped from the view
// and pruned from storage.
func (s *CartService) Get(ctx context.Context, userID uuid.UUID) (*CartView, error) {
	cart, err := s.carts.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	view := &CartView{Items: []CartLine{}}
	kept := cart.Items[:0]
	for _, item := range cart.Items {
		product, err := s.catalog.FindProductByID(ctx, item.ProductID)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("hydrate cart: %w", err)
		}
		if !product.Active {
			continue
		}

		kept = append(kept, item)
		view.Items = append(view.Items, CartLine{
			ProductID:  product.ID,
			Name:       product.Name,
			Slug:       product.Slug,
			ImageURL:   product.ImageURL,
			PriceCents: product.PriceCents,
			Quantity:   item.Quantity,
			LineCents:  product.PriceCents * int64(item.Quantity),
			InStock:    product.Stock >= item.Quantity,
		})
		view.ItemCount += item.Quantity
		view.SubtotalCents += product.PriceCents * int64(item.Quantity)
	}

	if len(kept) != len(cart.Items) {
		cart.Items = kept
		if err := s.carts.SaveCart(ctx, cart); err != nil {
			return nil, err
		}
	}
	return view, nil
}

// AddItem adds quantity of a product, merging with an existing line.
func (s *CartService) AddItem(ctx context.Context, userID, productID uuid.UUID, quantity int) (*CartView, error) {
	if quantity < 1 {
		quantity = 1
	}

	product, err := s.catalog.FindProductByID(ctx, productID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrProductUnavailable
		}
		return nil, fmt.Errorf("cart product lookup: %w", err)
	}
	if !product.Active || product.Stock < 1 {
		return nil, ErrProductUnavailable
	}

	cart, err := s.carts.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	merged := false
	for i := range cart.Items {
		if cart.Items[i].ProductID == productID {
			cart.Items[i].Quantity += quantity
			if cart.Items[i].Quantity > maxCartQuantity {
				return nil, ErrQuantityTooLarge
			}
			merged = true
			break
		}
	}
	if !merged {
		if quantity > maxCartQuantity {
			return nil, ErrQuantityTooLarge
		}
		cart.Items = append(cart.Items, store.CartItem{ProductID: productID, Quantity: quantity})
	}

	return s.persist(ctx, userID, cart)
}

// SetQuantity replaces a line's quantity; zero removes the line.
func (s *CartService) SetQuantity(ctx context.Context, userID, productID uuid.UUID, quantity int) (*CartView, error) {
	if quantity < 0 {
		quantity = 0
	}
	if quantity > maxCartQuantity {
		return nil, ErrQuantityTooLarge
	}

	cart, err := s.carts.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	found := false
	kept := cart.Items[:0]
	for _, item := range cart.Items {
		if item.ProductID != productID {
			kept = append(kept, item)
			continue
		}
		found = true
		if quantity > 0 {
			item.Quantity = quantity
			kept = append(kept, item)
		}
	}
	if !found {
		return nil, ErrNotInCart
	}
	cart.Items = kept

	return s.persist(ctx, userID, cart)
}

func (s *CartService) RemoveItem(ctx context.Context, userID, productID uuid.UUID) (*CartView, error) {
	return s.SetQuantity(ctx, userID, productID, 0)
}

// Clear empties the cart without emitting a cart event; checkout calls
// this after it has already announced the order.
func (s *CartService) Clear(ctx context.Context, userID uuid.UUID) error {
	return s.carts.DeleteCart(ctx, userID)
}

func (s *CartService) persist(ctx context.Context, userID uuid.UUID, cart *store.Cart) (*CartView, error) {
	if err := s.carts.SaveCart(ctx, cart); err != nil {
		return nil, err
	}
	view, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.producer.Publish(ctx, events.TopicCartUpdated, userID.String(), "cart.updated", events.CartUpdated{
		UserID:    userID.String(),
		ItemCount: view.ItemCount,
	})
	return view, nil
}
