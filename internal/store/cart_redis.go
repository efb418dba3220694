package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// CartItem is one line in a stored cart.
type CartItem struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
}

// Cart is the persisted shopping cart, one JSON document per user.
type Cart struct {
	UserID    uuid.UUID  `json:"user_id"`
	Items     []CartItem `json:"items"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// CartStore persists shopping carts keyed by user.
type CartStore interface {
	GetCart(ctx context.Context, userID uuid.UUID) (*Cart, error)
	SaveCart(ctx context.Context, cart *Cart) error
	DeleteCart(ctx context.Context, userID uuid.UUID) error
}

// RedisCartStore keeps carts in Redis under cart:<userID> with a sliding
// TTL, so abandoned carts expire on their own.
type RedisCartStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCartStore(client *redis.Client, ttl time.Duration) *RedisCartStore {
	return &RedisCartStore{client: client, ttl: ttl}
}

func cartKey(userID uuid.UUID) string {
	return "cart:" + userID.String()
}

// GetCart returns an empty cart, not an error, when none is stored.
func (s *RedisCartStore) GetCart(ctx context.Context, userID uuid.UUID) (*Cart, error) {
	raw, err := s.client.Get(ctx, cartKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return &Cart{UserID: userID, Items: []CartItem{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get cart: %w", err)
	}

	var cart Cart
	if err := json.Unmarshal(raw, &cart); err != nil {
		return nil, fmt.Errorf("decode cart: %w", err)
	}
	return &cart, nil
}

func (s *RedisCartStore) SaveCart(ctx context.Context, cart *Cart) error {
	cart.UpdatedAt = time.Now().UTC()
	raw, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("encode cart: %w", err)
	}
	if err := s.client.Set(ctx, cartKey(cart.UserID), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("save cart: %w", err)
	}
	return nil
}

func (s *RedisCartStore) DeleteCart(ctx context.Context, userID uuid.UUID) error {
	if err := s.client.Del(ctx, cartKey(userID)).Err(); err != nil {
		return fmt.Errorf("delete cart: %w", err)
	}
	return nil
}
