package models

import (
	"time"

	"github.com/google/uuid"
)

type OrderStatus string

const (
	OrderPaid      OrderStatus = "PAID"
	OrderShipped   OrderStatus = "SHIPPED"
	OrderDelivered OrderStatus = "DELIVERED"
	OrderCancelled OrderStatus = "CANCELLED"
)

type Order struct {
	ID                uuid.UUID   `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID            uuid.UUID   `gorm:"type:uuid;not null;index" json:"user_id"`
	Status            OrderStatus `gorm:"size:20;not null;default:'PAID'" json:"status"`
	SubtotalCents     int64       `gorm:"not null" json:"subtotal_cents"`
	TaxCents          int64       `gorm:"not null" json:"tax_cents"`
	ShippingCents     int64       `gorm:"not null" json:"shipping_cents"`
	TotalCents        int64       `gorm:"not null" json:"total_cents"`
	PaymentRef        string      `gorm:"size:64" json:"payment_ref"`
	ShippingAddressID uuid.UUID   `gorm:"type:uuid;not null" json:"shipping_address_id"`
	CreatedAt         time.Time   `json:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at"`

	Items []OrderItem `gorm:"foreignKey:OrderID" json:"items"`
}

// OrderItem snapshots the product name and price at checkout time so later
// catalog edits do not rewrite order history.
type OrderItem struct {
	ID         uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OrderID    uuid.UUID `gorm:"type:uuid;not null;index" json:"order_id"`
	ProductID  uuid.UUID `gorm:"type:uuid;not null;index" json:"product_id"`
	SellerID   uuid.UUID `gorm:"type:uuid;not null;index" json:"seller_id"`
	Name       string    `gorm:"size:200;not null" json:"name"`
	PriceCents int64     `gorm:"not null" json:"price_cents"`
	Quantity   int       `gorm:"not null" json:"quantity"`
	CreatedAt  time.Time `json:"created_at"`
}
