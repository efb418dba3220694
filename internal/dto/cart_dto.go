package dto

type CartItemRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	Quantity  int    `json:"quantity" validate:"gte=1,lte=50"`
}

type CartQuantityRequest struct {
	Quantity int `json:"quantity" validate:"gte=0,lte=50"`
}

type CheckoutRequest struct {
	ShippingAddressID string `json:"shipping_address_id" validate:"required,uuid"`
}
