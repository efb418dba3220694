package dto

type CreateCategoryRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	ParentID string `json:"parent_id" validate:"omitempty,uuid"`
}

type UpdateCategoryRequest struct {
	Name   *string `json:"name" validate:"omitempty,max=100"`
	Active *bool   `json:"active"`
}

type CreateProductRequest struct {
	Name        string `json:"name" validate:"required,max=200"`
	Description string `json:"description"`
	PriceCents  int64  `json:"price_cents" validate:"required,gte=1"`
	Stock       int    `json:"stock" validate:"gte=0"`
	CategoryID  string `json:"category_id" validate:"required,uuid"`
	ImageURL    string `json:"image_url" validate:"omitempty,url"`
}

type UpdateProductRequest struct {
	Name        *string `json:"name" validate:"omitempty,max=200"`
	Description *string `json:"description"`
	PriceCents  *int64  `json:"price_cents" validate:"omitempty,gte=1"`
	Stock       *int    `json:"stock" validate:"omitempty,gte=0"`
	ImageURL    *string `json:"image_url" validate:"omitempty,url"`
	Active      *bool   `json:"active"`
}
