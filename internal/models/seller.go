package models

import (
	"time"

	"github.com/google/uuid"
)

// SellerType is the closed set of seller account kinds.
type SellerType string

const (
	SellerIndividual   SellerType = "INDIVIDUAL"
	SellerBusiness     SellerType = "BUSINESS"
	SellerProfessional SellerType = "PROFESSIONAL"
)

func (t SellerType) Valid() bool {
	switch t {
	case SellerIndividual, SellerBusiness, SellerProfessional:
		return true
	}
	return false
}

// Seller is the optional 1:1 store sub-profile attached to a SELLER user.
// It is created inside the seller-registration transaction together with the
// User and a default Address.
type Seller struct {
	ID               uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID           uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex" json:"user_id"`
	StoreName        string     `gorm:"size:100;not null" json:"store_name"`
	StoreDescription string     `gorm:"type:text" json:"store_description"`
	SellerType       SellerType `gorm:"size:20;default:'INDIVIDUAL'" json:"seller_type"`
	BusinessNumber   *string    `gorm:"size:50" json:"business_number,omitempty"`
	Verified         bool       `gorm:"default:false" json:"verified"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}
