package dto

import (
	"time"

	"github.com/google/uuid"
)

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type TwoFactorLoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Code     string `json:"code" validate:"required"`
}

type SignupRequest struct {
	FirstName       string `json:"firstName" validate:"required,max=50"`
	LastName        string `json:"lastName" validate:"required,max=50"`
	Email           string `json:"email" validate:"required,email"`
	Phone           string `json:"phone" validate:"omitempty,max=30"`
	Password        string `json:"password" validate:"required,min=6"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password"`
}

type SellerRegistrationRequest struct {
	FirstName       string `json:"firstName" validate:"required,max=50"`
	LastName        string `json:"lastName" validate:"required,max=50"`
	Email           string `json:"email" validate:"required,email"`
	Phone           string `json:"phone" validate:"omitempty,max=30"`
	Password        string `json:"password" validate:"required,min=6"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password"`

	AddressLine1 string `json:"addressLine1" validate:"required"`
	AddressLine2 string `json:"addressLine2"`
	City         string `json:"city" validate:"required"`
	State        string `json:"state"`
	PostalCode   string `json:"postalCode" validate:"required"`
	Country      string `json:"country" validate:"required,len=2"`

	StoreName        string `json:"storeName" validate:"required,max=100"`
	StoreDescription string `json:"storeDescription"`
	SellerType       string `json:"sellerType" validate:"required,oneof=INDIVIDUAL BUSINESS PROFESSIONAL"`
	BusinessNumber   string `json:"businessNumber"`

	AgreeToTerms       bool `json:"agreeToTerms" validate:"eq=true"`
	AgreeToSellerTerms bool `json:"agreeToSellerTerms" validate:"eq=true"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=6"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=NewPassword"`
}

type TwoFactorVerifyRequest struct {
	Code string `json:"code" validate:"required"`
}

type TwoFactorDisableRequest struct {
	Password string `json:"password" validate:"required"`
}

type UserResponse struct {
	ID          uuid.UUID       `json:"id"`
	Email       string          `json:"email"`
	DisplayName string          `json:"display_name"`
	FirstName   string          `json:"first_name"`
	LastName    string          `json:"last_name"`
	Role        string          `json:"role"`
	Verified    bool            `json:"verified"`
	TwoFactor   bool            `json:"two_factor_enabled"`
	Seller      *SellerResponse `json:"seller,omitempty"`
	LastLoginAt *time.Time      `json:"last_login_at,omitempty"`
}

type SellerResponse struct {
	ID        uuid.UUID `json:"id"`
	StoreName string    `json:"store_name"`
	Verified  bool      `json:"verified"`
}

type AuthResponse struct {
	User UserResponse `json:"user"`
}

type TwoFactorRequiredResponse struct {
	RequiresTwoFactor bool   `json:"requires_two_factor"`
	UserEmail         string `json:"user_email"`
}

type TwoFactorSetupResponse struct {
	Secret          string   `json:"secret"`
	ProvisioningURL string   `json:"provisioning_url"`
	QRCode          string   `json:"qr_code"`
	BackupCodes     []string `json:"backup_codes"`
}

type ErrorResponse struct {
	Error   bool              `json:"error"`
	Message string            `json:"message"`
	Errors  map[string]string `json:"errors,omitempty"`
}
