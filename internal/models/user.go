package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Role is the closed set of account roles. Authorization decisions switch
// exhaustively over this type and deny anything outside it.
type Role string

const (
	RoleBuyer  Role = "BUYER"
	RoleSeller Role = "SELLER"
	RoleAdmin  Role = "ADMIN"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleBuyer, RoleSeller, RoleAdmin:
		return true
	}
	return false
}

// ParseRole maps a stored string onto the Role enum, defaulting to BUYER for
// anything unknown so a corrupted row can never grant elevated access.
func ParseRole(s string) Role {
	r := Role(s)
	if r.Valid() {
		return r
	}
	return RoleBuyer
}

// User is the identity record. PasswordHash is nil for OAuth-only accounts;
// at least one of PasswordHash / GoogleID must be present for the account to
// be signable-in.
type User struct {
	ID           uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Email        string    `gorm:"not null;size:255;uniqueIndex" json:"email"`
	PasswordHash *string   `gorm:"size:100" json:"-"`
	DisplayName  string    `gorm:"size:100" json:"display_name"`
	FirstName    string    `gorm:"size:50" json:"first_name"`
	LastName     string    `gorm:"size:50" json:"last_name"`
	Phone        string    `gorm:"size:30" json:"phone,omitempty"`
	Role         Role      `gorm:"size:20;default:'BUYER'" json:"role"`
	Verified     bool      `gorm:"default:false" json:"verified"`
	ImageURL     string    `gorm:"type:text" json:"image_url,omitempty"`

	GoogleID     *string `gorm:"size:255;index" json:"-"`
	AuthProvider string  `gorm:"size:50;default:'credentials'" json:"-"`

	TwoFactorEnabled bool           `gorm:"default:false" json:"two_factor_enabled"`
	TwoFactorSecret  *string        `gorm:"type:text" json:"-"`
	BackupCodes      datatypes.JSON `gorm:"type:jsonb;default:'[]'" json:"-"`

	LastLoginAt *time.Time     `json:"last_login_at,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`

	Seller *Seller `gorm:"foreignKey:UserID" json:"seller,omitempty"`
}
