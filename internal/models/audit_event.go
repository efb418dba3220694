package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// AuditKind enumerates the security-relevant events written to the audit
// trail. The trail is append-only; rows are never mutated or deleted by
// application code.
type AuditKind string

const (
	AuditLoginSuccess          AuditKind = "LOGIN_SUCCESS"
	AuditLoginUserNotFound     AuditKind = "LOGIN_FAILED_USER_NOT_FOUND"
	AuditLoginBadPassword      AuditKind = "LOGIN_FAILED_BAD_PASSWORD"
	AuditLoginRateLimited      AuditKind = "LOGIN_RATE_LIMITED"
	AuditLoginTwoFactorPending AuditKind = "LOGIN_2FA_REQUIRED"
	AuditTwoFactorSuccess      AuditKind = "2FA_LOGIN_SUCCESS"
	AuditTwoFactorFailed       AuditKind = "2FA_LOGIN_FAILED"
	AuditBackupCodeUsed        AuditKind = "2FA_BACKUP_CODE_USED"
	AuditTwoFactorEnabled      AuditKind = "2FA_ENABLED"
	AuditTwoFactorDisabled     AuditKind = "2FA_DISABLED"
	AuditBackupCodesRegen      AuditKind = "2FA_BACKUP_CODES_REGENERATED"
	AuditLogout                AuditKind = "LOGOUT"
	AuditSignup                AuditKind = "SIGNUP"
	AuditSellerRegistration    AuditKind = "SELLER_REGISTRATION"
	AuditPasswordChanged       AuditKind = "PASSWORD_CHANGE_SUCCESS"
	AuditPasswordChangeFailed  AuditKind = "PASSWORD_CHANGE_FAILED"
	AuditOAuthSignIn           AuditKind = "OAUTH_LOGIN"
	AuditOAuthAccountLinked    AuditKind = "OAUTH_ACCOUNT_LINKED"
	AuditOAuthAccountCreated   AuditKind = "OAUTH_ACCOUNT_CREATED"
)

// AuditEvent is an append-only forensic record. ActorID is nil for
// pre-authentication failures where no account was resolved.
type AuditEvent struct {
	ID        uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Kind      AuditKind      `gorm:"size:50;not null;index" json:"kind"`
	ActorID   *uuid.UUID     `gorm:"type:uuid;index" json:"actor_id,omitempty"`
	Success   bool           `gorm:"not null" json:"success"`
	Email     string         `gorm:"size:255;index:idx_audit_email_time" json:"email,omitempty"`
	IP        string         `gorm:"size:45" json:"ip,omitempty"`
	UserAgent string         `gorm:"size:255" json:"user_agent,omitempty"`
	Metadata  datatypes.JSON `gorm:"type:jsonb;default:'{}'" json:"metadata,omitempty"`
	CreatedAt time.Time      `gorm:"index:idx_audit_email_time" json:"created_at"`
}
