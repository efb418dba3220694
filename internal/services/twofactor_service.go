package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/garmsy/marketplace/internal/models"
	"github.com/garmsy/marketplace/internal/secrets"
	"github.com/garmsy/marketplace/internal/store"
)

var (
	ErrTwoFactorAlreadyEnabled = errors.New("two-factor authentication is already enabled")
	ErrTwoFactorNotPending     = errors.New("no two-factor setup in progress")
	ErrTwoFactorNotEnabled     = errors.New("two-factor authentication is not enabled")
)

// TwoFactorService owns the 2FA lifecycle: setup, activation, disable and
// backup-code regeneration. Setup parks the sealed secret and hashed codes
// on the user row with the enabled flag still off; only a verified code
// flips the flag, so an abandoned setup never arms 2FA.
type TwoFactorService struct {
	users store.UserStore
	totp  *TOTPService
	audit *AuditService
	box   *secrets.Box
}

func NewTwoFactorService(users store.UserStore, totp *TOTPService, audit *AuditService, box *secrets.Box) *TwoFactorService {
	return &TwoFactorService{users: users, totp: totp, audit: audit, box: box}
}

// Setup generates fresh setup material for the user and parks it, inactive.
// The plaintext secret and codes are returned to the caller exactly once.
func (s *TwoFactorService) Setup(ctx context.Context, userID uuid.UUID) (*SetupMaterial, error) {
	user, err := s.users.FindUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("two-factor setup lookup: %w", err)
	}
	if user.TwoFactorEnabled {
		return nil, ErrTwoFactorAlreadyEnabled
	}

	material, err := s.totp.Setup(user.Email)
	if err != nil {
		return nil, err
	}

	sealed, err := s.box.Seal(material.Secret)
	if err != nil {
		return nil, fmt.Errorf("seal totp secret: %w", err)
	}
	hashed, err := s.totp.HashBackupCodes(material.BackupCodes)
	if err != nil {
		return nil, err
	}
	encoded, err := json.Marshal(hashed)
	if err != nil {
		return nil, err
	}

	fields := map[string]any{
		"two_factor_secret": sealed,
		"backup_codes":      datatypes.JSON(encoded),
	}
	if err := s.users.UpdateUser(ctx, userID, fields); err != nil {
		return nil, fmt.Errorf("park two-factor setup: %w", err)
	}

	return material, nil
}

// Activate verifies one code against the parked secret and arms 2FA.
func (s *TwoFactorService) Activate(ctx context.Context, userID uuid.UUID, code string, reqCtx RequestContext) error {
	user, err := s.users.FindUserByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("two-factor activate lookup: %w", err)
	}
	reqCtx.Email = user.Email

	if user.TwoFactorEnabled {
		return ErrTwoFactorAlreadyEnabled
	}
	if user.TwoFactorSecret == nil {
		return ErrTwoFactorNotPending
	}

	secret, err := s.box.Open(*user.TwoFactorSecret)
	if err != nil {
		return fmt.Errorf("open totp secret: %w", err)
	}

	// Backup codes are deliberately excluded here: activation proves the
	// authenticator app works.
	if verify := s.totp.Verify(code, secret, nil); !verify.Valid {
		s.audit.LogSecurityEvent(ctx, models.AuditTwoFactorEnabled, false, reqCtx, map[string]string{"reason": "bad_code"})
		return ErrInvalidTwoFactorCode
	}

	if err := s.users.UpdateUser(ctx, userID, map[string]any{"two_factor_enabled": true}); err != nil {
		return fmt.Errorf("enable two-factor: %w", err)
	}

	s.audit.LogSecurityEvent(ctx, models.AuditTwoFactorEnabled, true, reqCtx, nil)
	return nil
}

// Disable turns 2FA off after re-verifying the account password, clearing
// the secret and every backup code.
func (s *TwoFactorService) Disable(ctx context.Context, userID uuid.UUID, password string, reqCtx RequestContext) error {
	user, err := s.users.FindUserByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("two-factor disable lookup: %w", err)
	}
	reqCtx.Email = user.Email

	if !user.TwoFactorEnabled {
		return ErrTwoFactorNotEnabled
	}
	if user.PasswordHash == nil || !VerifyPassword(password, *user.PasswordHash) {
		s.audit.LogSecurityEvent(ctx, models.AuditTwoFactorDisabled, false, reqCtx, map[string]string{"reason": "wrong_password"})
		return ErrInvalidCredentials
	}

	fields := map[string]any{
		"two_factor_enabled": false,
		"two_factor_secret":  nil,
		"backup_codes":       datatypes.JSON([]byte("[]")),
	}
	if err := s.users.UpdateUser(ctx, userID, fields); err != nil {
		return fmt.Errorf("disable two-factor: %w", err)
	}

	s.audit.LogSecurityEvent(ctx, models.AuditTwoFactorDisabled, true, reqCtx, nil)
	return nil
}

// RegenerateBackupCodes replaces the stored list wholesale, invalidating
// every previously issued code in the same update.
func (s *TwoFactorService) RegenerateBackupCodes(ctx context.Context, userID uuid.UUID, password string, reqCtx RequestContext) ([]string, error) {
	user, err := s.users.FindUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("backup-code regen lookup: %w", err)
	}
	reqCtx.Email = user.Email

	if !user.TwoFactorEnabled {
		return nil, ErrTwoFactorNotEnabled
	}
	if user.PasswordHash == nil || !VerifyPassword(password, *user.PasswordHash) {
		s.audit.LogSecurityEvent(ctx, models.AuditBackupCodesRegen, false, reqCtx, map[string]string{"reason": "wrong_password"})
		return nil, ErrInvalidCredentials
	}

	codes, err := generateBackupCodes(backupCodeCount)
	if err != nil {
		return nil, err
	}
	hashed, err := s.totp.HashBackupCodes(codes)
	if err != nil {
		return nil, err
	}
	encoded, err := json.Marshal(hashed)
	if err != nil {
		return nil, err
	}

	if err := s.users.UpdateUser(ctx, userID, map[string]any{"backup_codes": datatypes.JSON(encoded)}); err != nil {
		return nil, fmt.Errorf("replace backup codes: %w", err)
	}

	s.audit.LogSecurityEvent(ctx, models.AuditBackupCodesRegen, true, reqCtx, nil)
	return codes, nil
}
