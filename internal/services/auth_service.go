package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/garmsy/marketplace/internal/dto"
	"github.com/garmsy/marketplace/internal/models"
	"github.com/garmsy/marketplace/internal/secrets"
	"github.com/garmsy/marketplace/internal/store"
	"github.com/garmsy/marketplace/internal/validation"
)

var (
	ErrInvalidCredentials   = errors.New("invalid email or password")
	ErrInvalidTwoFactorCode = errors.New("invalid verification code")
	ErrEmailTaken           = errors.New("email already registered")
	ErrRateLimited          = errors.New("too many attempts, please try again later")
	ErrSamePassword         = errors.New("new password must be different from your current password")
	ErrUserNotFound         = errors.New("user not found")
)

// TwoFactorRequiredError signals that the password stage succeeded but a
// second factor is still owed. No session exists at this point.
type TwoFactorRequiredError struct {
	Email string
}

func (e *TwoFactorRequiredError) Error() string {
	return "two-factor verification required"
}

// ExternalIdentity is the verified profile handed back by an OAuth provider.
type ExternalIdentity struct {
	Provider   string
	ProviderID string
	Email      string
	FirstName  string
	LastName   string
	AvatarURL  string
}

// LoginResult is the success payload of every session-issuing operation.
// Token is empty when account creation succeeded but auto-login did not;
// the account is still usable via a manual login.
type LoginResult struct {
	Token   string
	Session *Session
	User    *models.User
}

// AuthService orchestrates login, 2FA-gated login, signup, seller
// registration, logout, password change and OAuth sign-in. Failures are
// typed: *validation.Error / *validation.FieldError carry field maps,
// sentinel errors carry the taxonomy, *TwoFactorRequiredError carries the
// pending-2FA state.
type AuthService struct {
	users   store.UserStore
	tokens  *TokenService
	totp    *TOTPService
	audit   *AuditService
	limiter *LoginRateLimiter
	box     *secrets.Box
}

func NewAuthService(users store.UserStore, tokens *TokenService, totp *TOTPService, audit *AuditService, limiter *LoginRateLimiter, box *secrets.Box) *AuthService {
	return &AuthService{
		users:   users,
		tokens:  tokens,
		totp:    totp,
		audit:   audit,
		limiter: limiter,
		box:     box,
	}
}

// Login authenticates an email/password pair. Accounts with 2FA enabled
// never get a session here; they short-circuit with TwoFactorRequiredError.
// The user-facing failure is always the generic invalid-credentials message;
// the audit trail records the precise cause.
func (s *AuthService) Login(ctx context.Context, req *dto.LoginRequest, reqCtx RequestContext) (*LoginResult, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	// Normalized once here; the limiter, lookup and audit trail all see the
	// same lowercased identity.
	req.Email = strings.ToLower(req.Email)
	reqCtx.Email = req.Email

	if !s.limiter.Allow(ctx, req.Email) {
		s.audit.LogAuth(ctx, models.AuditLoginRateLimited, nil, false, reqCtx)
		return nil, ErrRateLimited
	}

	user, err := s.users.FindUserByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.audit.LogAuth(ctx, models.AuditLoginUserNotFound, nil, false, reqCtx)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("login lookup: %w", err)
	}

	if user.PasswordHash == nil || !VerifyPassword(req.Password, *user.PasswordHash) {
		s.audit.LogAuth(ctx, models.AuditLoginBadPassword, &user.ID, false, reqCtx)
		return nil, ErrInvalidCredentials
	}

	if user.TwoFactorEnabled {
		s.audit.LogAuth(ctx, models.AuditLoginTwoFactorPending, &user.ID, true, reqCtx)
		return nil, &TwoFactorRequiredError{Email: user.Email}
	}

	result, err := s.issueSession(ctx, user)
	if err != nil {
		return nil, err
	}
	s.audit.LogAuth(ctx, models.AuditLoginSuccess, &user.ID, true, reqCtx)
	return result, nil
}

// TwoFactorLogin finishes a 2FA-gated login. The password is re-verified as
// defense in depth, then the code must match either the time-windowed TOTP
// or one unused backup code. Backup-code use persists the pruned list before
// the session is issued.
func (s *AuthService) TwoFactorLogin(ctx context.Context, req *dto.TwoFactorLoginRequest, reqCtx RequestContext) (*LoginResult, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	req.Email = strings.ToLower(req.Email)
	reqCtx.Email = req.Email

	if !s.limiter.Allow(ctx, req.Email) {
		s.audit.LogAuth(ctx, models.AuditLoginRateLimited, nil, false, reqCtx)
		return nil, ErrRateLimited
	}

	user, err := s.users.FindUserByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.audit.LogAuth(ctx, models.AuditLoginUserNotFound, nil, false, reqCtx)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("two-factor login lookup: %w", err)
	}

	if user.PasswordHash == nil || !VerifyPassword(req.Password, *user.PasswordHash) {
		s.audit.LogAuth(ctx, models.AuditLoginBadPassword, &user.ID, false, reqCtx)
		return nil, ErrInvalidCredentials
	}

	if !user.TwoFactorEnabled || user.TwoFactorSecret == nil {
		s.audit.LogAuth(ctx, models.AuditTwoFactorFailed, &user.ID, false, reqCtx)
		return nil, ErrInvalidTwoFactorCode
	}

	secret, err := s.box.Open(*user.TwoFactorSecret)
	if err != nil {
		return nil, fmt.Errorf("open totp secret: %w", err)
	}

	backupCodes, err := decodeBackupCodes(user.BackupCodes)
	if err != nil {
		return nil, fmt.Errorf("decode backup codes: %w", err)
	}

	verify := s.totp.Verify(req.Code, secret, backupCodes)
	if !verify.Valid {
		s.audit.LogAuth(ctx, models.AuditTwoFactorFailed, &user.ID, false, reqCtx)
		return nil, ErrInvalidTwoFactorCode
	}

	if verify.UsedBackupCode != "" {
		pruned := s.totp.RemoveUsedBackupCode(backupCodes, verify.UsedBackupCode)
		if err := s.persistBackupCodes(ctx, user.ID, pruned); err != nil {
			return nil, fmt.Errorf("prune backup code: %w", err)
		}
		s.audit.LogAuth(ctx, models.AuditBackupCodeUsed, &user.ID, true, reqCtx)
	}

	result, err := s.issueSession(ctx, user)
	if err != nil {
		return nil, err
	}
	s.audit.LogAuth(ctx, models.AuditTwoFactorSuccess, &user.ID, true, reqCtx)
	return result, nil
}

// Logout is idempotent. Without an active session it is a silent no-op
// success; with one it records the audit event. Token invalidation itself is
// client-side cookie discard, there is no server-side revocation list.
func (s *AuthService) Logout(ctx context.Context, session *Session, reqCtx RequestContext) {
	if session == nil {
		return
	}
	reqCtx.Email = session.Email
	s.audit.LogAuth(ctx, models.AuditLogout, &session.UserID, true, reqCtx)
}

// Signup creates a BUYER account and auto-logs it in. A token-issue failure
// after the account was created is tolerated: signup still succeeds and the
// user can log in manually.
func (s *AuthService) Signup(ctx context.Context, req *dto.SignupRequest, reqCtx RequestContext) (*LoginResult, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	req.Email = strings.ToLower(req.Email)
	reqCtx.Email = req.Email

	if err := s.ensureEmailFree(ctx, req.Email); err != nil {
		return nil, err
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Email:        req.Email,
		PasswordHash: &hash,
		DisplayName:  req.FirstName + " " + req.LastName,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Phone:        req.Phone,
		Role:         models.RoleBuyer,
		AuthProvider: "credentials",
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.audit.LogAuth(ctx, models.AuditSignup, &user.ID, true, reqCtx)
	return s.autoLogin(ctx, user), nil
}

// SellerRegistration creates the User, default Address and Seller
// sub-profile in a single transaction; either all three rows exist
// afterwards or none do.
func (s *AuthService) SellerRegistration(ctx context.Context, req *dto.SellerRegistrationRequest, reqCtx RequestContext) (*LoginResult, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	req.Email = strings.ToLower(req.Email)
	reqCtx.Email = req.Email

	if err := s.ensureEmailFree(ctx, req.Email); err != nil {
		return nil, err
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Email:        req.Email,
		PasswordHash: &hash,
		DisplayName:  req.FirstName + " " + req.LastName,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Phone:        req.Phone,
		Role:         models.RoleSeller,
		AuthProvider: "credentials",
	}

	err = s.users.Transaction(ctx, func(tx store.UserStore) error {
		if err := tx.CreateUser(ctx, user); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return ErrEmailTaken
			}
			return fmt.Errorf("create seller user: %w", err)
		}

		address := &models.Address{
			UserID:     user.ID,
			Line1:      req.AddressLine1,
			Line2:      req.AddressLine2,
			City:       req.City,
			State:      req.State,
			PostalCode: req.PostalCode,
			Country:    strings.ToUpper(req.Country),
			IsDefault:  true,
		}
		if err := tx.CreateAddress(ctx, address); err != nil {
			return fmt.Errorf("create seller address: %w", err)
		}

		seller := &models.Seller{
			UserID:           user.ID,
			StoreName:        req.StoreName,
			StoreDescription: req.StoreDescription,
			SellerType:       models.SellerType(req.SellerType),
		}
		if req.BusinessNumber != "" {
			seller.BusinessNumber = &req.BusinessNumber
		}
		if err := tx.CreateSeller(ctx, seller); err != nil {
			return fmt.Errorf("create seller profile: %w", err)
		}
		user.Seller = seller
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit.LogAuth(ctx, models.AuditSellerRegistration, &user.ID, true, reqCtx)
	return s.autoLogin(ctx, user), nil
}

// ChangePassword re-verifies the current password, rejects a no-op change
// and persists the new hash. Every branch is audited.
func (s *AuthService) ChangePassword(ctx context.Context, userID uuid.UUID, req *dto.ChangePasswordRequest, reqCtx RequestContext) error {
	if err := validation.Struct(req); err != nil {
		return err
	}

	user, err := s.users.FindUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.audit.LogSecurityEvent(ctx, models.AuditPasswordChangeFailed, false, reqCtx, map[string]string{"reason": "user_not_found"})
			return ErrUserNotFound
		}
		return fmt.Errorf("change password lookup: %w", err)
	}
	reqCtx.Email = user.Email

	if user.PasswordHash == nil || !VerifyPassword(req.CurrentPassword, *user.PasswordHash) {
		s.audit.LogSecurityEvent(ctx, models.AuditPasswordChangeFailed, false, reqCtx, map[string]string{"reason": "wrong_current_password"})
		return ErrInvalidCredentials
	}

	if req.NewPassword == req.CurrentPassword {
		return ErrSamePassword
	}

	hash, err := HashPassword(req.NewPassword)
	if err != nil {
		return err
	}
	if err := s.users.UpdateUser(ctx, user.ID, map[string]any{"password_hash": hash}); err != nil {
		return fmt.Errorf("persist new password: %w", err)
	}

	s.audit.LogSecurityEvent(ctx, models.AuditPasswordChanged, true, reqCtx, nil)
	return nil
}

// GoogleSignIn links a verified Google identity to an existing account by
// email, or creates a fresh verified BUYER. An existing password hash is
// never touched by linking.
func (s *AuthService) GoogleSignIn(ctx context.Context, identity ExternalIdentity, reqCtx RequestContext) (*LoginResult, error) {
	if identity.Email == "" {
		return nil, validation.NewFieldError("email", "is required")
	}
	identity.Email = strings.ToLower(identity.Email)
	reqCtx.Email = identity.Email

	user, err := s.users.FindUserByEmail(ctx, identity.Email)
	switch {
	case err == nil:
		if user.GoogleID == nil {
			fields := map[string]any{
				"google_id": identity.ProviderID,
				"verified":  true,
			}
			if err := s.users.UpdateUser(ctx, user.ID, fields); err != nil {
				return nil, fmt.Errorf("link google account: %w", err)
			}
			user.GoogleID = &identity.ProviderID
			user.Verified = true
			s.audit.LogAuth(ctx, models.AuditOAuthAccountLinked, &user.ID, true, reqCtx)
		}
	case errors.Is(err, store.ErrNotFound):
		user = &models.User{
			Email:        identity.Email,
			DisplayName:  strings.TrimSpace(identity.FirstName + " " + identity.LastName),
			FirstName:    identity.FirstName,
			LastName:     identity.LastName,
			Role:         models.RoleBuyer,
			Verified:     true,
			ImageURL:     identity.AvatarURL,
			GoogleID:     &identity.ProviderID,
			AuthProvider: identity.Provider,
		}
		if err := s.users.CreateUser(ctx, user); err != nil {
			return nil, fmt.Errorf("create google user: %w", err)
		}
		s.audit.LogAuth(ctx, models.AuditOAuthAccountCreated, &user.ID, true, reqCtx)
	default:
		return nil, fmt.Errorf("google sign-in lookup: %w", err)
	}

	result, err := s.issueSession(ctx, user)
	if err != nil {
		return nil, err
	}
	s.audit.LogAuth(ctx, models.AuditOAuthSignIn, &user.ID, true, reqCtx)
	return result, nil
}

func (s *AuthService) ensureEmailFree(ctx context.Context, email string) error {
	_, err := s.users.FindUserByEmail(ctx, email)
	if err == nil {
		return ErrEmailTaken
	}
	if !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("email lookup: %w", err)
	}
	return nil
}

func (s *AuthService) issueSession(ctx context.Context, user *models.User) (*LoginResult, error) {
	now := time.Now()
	if err := s.users.UpdateUser(ctx, user.ID, map[string]any{"last_login_at": now}); err != nil {
		slog.Warn("last-login bookkeeping failed", "user_id", user.ID, "error", err)
	}
	user.LastLoginAt = &now

	token, session, err := s.tokens.Issue(user)
	if err != nil {
		return nil, fmt.Errorf("issue session: %w", err)
	}
	return &LoginResult{Token: token, Session: session, User: user}, nil
}

// autoLogin issues a session after account creation, tolerating failure.
func (s *AuthService) autoLogin(ctx context.Context, user *models.User) *LoginResult {
	result, err := s.issueSession(ctx, user)
	if err != nil {
		slog.Warn("auto-login after account creation failed", "user_id", user.ID, "error", err)
		return &LoginResult{User: user}
	}
	return result
}

func decodeBackupCodes(raw datatypes.JSON) ([]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var codes []string
	if err := json.Unmarshal(raw, &codes); err != nil {
		return nil, err
	}
	return codes, nil
}

func (s *AuthService) persistBackupCodes(ctx context.Context, userID uuid.UUID, codes []string) error {
	encoded, err := json.Marshal(codes)
	if err != nil {
		return err
	}
	return s.users.UpdateUser(ctx, userID, map[string]any{"backup_codes": datatypes.JSON(encoded)})
}
