package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/garmsy/marketplace/internal/config"
	"github.com/garmsy/marketplace/internal/dto"
	"github.com/garmsy/marketplace/internal/models"
	"github.com/garmsy/marketplace/internal/secrets"
	"github.com/garmsy/marketplace/internal/store"
	"github.com/garmsy/marketplace/internal/validation"
)

func testConfig() *config.Config {
	return &config.Config{
		JWTSecret:       "test-secret",
		SessionAbsolute: 168 * time.Hour,
		SessionSliding:  24 * time.Hour,
	}
}

func testBox(t *testing.T) *secrets.Box {
	t.Helper()
	box, err := secrets.NewBox([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)
	return box
}

func newAuthFixture(t *testing.T) (*AuthService, *mockUserStore, *mockAuditStore) {
	t.Helper()
	users := new(mockUserStore)
	audits := new(mockAuditStore)
	audits.On("AppendEvent", mock.Anything, mock.Anything).Return(nil).Maybe()

	tokens := NewTokenService(testConfig(), users)
	svc := NewAuthService(users, tokens, NewTOTPService("Garmsy"), NewAuditService(audits), NewLoginRateLimiter(audits), testBox(t))
	return svc, users, audits
}

func buyerWithPassword(t *testing.T, email, password string) *models.User {
	t.Helper()
	hash, err := HashPassword(password)
	require.NoError(t, err)
	return &models.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: &hash,
		FirstName:    "Nora",
		LastName:     "Lindqvist",
		Role:         models.RoleBuyer,
	}
}

func allowAttempts(audits *mockAuditStore, count int64) {
	audits.On("CountEventsSince", mock.Anything, mock.Anything, mock.Anything).Return(count, nil)
}

func TestLoginSuccess(t *testing.T) {
	svc, users, audits := newAuthFixture(t)
	allowAttempts(audits, 0)

	user := buyerWithPassword(t, "nora@example.com", "hunter22")
	users.On("FindUserByEmail", mock.Anything, "nora@example.com").Return(user, nil)
	users.On("UpdateUser", mock.Anything, user.ID, mock.Anything).Return(nil)

	result, err := svc.Login(context.Background(), &dto.LoginRequest{
		Email:    "nora@example.com",
		Password: "hunter22",
	}, RequestContext{IP: "10.0.0.1"})

	require.NoError(t, err)
	assert.NotEmpty(t, result.Token)
	assert.Equal(t, user.ID, result.Session.UserID)
	assert.Equal(t, models.RoleBuyer, result.Session.Role)
	assert.Contains(t, audits.kinds(), models.AuditLoginSuccess)
}

func TestLoginNormalizesEmailCase(t *testing.T) {
	svc, users, audits := newAuthFixture(t)

	// Both the limiter and the lookup must see the lowercased identity,
	// whatever casing the request carried.
	audits.On("CountEventsSince", mock.Anything, "nora@example.com", mock.Anything).Return(int64(0), nil)
	user := buyerWithPassword(t, "nora@example.com", "hunter22")
	users.On("FindUserByEmail", mock.Anything, "nora@example.com").Return(user, nil)
	users.On("UpdateUser", mock.Anything, user.ID, mock.Anything).Return(nil)

	result, err := svc.Login(context.Background(), &dto.LoginRequest{
		Email:    "Nora@Example.COM",
		Password: "hunter22",
	}, RequestContext{IP: "10.0.0.1"})

	require.NoError(t, err)
	assert.NotEmpty(t, result.Token)
	users.AssertExpectations(t)
	audits.AssertExpectations(t)
}

func TestLoginUnknownEmailIsGeneric(t *testing.T) {
	svc, users, audits := newAuthFixture(t)
	allowAttempts(audits, 0)
	users.On("FindUserByEmail", mock.Anything, "ghost@example.com").Return(nil, store.ErrNotFound)

	_, err := svc.Login(context.Background(), &dto.LoginRequest{
		Email:    "ghost@example.com",
		Password: "whatever1",
	}, RequestContext{})

	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Contains(t, audits.kinds(), models.AuditLoginUserNotFound)
}

func TestLoginWrongPasswordIsGeneric(t *testing.T) {
	svc, users, audits := newAuthFixture(t)
	allowAttempts(audits, 0)

	user := buyerWithPassword(t, "nora@example.com", "hunter22")
	users.On("FindUserByEmail", mock.Anything, "nora@example.com").Return(user, nil)

	_, err := svc.Login(context.Background(), &dto.LoginRequest{
		Email:    "nora@example.com",
		Password: "not-the-password",
	}, RequestContext{})

	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Contains(t, audits.kinds(), models.AuditLoginBadPassword)
	assert.NotContains(t, audits.kinds(), models.AuditLoginUserNotFound)
}

func TestLoginRejectsMalformedEmail(t *testing.T) {
	svc, _, _ := newAuthFixture(t)

	_, err := svc.Login(context.Background(), &dto.LoginRequest{
		Email:    "not-an-email",
		Password: "hunter22",
	}, RequestContext{})

	var verr *validation.Error
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields(), "email")
}

func TestLoginRateLimitBlocksCorrectCredentials(t *testing.T) {
	svc, users, audits := newAuthFixture(t)
	allowAttempts(audits, 10)

	_, err := svc.Login(context.Background(), &dto.LoginRequest{
		Email:    "nora@example.com",
		Password: "hunter22",
	}, RequestContext{})

	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Contains(t, audits.kinds(), models.AuditLoginRateLimited)
	users.AssertNotCalled(t, "FindUserByEmail", mock.Anything, mock.Anything)
}

func TestLoginWithTwoFactorEnabledNeverIssuesSession(t *testing.T) {
	svc, users, audits := newAuthFixture(t)
	allowAttempts(audits, 0)

	user := buyerWithPassword(t, "nora@example.com", "hunter22")
	user.TwoFactorEnabled = true
	users.On("FindUserByEmail", mock.Anything, "nora@example.com").Return(user, nil)

	result, err := svc.Login(context.Background(), &dto.LoginRequest{
		Email:    "nora@example.com",
		Password: "hunter22",
	}, RequestContext{})

	require.Nil(t, result)
	var twoFactor *TwoFactorRequiredError
	require.ErrorAs(t, err, &twoFactor)
	assert.Equal(t, "nora@example.com", twoFactor.Email)
	users.AssertNotCalled(t, "UpdateUser", mock.Anything, mock.Anything, mock.Anything)
}

func twoFactorUser(t *testing.T, svc *AuthService, password string) (*models.User, string, []string) {
	t.Helper()
	user := buyerWithPassword(t, "nora@example.com", password)
	user.TwoFactorEnabled = true

	material, err := svc.totp.Setup(user.Email)
	require.NoError(t, err)
	sealed, err := svc.box.Seal(material.Secret)
	require.NoError(t, err)
	user.TwoFactorSecret = &sealed

	hashed, err := svc.totp.HashBackupCodes(material.BackupCodes)
	require.NoError(t, err)
	encoded, err := json.Marshal(hashed)
	require.NoError(t, err)
	user.BackupCodes = datatypes.JSON(encoded)

	return user, material.Secret, material.BackupCodes
}

func TestTwoFactorLoginWithAuthenticatorCode(t *testing.T) {
	svc, users, audits := newAuthFixture(t)
	allowAttempts(audits, 0)

	user, secret, _ := twoFactorUser(t, svc, "hunter22")
	users.On("FindUserByEmail", mock.Anything, user.Email).Return(user, nil)
	users.On("UpdateUser", mock.Anything, user.ID, mock.Anything).Return(nil)

	code, err := totp.GenerateCode(secret, time.Now())
	require.NoError(t, err)

	result, err := svc.TwoFactorLogin(context.Background(), &dto.TwoFactorLoginRequest{
		Email:    user.Email,
		Password: "hunter22",
		Code:     code,
	}, RequestContext{})

	require.NoError(t, err)
	assert.NotEmpty(t, result.Token)
	assert.Contains(t, audits.kinds(), models.AuditTwoFactorSuccess)
	assert.NotContains(t, audits.kinds(), models.AuditBackupCodeUsed)
}

func TestTwoFactorLoginBackupCodeIsSingleUse(t *testing.T) {
	svc, users, audits := newAuthFixture(t)
	allowAttempts(audits, 0)

	user, _, codes := twoFactorUser(t, svc, "hunter22")
	users.On("FindUserByEmail", mock.Anything, user.Email).Return(user, nil)

	var persisted datatypes.JSON
	users.On("UpdateUser", mock.Anything, user.ID, mock.Anything).Run(func(args mock.Arguments) {
		fields := args.Get(2).(map[string]any)
		if raw, ok := fields["backup_codes"].(datatypes.JSON); ok {
			persisted = raw
		}
	}).Return(nil)

	result, err := svc.TwoFactorLogin(context.Background(), &dto.TwoFactorLoginRequest{
		Email:    user.Email,
		Password: "hunter22",
		Code:     codes[0],
	}, RequestContext{})
	require.NoError(t, err)
	assert.NotEmpty(t, result.Token)
	assert.Contains(t, audits.kinds(), models.AuditBackupCodeUsed)
	require.NotNil(t, persisted)

	// Same code against the pruned list must fail.
	user.BackupCodes = persisted
	_, err = svc.TwoFactorLogin(context.Background(), &dto.TwoFactorLoginRequest{
		Email:    user.Email,
		Password: "hunter22",
		Code:     codes[0],
	}, RequestContext{})
	assert.ErrorIs(t, err, ErrInvalidTwoFactorCode)

	var remaining []string
	require.NoError(t, json.Unmarshal(persisted, &remaining))
	assert.Len(t, remaining, len(codes)-1)
}

func TestTwoFactorLoginRejectsGarbageCode(t *testing.T) {
	svc, users, audits := newAuthFixture(t)
	allowAttempts(audits, 0)

	user, _, _ := twoFactorUser(t, svc, "hunter22")
	users.On("FindUserByEmail", mock.Anything, user.Email).Return(user, nil)

	_, err := svc.TwoFactorLogin(context.Background(), &dto.TwoFactorLoginRequest{
		Email:    user.Email,
		Password: "hunter22",
		Code:     "000000",
	}, RequestContext{})

	assert.ErrorIs(t, err, ErrInvalidTwoFactorCode)
	assert.Contains(t, audits.kinds(), models.AuditTwoFactorFailed)
}

func TestLogoutIsIdempotent(t *testing.T) {
	svc, _, audits := newAuthFixture(t)

	svc.Logout(context.Background(), nil, RequestContext{})
	assert.Empty(t, audits.kinds())

	session := &Session{UserID: uuid.New(), Email: "nora@example.com"}
	svc.Logout(context.Background(), session, RequestContext{})
	assert.Equal(t, []models.AuditKind{models.AuditLogout}, audits.kinds())
}

func TestSignupConfirmPasswordMismatch(t *testing.T) {
	svc, _, _ := newAuthFixture(t)

	_, err := svc.Signup(context.Background(), &dto.SignupRequest{
		FirstName:       "Nora",
		LastName:        "Lindqvist",
		Email:           "nora@example.com",
		Password:        "hunter22",
		ConfirmPassword: "hunter23",
	}, RequestContext{})

	var verr *validation.Error
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields(), "confirmPassword")
}

func TestSignupDuplicateEmail(t *testing.T) {
	svc, users, _ := newAuthFixture(t)
	users.On("FindUserByEmail", mock.Anything, "nora@example.com").
		Return(buyerWithPassword(t, "nora@example.com", "other"), nil)

	_, err := svc.Signup(context.Background(), &dto.SignupRequest{
		FirstName:       "Nora",
		LastName:        "Lindqvist",
		Email:           "nora@example.com",
		Password:        "hunter22",
		ConfirmPassword: "hunter22",
	}, RequestContext{})

	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestSignupCreatesBuyerAndAutoLogs(t *testing.T) {
	svc, users, audits := newAuthFixture(t)
	users.On("FindUserByEmail", mock.Anything, "nora@example.com").Return(nil, store.ErrNotFound)
	users.On("CreateUser", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		args.Get(1).(*models.User).ID = uuid.New()
	}).Return(nil)
	users.On("UpdateUser", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	result, err := svc.Signup(context.Background(), &dto.SignupRequest{
		FirstName:       "Nora",
		LastName:        "Lindqvist",
		Email:           "Nora@Example.com",
		Password:        "hunter22",
		ConfirmPassword: "hunter22",
	}, RequestContext{})

	require.NoError(t, err)
	assert.Equal(t, models.RoleBuyer, result.User.Role)
	assert.Equal(t, "nora@example.com", result.User.Email)
	assert.NotEmpty(t, result.Token)
	assert.Contains(t, audits.kinds(), models.AuditSignup)
}

func sellerRequest() *dto.SellerRegistrationRequest {
	return &dto.SellerRegistrationRequest{
		FirstName:          "Mara",
		LastName:           "Osei",
		Email:              "mara@example.com",
		Password:           "hunter22",
		ConfirmPassword:    "hunter22",
		AddressLine1:       "12 Weaver Lane",
		City:               "Leeds",
		PostalCode:         "LS1 4AP",
		Country:            "gb",
		StoreName:          "Osei Textiles",
		SellerType:         "BUSINESS",
		AgreeToTerms:       true,
		AgreeToSellerTerms: true,
	}
}

func TestSellerRegistrationCreatesAllThreeRows(t *testing.T) {
	svc, users, audits := newAuthFixture(t)
	users.On("FindUserByEmail", mock.Anything, "mara@example.com").Return(nil, store.ErrNotFound)
	users.On("Transaction", mock.Anything, mock.Anything).Return(nil)
	users.On("CreateUser", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		args.Get(1).(*models.User).ID = uuid.New()
	}).Return(nil)
	users.On("CreateAddress", mock.Anything, mock.Anything).Return(nil)
	users.On("CreateSeller", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		args.Get(1).(*models.Seller).ID = uuid.New()
	}).Return(nil)
	users.On("UpdateUser", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	result, err := svc.SellerRegistration(context.Background(), sellerRequest(), RequestContext{})

	require.NoError(t, err)
	assert.Equal(t, models.RoleSeller, result.User.Role)
	require.NotNil(t, result.Session.Seller)
	assert.Equal(t, "Osei Textiles", result.Session.Seller.StoreName)
	assert.Contains(t, audits.kinds(), models.AuditSellerRegistration)

	users.AssertCalled(t, "CreateAddress", mock.Anything, mock.MatchedBy(func(a *models.Address) bool {
		return a.Country == "GB" && a.IsDefault
	}))
}

func TestSellerRegistrationRollsBackOnSellerFailure(t *testing.T) {
	svc, users, audits := newAuthFixture(t)
	users.On("FindUserByEmail", mock.Anything, "mara@example.com").Return(nil, store.ErrNotFound)
	users.On("Transaction", mock.Anything, mock.Anything).Return(nil)
	users.On("CreateUser", mock.Anything, mock.Anything).Return(nil)
	users.On("CreateAddress", mock.Anything, mock.Anything).Return(nil)
	users.On("CreateSeller", mock.Anything, mock.Anything).Return(errors.New("constraint violation"))

	_, err := svc.SellerRegistration(context.Background(), sellerRequest(), RequestContext{})

	require.Error(t, err)
	assert.NotContains(t, audits.kinds(), models.AuditSellerRegistration)
}

func TestSellerRegistrationRequiresBothTermsFlags(t *testing.T) {
	svc, _, _ := newAuthFixture(t)
	req := sellerRequest()
	req.AgreeToSellerTerms = false

	_, err := svc.SellerRegistration(context.Background(), req, RequestContext{})

	var verr *validation.Error
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields(), "agreeToSellerTerms")
}

func TestChangePasswordRejectsSamePassword(t *testing.T) {
	svc, users, _ := newAuthFixture(t)
	user := buyerWithPassword(t, "nora@example.com", "hunter22")
	users.On("FindUserByID", mock.Anything, user.ID).Return(user, nil)

	err := svc.ChangePassword(context.Background(), user.ID, &dto.ChangePasswordRequest{
		CurrentPassword: "hunter22",
		NewPassword:     "hunter22",
		ConfirmPassword: "hunter22",
	}, RequestContext{})

	assert.ErrorIs(t, err, ErrSamePassword)
	users.AssertNotCalled(t, "UpdateUser", mock.Anything, mock.Anything, mock.Anything)
}

func TestChangePasswordWrongCurrent(t *testing.T) {
	svc, users, audits := newAuthFixture(t)
	user := buyerWithPassword(t, "nora@example.com", "hunter22")
	users.On("FindUserByID", mock.Anything, user.ID).Return(user, nil)

	err := svc.ChangePassword(context.Background(), user.ID, &dto.ChangePasswordRequest{
		CurrentPassword: "wrong-pass",
		NewPassword:     "brand-new-1",
		ConfirmPassword: "brand-new-1",
	}, RequestContext{})

	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Contains(t, audits.kinds(), models.AuditPasswordChangeFailed)
}

func TestChangePasswordSuccess(t *testing.T) {
	svc, users, audits := newAuthFixture(t)
	user := buyerWithPassword(t, "nora@example.com", "hunter22")
	users.On("FindUserByID", mock.Anything, user.ID).Return(user, nil)
	users.On("UpdateUser", mock.Anything, user.ID, mock.MatchedBy(func(fields map[string]any) bool {
		_, ok := fields["password_hash"]
		return ok
	})).Return(nil)

	err := svc.ChangePassword(context.Background(), user.ID, &dto.ChangePasswordRequest{
		CurrentPassword: "hunter22",
		NewPassword:     "brand-new-1",
		ConfirmPassword: "brand-new-1",
	}, RequestContext{})

	require.NoError(t, err)
	assert.Contains(t, audits.kinds(), models.AuditPasswordChanged)
}

func TestGoogleSignInLinksExistingAccount(t *testing.T) {
	svc, users, audits := newAuthFixture(t)
	user := buyerWithPassword(t, "nora@example.com", "hunter22")
	users.On("FindUserByEmail", mock.Anything, "nora@example.com").Return(user, nil)
	users.On("UpdateUser", mock.Anything, user.ID, mock.Anything).Return(nil)

	result, err := svc.GoogleSignIn(context.Background(), ExternalIdentity{
		Provider:   "google",
		ProviderID: "google-123",
		Email:      "nora@example.com",
	}, RequestContext{})

	require.NoError(t, err)
	assert.NotEmpty(t, result.Token)
	assert.NotNil(t, result.User.PasswordHash)
	assert.Contains(t, audits.kinds(), models.AuditOAuthAccountLinked)
}

func TestGoogleSignInCreatesVerifiedBuyer(t *testing.T) {
	svc, users, audits := newAuthFixture(t)
	users.On("FindUserByEmail", mock.Anything, "fresh@example.com").Return(nil, store.ErrNotFound)
	users.On("CreateUser", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		args.Get(1).(*models.User).ID = uuid.New()
	}).Return(nil)
	users.On("UpdateUser", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	result, err := svc.GoogleSignIn(context.Background(), ExternalIdentity{
		Provider:   "google",
		ProviderID: "google-456",
		Email:      "fresh@example.com",
		FirstName:  "Iris",
		LastName:   "Tan",
	}, RequestContext{})

	require.NoError(t, err)
	assert.True(t, result.User.Verified)
	assert.Equal(t, models.RoleBuyer, result.User.Role)
	assert.Nil(t, result.User.PasswordHash)
	assert.Contains(t, audits.kinds(), models.AuditOAuthAccountCreated)
}
