package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/garmsy/marketplace/internal/config"
	"github.com/garmsy/marketplace/internal/models"
	"github.com/garmsy/marketplace/internal/store"
)

var ErrInvalidSession = errors.New("invalid or expired session token")

// SellerSnapshot is the sub-profile slice embedded in session claims.
type SellerSnapshot struct {
	ID        uuid.UUID `json:"id"`
	StoreName string    `json:"store_name"`
	Verified  bool      `json:"verified"`
}

// Session is the decoded, request-scoped identity. Claims are trusted for
// the token's lifetime; UpdateFromStore re-reads them after administrative
// changes.
type Session struct {
	UserID    uuid.UUID
	Email     string
	Role      models.Role
	FirstName string
	LastName  string
	Verified  bool
	Seller    *SellerSnapshot
	LastLogin time.Time
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// NeedsRefresh reports whether the token has aged past the sliding window
// while still being inside its absolute expiry.
func (s *Session) NeedsRefresh(now time.Time, sliding time.Duration) bool {
	return now.Sub(s.IssuedAt) > sliding && now.Before(s.ExpiresAt)
}

// TokenService mints and validates the signed session token. Validation is a
// pure function of the token plus current time, so it is concurrent-safe
// without locking.
type TokenService struct {
	cfg   *config.Config
	users store.UserStore
}

func NewTokenService(cfg *config.Config, users store.UserStore) *TokenService {
	return &TokenService{cfg: cfg, users: users}
}

// Issue mints a session token for user with absolute expiry now+7d.
func (t *TokenService) Issue(user *models.User) (string, *Session, error) {
	now := time.Now()
	lastLogin := now
	if user.LastLoginAt != nil {
		lastLogin = *user.LastLoginAt
	}

	session := &Session{
		UserID:    user.ID,
		Email:     user.Email,
		Role:      models.ParseRole(string(user.Role)),
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Verified:  user.Verified,
		LastLogin: lastLogin,
		IssuedAt:  now,
		ExpiresAt: now.Add(t.cfg.SessionAbsolute),
	}
	if user.Seller != nil {
		session.Seller = &SellerSnapshot{
			ID:        user.Seller.ID,
			StoreName: user.Seller.StoreName,
			Verified:  user.Seller.Verified,
		}
	}

	signed, err := t.sign(session)
	if err != nil {
		return "", nil, err
	}
	return signed, session, nil
}

// Refresh re-issues the same claims with a fresh issued-at. Used when the
// sliding window has elapsed on a still-valid token.
func (t *TokenService) Refresh(session *Session) (string, *Session, error) {
	renewed := *session
	renewed.IssuedAt = time.Now()
	renewed.ExpiresAt = renewed.IssuedAt.Add(t.cfg.SessionAbsolute)

	signed, err := t.sign(&renewed)
	if err != nil {
		return "", nil, err
	}
	return signed, &renewed, nil
}

// UpdateFromStore replaces the embedded claims with the current credential
// store state, guarding against stale role or verification data.
func (t *TokenService) UpdateFromStore(ctx context.Context, userID uuid.UUID) (string, *Session, error) {
	user, err := t.users.FindUserByID(ctx, userID)
	if err != nil {
		return "", nil, fmt.Errorf("refresh claims: %w", err)
	}
	return t.Issue(user)
}

// Parse verifies the token's signature and expiry and decodes the session.
func (t *TokenService) Parse(tokenString string) (*Session, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(t.cfg.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidSession
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidSession
	}
	return SessionFromClaims(claims)
}

// SessionFromClaims rebuilds a Session from already-verified JWT claims.
func SessionFromClaims(claims jwt.MapClaims) (*Session, error) {
	sub, _ := claims["sub"].(string)
	userID, err := uuid.Parse(sub)
	if err != nil {
		return nil, ErrInvalidSession
	}

	session := &Session{
		UserID:    userID,
		Email:     stringClaim(claims, "email"),
		Role:      models.ParseRole(stringClaim(claims, "role")),
		FirstName: stringClaim(claims, "first_name"),
		LastName:  stringClaim(claims, "last_name"),
		LastLogin: timeClaim(claims, "last_login"),
		IssuedAt:  timeClaim(claims, "iat"),
		ExpiresAt: timeClaim(claims, "exp"),
	}
	session.Verified, _ = claims["verified"].(bool)

	if raw, ok := claims["seller"].(map[string]any); ok {
		sellerID, err := uuid.Parse(stringClaim(raw, "id"))
		if err == nil {
			snapshot := &SellerSnapshot{
				ID:        sellerID,
				StoreName: stringClaim(raw, "store_name"),
			}
			snapshot.Verified, _ = raw["verified"].(bool)
			session.Seller = snapshot
		}
	}
	return session, nil
}

func (t *TokenService) sign(session *Session) (string, error) {
	claims := jwt.MapClaims{
		"sub":        session.UserID.String(),
		"email":      session.Email,
		"role":       string(session.Role),
		"first_name": session.FirstName,
		"last_name":  session.LastName,
		"verified":   session.Verified,
		"last_login": session.LastLogin.Unix(),
		"iat":        session.IssuedAt.Unix(),
		"exp":        session.ExpiresAt.Unix(),
	}
	if session.Seller != nil {
		claims["seller"] = map[string]any{
			"id":         session.Seller.ID.String(),
			"store_name": session.Seller.StoreName,
			"verified":   session.Seller.Verified,
		}
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(t.cfg.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

func stringClaim(claims map[string]any, key string) string {
	s, _ := claims[key].(string)
	return s
}

func timeClaim(claims map[string]any, key string) time.Time {
	switch v := claims[key].(type) {
	case float64:
		return time.Unix(int64(v), 0)
	case int64:
		return time.Unix(v, 0)
	}
	return time.Time{}
}
