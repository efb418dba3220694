package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garmsy/marketplace/internal/config"
	"github.com/garmsy/marketplace/internal/models"
	"github.com/garmsy/marketplace/internal/services"
)

func gateConfig() *config.Config {
	return &config.Config{
		AppEnv:          "development",
		JWTSecret:       "gate-test-secret",
		SessionAbsolute: 168 * time.Hour,
		SessionSliding:  24 * time.Hour,
		AdminEmails:     "root@example.com",
	}
}

// gateApp wires the session loader and gate in front of a catch-all page.
func gateApp(cfg *config.Config, tokens *services.TokenService) *fiber.App {
	app := fiber.New()
	app.Use(LoadSession(cfg, tokens))
	app.Use(Gate(cfg))
	app.All("/*", func(c *fiber.Ctx) error {
		return c.SendString("page")
	})
	return app
}

func issueFor(t *testing.T, tokens *services.TokenService, role models.Role, email string) string {
	t.Helper()
	user := &models.User{ID: uuid.New(), Email: email, Role: role}
	if role == models.RoleSeller {
		user.Seller = &models.Seller{ID: uuid.New(), StoreName: "Test Store"}
	}
	token, _, err := tokens.Issue(user)
	require.NoError(t, err)
	return token
}

func requestWithCookie(method, path, cookieName, token string) *http.Request {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.AddCookie(&http.Cookie{Name: cookieName, Value: token})
	}
	return req
}

func TestGateRedirectMatrix(t *testing.T) {
	cfg := gateConfig()
	tokens := services.NewTokenService(cfg, nil)
	app := gateApp(cfg, tokens)

	buyer := issueFor(t, tokens, models.RoleBuyer, "buyer@example.com")
	seller := issueFor(t, tokens, models.RoleSeller, "seller@example.com")
	admin := issueFor(t, tokens, models.RoleAdmin, "admin@example.com")
	override := issueFor(t, tokens, models.RoleBuyer, "root@example.com")

	cases := []struct {
		name     string
		path     string
		token    string
		status   int
		location string
	}{
		{"anonymous browses home", "/", "", 200, ""},
		{"anonymous reaches login", "/login", "", 200, ""},
		{"anonymous reaches signup", "/signup", "", 200, ""},
		{"anonymous reaches seller registration", "/seller/register", "", 200, ""},
		{"signed-in bounced off login", "/login", buyer, 303, "/"},
		{"signed-in bounced off signup", "/signup", buyer, 303, "/"},
		{"signed-in bounced off seller registration", "/seller/register", seller, 303, "/"},
		{"anonymous profile goes to login", "/profile", "", 303, "/login"},
		{"anonymous settings goes to login", "/settings/security", "", 303, "/login"},
		{"signed-in reaches profile", "/profile", buyer, 200, ""},
		{"buyer bounced off admin", "/admin", buyer, 303, "/"},
		{"anonymous bounced off admin", "/admin/users", "", 303, "/"},
		{"admin reaches admin", "/admin", admin, 200, ""},
		{"email override reaches admin", "/admin", override, 200, ""},
		{"buyer bounced off seller area", "/seller/dashboard", buyer, 303, "/"},
		{"admin bounced off seller area", "/seller/dashboard", admin, 303, "/"},
		{"seller reaches seller area", "/seller/dashboard", seller, 200, ""},
		{"public catalog passes through", "/products/linen-shirt", "", 200, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := requestWithCookie(http.MethodGet, tc.path, cfg.SessionCookieName(), tc.token)
			resp, err := app.Test(req)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tc.status, resp.StatusCode)
			if tc.location != "" {
				assert.Equal(t, tc.location, resp.Header.Get("Location"))
			}
		})
	}
}

func TestLoadSessionClearsInvalidCookie(t *testing.T) {
	cfg := gateConfig()
	tokens := services.NewTokenService(cfg, nil)
	app := gateApp(cfg, tokens)

	req := requestWithCookie(http.MethodGet, "/profile", cfg.SessionCookieName(), "garbage-token")
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	// Treated as anonymous: redirected to login, cookie expired.
	assert.Equal(t, 303, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))

	cleared := false
	for _, cookie := range resp.Cookies() {
		if cookie.Name == cfg.SessionCookieName() && cookie.Value == "" {
			cleared = true
		}
	}
	assert.True(t, cleared)
}

func TestLoadSessionSlidingRefresh(t *testing.T) {
	cfg := gateConfig()
	tokens := services.NewTokenService(cfg, nil)
	app := gateApp(cfg, tokens)

	stale := agedToken(t, cfg, 25*time.Hour)
	req := requestWithCookie(http.MethodGet, "/profile", cfg.SessionCookieName(), stale)
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, 200, resp.StatusCode)

	refreshed := ""
	for _, cookie := range resp.Cookies() {
		if cookie.Name == cfg.SessionCookieName() && cookie.Value != "" {
			refreshed = cookie.Value
		}
	}
	require.NotEmpty(t, refreshed, "expected a re-minted session cookie")

	parsed, err := tokens.Parse(refreshed)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), parsed.IssuedAt, 5*time.Second)
}

func TestLoadSessionFreshTokenNotRefreshed(t *testing.T) {
	cfg := gateConfig()
	tokens := services.NewTokenService(cfg, nil)
	app := gateApp(cfg, tokens)

	fresh := issueFor(t, tokens, models.RoleBuyer, "buyer@example.com")
	req := requestWithCookie(http.MethodGet, "/profile", cfg.SessionCookieName(), fresh)
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, 200, resp.StatusCode)
	for _, cookie := range resp.Cookies() {
		assert.NotEqual(t, cfg.SessionCookieName(), cookie.Name, "fresh token must not be re-set")
	}
}

// agedToken signs a valid session token whose issued-at lies age in the
// past, something the service API deliberately cannot mint.
func agedToken(t *testing.T, cfg *config.Config, age time.Duration) string {
	t.Helper()
	issued := time.Now().Add(-age)
	claims := jwt.MapClaims{
		"sub":        uuid.NewString(),
		"email":      "buyer@example.com",
		"role":       string(models.RoleBuyer),
		"first_name": "Nora",
		"last_name":  "Lindqvist",
		"verified":   true,
		"last_login": issued.Unix(),
		"iat":        issued.Unix(),
		"exp":        issued.Add(cfg.SessionAbsolute).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.JWTSecret))
	require.NoError(t, err)
	return signed
}
