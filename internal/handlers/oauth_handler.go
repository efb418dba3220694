package handlers

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/garmsy/marketplace/internal/config"
	"github.com/garmsy/marketplace/internal/dto"
	"github.com/garmsy/marketplace/internal/middleware"
	"github.com/garmsy/marketplace/internal/services"
)

const (
	oauthStateCookie = "oauth_state"
	userInfoURL      = "https://www.googleapis.com/oauth2/v2/userinfo"
)

type googleUserInfo struct {
	ID         string `json:"id"`
	Email      string `json:"email"`
	GivenName  string `json:"given_name"`
	FamilyName string `json:"family_name"`
	Picture    string `json:"picture"`
}

type OAuthHandler struct {
	cfg    *config.Config
	auth   *services.AuthService
	google *oauth2.Config
}

func NewOAuthHandler(cfg *config.Config, auth *services.AuthService) *OAuthHandler {
	return &OAuthHandler{
		cfg:  cfg,
		auth: auth,
		google: &oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleRedirectURL,
			Scopes: []string{
				"https://www.googleapis.com/auth/userinfo.email",
				"https://www.googleapis.com/auth/userinfo.profile",
			},
			Endpoint: google.Endpoint,
		},
	}
}

// GoogleLogin redirects to the Google consent screen with a random state
// bound to a short-lived cookie.
func (h *OAuthHandler) GoogleLogin(c *fiber.Ctx) error {
	state, err := randomState()
	if err != nil {
		return fail(c, err)
	}

	c.Cookie(&fiber.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Expires:  time.Now().Add(10 * time.Minute),
		Path:     "/",
		HTTPOnly: true,
		Secure:   h.cfg.IsProduction(),
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return c.Redirect(h.google.AuthCodeURL(state), fiber.StatusTemporaryRedirect)
}

// GoogleCallback exchanges the authorization code, reads the Google
// profile and signs the user in.
func (h *OAuthHandler) GoogleCallback(c *fiber.Ctx) error {
	expected := c.Cookies(oauthStateCookie)
	if expected == "" || c.Query("state") != expected {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid OAuth state",
		})
	}

	code := c.Query("code")
	if code == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Missing authorization code",
		})
	}

	token, err := h.google.Exchange(c.Context(), code)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
			Error: true, Message: "OAuth code exchange failed",
		})
	}

	info, err := h.fetchUserInfo(c, token)
	if err != nil {
		return fail(c, err)
	}

	result, err := h.auth.GoogleSignIn(c.Context(), services.ExternalIdentity{
		Provider:   "google",
		ProviderID: info.ID,
		Email:      info.Email,
		FirstName:  info.GivenName,
		LastName:   info.FamilyName,
		AvatarURL:  info.Picture,
	}, requestContext(c))
	if err != nil {
		return fail(c, err)
	}

	middleware.SetSessionCookie(c, h.cfg, result.Token, result.Session.ExpiresAt)
	return c.Redirect("/", fiber.StatusSeeOther)
}

func (h *OAuthHandler) fetchUserInfo(c *fiber.Ctx, token *oauth2.Token) (*googleUserInfo, error) {
	client := h.google.Client(c.Context(), token)
	resp, err := client.Get(userInfoURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fiber.NewError(fiber.StatusUnauthorized, "userinfo request failed: "+string(body))
	}

	var info googleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, err
	}
	return &info, nil
}

func randomState() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
