package routes

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/garmsy/marketplace/internal/config"
	"github.com/garmsy/marketplace/internal/handlers"
	"github.com/garmsy/marketplace/internal/middleware"
	"github.com/garmsy/marketplace/internal/models"
)

type Handlers struct {
	Auth      *handlers.AuthHandler
	TwoFactor *handlers.TwoFactorHandler
	OAuth     *handlers.OAuthHandler
	Catalog   *handlers.CatalogHandler
	Cart      *handlers.CartHandler
	Orders    *handlers.OrderHandler
	Health    *handlers.HealthHandler
}

func Setup(app *fiber.App, cfg *config.Config, h Handlers) {
	// Browser-facing OAuth flow lives outside /api: it is redirect driven
	// and carries its own state cookie.
	app.Get("/auth/google", h.OAuth.GoogleLogin)
	app.Get("/auth/google/callback", h.OAuth.GoogleCallback)

	api := app.Group("/api")

	// General API rate limiter: 60 req/min per IP
	api.Use(limiter.New(limiter.Config{
		Max:               60,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
	}))

	api.Get("/health", h.Health.Check)

	// Auth endpoints get a stricter per-IP limit on top of the per-account
	// attempt window inside the login flow.
	auth := api.Group("/auth")
	auth.Use(limiter.New(limiter.Config{
		Max:               10,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
	}))
	auth.Post("/login", h.Auth.Login)
	auth.Post("/login/2fa", h.Auth.TwoFactorLogin)
	auth.Post("/signup", h.Auth.Signup)
	auth.Post("/seller-registration", h.Auth.SellerRegistration)

	// Logout accepts expired or absent sessions: the globally loaded
	// session is enough, no JWT guard.
	api.Post("/auth/logout", h.Auth.Logout)

	protected := api.Group("", middleware.JWTProtected(cfg))

	account := protected.Group("/account")
	account.Get("/me", h.Auth.Me)
	account.Post("/change-password", h.Auth.ChangePassword)
	account.Post("/2fa/setup", h.TwoFactor.Setup)
	account.Post("/2fa/activate", h.TwoFactor.Activate)
	account.Post("/2fa/disable", h.TwoFactor.Disable)
	account.Post("/2fa/backup-codes", h.TwoFactor.RegenerateBackupCodes)

	// Catalog reads are public.
	api.Get("/categories", h.Catalog.ListCategories)
	api.Get("/products", h.Catalog.ListProducts)
	api.Get("/products/:slug", h.Catalog.GetProduct)

	// Seller product management.
	seller := protected.Group("/seller", middleware.RequireRole(models.RoleSeller, models.RoleAdmin))
	seller.Get("/products", h.Catalog.ListMyProducts)
	seller.Post("/products", h.Catalog.CreateProduct)
	seller.Put("/products/:id", h.Catalog.UpdateProduct)
	seller.Delete("/products/:id", h.Catalog.DeleteProduct)

	// Cart and checkout (any signed-in user).
	cart := protected.Group("/cart")
	cart.Get("/", h.Cart.Get)
	cart.Post("/items", h.Cart.AddItem)
	cart.Put("/items/:productId", h.Cart.SetQuantity)
	cart.Delete("/items/:productId", h.Cart.RemoveItem)
	cart.Delete("/", h.Cart.Clear)

	orders := protected.Group("/orders")
	orders.Post("/checkout", h.Orders.Checkout)
	orders.Get("/", h.Orders.List)
	orders.Get("/:id", h.Orders.Get)

	// Admin: category management and the full order ledger.
	admin := protected.Group("/admin", middleware.AdminRequired(cfg))
	admin.Post("/categories", h.Catalog.CreateCategory)
	admin.Put("/categories/:id", h.Catalog.UpdateCategory)
	admin.Get("/orders", h.Orders.List)
}
