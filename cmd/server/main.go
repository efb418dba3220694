package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentryfiber "github.com/getsentry/sentry-go/fiber"
	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	"github.com/garmsy/marketplace/internal/config"
	"github.com/garmsy/marketplace/internal/database"
	"github.com/garmsy/marketplace/internal/events"
	"github.com/garmsy/marketplace/internal/handlers"
	"github.com/garmsy/marketplace/internal/logging"
	"github.com/garmsy/marketplace/internal/middleware"
	"github.com/garmsy/marketplace/internal/routes"
	"github.com/garmsy/marketplace/internal/secrets"
	"github.com/garmsy/marketplace/internal/services"
	"github.com/garmsy/marketplace/internal/store"
)

func main() {
	logging.Setup(nil)

	cfg := config.Load()

	if cfg.JWTSecret == "" {
		slog.Error("JWT_SECRET environment variable is required")
		os.Exit(1)
	}
	if cfg.EncryptionKey == "" {
		slog.Error("ENCRYPTION_KEY environment variable is required")
		os.Exit(1)
	}

	box, err := secrets.NewBox([]byte(cfg.EncryptionKey))
	if err != nil {
		slog.Error("invalid encryption key", "error", err)
		os.Exit(1)
	}

	// Database
	if err := database.Connect(cfg); err != nil {
		slog.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	if err := database.Migrate(); err != nil {
		slog.Error("migration failed", "error", err)
		os.Exit(1)
	}

	// PostgreSQL log sink (ERROR+ async batch) + 30-day retention sweep
	pgLogHandler := logging.Setup(database.DB)
	cleanupDone := make(chan struct{})
	logging.StartCleanup(database.DB, cleanupDone)

	// Redis (cart storage)
	redisClient, err := database.ConnectRedis(cfg)
	if err != nil {
		slog.Error("redis connection failed", "error", err)
		os.Exit(1)
	}

	// Kafka (nil when no brokers configured; publishing becomes a no-op)
	producer := events.NewProducer(cfg.KafkaBrokers)
	if producer == nil {
		slog.Info("kafka disabled, no brokers configured")
	}

	// Stores
	db := store.NewGorm(database.DB)
	carts := store.NewRedisCartStore(redisClient, cfg.CartTTL)

	// Services
	tokens := services.NewTokenService(cfg, db)
	totp := services.NewTOTPService("Garmsy")
	audit := services.NewAuditService(db)
	limiterSvc := services.NewLoginRateLimiter(db)
	authService := services.NewAuthService(db, tokens, totp, audit, limiterSvc, box)
	twoFactorService := services.NewTwoFactorService(db, totp, audit, box)
	catalogService := services.NewCatalogService(db)
	cartService := services.NewCartService(carts, db, producer)
	orderService := services.NewOrderService(db, db, cartService, producer)

	// Sentry error tracking
	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              dsn,
			EnableTracing:    true,
			TracesSampleRate: 0.2,
			Environment:      cfg.AppEnv,
		}); err != nil {
			slog.Error("sentry init failed", "error", err)
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	app := fiber.New(fiber.Config{
		BodyLimit:    4 * 1024 * 1024,
		ErrorHandler: customErrorHandler,
	})

	app.Use(sentryfiber.New(sentryfiber.Options{
		Repanic:         true,
		WaitForDelivery: false,
	}))

	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "${time} | ${status} | ${latency} | ${ip} | ${method} | ${path}\n",
	}))
	app.Use(middleware.CORS(cfg))
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("X-XSS-Protection", "1; mode=block")
		return c.Next()
	})

	// Session resolution once per request, then the page gate.
	app.Use(middleware.LoadSession(cfg, tokens))
	app.Use(middleware.Gate(cfg))

	routes.Setup(app, cfg, routes.Handlers{
		Auth:      handlers.NewAuthHandler(cfg, authService, db),
		TwoFactor: handlers.NewTwoFactorHandler(twoFactorService),
		OAuth:     handlers.NewOAuthHandler(cfg, authService),
		Catalog:   handlers.NewCatalogHandler(catalogService),
		Cart:      handlers.NewCartHandler(cartService),
		Orders:    handlers.NewOrderHandler(orderService),
		Health:    handlers.NewHealthHandler(redisClient),
	})

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "port", cfg.Port)
		if err := app.Listen(":" + cfg.Port); err != nil {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	<-quit
	slog.Info("shutting down server...")

	close(cleanupDone)
	if pgLogHandler != nil {
		pgLogHandler.Stop()
	}
	sentry.Flush(2 * time.Second)

	if err := app.Shutdown(); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	if err := producer.Close(); err != nil {
		slog.Error("kafka close error", "error", err)
	}
	if err := redisClient.Close(); err != nil {
		slog.Error("redis close error", "error", err)
	}
	if sqlDB, err := database.DB.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			slog.Error("database close error", "error", err)
		}
	}

	slog.Info("server stopped")
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal server error"
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	if code >= 500 {
		slog.Error("unhandled server error", "method", c.Method(), "path", c.Path(), "error", err.Error())
		message = "Internal server error"
	}

	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": message,
	})
}
