package config

import (
	"os"
	"strings"
	"time"
)

type Config struct {
	// Environment
	AppEnv string

	// Database
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Redis (cart storage)
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CartTTL       time.Duration

	// Kafka (domain events, disabled when empty)
	KafkaBrokers []string

	// Session tokens
	JWTSecret       string
	SessionAbsolute time.Duration
	SessionSliding  time.Duration

	// TOTP secret sealing
	EncryptionKey string

	// Google OAuth
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string

	// Admin
	AdminEmails string

	// Server
	Port        string
	CORSOrigins string
}

func Load() *Config {
	return &Config{
		AppEnv: getEnv("APP_ENV", "development"),

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "marketplace"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       0,
		CartTTL:       parseDuration(getEnv("CART_TTL", "168h"), 168*time.Hour),

		KafkaBrokers: parseCSV(getEnv("KAFKA_BROKERS", "")),

		JWTSecret:       getEnv("JWT_SECRET", ""),
		SessionAbsolute: parseDuration(getEnv("SESSION_ABSOLUTE_EXPIRY", "168h"), 168*time.Hour),
		SessionSliding:  parseDuration(getEnv("SESSION_SLIDING_WINDOW", "24h"), 24*time.Hour),

		EncryptionKey: getEnv("ENCRYPTION_KEY", ""),

		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURL:  getEnv("GOOGLE_REDIRECT_URL", "http://localhost:8080/auth/google/callback"),

		AdminEmails: getEnv("ADMIN_EMAILS", ""),

		Port:        getEnv("PORT", "8080"),
		CORSOrigins: getEnv("CORS_ORIGINS", "*"),
	}
}

func (c *Config) DSN() string {
	return "host=" + c.DBHost +
		" user=" + c.DBUser +
		" password=" + c.DBPassword +
		" dbname=" + c.DBName +
		" port=" + c.DBPort +
		" sslmode=" + c.DBSSLMode +
		" TimeZone=UTC"
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// SessionCookieName returns the environment-specific cookie name. Production
// uses the __Host- prefix so browsers enforce Secure + Path=/ delivery.
func (c *Config) SessionCookieName() string {
	if c.IsProduction() {
		return "__Host-garmsy-session"
	}
	return "garmsy-session"
}

// AdminEmailList returns the configured admin override emails, lowercased.
func (c *Config) AdminEmailList() []string {
	emails := parseCSV(c.AdminEmails)
	for i, e := range emails {
		emails[i] = strings.ToLower(e)
	}
	return emails
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

func parseCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
