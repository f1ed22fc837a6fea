package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv         string
	HTTPAddr       string
	LogLevel       string
	MigrationsPath string

	// RunMigrations makes cmd/api apply pending migrations on boot. Dev
	// convenience; deploys should run cmd/dev/migrate as a release step.
	RunMigrations bool

	// Supabase/hosted Postgres convenience:
	// - DATABASE_URL: runtime connection (often PgBouncer/pooler)
	// - DIRECT_URL: direct connection for migrations
	DatabaseURL string
	DirectURL   string

	// PublicBaseURL is the externally reachable URL for this backend
	// (webhook registration, public asset URLs).
	// Example: https://your-ngrok-subdomain.ngrok-free.app
	PublicBaseURL string

	// AppURL is where the merchant dashboard SPA lives. Successful OAuth
	// redirects there; failures redirect to AppURL + "/auth/error".
	AppURL string

	DB DBConfig

	Shopify ShopifyConfig

	Session SessionConfig

	RateLimit RateLimitConfig

	// RedisURL switches the rate-limit store from in-memory to Redis when set.
	RedisURL string

	// BlobPath is the bbolt file backing the blob store (page snapshots,
	// uploaded assets).
	BlobPath string

	// DashboardAllowedOrigins is a comma-separated allowlist of origins for
	// the session-authenticated dashboard API. Example:
	//   https://dash.yourapp.com,http://localhost:5173
	DashboardAllowedOrigins []string
}

type DBConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	SSLMode  string
}

type ShopifyConfig struct {
	APIKey      string
	APISecret   string
	Scopes      string
	RedirectURL string

	// WebhookSecret signs webhook deliveries. Custom apps sign with the API
	// secret, so that is the fallback when this is unset.
	WebhookSecret string

	APIVersion string

	// DevAdminAccessToken lets local dev call the Admin API with a "Develop
	// app" token (usually "shpat_...") instead of a stored shop token.
	//
	// Never set this in production.
	DevAdminAccessToken string
}

type SessionConfig struct {
	// Secret signs our own dashboard session tokens. Distinct from the
	// Shopify API secret on purpose.
	Secret string
	TTL    time.Duration

	// CrossSite switches the session cookie to SameSite=None for embedded
	// dashboards served from another origin. Requires Secure, so prod only.
	CrossSite bool
}

type RateLimitConfig struct {
	AuthMax    int
	AuthWindow time.Duration

	// Webhook* is the default per-(shop, topic) budget; individual topics
	// override it in the topic registry.
	WebhookMax    int
	WebhookWindow time.Duration

	// Public* throttles unauthenticated renderer/ingest endpoints per client IP.
	PublicMax    int
	PublicWindow time.Duration
}

const (
	minSessionTTL = 7 * 24 * time.Hour
	maxSessionTTL = 30 * 24 * time.Hour
)

func Load() Config {
	// Convenience for local dev: load variables from .env if present.
	// In production, rely on real environment variables.
	_ = godotenv.Load()

	// Cloud Run sets PORT. Prefer it when HTTP_ADDR isn't explicitly set.
	httpAddr := os.Getenv("HTTP_ADDR")
	if httpAddr == "" {
		if port := os.Getenv("PORT"); port != "" {
			httpAddr = ":" + port
		} else {
			httpAddr = ":8081"
		}
	}

	appEnv := env("APP_ENV", "dev")

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
		if appEnv == "dev" {
			logLevel = "debug"
		}
	}

	cfg := Config{
		AppEnv:         appEnv,
		HTTPAddr:       httpAddr,
		LogLevel:       logLevel,
		MigrationsPath: env("MIGRATIONS_PATH", "file://migrations"),
		RunMigrations:  os.Getenv("RUN_MIGRATIONS") == "true" || os.Getenv("RUN_MIGRATIONS") == "1",
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		DirectURL:      os.Getenv("DIRECT_URL"),
		PublicBaseURL:  os.Getenv("PUBLIC_BASE_URL"),
		AppURL:         env("APP_URL", "http://localhost:3000"),
		DB: DBConfig{
			Host:     env("DB_HOST", "localhost"),
			Port:     env("DB_PORT", "5432"),
			Name:     env("DB_NAME", "linkbio"),
			User:     env("DB_USER", "linkbio"),
			Password: env("DB_PASSWORD", "linkbio"),
			SSLMode:  env("DB_SSLMODE", "disable"),
		},
		Shopify: ShopifyConfig{
			APIKey:              os.Getenv("SHOPIFY_API_KEY"),
			APISecret:           os.Getenv("SHOPIFY_API_SECRET"),
			Scopes:              env("SHOPIFY_SCOPES", "read_products,read_orders"),
			RedirectURL:         os.Getenv("SHOPIFY_REDIRECT_URL"),
			WebhookSecret:       os.Getenv("SHOPIFY_WEBHOOK_SECRET"),
			APIVersion:          env("SHOPIFY_API_VERSION", "2025-10"),
			DevAdminAccessToken: os.Getenv("SHOPIFY_DEV_ADMIN_ACCESS_TOKEN"),
		},
		Session: SessionConfig{
			Secret:    os.Getenv("SESSION_SECRET"),
			TTL:       envDuration("SESSION_TTL", 30*24*time.Hour),
			CrossSite: os.Getenv("SESSION_CROSS_SITE") == "true",
		},
		RateLimit: RateLimitConfig{
			AuthMax:       envInt("AUTH_RATE_MAX", 5),
			AuthWindow:    envDuration("AUTH_RATE_WINDOW", time.Minute),
			WebhookMax:    envInt("WEBHOOK_RATE_MAX", 120),
			WebhookWindow: envDuration("WEBHOOK_RATE_WINDOW", time.Minute),
			PublicMax:     envInt("PUBLIC_RATE_MAX", 120),
			PublicWindow:  envDuration("PUBLIC_RATE_WINDOW", time.Minute),
		},
		RedisURL: os.Getenv("RATE_LIMIT_REDIS_URL"),
		BlobPath: env("BLOB_PATH", "data/blobs.db"),

		DashboardAllowedOrigins: envList("DASHBOARD_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173"),
	}

	// Session lifetime is bounded to 7-30 days regardless of operator input.
	if cfg.Session.TTL < minSessionTTL {
		cfg.Session.TTL = minSessionTTL
	}
	if cfg.Session.TTL > maxSessionTTL {
		cfg.Session.TTL = maxSessionTTL
	}

	if cfg.Shopify.WebhookSecret == "" {
		cfg.Shopify.WebhookSecret = cfg.Shopify.APISecret
	}
	if cfg.Shopify.RedirectURL == "" && cfg.PublicBaseURL != "" {
		cfg.Shopify.RedirectURL = strings.TrimRight(cfg.PublicBaseURL, "/") + "/v1/auth/callback"
	}

	return cfg
}

// IsProd reports whether the process runs with production cookie/transport
// expectations (Secure cookies, JSON logs).
func (c Config) IsProd() bool {
	return c.AppEnv == "prod" || c.AppEnv == "production"
}

// RuntimeDSN is the connection string for serving traffic: DATABASE_URL when
// set (often a PgBouncer pooler), otherwise assembled from the DB_* parts.
func (c Config) RuntimeDSN() string {
	if strings.TrimSpace(c.DatabaseURL) != "" {
		return c.DatabaseURL
	}
	return c.DB.DSN()
}

// MigrationDSN prefers DIRECT_URL: poolers break migrate's advisory locks,
// so hosted setups should point migrations at the direct connection.
func (c Config) MigrationDSN() string {
	if strings.TrimSpace(c.DirectURL) != "" {
		return c.DirectURL
	}
	return c.RuntimeDSN()
}

func (c DBConfig) DSN() string {
	sslmode := c.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, sslmode,
	)
}

func env(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func envList(key, fallbackCSV string) []string {
	v := os.Getenv(key)
	if v == "" {
		v = fallbackCSV
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
