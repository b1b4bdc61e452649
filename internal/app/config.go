package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"

	"github.com/barflow/barflow/internal/domain/auth"
)

const defaultAddr = "0.0.0.0:8080"

// Config holds the complete application configuration, loadable from
// environment variables (BARFLOW_ prefix), flags, or YAML config files.
type Config struct {
	Env         string `default:"development" usage:"Deployment environment (development, production)"`
	Addr        string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL string `usage:"PostgreSQL connection URL (BARFLOW_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	Auth        AuthConfig
	Recipes     RecipesConfig
	Stripe      StripeConfig
	Sentry      SentryConfig
	RateLimit   RateLimitConfig
	CORS        CORSConfig
	Graceful    GracefulConfig
}

// AuthConfig selects the authenticator.
type AuthConfig struct {
	Mode     string `default:"jwt" usage:"Auth mode: jwt or dev"`
	Secret   string `usage:"HS256 signing secret for jwt mode" flag:"auth-secret"`
	DevRole  string `default:"admin" usage:"Role of the dev principal" flag:"auth-dev-role"`
	DevBarID string `usage:"Bar of the dev principal" flag:"auth-dev-bar-id"`
}

// RecipesConfig points at the recipe generation service.
type RecipesConfig struct {
	BaseURL    string        `usage:"Recipe service base URL" flag:"recipes-base-url"`
	Timeout    time.Duration `default:"15s" usage:"Per-request deadline for recipe generation" flag:"recipes-timeout"`
	MaxRetries int           `default:"2" usage:"Retries on 429/503 from the recipe service" flag:"recipes-max-retries"`
	HealthURL  string        `usage:"Optional recipe service health URL checked for readiness" flag:"recipes-health-url"`
}

// StripeConfig holds payment provider credentials.
type StripeConfig struct {
	SecretKey     string `usage:"Stripe API secret key" flag:"stripe-secret-key"`
	WebhookSecret string `usage:"Stripe webhook signing secret" flag:"stripe-webhook-secret"`
}

// SentryConfig controls error telemetry. An empty DSN disables reporting.
type SentryConfig struct {
	DSN        string  `usage:"Sentry DSN" flag:"sentry-dsn"`
	SampleRate float64 `default:"1" usage:"Sentry error sample rate in (0, 1]; leave the DSN empty to disable reporting" flag:"sentry-sample-rate"`
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// Production reports whether the service runs in production.
func (c *Config) Production() bool {
	return c.Env == "production"
}

// AuthenticatorConfig converts the auth section for auth.New.
func (c *Config) AuthenticatorConfig() auth.Config {
	return auth.Config{
		Mode:       auth.Mode(c.Auth.Mode),
		Production: c.Production(),
		Secret:     c.Auth.Secret,
		DevRole:    auth.Role(c.Auth.DevRole),
		DevBarID:   c.Auth.DevBarID,
	}
}

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	return loadConfig(aconfig.Config{
		EnvPrefix: "BARFLOW",
		Files:     []string{"config.yaml", "/etc/barflow/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
}

func loadConfig(ac aconfig.Config) (*Config, error) {
	var cfg Config
	if err := aconfig.LoaderFor(&cfg, ac).Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return errors.New("database URL is required: set BARFLOW_DATABASE_URL or DATABASE_URL")
	}
	if c.Recipes.BaseURL == "" {
		return errors.New("recipe service URL is required: set BARFLOW_RECIPES_BASE_URL")
	}
	if c.Stripe.SecretKey == "" || c.Stripe.WebhookSecret == "" {
		return errors.New("stripe secret key and webhook secret are required")
	}
	// Sentry reads a zero rate as 1, so zero cannot mean "off".
	if c.Sentry.SampleRate <= 0 || c.Sentry.SampleRate > 1 {
		return errors.Errorf("sentry sample rate %v out of range (0, 1]; leave the DSN empty to disable reporting", c.Sentry.SampleRate)
	}
	return nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's BARFLOW_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}
