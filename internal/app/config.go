package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Config holds the complete application configuration, loadable from
// environment variables (SHOP_ prefix), flags, or YAML config files.
type Config struct {
	Addr        string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL string `usage:"PostgreSQL connection URL (SHOP_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	Auth        AuthConfig
	Payment     PaymentConfig
	Notify      NotifyConfig
	Session     SessionConfig
	RateLimit   RateLimitConfig
	CORS        CORSConfig
	Graceful    GracefulConfig
}

// AuthConfig configures bearer token verification.
type AuthConfig struct {
	JWTSecret string `usage:"HS256 secret shared with the identity provider" flag:"jwt-secret"`
}

// PaymentConfig selects and configures the payment gateway.
type PaymentConfig struct {
	Provider        string        `default:"sandbox" usage:"Payment provider: sandbox or stripe"`
	StripeSecretKey string        `usage:"Stripe secret API key" flag:"stripe-secret-key"`
	StripeBaseURL   string        `usage:"Override the Stripe API URL (stripe-mock)" flag:"stripe-base-url"`
	Currency        string        `default:"usd" usage:"ISO currency payments are reserved in"`
	Timeout         time.Duration `default:"10s" usage:"Timeout of a single gateway call"`
}

// NotifyConfig configures order confirmation delivery. Without an AMQP URL
// confirmations are only logged.
type NotifyConfig struct {
	AMQPURL    string `usage:"RabbitMQ URL for confirmation emails" flag:"amqp-url"`
	Exchange   string `default:"shop.notifications" usage:"Exchange confirmation emails are published to"`
	RoutingKey string `default:"email.order_confirmed" usage:"Routing key of confirmation emails"`
	Queue      string `default:"email.order_confirmed" usage:"Queue bound for the mail worker"`
	From       string `default:"orders@shopelec.example" usage:"Sender address of confirmation emails"`
}

// SessionConfig controls checkout sessions.
type SessionConfig struct {
	TTL           time.Duration `default:"720h" usage:"Lifetime of a checkout session"`
	SecureCookies bool          `default:"false" usage:"Mark session cookies Secure" flag:"secure-cookies"`
	SweepInterval time.Duration `default:"1h" usage:"How often stale sessions are deleted"`
}

// RateLimitConfig controls the per-client limiter on checkout endpoints.
type RateLimitConfig struct {
	Max    int           `default:"30" usage:"Max checkout requests per window"`
	Window time.Duration `default:"1m" usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"true" usage:"Allow credentials (session cookie, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "SHOP",
		Files:     []string{"config.yaml", "/etc/shop/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch {
	case c.DatabaseURL == "":
		return errors.New("database URL is required: set SHOP_DATABASE_URL or DATABASE_URL")
	case c.Auth.JWTSecret == "":
		return errors.New("JWT secret is required: set SHOP_AUTH_JWT_SECRET")
	case c.Session.SweepInterval <= 0:
		return errors.Errorf("session sweep interval must be positive, got %s", c.Session.SweepInterval)
	case c.RateLimit.Window <= 0:
		return errors.Errorf("rate limit window must be positive, got %s", c.RateLimit.Window)
	case c.RateLimit.Max <= 0:
		return errors.Errorf("rate limit max must be positive, got %d", c.RateLimit.Max)
	}
	switch c.Payment.Provider {
	case "sandbox":
	case "stripe":
		if c.Payment.StripeSecretKey == "" {
			return errors.New("stripe provider requires SHOP_PAYMENT_STRIPE_SECRET_KEY")
		}
	default:
		return errors.Errorf("unknown payment provider %q", c.Payment.Provider)
	}
	return nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's SHOP_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
