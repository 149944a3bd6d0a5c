package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port        string `envconfig:"PORT" default:"8080"`
	Environment string `envconfig:"ENV" default:"development"`

	// Postgres connection string (Supabase pooler URL in production)
	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	// Identity provider settings
	SupabaseURL    string `envconfig:"SUPABASE_URL" required:"true"`
	JWTSecret      string `envconfig:"SUPABASE_JWT_SECRET" required:"true"`
	AuthCookieName string `envconfig:"AUTH_COOKIE_NAME" default:"sb-access-token"`

	// Billing settings. Not required at boot: the checkout and webhook
	// handlers guard on them per request and answer 500 when absent.
	StripeSecretKey     string `envconfig:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret string `envconfig:"STRIPE_WEBHOOK_SECRET"`
	StripePriceID       string `envconfig:"STRIPE_PRICE_ID"`
	SiteURL             string `envconfig:"SITE_URL"`
	CheckoutTimeoutSec  int    `envconfig:"CHECKOUT_TIMEOUT_SEC" default:"15"`

	// Analysis service settings
	AnalysisAPIURL string `envconfig:"ANALYSIS_API_URL" required:"true"`
	MaxUploadMB    int64  `envconfig:"MAX_UPLOAD_MB" default:"50"`

	// Document status refresh cadence
	StatusRefreshIntervalSec int `envconfig:"STATUS_REFRESH_INTERVAL_SEC" default:"30"`

	// S3-compatible archive storage. Optional: archival is skipped when unset.
	S3URL       string `envconfig:"S3_URL"`
	S3Bucket    string `envconfig:"S3_BUCKET"`
	S3Region    string `envconfig:"S3_REGION"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY"`
	S3SecretKey string `envconfig:"S3_SECRET_KEY"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// MissingCheckoutConfig lists the settings checkout initiation needs but
// which are unset. Checked before any provider call is made.
func (c *Config) MissingCheckoutConfig() []string {
	var missing []string
	if c.StripeSecretKey == "" {
		missing = append(missing, "STRIPE_SECRET_KEY")
	}
	if c.StripePriceID == "" {
		missing = append(missing, "STRIPE_PRICE_ID")
	}
	if c.SiteURL == "" {
		missing = append(missing, "SITE_URL")
	}
	return missing
}

// MissingWebhookConfig lists the settings webhook verification needs but
// which are unset.
func (c *Config) MissingWebhookConfig() []string {
	var missing []string
	if c.StripeWebhookSecret == "" {
		missing = append(missing, "STRIPE_WEBHOOK_SECRET")
	}
	return missing
}

// ArchiveEnabled reports whether uploads should be archived to object storage.
func (c *Config) ArchiveEnabled() bool {
	return c.S3URL != "" && c.S3Bucket != ""
}

func (c *Config) CheckoutTimeout() time.Duration {
	return time.Duration(c.CheckoutTimeoutSec) * time.Second
}

func (c *Config) StatusRefreshInterval() time.Duration {
	return time.Duration(c.StatusRefreshIntervalSec) * time.Second
}

func (c *Config) MaxUploadBytes() int64 {
	return c.MaxUploadMB << 20
}
