// Package config defines the configuration for the GreenQuote services.
// Configuration is loaded once at process start and is immutable thereafter.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File -> AWS SSM Parameter Store (Lowest)
//
// Any missing required value or invalid format fails startup.
package config

import (
	"time"

	"github.com/shopspring/decimal"

	"greenquote/internal/types"
)

// SecretString is an alias for types.SecretString so configuration secrets
// are redacted when printed.
type SecretString = types.SecretString

// Config is the top-level configuration for the API process. Sub-components
// receive only the subsets they need.
type Config struct {
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"OTEL_SERVICE_NAME" default:"greenquote-api"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`
	IsTestMode  bool   `envconfig:"IS_TEST_MODE" default:"false"`

	Server        ServerConfig
	Database      DatabaseConfig
	AWS           AWSConfig
	Billing       BillingConfig
	Email         EmailConfig
	Security      SecurityConfig
	Observability ObservabilityConfig
	Webhook       WebhookConfig
	Pricing       PricingConfig

	// Build metadata comes from ldflags, not the environment.
	Build BuildInfo
}

// ServerConfig holds HTTP server and public URL configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8080"`
	// Public URLs, no trailing slash.
	APIExternalURL string `envconfig:"API_EXTERNAL_URL" validate:"required,url"`
	DashboardURL   string `envconfig:"DASHBOARD_URL" validate:"required,url"`
}

// DatabaseConfig holds database connection and pool tuning parameters.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL" validate:"required,url"`

	MaxConns          int           `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns          int           `envconfig:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	AcquireTimeout    time.Duration `envconfig:"DB_ACQUIRE_TIMEOUT" default:"2s"`
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"`
}

// AWSConfig holds AWS resource identifiers.
type AWSConfig struct {
	Region string `envconfig:"AWS_REGION" default:"us-east-1"`

	WebhookQueueURL string `envconfig:"SQS_WEBHOOK_FORWARDING" validate:"required,url"`
	EmailQueueURL   string `envconfig:"SQS_EMAIL_FORWARDING" validate:"required,url"`
	ArchiveBucket   string `envconfig:"ARCHIVE_BUCKET"`

	// LocalStack support; empty in production.
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL"`
}

// BillingConfig holds Stripe credentials and the price for each plan.
type BillingConfig struct {
	StripeSecretKey      SecretString `envconfig:"STRIPE_SECRET_KEY" validate:"required"`
	StripeWebhookSecret  SecretString `envconfig:"STRIPE_WEBHOOK_SECRET" validate:"required"`
	StripePublishableKey string       `envconfig:"STRIPE_PUBLISHABLE_KEY" validate:"required"`

	PriceStarter      string `envconfig:"STRIPE_PRICE_STARTER" validate:"required"`
	PriceProfessional string `envconfig:"STRIPE_PRICE_PROFESSIONAL" validate:"required"`
	PriceEnterprise   string `envconfig:"STRIPE_PRICE_ENTERPRISE"`
}

// PriceIDs maps plan tiers to Stripe price IDs, omitting unsold plans.
func (b BillingConfig) PriceIDs() map[types.PlanTier]string {
	ids := map[types.PlanTier]string{
		types.PlanStarter:      b.PriceStarter,
		types.PlanProfessional: b.PriceProfessional,
	}
	if b.PriceEnterprise != "" {
		ids[types.PlanEnterprise] = b.PriceEnterprise
	}
	return ids
}

// WebhookConfig holds settings for outbound webhook forwarding.
type WebhookConfig struct {
	UserAgent      string        `envconfig:"WEBHOOK_USER_AGENT" default:"GreenQuote-Webhook/1.0"`
	DefaultTimeout time.Duration `envconfig:"WEBHOOK_TIMEOUT" default:"10s"`
	MaxRedirects   int           `envconfig:"WEBHOOK_MAX_REDIRECTS" default:"3"`
}

// EmailConfig holds email provider credentials and sender identity.
type EmailConfig struct {
	Provider       string       `envconfig:"EMAIL_PROVIDER" default:"ses" validate:"oneof=ses sendgrid"`
	SendGridAPIKey SecretString `envconfig:"SENDGRID_API_KEY" validate:"required_if=Provider sendgrid"`
	FromAddress    string       `envconfig:"EMAIL_FROM_ADDRESS" default:"quotes@greenquote.app" validate:"email"`
	FromName       string       `envconfig:"EMAIL_FROM_NAME" default:"GreenQuote"`
	// ConfigurationSet is the SES configuration set used for delivery events.
	ConfigurationSet string `envconfig:"SES_CONFIGURATION_SET"`
}

// SecurityConfig holds CORS and rate limiting settings.
type SecurityConfig struct {
	CorsAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
	// PublicQuoteRateLimit is the number of public quote requests allowed per
	// client IP per minute.
	PublicQuoteRateLimit int `envconfig:"PUBLIC_QUOTE_RATE_LIMIT" default:"30" validate:"gte=1"`
}

// ObservabilityConfig holds telemetry settings.
type ObservabilityConfig struct {
	MetricNamespace string `envconfig:"METRIC_NAMESPACE" default:"GreenQuote"`
	EnableMetrics   bool   `envconfig:"ENABLE_METRICS" default:"true"`
}

// PricingConfig overrides provisioning defaults for new accounts.
type PricingConfig struct {
	DefaultMinPricePerVisit decimal.Decimal `envconfig:"PRICING_DEFAULT_MIN_PRICE" default:"50"`
	TrialDays               int             `envconfig:"TRIAL_DAYS" default:"14" validate:"gte=0,lte=90"`
}

// BuildInfo holds build-time metadata injected via ldflags.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// ConfigErrorType categorizes configuration loading failures.
type ConfigErrorType string

const (
	ErrMissingEnv    ConfigErrorType = "MISSING_ENV"
	ErrSSMResolution ConfigErrorType = "SSM_FAILURE"
	ErrValidation    ConfigErrorType = "VALIDATION_FAILED"
	ErrParsing       ConfigErrorType = "PARSING_FAILED"
)
