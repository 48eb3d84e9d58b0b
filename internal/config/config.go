// Package config loads the tracker configuration from YAML, .env files and
// environment variables. The loaded Config is treated as immutable and passed
// explicitly to every component that needs it.
package config

import (
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/ignite/email-tracker/internal/domain"
)

// EnvPrefix is the prefix of every environment override handled by envconfig.
const EnvPrefix = "EMAIL_TRACKER"

// Config holds all configuration for the tracker.
type Config struct {
	Server          ServerConfig        `yaml:"server"`
	Database        DatabaseConfig      `yaml:"database"`
	Redis           RedisConfig         `yaml:"redis"`
	AWS             AWSConfig           `yaml:"aws"`
	DefaultProvider string              `yaml:"default_provider" split_words:"true" validate:"required"`
	Providers       ProvidersConfig     `yaml:"providers"`
	Tracking        TrackingConfig      `yaml:"tracking"`
	Validation      ValidationConfig    `yaml:"validation"`
	Routes          RoutesConfig        `yaml:"routes"`
	LegacyRoutes    LegacyRoutesConfig  `yaml:"legacy_routes" split_words:"true"`
	Unsubscribe     UnsubscribeConfig   `yaml:"unsubscribe"`
	Notifications   NotificationsConfig `yaml:"notifications"`
	Archive         ArchiveConfig       `yaml:"archive"`
	RateLimit       RateLimitConfig     `yaml:"rate_limit" split_words:"true"`
	Dedupe          DedupeConfig        `yaml:"dedupe"`
	Debug           bool                `yaml:"debug"`
	LogPrefix       string              `yaml:"log_prefix" split_words:"true"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         int           `yaml:"port" validate:"gt=0,lt=65536"`
	BaseURL      string        `yaml:"base_url" split_words:"true" validate:"required,url"`
	ReadTimeout  time.Duration `yaml:"read_timeout" split_words:"true"`
	WriteTimeout time.Duration `yaml:"write_timeout" split_words:"true"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" split_words:"true"`
	MaxBodyBytes int64         `yaml:"max_body_bytes" split_words:"true"`
}

// DatabaseConfig holds Postgres settings.
type DatabaseConfig struct {
	URL          string `yaml:"url"`
	MaxOpenConns int    `yaml:"max_open_conns" split_words:"true"`
	MaxIdleConns int    `yaml:"max_idle_conns" split_words:"true"`
	TablePrefix  string `yaml:"table_prefix" split_words:"true"`
}

// RedisConfig holds the optional Redis connection.
type RedisConfig struct {
	URL string `yaml:"url"`
}

// AWSConfig holds shared AWS credentials. Empty keys fall back to the
// default credential chain.
type AWSConfig struct {
	Region    string `yaml:"region"`
	AccessKey string `yaml:"access_key" split_words:"true"`
	SecretKey string `yaml:"secret_key" split_words:"true"`
}

// ProviderToggle is shared by every provider section.
type ProviderToggle struct {
	Enabled bool `yaml:"enabled"`
	// RequireSignature rejects webhooks when no secret is configured instead
	// of accepting them unverified.
	RequireSignature bool `yaml:"require_signature" split_words:"true"`
}

// ProvidersConfig holds per-provider settings.
type ProvidersConfig struct {
	SES      SESConfig      `yaml:"ses"`
	Resend   ResendConfig   `yaml:"resend"`
	Postal   PostalConfig   `yaml:"postal"`
	Mailgun  MailgunConfig  `yaml:"mailgun"`
	SendGrid SendGridConfig `yaml:"sendgrid"`
	Postmark PostmarkConfig `yaml:"postmark"`
	SMTP     SMTPConfig     `yaml:"smtp"`
}

// SESConfig configures Amazon SES and its SNS notifications.
type SESConfig struct {
	ProviderToggle   `yaml:",inline"`
	SNSValidator     bool   `yaml:"sns_validator" split_words:"true"`
	ConfigurationSet string `yaml:"configuration_set" split_words:"true"`
}

// ResendConfig configures Resend.
type ResendConfig struct {
	ProviderToggle `yaml:",inline"`
	WebhookSecret  string `yaml:"webhook_secret" split_words:"true"`
	APIKey         string `yaml:"api_key" split_words:"true"`
	BaseURL        string `yaml:"base_url" split_words:"true"`
}

// PostalConfig configures Postal.
type PostalConfig struct {
	ProviderToggle `yaml:",inline"`
	WebhookKey     string `yaml:"webhook_key" split_words:"true"`
	ServerURL      string `yaml:"server_url" split_words:"true"`
	APIKey         string `yaml:"api_key" split_words:"true"`
}

// MailgunConfig configures Mailgun.
type MailgunConfig struct {
	ProviderToggle    `yaml:",inline"`
	WebhookSigningKey string `yaml:"webhook_signing_key" split_words:"true"`
	Domain            string `yaml:"domain"`
	APIKey            string `yaml:"api_key" split_words:"true"`
	BaseURL           string `yaml:"base_url" split_words:"true"`
}

// SendGridConfig configures SendGrid.
type SendGridConfig struct {
	ProviderToggle  `yaml:",inline"`
	VerificationKey string `yaml:"verification_key" split_words:"true"`
	APIKey          string `yaml:"api_key" split_words:"true"`
	BaseURL         string `yaml:"base_url" split_words:"true"`
}

// PostmarkConfig configures Postmark.
type PostmarkConfig struct {
	ProviderToggle `yaml:",inline"`
	WebhookToken   string `yaml:"webhook_token" split_words:"true"`
	ServerToken    string `yaml:"server_token" split_words:"true"`
	BaseURL        string `yaml:"base_url" split_words:"true"`
}

// SMTPConfig configures the generic SMTP transport.
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// TrackingConfig holds the default tracking flags applied to each send.
type TrackingConfig struct {
	domain.TrackingOptions `yaml:",inline"`
	StoreMetadata          bool `yaml:"store_metadata" split_words:"true"`
}

// ValidationConfig controls send-time suppression.
type ValidationConfig struct {
	SkipBounced    bool `yaml:"skip_bounced" split_words:"true"`
	SkipComplained bool `yaml:"skip_complained" split_words:"true"`
}

// RoutesConfig controls route registration.
type RoutesConfig struct {
	Enabled bool   `yaml:"enabled"`
	Prefix  string `yaml:"prefix"`
}

// LegacyRoutesConfig enables the historical /ses/* routes.
type LegacyRoutesConfig struct {
	Enabled bool `yaml:"enabled"`
}

// UnsubscribeConfig controls List-Unsubscribe headers and the endpoint.
type UnsubscribeConfig struct {
	Enabled                  bool   `yaml:"enabled"`
	Mailto                   string `yaml:"mailto" validate:"omitempty,email"`
	SignatureExpirationHours int    `yaml:"signature_expiration_hours" split_words:"true" validate:"gte=0"`
	RedirectURL              string `yaml:"redirect_url" split_words:"true" validate:"omitempty,url"`
	SigningKey               string `yaml:"signing_key" split_words:"true" validate:"required_if=Enabled true"`
}

// SignatureExpiration returns the lifetime of a signed unsubscribe URL, zero
// meaning it never expires.
func (c UnsubscribeConfig) SignatureExpiration() time.Duration {
	return time.Duration(c.SignatureExpirationHours) * time.Hour
}

// NotificationsConfig selects external notification sinks.
type NotificationsConfig struct {
	SQSQueueURL  string `yaml:"sqs_queue_url" envconfig:"SQS_QUEUE_URL"`
	RedisChannel string `yaml:"redis_channel" split_words:"true"`
}

// ArchiveConfig enables archiving verified webhook bodies to S3.
type ArchiveConfig struct {
	S3Bucket string `yaml:"s3_bucket" envconfig:"S3_BUCKET"`
	S3Prefix string `yaml:"s3_prefix" envconfig:"S3_PREFIX"`
}

// RateLimitConfig holds limiter rate strings such as "600-M".
type RateLimitConfig struct {
	Tracking string `yaml:"tracking"`
}

// DedupeConfig enables the Redis replay guard for bounce and complaint webhooks.
type DedupeConfig struct {
	Enabled bool          `yaml:"enabled"`
	TTL     time.Duration `yaml:"ttl"`
}

// Default returns a Config populated with every default value.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         8080,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  120 * time.Second,
			MaxBodyBytes: 5 << 20,
		},
		Database: DatabaseConfig{
			MaxOpenConns: 20,
			MaxIdleConns: 5,
		},
		AWS:             AWSConfig{Region: "us-east-1"},
		DefaultProvider: string(domain.ProviderSES),
		Providers: ProvidersConfig{
			SES: SESConfig{
				ProviderToggle: ProviderToggle{Enabled: true},
				SNSValidator:   true,
			},
			Mailgun:  MailgunConfig{BaseURL: "https://api.mailgun.net/v3"},
			SendGrid: SendGridConfig{BaseURL: "https://api.sendgrid.com/v3"},
			Postmark: PostmarkConfig{BaseURL: "https://api.postmarkapp.com"},
			Resend:   ResendConfig{BaseURL: "https://api.resend.com"},
			SMTP:     SMTPConfig{Port: 587},
		},
		Tracking: TrackingConfig{
			TrackingOptions: domain.AllTracking(),
			StoreMetadata:   true,
		},
		Routes:    RoutesConfig{Enabled: true, Prefix: "email-tracker"},
		Dedupe:    DedupeConfig{TTL: 72 * time.Hour},
		LogPrefix: "EMAIL-TRACKER",
	}
}

// Load reads and parses the configuration file on top of the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.Routes.Prefix = strings.Trim(cfg.Routes.Prefix, "/")
	return cfg, nil
}

// LoadFromEnv loads configuration with environment variable overrides.
// It loads a .env file (if present) first, then applies EMAIL_TRACKER_*
// variables and the conventional provider secret names.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("env overrides: %w", err)
	}

	overrides := []struct {
		env string
		dst *string
	}{
		{"DATABASE_URL", &cfg.Database.URL},
		{"REDIS_URL", &cfg.Redis.URL},
		{"APP_URL", &cfg.Server.BaseURL},
		{"AWS_REGION", &cfg.AWS.Region},
		{"RESEND_WEBHOOK_SECRET", &cfg.Providers.Resend.WebhookSecret},
		{"RESEND_API_KEY", &cfg.Providers.Resend.APIKey},
		{"POSTAL_WEBHOOK_KEY", &cfg.Providers.Postal.WebhookKey},
		{"POSTAL_URL", &cfg.Providers.Postal.ServerURL},
		{"POSTAL_API_KEY", &cfg.Providers.Postal.APIKey},
		{"MAILGUN_WEBHOOK_SIGNING_KEY", &cfg.Providers.Mailgun.WebhookSigningKey},
		{"MAILGUN_API_KEY", &cfg.Providers.Mailgun.APIKey},
		{"SENDGRID_VERIFICATION_KEY", &cfg.Providers.SendGrid.VerificationKey},
		{"SENDGRID_API_KEY", &cfg.Providers.SendGrid.APIKey},
		{"POSTMARK_WEBHOOK_TOKEN", &cfg.Providers.Postmark.WebhookToken},
		{"POSTMARK_SERVER_TOKEN", &cfg.Providers.Postmark.ServerToken},
	}
	for _, o := range overrides {
		if v := os.Getenv(o.env); v != "" {
			*o.dst = v
		}
	}
	if v := os.Getenv("PORT"); v != "" {
		var port int
		if _, err := fmt.Sscanf(v, "%d", &port); err == nil {
			cfg.Server.Port = port
		}
	}
	cfg.Routes.Prefix = strings.Trim(cfg.Routes.Prefix, "/")
	return cfg, nil
}

var validate = validator.New()

// Validate checks the configuration for values the tracker can not run without.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if !c.ProviderEnabled(c.DefaultProvider) {
		return fmt.Errorf("invalid config: default provider %q is not enabled", c.DefaultProvider)
	}
	if key := c.Providers.SendGrid.VerificationKey; key != "" {
		if _, err := ParseECDSAPublicKey(key); err != nil {
			return fmt.Errorf("invalid config: sendgrid verification_key: %w", err)
		}
	}
	return nil
}

// ProviderEnabled reports whether a built-in provider is enabled.
func (c *Config) ProviderEnabled(name string) bool {
	switch domain.Provider(name) {
	case domain.ProviderSES:
		return c.Providers.SES.Enabled
	case domain.ProviderResend:
		return c.Providers.Resend.Enabled
	case domain.ProviderPostal:
		return c.Providers.Postal.Enabled
	case domain.ProviderMailgun:
		return c.Providers.Mailgun.Enabled
	case domain.ProviderSendGrid:
		return c.Providers.SendGrid.Enabled
	case domain.ProviderPostmark:
		return c.Providers.Postmark.Enabled
	}
	return false
}

// RoutePath joins the route prefix with p.
func (c *Config) RoutePath(p string) string {
	p = strings.TrimPrefix(p, "/")
	if c.Routes.Prefix == "" {
		return "/" + p
	}
	return "/" + c.Routes.Prefix + "/" + p
}

// ErrNoPEMBlock is returned when a verification key contains no PEM data.
var ErrNoPEMBlock = errors.New("no PEM block found")

// ParseECDSAPublicKey parses a PEM (or bare base64 DER) public key as SendGrid
// publishes it.
func ParseECDSAPublicKey(key string) (any, error) {
	key = strings.TrimSpace(key)
	if !strings.HasPrefix(key, "-----BEGIN") {
		key = "-----BEGIN PUBLIC KEY-----\n" + key + "\n-----END PUBLIC KEY-----"
	}
	block, _ := pem.Decode([]byte(key))
	if block == nil {
		return nil, ErrNoPEMBlock
	}
	return x509.ParsePKIXPublicKey(block.Bytes)
}
