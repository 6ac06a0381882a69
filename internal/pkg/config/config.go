package config

import (
	"fmt"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/meetloom/billing-sync/internal/pkg/env"
)

// Config holds everything the sync service needs to talk to its
// collaborators. It is loaded once at startup and validated before the
// HTTP listener is started; an invalid configuration is fatal rather than
// a silent no-op.
type Config struct {
	AppHost string
	AppPort string

	AdminAPIURL   string `validate:"required,url"`
	AdminAPIToken string `validate:"required"`
	AdminTimeout  time.Duration

	BreakerThreshold int           `validate:"min=1"`
	BreakerCooldown  time.Duration `validate:"min=1s"`

	StripeWebhookSecret string `validate:"required"`

	CacheHost string
	CachePort string

	SMTPHost   string
	SMTPPort   string
	SMTPSender string
}

const (
	defaultAdminTimeout     = 15 * time.Second
	defaultBreakerThreshold = 5
	defaultBreakerCooldown  = 60 * time.Second
)

// Load reads the service configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{
		AppHost:             env.GetEnv("APP_HOST", "localhost"),
		AppPort:             env.GetEnv("APP_PORT", "4100"),
		AdminAPIURL:         env.GetEnv("ADMIN_API_URL", "http://localhost:8000"),
		AdminAPIToken:       env.GetEnv("ADMIN_API_TOKEN", ""),
		AdminTimeout:        durationEnv("ADMIN_API_TIMEOUT", defaultAdminTimeout),
		BreakerThreshold:    intEnv("BREAKER_FAILURE_THRESHOLD", defaultBreakerThreshold),
		BreakerCooldown:     durationEnv("BREAKER_COOLDOWN", defaultBreakerCooldown),
		StripeWebhookSecret: env.GetEnv("STRIPE_WEBHOOK_SECRET", ""),
		CacheHost:           env.GetEnv("CACHE_HOST", "localhost"),
		CachePort:           env.GetEnv("CACHE_PORT", "6379"),
		SMTPHost:            env.GetEnv("SMTP_HOST", ""),
		SMTPPort:            env.GetEnv("SMTP_PORT", "25"),
		SMTPSender:          env.GetEnv("SMTP_SENDER", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the required fields. Returned errors should be treated as
// fatal: serving webhook traffic without a signing secret or admin token
// would acknowledge events without applying them.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid service configuration: %w", err)
	}
	return nil
}

// CacheAddr returns the host:port of the ephemeral store backend.
func (c *Config) CacheAddr() string {
	return c.CacheHost + ":" + c.CachePort
}

func intEnv(key string, def int) int {
	raw := env.GetEnv(key, "")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func durationEnv(key string, def time.Duration) time.Duration {
	raw := env.GetEnv(key, "")
	if raw == "" {
		return def
	}
	// Accept both Go duration strings ("15s") and bare seconds ("15").
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	if n, err := strconv.Atoi(raw); err == nil {
		return time.Duration(n) * time.Second
	}
	return def
}
