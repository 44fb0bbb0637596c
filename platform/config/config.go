// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
	GetHookRateLimit() float64
	GetHookRateBurst() int
}

// TelephonyConfig provides settings for the telephony provider client.
type TelephonyConfig interface {
	GetTwilioAccountSID() string
	GetTwilioAuthToken() string
	GetTwilioBaseURL() string
	GetTwilioHTTPTimeout() time.Duration
}

// ReconcilerConfig provides settings for the fallback reconciler.
type ReconcilerConfig interface {
	GetDialTimeout() time.Duration
	GetStaleMargin() time.Duration
	GetReconcileBatchSize() int
	GetReconcileEntryTimeout() time.Duration
	GetProviderRateLimit() float64
	GetProviderRateBurst() int
}

// SchedulerConfig provides settings for the asynq dispatcher and worker.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
	GetReconcileInterval() time.Duration
}

// InternalAuthConfig provides the shared secret for internal endpoints.
type InternalAuthConfig interface {
	GetInternalAuthToken() string
}

// UsageConfig provides settings for the plan-usage counter store.
type UsageConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                   string
	HTTPAddr              string
	DatabaseURL           string
	CORSAllowAll          bool
	CORSOrigins           []string
	CORSAllowCreds        bool
	HookRateLimit         float64
	HookRateBurst         int
	TwilioAccountSID      string
	TwilioAuthToken       string
	TwilioBaseURL         string
	TwilioHTTPTimeout     time.Duration
	DialTimeout           time.Duration
	StaleMargin           time.Duration
	ReconcileInterval     time.Duration
	ReconcileBatchSize    int
	ReconcileEntryTimeout time.Duration
	ProviderRateLimit     float64
	ProviderRateBurst     int
	InternalAuthToken     string
	RedisURL              string
	RedisTLSInsecure      bool
	AsynqQueueName        string
	AsynqConcurrency      int
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string       { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool     { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string  { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool   { return c.CORSAllowCreds }
func (c *Config) GetHookRateLimit() float64 { return c.HookRateLimit }
func (c *Config) GetHookRateBurst() int     { return c.HookRateBurst }

// TelephonyConfig implementation
func (c *Config) GetTwilioAccountSID() string           { return c.TwilioAccountSID }
func (c *Config) GetTwilioAuthToken() string            { return c.TwilioAuthToken }
func (c *Config) GetTwilioBaseURL() string              { return c.TwilioBaseURL }
func (c *Config) GetTwilioHTTPTimeout() time.Duration   { return c.TwilioHTTPTimeout }

// ReconcilerConfig implementation
func (c *Config) GetDialTimeout() time.Duration           { return c.DialTimeout }
func (c *Config) GetStaleMargin() time.Duration           { return c.StaleMargin }
func (c *Config) GetReconcileBatchSize() int              { return c.ReconcileBatchSize }
func (c *Config) GetReconcileEntryTimeout() time.Duration { return c.ReconcileEntryTimeout }
func (c *Config) GetProviderRateLimit() float64           { return c.ProviderRateLimit }
func (c *Config) GetProviderRateBurst() int               { return c.ProviderRateBurst }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string                 { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool           { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string           { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int            { return c.AsynqConcurrency }
func (c *Config) GetReconcileInterval() time.Duration { return c.ReconcileInterval }

// InternalAuthConfig implementation
func (c *Config) GetInternalAuthToken() string { return c.InternalAuthToken }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	cfg := &Config{
		Env:               getEnv("APP_ENV", "development"),
		HTTPAddr:          getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:       getEnv("DATABASE_URL", ""),
		CORSAllowAll:      corsAllowAll,
		CORSOrigins:       corsOrigins,
		CORSAllowCreds:    strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),
		TwilioAccountSID:  getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:   getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioBaseURL:     getEnv("TWILIO_BASE_URL", "https://api.twilio.com"),
		InternalAuthToken: getEnv("INTERNAL_AUTH_TOKEN", ""),
		RedisURL:          getEnv("REDIS_URL", ""),
		RedisTLSInsecure:  strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:    getEnv("ASYNQ_QUEUE", "default"),
	}

	// Malformed numeric settings fail the boot instead of silently
	// degrading to zero values.
	var err error
	if cfg.TwilioHTTPTimeout, err = envDuration("TWILIO_HTTP_TIMEOUT", "10s"); err != nil {
		return nil, err
	}
	if cfg.DialTimeout, err = envDuration("DIAL_TIMEOUT", "30s"); err != nil {
		return nil, err
	}
	if cfg.StaleMargin, err = envDuration("STALE_MARGIN", "5s"); err != nil {
		return nil, err
	}
	if cfg.ReconcileInterval, err = envDuration("RECONCILE_INTERVAL", "15s"); err != nil {
		return nil, err
	}
	if cfg.ReconcileEntryTimeout, err = envDuration("RECONCILE_ENTRY_TIMEOUT", "10s"); err != nil {
		return nil, err
	}
	if cfg.ReconcileBatchSize, err = envInt("RECONCILE_BATCH_SIZE", "50"); err != nil {
		return nil, err
	}
	if cfg.ProviderRateLimit, err = envFloat("PROVIDER_RATE_LIMIT", "10"); err != nil {
		return nil, err
	}
	if cfg.ProviderRateBurst, err = envInt("PROVIDER_RATE_BURST", "5"); err != nil {
		return nil, err
	}
	if cfg.AsynqConcurrency, err = envInt("ASYNQ_CONCURRENCY", "10"); err != nil {
		return nil, err
	}
	if cfg.HookRateLimit, err = envFloat("WEBHOOK_RATE_LIMIT", "30"); err != nil {
		return nil, err
	}
	if cfg.HookRateBurst, err = envInt("WEBHOOK_RATE_BURST", "60"); err != nil {
		return nil, err
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.TwilioAccountSID == "" || cfg.TwilioAuthToken == "" {
		return nil, fmt.Errorf("TWILIO_ACCOUNT_SID and TWILIO_AUTH_TOKEN are required")
	}
	if cfg.InternalAuthToken == "" {
		return nil, fmt.Errorf("INTERNAL_AUTH_TOKEN is required")
	}
	if cfg.DialTimeout <= 0 {
		return nil, fmt.Errorf("DIAL_TIMEOUT must be a positive duration")
	}
	if cfg.ReconcileInterval <= 0 {
		return nil, fmt.Errorf("RECONCILE_INTERVAL must be a positive duration")
	}
	if cfg.ReconcileBatchSize <= 0 {
		return nil, fmt.Errorf("RECONCILE_BATCH_SIZE must be positive")
	}
	if cfg.CORSAllowAll && cfg.CORSAllowCreds {
		return nil, fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func envDuration(key, fallback string) (time.Duration, error) {
	value := getEnv(key, fallback)
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q", key, value)
	}
	return d, nil
}

func envInt(key, fallback string) (int, error) {
	value := getEnv(key, fallback)
	result, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q", key, value)
	}
	return result, nil
}

func envFloat(key, fallback string) (float64, error) {
	value := getEnv(key, fallback)
	result, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid number %q", key, value)
	}
	return result, nil
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}
