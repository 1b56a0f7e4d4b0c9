// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP server listens on (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// DatabaseURL is the Postgres DSN.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// JWTAccessSecret signs access tokens (HS256); must be at least 32 bytes.
	JWTAccessSecret string `mapstructure:"JWT_ACCESS_SECRET"`
	// JWTRefreshSecret signs refresh tokens (HS256); must be at least 32 bytes
	// and must differ from JWTAccessSecret so a leak of one cannot forge the other.
	JWTRefreshSecret string `mapstructure:"JWT_REFRESH_SECRET"`
	// JWTIssuer is the iss claim (e.g. "streamvault-auth").
	JWTIssuer string `mapstructure:"JWT_ISSUER"`
	// JWTAudience is the aud claim (e.g. "streamvault-api").
	JWTAudience string `mapstructure:"JWT_AUDIENCE"`
	// JWTAccessTTL is the access token lifetime (e.g. "15m").
	JWTAccessTTL string `mapstructure:"JWT_ACCESS_TTL"`
	// JWTRefreshTTL is the refresh token lifetime (e.g. "168h"). Must exceed JWTAccessTTL.
	JWTRefreshTTL string `mapstructure:"JWT_REFRESH_TTL"`
	// SessionTTL is the default session window (e.g. "168h").
	SessionTTL string `mapstructure:"SESSION_TTL"`
	// SessionRememberTTL is the session window when remember-me is set (e.g. "720h").
	SessionRememberTTL string `mapstructure:"SESSION_REMEMBER_TTL"`
	// SecretTokenTTL is the lifetime of password-reset and email-verification tokens (e.g. "24h").
	SecretTokenTTL string `mapstructure:"SECRET_TOKEN_TTL"`
	// BcryptCost is the bcrypt cost factor (4–31); default 12.
	BcryptCost int `mapstructure:"BCRYPT_COST"`
	// ProviderBaseURL is the external identity provider API base URL. Empty disables the provider.
	ProviderBaseURL string `mapstructure:"PROVIDER_BASE_URL"`
	// ProviderAPIKey authenticates calls to the external identity provider.
	ProviderAPIKey string `mapstructure:"PROVIDER_API_KEY"`
	// NotifyWebhookURL is the notification sender endpoint for reset/verification links. Empty logs instead.
	NotifyWebhookURL string `mapstructure:"NOTIFY_WEBHOOK_URL"`
	// LinkBaseURL is the public URL prefix for reset and verification links sent to users.
	LinkBaseURL string `mapstructure:"LINK_BASE_URL"`
	// OTLPEndpoint is the OTLP trace collector endpoint (e.g. http://localhost:4317). Empty disables export.
	OTLPEndpoint string `mapstructure:"OTLP_ENDPOINT"`
	// Env is the application environment (e.g. "development", "production").
	// Controls the Secure flag on the access-token cookie.
	Env string `mapstructure:"APP_ENV"`
}

const minSecretLen = 32

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("JWT_ISSUER", "streamvault-auth")
	v.SetDefault("JWT_AUDIENCE", "streamvault-api")
	v.SetDefault("JWT_ACCESS_TTL", "15m")
	v.SetDefault("JWT_REFRESH_TTL", "168h") // 7d
	v.SetDefault("SESSION_TTL", "168h")          // 7d
	v.SetDefault("SESSION_REMEMBER_TTL", "720h") // 30d
	v.SetDefault("SECRET_TOKEN_TTL", "24h")
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("PROVIDER_BASE_URL", "")
	v.SetDefault("PROVIDER_API_KEY", "")
	v.SetDefault("NOTIFY_WEBHOOK_URL", "")
	v.SetDefault("LINK_BASE_URL", "http://localhost:3000")
	v.SetDefault("OTLP_ENDPOINT", "")
	v.SetDefault("APP_ENV", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}
	if len(cfg.JWTAccessSecret) < minSecretLen {
		return nil, errors.New("config: JWT_ACCESS_SECRET must be at least 32 bytes")
	}
	if len(cfg.JWTRefreshSecret) < minSecretLen {
		return nil, errors.New("config: JWT_REFRESH_SECRET must be at least 32 bytes")
	}
	if cfg.JWTAccessSecret == cfg.JWTRefreshSecret {
		return nil, errors.New("config: JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must differ")
	}
	if cfg.RefreshTTL() <= cfg.AccessTTL() {
		return nil, errors.New("config: JWT_REFRESH_TTL must exceed JWT_ACCESS_TTL")
	}

	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = 12
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return nil, errors.New("config: BCRYPT_COST must be between 4 and 31")
	}

	return &cfg, nil
}

// AccessTTL parses JWTAccessTTL as a time.Duration. Returns 15m if unset or invalid.
func (c *Config) AccessTTL() time.Duration {
	return parseTTL(c.JWTAccessTTL, 15*time.Minute)
}

// RefreshTTL parses JWTRefreshTTL as a time.Duration. Returns 168h if unset or invalid.
func (c *Config) RefreshTTL() time.Duration {
	return parseTTL(c.JWTRefreshTTL, 168*time.Hour)
}

// SessionWindow parses SessionTTL as a time.Duration. Returns 168h if unset or invalid.
func (c *Config) SessionWindow() time.Duration {
	return parseTTL(c.SessionTTL, 168*time.Hour)
}

// SessionRememberWindow parses SessionRememberTTL as a time.Duration. Returns 720h if unset or invalid.
func (c *Config) SessionRememberWindow() time.Duration {
	return parseTTL(c.SessionRememberTTL, 720*time.Hour)
}

// SecretTokenLifetime parses SecretTokenTTL as a time.Duration. Returns 24h if unset or invalid.
func (c *Config) SecretTokenLifetime() time.Duration {
	return parseTTL(c.SecretTokenTTL, 24*time.Hour)
}

func parseTTL(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
