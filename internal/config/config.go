// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// MinJWTSecretBytes is the shortest accepted HS256 signing secret.
const MinJWTSecretBytes = 32

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP server listens on (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// DatabaseURL is the Postgres DSN. Empty outside production selects the in-memory store.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// JWTSecret is the HS256 signing secret for access, refresh and step tokens. Required.
	JWTSecret string `mapstructure:"JWT_SECRET"`
	// JWTIssuer is the iss claim (e.g. "laundry-auth").
	JWTIssuer string `mapstructure:"JWT_ISSUER"`
	// JWTAudience is the aud claim (e.g. "laundry-api").
	JWTAudience string `mapstructure:"JWT_AUDIENCE"`
	// JWTAccessTTL is the access token lifetime (e.g. "15m").
	JWTAccessTTL string `mapstructure:"JWT_ACCESS_TTL"`
	// JWTRefreshTTL is the refresh token and session lifetime (e.g. "168h").
	JWTRefreshTTL string `mapstructure:"JWT_REFRESH_TTL"`
	// StepTokenTTL is the lifetime of the registration step token (temp_jwt).
	StepTokenTTL string `mapstructure:"STEP_TOKEN_TTL"`
	// VerificationCodeTTL is how long an emailed code stays valid.
	VerificationCodeTTL string `mapstructure:"VERIFICATION_CODE_TTL"`
	// VerificationResendCooldown is the minimum age of the active code before a resend.
	VerificationResendCooldown string `mapstructure:"VERIFICATION_RESEND_COOLDOWN"`
	// BcryptCost is the bcrypt cost factor (4–31); default 12.
	BcryptCost int `mapstructure:"BCRYPT_COST"`
	// PasswordMinLength is the minimum password length accepted at registration completion.
	PasswordMinLength int `mapstructure:"PASSWORD_MIN_LENGTH"`

	// Mail transport. An empty MailHost logs mails instead of sending them (not allowed in production).
	MailHost string `mapstructure:"MAIL_HOST"`
	MailPort int    `mapstructure:"MAIL_PORT"`
	MailUser string `mapstructure:"MAIL_USER"`
	MailPass string `mapstructure:"MAIL_PASS"`
	MailFrom string `mapstructure:"MAIL_FROM"`
	// FrontendURL is the web client base URL used for verification links.
	FrontendURL string `mapstructure:"FRONTEND_URL"`

	// MXPolicy is the registration mail-domain policy mode: off, advisory or enforce.
	MXPolicy string `mapstructure:"MX_POLICY"`
	// MXLookupTimeout bounds the MX lookup done at registration.
	MXLookupTimeout string `mapstructure:"MX_LOOKUP_TIMEOUT"`
	// BlockedEmailDomains is a comma-separated list of domains registration always rejects.
	BlockedEmailDomains string `mapstructure:"BLOCKED_EMAIL_DOMAINS"`
	// RegistrationPolicyFile optionally points to a Rego file replacing the built-in admission policy.
	RegistrationPolicyFile string `mapstructure:"REGISTRATION_POLICY_FILE"`

	// CORSAllowedOrigins is a comma-separated list of browser origins allowed with credentials.
	CORSAllowedOrigins string `mapstructure:"CORS_ALLOWED_ORIGINS"`
	CookieSecure       bool   `mapstructure:"COOKIE_SECURE"`
	CookieDomain       string `mapstructure:"COOKIE_DOMAIN"`
	CookiePath         string `mapstructure:"COOKIE_PATH"`
	// RateLimitEnabled toggles the per-IP route limits.
	RateLimitEnabled bool `mapstructure:"RATE_LIMIT_ENABLED"`
	// TrustedProxies is a comma-separated list of proxy IPs or CIDRs allowed to set X-Forwarded-For.
	TrustedProxies string `mapstructure:"TRUSTED_PROXIES"`
	// DevCodeEndpoint when true keeps the last code per email for GET /dev/verification-code.
	// Must not be true when Env is production.
	DevCodeEndpoint bool `mapstructure:"DEV_CODE_ENDPOINT"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`

	// OpenTelemetry export. Empty endpoint keeps telemetry in-process.
	OTelEndpoint    string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTelInsecure    bool   `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`
	OTelServiceName string `mapstructure:"OTEL_SERVICE_NAME"`
	// LogLevel is debug, info, warn or error.
	LogLevel string `mapstructure:"LOG_LEVEL"`
}

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
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_ISSUER", "laundry-auth")
	v.SetDefault("JWT_AUDIENCE", "laundry-api")
	v.SetDefault("JWT_ACCESS_TTL", "15m")
	v.SetDefault("JWT_REFRESH_TTL", "168h") // 7d
	v.SetDefault("STEP_TOKEN_TTL", "1h")
	v.SetDefault("VERIFICATION_CODE_TTL", "1h")
	v.SetDefault("VERIFICATION_RESEND_COOLDOWN", "60s")
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("PASSWORD_MIN_LENGTH", 8)
	v.SetDefault("MAIL_HOST", "")
	v.SetDefault("MAIL_PORT", 465)
	v.SetDefault("MAIL_USER", "")
	v.SetDefault("MAIL_PASS", "")
	v.SetDefault("MAIL_FROM", "")
	v.SetDefault("FRONTEND_URL", "http://localhost:3000")
	v.SetDefault("MX_POLICY", "advisory")
	v.SetDefault("MX_LOOKUP_TIMEOUT", "5s")
	v.SetDefault("BLOCKED_EMAIL_DOMAINS", "")
	v.SetDefault("REGISTRATION_POLICY_FILE", "")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:3000")
	v.SetDefault("COOKIE_SECURE", false)
	v.SetDefault("COOKIE_DOMAIN", "")
	v.SetDefault("COOKIE_PATH", "/")
	v.SetDefault("RATE_LIMIT_ENABLED", true)
	v.SetDefault("TRUSTED_PROXIES", "")
	v.SetDefault("DEV_CODE_ENDPOINT", false)
	v.SetDefault("APP_ENV", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("OTEL_SERVICE_NAME", "laundry-auth")
	v.SetDefault("LOG_LEVEL", "info")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}

	if len(cfg.JWTSecret) < MinJWTSecretBytes {
		return nil, fmt.Errorf("config: JWT_SECRET must be set and at least %d bytes", MinJWTSecretBytes)
	}

	if cfg.DevCodeEndpoint && cfg.IsProduction() {
		return nil, errors.New("config: DEV_CODE_ENDPOINT must not be true when APP_ENV=production")
	}
	if cfg.IsProduction() && strings.TrimSpace(cfg.DatabaseURL) == "" {
		return nil, errors.New("config: DATABASE_URL must be set when APP_ENV=production")
	}
	if cfg.IsProduction() && cfg.MailHost == "" {
		return nil, errors.New("config: MAIL_HOST must be set when APP_ENV=production")
	}

	cfg.MXPolicy = strings.ToLower(strings.TrimSpace(cfg.MXPolicy))
	switch cfg.MXPolicy {
	case "off", "advisory", "enforce":
	default:
		return nil, fmt.Errorf("config: MX_POLICY must be off, advisory or enforce, got %q", cfg.MXPolicy)
	}

	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = 12
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return nil, errors.New("config: BCRYPT_COST must be between 4 and 31")
	}
	if cfg.PasswordMinLength < 0 || cfg.PasswordMinLength > 72 {
		return nil, errors.New("config: PASSWORD_MIN_LENGTH must be between 0 and 72")
	}
	if cfg.CookiePath == "" {
		cfg.CookiePath = "/"
	}

	return &cfg, nil
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Env), "production")
}

func durationOr(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// AccessTTL parses JWTAccessTTL as a time.Duration. Returns 15m if unset or invalid.
func (c *Config) AccessTTL() time.Duration { return durationOr(c.JWTAccessTTL, 15*time.Minute) }

// RefreshTTL parses JWTRefreshTTL as a time.Duration. Returns 168h if unset or invalid.
func (c *Config) RefreshTTL() time.Duration { return durationOr(c.JWTRefreshTTL, 168*time.Hour) }

// StepTTL parses StepTokenTTL. Returns 1h if unset or invalid.
func (c *Config) StepTTL() time.Duration { return durationOr(c.StepTokenTTL, time.Hour) }

// CodeTTL parses VerificationCodeTTL. Returns 1h if unset or invalid.
func (c *Config) CodeTTL() time.Duration { return durationOr(c.VerificationCodeTTL, time.Hour) }

// ResendCooldown parses VerificationResendCooldown. Returns 60s if unset or invalid.
func (c *Config) ResendCooldown() time.Duration {
	return durationOr(c.VerificationResendCooldown, 60*time.Second)
}

// MXTimeout parses MXLookupTimeout. Returns 5s if unset or invalid.
func (c *Config) MXTimeout() time.Duration { return durationOr(c.MXLookupTimeout, 5*time.Second) }

// BlockedDomains returns the lowercased blocked email domains.
func (c *Config) BlockedDomains() []string {
	if c == nil {
		return nil
	}
	out := splitList(c.BlockedEmailDomains)
	for i := range out {
		out[i] = strings.ToLower(out[i])
	}
	return out
}

// AllowedOrigins returns the CORS origins from the comma-separated config.
func (c *Config) AllowedOrigins() []string {
	if c == nil {
		return nil
	}
	return splitList(c.CORSAllowedOrigins)
}

// TrustedProxyList returns the proxies from the comma-separated config.
func (c *Config) TrustedProxyList() []string {
	if c == nil {
		return nil
	}
	return splitList(c.TrustedProxies)
}

// SlogLevel maps LogLevel to a slog.Level. Unknown values select info.
func (c *Config) SlogLevel() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(c.LogLevel))); err != nil {
		return slog.LevelInfo
	}
	return l
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}
