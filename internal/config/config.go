package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/benvon/google-auth-api/internal/services/session"
	"github.com/benvon/google-auth-api/internal/validation"
	"github.com/joho/godotenv"
)

const (
	// MinSecretLength is the shortest JWT_SECRET accepted for HS256
	MinSecretLength = 32
	// MinSessionTTL and MaxSessionTTL bound SESSION_TTL
	MinSessionTTL = time.Minute
	MaxSessionTTL = 30 * 24 * time.Hour
)

// Config holds application configuration. It is built once at startup and not mutated.
type Config struct {
	GoogleClientID      string        `validate:"required"`
	GoogleRedirectURL   string        `validate:"omitempty,url"`
	JWTSecret           string        `validate:"required"`
	DatabaseURL         string        `validate:"required"`
	MongoDatabase       string        `validate:"required"`
	AllowedOrigins      []string      `validate:"dive,url"`
	FrontendURL         string        `validate:"required,url"`
	ServerPort          string        `validate:"required,numeric"`
	CredentialTransport session.Mode  `validate:"required,oneof=header cookie both"`
	SessionTTL          time.Duration `validate:"required"`
	UpstreamTimeout     time.Duration `validate:"required"`

	GoogleClientSecret string
	Environment        string
	EnableHSTS         bool
	ServerDebugMode    bool
	OTELEnabled        bool
	OTELEndpoint       string
}

// Load reads .env when present, then the environment
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return nil, fmt.Errorf("failed to load .env file: %w", err)
		}
	}
	return LoadFrom(os.Getenv)
}

// LoadFrom builds a Config from getenv. Missing or invalid required values are errors.
func LoadFrom(getenv func(string) string) (*Config, error) {
	e := env{getenv: getenv}

	cfg := &Config{
		GoogleClientID:     e.get("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: e.get("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURL:  e.get("GOOGLE_REDIRECT_URL", ""),
		JWTSecret:          e.get("JWT_SECRET", ""),
		DatabaseURL:        e.get("MONGO_URI", e.get("DATABASE_URL", "")),
		MongoDatabase:      e.get("MONGO_DATABASE", "auth"),
		AllowedOrigins:     ParseOrigins(e.get("ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:3001")),
		FrontendURL:        e.get("FRONTEND_URL", "http://localhost:3001"),
		ServerPort:         e.get("SERVER_PORT", e.get("PORT", "5000")),
		Environment:        e.get("APP_ENV", "development"),
		EnableHSTS:         e.getBool("ENABLE_HSTS", false),
		ServerDebugMode:    e.getBool("SERVER_DEBUG_MODE", false),
		OTELEnabled:        e.getBool("OTEL_ENABLED", false),
		OTELEndpoint:       e.get("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
	}

	var err error
	if cfg.CredentialTransport, err = session.ParseMode(e.get("CREDENTIAL_TRANSPORT", string(session.ModeHeader))); err != nil {
		return nil, err
	}
	if cfg.SessionTTL, err = e.getDuration("SESSION_TTL", time.Hour); err != nil {
		return nil, err
	}
	if cfg.UpstreamTimeout, err = e.getDuration("UPSTREAM_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}

	if cfg.GoogleClientID == "" {
		return nil, fmt.Errorf("GOOGLE_CLIENT_ID is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if len(cfg.JWTSecret) < MinSecretLength {
		return nil, fmt.Errorf("JWT_SECRET must be at least %d bytes", MinSecretLength)
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("MONGO_URI (or DATABASE_URL) is required")
	}
	if cfg.SessionTTL < MinSessionTTL || cfg.SessionTTL > MaxSessionTTL {
		return nil, fmt.Errorf("SESSION_TTL must be between %s and %s, got %s", MinSessionTTL, MaxSessionTTL, cfg.SessionTTL)
	}
	if cfg.UpstreamTimeout <= 0 {
		return nil, fmt.Errorf("UPSTREAM_TIMEOUT must be positive, got %s", cfg.UpstreamTimeout)
	}
	if (cfg.GoogleClientSecret == "") != (cfg.GoogleRedirectURL == "") {
		return nil, fmt.Errorf("GOOGLE_CLIENT_SECRET and GOOGLE_REDIRECT_URL must be set together")
	}
	// the redirect flow hands out a cookie, which header mode never reads back
	if cfg.RedirectFlowEnabled() && cfg.CredentialTransport == session.ModeHeader {
		return nil, fmt.Errorf("GOOGLE_REDIRECT_URL requires CREDENTIAL_TRANSPORT cookie or both")
	}

	if err := validation.Validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// IsProduction reports whether the service runs in production. Cookies are Secure there.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// RedirectFlowEnabled reports whether the server-side OAuth flow is configured
func (c *Config) RedirectFlowEnabled() bool {
	return c.GoogleClientSecret != "" && c.GoogleRedirectURL != ""
}

// ParseOrigins splits a comma separated origin list, dropping blanks and trailing slashes
func ParseOrigins(raw string) []string {
	var origins []string
	for _, o := range strings.Split(raw, ",") {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// Redacted returns a copy safe to print: secrets masked and credentials stripped from the store URL
func (c *Config) Redacted() Config {
	out := *c
	out.AllowedOrigins = append([]string(nil), c.AllowedOrigins...)
	out.JWTSecret = mask(c.JWTSecret)
	out.GoogleClientSecret = mask(c.GoogleClientSecret)
	if u, err := url.Parse(c.DatabaseURL); err == nil && u.User != nil {
		u.User = url.User("redacted")
		out.DatabaseURL = u.String()
	}
	return out
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return "********"
}

type env struct {
	getenv func(string) string
}

func (e env) get(key, defaultValue string) string {
	if value := e.getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func (e env) getBool(key string, defaultValue bool) bool {
	if value := e.getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func (e env) getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := e.getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d, nil
	}
	// bare integers are seconds
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return 0, fmt.Errorf("%s must be a duration such as 1h or 30m, got %q", key, value)
}
