// Package config loads process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"go.uber.org/zap"
)

// Auth modes.
const (
	AuthLocal  = "local"
	AuthGoTrue = "gotrue"
)

// Config is the server configuration.
type Config struct {
	Addr   string `env:"ADDR"    envDefault:":8080"`
	WebDir string `env:"WEB_DIR" envDefault:"web"`

	// DatabaseURL selects Postgres. Empty keeps everything in memory.
	DatabaseURL     string `env:"DATABASE_URL"`
	ClientStatePath string `env:"CLIENT_STATE_PATH"`

	AuthMode          string        `env:"AUTH_MODE"           envDefault:"local"`
	SessionTTL        time.Duration `env:"SESSION_TTL"         envDefault:"720h"`
	GoTrueURL         string        `env:"GOTRUE_URL"`
	GoTrueAnonKey     string        `env:"GOTRUE_ANON_KEY"`
	GoTrueJWTSecret   string        `env:"GOTRUE_JWT_SECRET"`
	GoTrueRedirectURL string        `env:"GOTRUE_REDIRECT_URL"`

	GeminiAPIKey  string `env:"GEMINI_API_KEY"`
	GeminiModel   string `env:"GEMINI_MODEL"`
	GeminiBaseURL string `env:"GEMINI_BASE_URL"`

	OIDCIssuer       string `env:"OIDC_ISSUER"`
	OIDCClientID     string `env:"OIDC_CLIENT_ID"`
	OIDCClientSecret string `env:"OIDC_CLIENT_SECRET"`
	OIDCRedirectURL  string `env:"OIDC_REDIRECT_URL"`

	SaveDebounce time.Duration `env:"SAVE_DEBOUNCE" envDefault:"400ms"`
	LogLevel     string        `env:"LOG_LEVEL"     envDefault:"info"`
}

// Load parses the environment and validates the result.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks settings that depend on each other.
func (c Config) Validate() error {
	switch c.AuthMode {
	case AuthLocal:
	case AuthGoTrue:
		if c.GoTrueURL == "" || c.GoTrueAnonKey == "" || c.GoTrueJWTSecret == "" {
			return errors.New("AUTH_MODE=gotrue requires GOTRUE_URL, GOTRUE_ANON_KEY and GOTRUE_JWT_SECRET")
		}
	default:
		return fmt.Errorf("unknown AUTH_MODE %q", c.AuthMode)
	}
	if c.OIDCIssuer != "" && c.OIDCClientID == "" {
		return errors.New("OIDC_ISSUER is set but OIDC_CLIENT_ID is empty")
	}
	if c.SaveDebounce <= 0 {
		return errors.New("SAVE_DEBOUNCE must be positive")
	}
	if c.SessionTTL <= 0 {
		return errors.New("SESSION_TTL must be positive")
	}
	if _, err := zap.ParseAtomicLevel(c.LogLevel); err != nil {
		return fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return nil
}

// OIDCEnabled reports whether single sign-on is configured.
func (c Config) OIDCEnabled() bool {
	return c.OIDCIssuer != "" && c.OIDCClientID != ""
}

// Logger builds the production logger at the configured level.
func (c Config) Logger() (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	zc := zap.NewProductionConfig()
	zc.Level = level
	return zc.Build()
}
