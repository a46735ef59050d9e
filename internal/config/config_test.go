package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "web", cfg.WebDir)
	assert.Equal(t, AuthLocal, cfg.AuthMode)
	assert.Equal(t, 400*time.Millisecond, cfg.SaveDebounce)
	assert.Equal(t, 720*time.Hour, cfg.SessionTTL)
	assert.False(t, cfg.OIDCEnabled())
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("ADDR", ":9000")
	t.Setenv("DATABASE_URL", "postgres://localhost/juhd")
	t.Setenv("AUTH_MODE", "gotrue")
	t.Setenv("GOTRUE_URL", "http://auth.local")
	t.Setenv("GOTRUE_ANON_KEY", "anon")
	t.Setenv("GOTRUE_JWT_SECRET", "secret")
	t.Setenv("SAVE_DEBOUNCE", "1s")
	t.Setenv("OIDC_ISSUER", "https://id.example.com")
	t.Setenv("OIDC_CLIENT_ID", "juhd")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Addr)
	assert.Equal(t, AuthGoTrue, cfg.AuthMode)
	assert.Equal(t, time.Second, cfg.SaveDebounce)
	assert.True(t, cfg.OIDCEnabled())

	log, err := cfg.Logger()
	require.NoError(t, err)
	assert.True(t, log.Core().Enabled(zapcore.DebugLevel))
}

func TestValidate(t *testing.T) {
	base := Config{AuthMode: AuthLocal, SaveDebounce: time.Second, SessionTTL: time.Hour, LogLevel: "info"}

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"unknown auth mode", func(c *Config) { c.AuthMode = "ldap" }},
		{"gotrue without url", func(c *Config) { c.AuthMode = AuthGoTrue }},
		{"oidc without client", func(c *Config) { c.OIDCIssuer = "https://id.example.com" }},
		{"zero debounce", func(c *Config) { c.SaveDebounce = 0 }},
		{"zero session ttl", func(c *Config) { c.SessionTTL = 0 }},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }},
	}
	require.NoError(t, base.Validate())
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := base
			tc.mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}
