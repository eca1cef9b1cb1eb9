package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewDefaults(t *testing.T) {
	t.Setenv("APP_CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))

	c, err := New()
	require.NoError(t, err)
	require.Equal(t, EnvDev, c.Env)
	require.Equal(t, 8888, c.Server.Port)
	require.Equal(t, "auto", c.Database.Migrate)
	require.Equal(t, 24*time.Hour, c.Idempotency.TTL)
	require.Equal(t, time.Minute, c.Idempotency.LockTimeout)
	require.Equal(t, "Idempotency-Key", c.Idempotency.Header)
	require.Equal(t, "X-Webhook-Signature", c.Webhook.SignatureHeader)
	require.Equal(t, 72, c.Webhook.DedupWindowHours)
	require.Equal(t, "postgres", c.RateLimit.Backend)
	require.True(t, c.RateLimit.Enabled)
}

func TestNewFileAndEnvOverride(t *testing.T) {
	file := filepath.Join(t.TempDir(), "app.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
webhook:
  secret: file-secret
idempotency:
  ttl: 2h
rate_limit:
  categories:
    auth:
      max_requests: 3
      window_minutes: 5
  routes:
    - prefix: /api/v1/login
      category: auth
`), 0o600))
	t.Setenv("APP_CONFIG_FILE", file)
	t.Setenv("APP_SERVER_PORT", "9999")

	c, err := New()
	require.NoError(t, err)
	require.Equal(t, 9999, c.Server.Port)
	require.Equal(t, "file-secret", c.Webhook.Secret)
	require.Equal(t, 2*time.Hour, c.Idempotency.TTL)
	require.Equal(t, RateLimitRule{MaxRequests: 3, WindowMinutes: 5}, c.RateLimit.Categories["auth"])
	require.Len(t, c.RateLimit.Routes, 1)
	require.Equal(t, "/api/v1/login", c.RateLimit.Routes[0].Prefix)
}

func TestValidate(t *testing.T) {
	c := &Config{Env: EnvProd, Database: DBConfig{Migrate: "auto"}, RateLimit: RateLimitConfig{Backend: "postgres"}}
	require.Error(t, c.Validate())

	c.Webhook.Secret = "s"
	c.Auth.JWTSecret = "j"
	require.NoError(t, c.Validate())

	c.Database.Migrate = "sometimes"
	require.Error(t, c.Validate())

	c.Database.Migrate = "sql"
	c.RateLimit.Backend = "memcached"
	require.Error(t, c.Validate())
}
