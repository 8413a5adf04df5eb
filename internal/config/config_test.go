package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_IsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 5, cfg.Routing.MatchCount)
	assert.Equal(t, 0.30, cfg.Routing.MatchThreshold)
	assert.Equal(t, 0.40, cfg.Routing.MediumConfidence)
	assert.Equal(t, 0.50, cfg.Routing.HighConfidence)
	assert.Equal(t, 3*time.Second, cfg.Routing.ProbeTimeout)
	assert.Equal(t, 20, cfg.RateLimit.MaxRequests)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window)
	assert.Equal(t, 28, cfg.Shortlist.MaxBooks)
	assert.Equal(t, "sqlite3", cfg.DatabaseDriverName())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }},
		{"bad driver", func(c *Config) { c.Database.Driver = "mysql" }},
		{"bad cache", func(c *Config) { c.Cache.Driver = "memcached" }},
		{"bad matcher", func(c *Config) { c.Routing.Matcher = "faiss" }},
		{"bad provider", func(c *Config) { c.Embedding.Provider = "local" }},
		{"thresholds out of order", func(c *Config) { c.Routing.MediumConfidence = 0.6 }},
		{"zero probe timeout", func(c *Config) { c.Routing.ProbeTimeout = 0 }},
		{"zero rate limit", func(c *Config) { c.RateLimit.MaxRequests = 0 }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoad_YAMLAndEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yamlBody := `
server:
  port: 9100
routing:
  match_count: 8
  probe_timeout: 2s
shortlist:
  max_books: 20
rate_limit:
  max_requests: 5
  window: 30s
`
	require.NoError(t, os.WriteFile(path, []byte(yamlBody), 0o600))

	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost:5432/library?sslmode=disable")
	t.Setenv("REDIS_URL", "redis://cache:6379")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, 8, cfg.Routing.MatchCount)
	assert.Equal(t, 2*time.Second, cfg.Routing.ProbeTimeout)
	assert.Equal(t, 20, cfg.Shortlist.MaxBooks)
	assert.Equal(t, 5, cfg.RateLimit.MaxRequests)
	assert.Equal(t, 30*time.Second, cfg.RateLimit.Window)

	// untouched sections keep defaults
	assert.Equal(t, 0.50, cfg.Routing.HighConfidence)

	assert.Equal(t, "debug", cfg.Observability.LogLevel)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "postgres", cfg.DatabaseDriverName())
	assert.Equal(t, "redis", cfg.Cache.Driver)
	assert.Equal(t, "cache:6379", cfg.Cache.Redis.Addr)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
