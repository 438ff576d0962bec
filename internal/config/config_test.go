package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noface-00/prims/internal/model"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 4, cfg.Analysis.Workers)
	assert.Equal(t, 5*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, "/recursos/img/no-image.png", cfg.Analysis.DefaultImage)
	assert.False(t, cfg.HasEbayCredentials())
}

func TestLoad_ExplicitFile(t *testing.T) {
	for _, key := range []string{"EBAY_CLIENT_ID", "EBAY_CLIENT_SECRET", "MYSQL_DSN", "REDIS_ADDR", "PRIMS_WORKERS", "PRIMS_LOG_LEVEL"} {
		t.Setenv(key, "")
	}

	path := filepath.Join(t.TempDir(), "prims.yaml")
	yml := `
ebay:
  client_id: app
  client_secret: secret
cache:
  ttl: 90s
analysis:
  workers: 6
  timeouts:
    market: 20s
scheduler:
  spec: "*/15 * * * *"
  products: ["111", "222"]
log:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 90*time.Second, cfg.Cache.TTL)
	assert.Equal(t, 6, cfg.Analysis.Workers)
	assert.Equal(t, 20*time.Second, cfg.Analysis.Timeouts.Market)
	// untouched keys keep their defaults
	assert.Equal(t, 5*time.Second, cfg.Analysis.Timeouts.Price)
	assert.Equal(t, []string{"111", "222"}, cfg.Scheduler.Products)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.HasEbayCredentials())
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("analysis: [oops"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"EBAY_CLIENT_ID":       "id",
		"EBAY_CLIENT_SECRET":   "secret",
		"MYSQL_DSN":            "user:pass@tcp(db:3306)/prims?parseTime=true",
		"REDIS_ADDR":           "redis:6379",
		"PRIMS_CACHE_TTL":      "2m",
		"PRIMS_WORKERS":        "8",
		"PRIMS_WATCH_PRODUCTS": " 1, 2 ,,3",
		"PRIMS_LOG_PRETTY":     "true",
		"PRIMS_MARKET_LIMIT":   "not-a-number",
	}

	cfg := Default()
	cfg.applyEnv(func(k string) string { return env[k] })

	assert.Equal(t, "id", cfg.Ebay.ClientID)
	assert.Equal(t, "secret", cfg.Ebay.ClientSecret)
	assert.Equal(t, env["MYSQL_DSN"], cfg.Database.DSN)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, 2*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, 8, cfg.Analysis.Workers)
	assert.Equal(t, []string{"1", "2", "3"}, cfg.Scheduler.Products)
	assert.True(t, cfg.Log.Pretty)
	assert.Equal(t, 100, cfg.Analysis.MarketLimit, "unparsable values are ignored")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"no workers", func(c *Config) { c.Analysis.Workers = 0 }, "analysis.workers"},
		{"limit too high", func(c *Config) { c.Analysis.MarketLimit = 500 }, "analysis.market_limit"},
		{"zero timeout", func(c *Config) { c.Analysis.Timeouts.Image = 0 }, "analysis.timeouts.image"},
		{"zero ttl", func(c *Config) { c.Cache.TTL = 0 }, "cache.ttl"},
		{"half credentials", func(c *Config) { c.Ebay.ClientID = "id" }, "ebay.client_secret"},
		{"empty addr", func(c *Config) { c.Server.Addr = " " }, "server.addr"},
		{"bad schedule", func(c *Config) { c.Scheduler.Spec = "every hour" }, "scheduler.spec"},
		{"bad sweep", func(c *Config) { c.Scheduler.SweepSpec = "* *" }, "scheduler.sweep_spec"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)

			var verr *model.ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.field, verr.Field)
			assert.ErrorIs(t, err, model.ErrInvalidInput)
		})
	}
}
