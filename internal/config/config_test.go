package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv_Defaults(t *testing.T) {
	t.Setenv("MODE", "")
	t.Setenv("SOURCE_DRIVER", "")
	t.Setenv("FETCH_CONCURRENCY", "nope")
	cfg := FromEnv()
	assert.Equal(t, ModeOffline, cfg.Mode)
	assert.Equal(t, "sql", cfg.SourceDriver)
	assert.Equal(t, 8, cfg.FetchConcurrency)
	assert.Equal(t, "off", cfg.CacheDriver)
}

func TestFromEnv_OnlineUsesHTTPSource(t *testing.T) {
	t.Setenv("MODE", "online")
	t.Setenv("SOURCE_DRIVER", "")
	t.Setenv("UPSTREAM_TIMEOUT", "3s")
	t.Setenv("CORS_ORIGINS", " https://a.example , ,https://b.example")
	cfg := FromEnv()
	assert.Equal(t, "http", cfg.SourceDriver)
	assert.Equal(t, 3*time.Second, cfg.UpstreamTimeout)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
}

func TestLoad_YAMLOverridesEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gradebook.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
cache_driver: memory
cache_ttl: 90s
fetch_concurrency: 2
cors_origins: [https://x.example]
`), 0o600))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("CACHE_DRIVER", "redis")
	t.Setenv("HTTP_ADDR", ":9999")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.CacheDriver)
	assert.Equal(t, 90*time.Second, cfg.CacheTTL)
	assert.Equal(t, 2, cfg.FetchConcurrency)
	assert.Equal(t, []string{"https://x.example"}, cfg.CORSOrigins)
	assert.Equal(t, ":9999", cfg.HTTPAddr, "unset yaml keys keep the env value")
}

func TestLoad_BadFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	_, err := Load()
	assert.Error(t, err)
}
