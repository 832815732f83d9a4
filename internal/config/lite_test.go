package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultLiteConfig(t *testing.T) {
	cfg := DefaultLiteConfig()

	assert.NotEmpty(t, cfg.DataDir)
	assert.Equal(t, 64, cfg.CacheMaxItems)
	assert.Equal(t, 10*time.Minute, cfg.CacheTTL)
	assert.Empty(t, cfg.CatalogPath)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoadLiteConfig_Defaults(t *testing.T) {
	clearEnvVars(t)

	cfg := LoadLiteConfig()

	assert.NotEmpty(t, cfg.DataDir)
	assert.Equal(t, 64, cfg.CacheMaxItems)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadLiteConfig_EnvironmentOverrides(t *testing.T) {
	clearEnvVars(t)

	t.Setenv("ADVISOR_DATA_DIR", "/tmp/test-advisor")
	t.Setenv("ADVISOR_CACHE_MAX_ITEMS", "500")
	t.Setenv("ADVISOR_CACHE_TTL", "12h")
	t.Setenv("ADVISOR_CATALOG_PATH", "/etc/advisor/extra.yaml")
	t.Setenv("ADVISOR_LOG_LEVEL", "debug")
	t.Setenv("ADVISOR_LOG_FORMAT", "text")

	cfg := LoadLiteConfig()

	assert.Equal(t, "/tmp/test-advisor", cfg.DataDir)
	assert.Equal(t, 500, cfg.CacheMaxItems)
	assert.Equal(t, 12*time.Hour, cfg.CacheTTL)
	assert.Equal(t, "/etc/advisor/extra.yaml", cfg.CatalogPath)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
}

func TestLoadLiteConfig_IgnoresInvalidNumbers(t *testing.T) {
	clearEnvVars(t)

	t.Setenv("ADVISOR_CACHE_MAX_ITEMS", "-3")
	t.Setenv("ADVISOR_CACHE_TTL", "soon")

	cfg := LoadLiteConfig()

	assert.Equal(t, 64, cfg.CacheMaxItems)
	assert.Equal(t, 10*time.Minute, cfg.CacheTTL)
}

func TestLiteConfig_ResultsDBPath(t *testing.T) {
	cfg := &LiteConfig{DataDir: "/home/user/.skin-lesion-advisor"}

	assert.Equal(t, "/home/user/.skin-lesion-advisor/results.db", cfg.ResultsDBPath())
}

func TestLiteConfig_EnsureDataDir(t *testing.T) {
	cfg := &LiteConfig{DataDir: filepath.Join(t.TempDir(), "advisor", "nested")}

	require.NoError(t, cfg.EnsureDataDir())

	info, err := os.Stat(cfg.DataDir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func clearEnvVars(t *testing.T) {
	t.Helper()
	vars := []string{
		"ADVISOR_DATA_DIR",
		"ADVISOR_CACHE_MAX_ITEMS",
		"ADVISOR_CACHE_TTL",
		"ADVISOR_CATALOG_PATH",
		"ADVISOR_LOG_LEVEL",
		"ADVISOR_LOG_FORMAT",
	}
	for _, v := range vars {
		t.Setenv(v, "")
	}
}
