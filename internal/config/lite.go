// Package config provides configuration management for the advisor services.
// This file contains the lightweight configuration for standalone operation.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// LiteConfig is a simplified configuration for standalone operation.
// It requires no external databases and uses sensible defaults.
type LiteConfig struct {
	// Data storage
	DataDir string // Base directory for the results database

	// Cache settings
	CacheMaxItems int           // Maximum summaries in memory cache
	CacheTTL      time.Duration // Default cache TTL

	// Optional catalog extension file
	CatalogPath string

	// Logging
	LogLevel  string // Log level: debug, info, warn, error
	LogFormat string // Log format: json, text
}

// DefaultLiteConfig returns a configuration with sensible defaults.
func DefaultLiteConfig() *LiteConfig {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".skin-lesion-advisor")

	return &LiteConfig{
		DataDir:       dataDir,
		CacheMaxItems: 64,
		CacheTTL:      10 * time.Minute,
		LogLevel:      "info",
		LogFormat:     "json",
	}
}

// LoadLiteConfig loads configuration from environment variables.
// Falls back to defaults if not set.
func LoadLiteConfig() *LiteConfig {
	cfg := DefaultLiteConfig()

	if v := os.Getenv("ADVISOR_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}

	// Cache settings
	if v := os.Getenv("ADVISOR_CACHE_MAX_ITEMS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.CacheMaxItems = n
		}
	}
	if v := os.Getenv("ADVISOR_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.CacheTTL = d
		}
	}

	cfg.CatalogPath = os.Getenv("ADVISOR_CATALOG_PATH")

	// Logging
	if v := os.Getenv("ADVISOR_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("ADVISOR_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}

	return cfg
}

// ResultsDBPath returns the path to the results SQLite database.
func (c *LiteConfig) ResultsDBPath() string {
	return filepath.Join(c.DataDir, "results.db")
}

// EnsureDataDir creates the data directory if it doesn't exist.
func (c *LiteConfig) EnsureDataDir() error {
	return os.MkdirAll(c.DataDir, 0755)
}
