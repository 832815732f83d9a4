package domain

import (
	"time"
)

// Config represents the main application configuration
type Config struct {
	Environment string          `mapstructure:"environment"`
	Server      ServerConfig    `mapstructure:"server"`
	Database    DatabaseConfig  `mapstructure:"database"`
	Cache       CacheConfig     `mapstructure:"cache"`
	Inference   InferenceConfig `mapstructure:"inference"`
	Auth        AuthConfig      `mapstructure:"auth"`
	Catalog     CatalogConfig   `mapstructure:"catalog"`
	Reporting   ReportingConfig `mapstructure:"reporting"`
	Logging     LoggingConfig   `mapstructure:"logging"`
	MCP         MCPConfig       `mapstructure:"mcp"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	MaxUploadBytes int64         `mapstructure:"max_upload_bytes"`
}

// DatabaseConfig represents results store configuration
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // "sqlite", "postgres"
	SQLitePath      string        `mapstructure:"sqlite_path"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Database        string        `mapstructure:"database"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// CacheConfig represents statistics cache configuration
type CacheConfig struct {
	Backend     string        `mapstructure:"backend"` // "memory", "redis"
	RedisURL    string        `mapstructure:"redis_url"`
	MaxItems    int           `mapstructure:"max_items"`
	TTL         time.Duration `mapstructure:"ttl"`
	PoolSize    int           `mapstructure:"pool_size"`
	PoolTimeout time.Duration `mapstructure:"pool_timeout"`
	MaxRetries  int           `mapstructure:"max_retries"`
}

// InferenceConfig represents the remote prediction endpoint configuration
type InferenceConfig struct {
	URL              string        `mapstructure:"url"`
	Timeout          time.Duration `mapstructure:"timeout"`
	RateLimit        float64       `mapstructure:"rate_limit"` // requests per second
	Burst            int           `mapstructure:"burst"`
	BreakerRequests  uint32        `mapstructure:"breaker_max_requests"`
	BreakerInterval  time.Duration `mapstructure:"breaker_interval"`
	BreakerTimeout   time.Duration `mapstructure:"breaker_timeout"`
	BreakerThreshold float64       `mapstructure:"breaker_failure_ratio"`
}

// AuthConfig represents bearer token verification settings
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	AdminRole string `mapstructure:"admin_role"`
}

// CatalogConfig points at an optional catalog extension file
type CatalogConfig struct {
	Path string `mapstructure:"path"`
}

// ReportingConfig represents statistics reporting settings
type ReportingConfig struct {
	WarmSchedule string        `mapstructure:"warm_schedule"` // 5-field cron expression, empty disables
	DefaultLimit int           `mapstructure:"default_limit"`
	MaxLimit     int           `mapstructure:"max_limit"`
	RecentWindow time.Duration `mapstructure:"recent_window"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// MCPConfig represents MCP server configuration
type MCPConfig struct {
	ServerName    string `mapstructure:"server_name"`
	ServerVersion string `mapstructure:"server_version"`
}
