package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"

	"github.com/skin-lesion-advisor/internal/domain"
	"github.com/skin-lesion-advisor/internal/results"
)

// Manager implements the ConfigManager interface using Viper
type Manager struct {
	v      *viper.Viper
	file   string
	config *domain.Config
}

// NewManager creates a new configuration manager
func NewManager() (*Manager, error) {
	return NewManagerFromFile("")
}

// NewManagerFromFile creates a configuration manager that reads the given file
// instead of searching the default locations. An empty path searches.
func NewManagerFromFile(path string) (*Manager, error) {
	m := &Manager{file: path}
	if err := m.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

// loadConfig loads configuration from various sources
func (m *Manager) loadConfig() error {
	v := viper.New()

	if m.file != "" {
		v.SetConfigFile(m.file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/skin-lesion-advisor/")
	}

	// Set environment variable prefix and enable automatic env binding
	v.SetEnvPrefix("ADVISOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Read configuration file (optional - will use defaults and env vars if not found)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if m.file != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &domain.Config{}
	if err := v.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	m.v = v
	m.config = config
	return nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.request_timeout", "60s")
	v.SetDefault("server.max_upload_bytes", 10<<20)

	// Database defaults
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.sqlite_path", "./data/results.db")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.database", "skin_lesion_advisor")
	v.SetDefault("database.username", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.migrations_path", "")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "5m")

	// Cache defaults
	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.redis_url", "redis://localhost:6379")
	v.SetDefault("cache.max_items", 256)
	v.SetDefault("cache.ttl", "10m")
	v.SetDefault("cache.pool_size", 10)
	v.SetDefault("cache.pool_timeout", "4s")
	v.SetDefault("cache.max_retries", 3)

	// Inference defaults
	v.SetDefault("inference.url", "http://localhost:5000")
	v.SetDefault("inference.timeout", "30s")
	v.SetDefault("inference.rate_limit", 5)
	v.SetDefault("inference.burst", 10)
	v.SetDefault("inference.breaker_max_requests", 1)
	v.SetDefault("inference.breaker_interval", "60s")
	v.SetDefault("inference.breaker_timeout", "30s")
	v.SetDefault("inference.breaker_failure_ratio", 0.6)

	// Auth defaults
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.admin_role", "admin")

	v.SetDefault("catalog.path", "")

	// Reporting defaults
	v.SetDefault("reporting.warm_schedule", "*/15 * * * *")
	v.SetDefault("reporting.default_limit", 20)
	v.SetDefault("reporting.max_limit", results.MaxLimit)
	v.SetDefault("reporting.recent_window", "168h")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")

	v.SetDefault("mcp.server_name", "skin-lesion-advisor")
	v.SetDefault("mcp.server_version", "1.0.0")
}

// GetConfig returns the complete configuration
func (m *Manager) GetConfig() *domain.Config {
	return m.config
}

// GetDatabaseConfig returns database configuration
func (m *Manager) GetDatabaseConfig() *domain.DatabaseConfig {
	return &m.config.Database
}

// GetServerConfig returns server configuration
func (m *Manager) GetServerConfig() *domain.ServerConfig {
	return &m.config.Server
}

// Reload reloads the configuration
func (m *Manager) Reload() error {
	return m.loadConfig()
}

// Validate validates the configuration
func (m *Manager) Validate() error {
	config := m.config

	// Validate server configuration
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}
	if config.Server.MaxUploadBytes <= 0 {
		return fmt.Errorf("max upload size must be positive")
	}

	// Validate database configuration
	switch config.Database.Driver {
	case "sqlite":
		if config.Database.SQLitePath == "" {
			return fmt.Errorf("sqlite path is required")
		}
	case "postgres":
		if config.Database.Host == "" {
			return fmt.Errorf("database host is required")
		}
		if config.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}
		if config.Database.Username == "" {
			return fmt.Errorf("database username is required")
		}
	default:
		return fmt.Errorf("unsupported database driver: %s", config.Database.Driver)
	}

	// Validate cache configuration
	switch config.Cache.Backend {
	case "memory":
		if config.Cache.MaxItems <= 0 {
			return fmt.Errorf("cache max items must be positive")
		}
	case "redis":
		if config.Cache.RedisURL == "" {
			return fmt.Errorf("Redis URL is required")
		}
	default:
		return fmt.Errorf("unsupported cache backend: %s", config.Cache.Backend)
	}

	// Validate inference configuration
	if _, err := url.ParseRequestURI(config.Inference.URL); err != nil {
		return fmt.Errorf("invalid inference URL: %s", config.Inference.URL)
	}
	if config.Inference.RateLimit <= 0 || config.Inference.Burst <= 0 {
		return fmt.Errorf("inference rate limit and burst must be positive")
	}
	if config.Inference.BreakerThreshold <= 0 || config.Inference.BreakerThreshold > 1 {
		return fmt.Errorf("breaker failure ratio must be in (0, 1]: %v", config.Inference.BreakerThreshold)
	}

	if m.IsProduction() && config.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT secret is required in production")
	}

	// Validate reporting configuration
	if config.Reporting.WarmSchedule != "" {
		if _, err := cron.ParseStandard(config.Reporting.WarmSchedule); err != nil {
			return fmt.Errorf("invalid warm schedule %q: %w", config.Reporting.WarmSchedule, err)
		}
	}
	if config.Reporting.DefaultLimit <= 0 || config.Reporting.MaxLimit < config.Reporting.DefaultLimit {
		return fmt.Errorf("invalid reporting limits: default %d, max %d",
			config.Reporting.DefaultLimit, config.Reporting.MaxLimit)
	}
	if config.Reporting.MaxLimit > results.MaxLimit {
		return fmt.Errorf("invalid reporting limits: max %d exceeds the store page cap of %d",
			config.Reporting.MaxLimit, results.MaxLimit)
	}
	if config.Reporting.RecentWindow <= 0 {
		return fmt.Errorf("reporting recent window must be positive: %s", config.Reporting.RecentWindow)
	}

	// Validate logging configuration
	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(config.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", config.Logging.Level)
	}

	return nil
}

// GetDatabaseConnectionString returns a formatted database connection string
func (m *Manager) GetDatabaseConnectionString() string {
	db := m.config.Database
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		db.Host, db.Port, db.Username, db.Password, db.Database, db.SSLMode)
}

// GetDatabaseURL returns the postgres URL form used by pgx and migrate
func (m *Manager) GetDatabaseURL() string {
	db := m.config.Database
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(db.Username, db.Password),
		Host:     fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:     db.Database,
		RawQuery: "sslmode=" + db.SSLMode,
	}
	return u.String()
}

// IsProduction returns true if running in production mode
func (m *Manager) IsProduction() bool {
	return strings.ToLower(m.config.Environment) == "production"
}

// IsDevelopment returns true if running in development mode
func (m *Manager) IsDevelopment() bool {
	env := strings.ToLower(m.config.Environment)
	return env == "development" || env == "dev" || env == ""
}
