package domain

import (
	"context"
	"io"
)

// InferenceService classifies an uploaded lesion image
type InferenceService interface {
	Predict(ctx context.Context, filename string, image io.Reader) (PredictionResult, error)
}

// ConditionCatalog is the read-only registry of known condition labels
type ConditionCatalog interface {
	Lookup(label string) (ConditionRecord, bool)
	Labels() []string
	Len() int
}

// RecommendationResolver turns a prediction into an advisory
type RecommendationResolver interface {
	Resolve(result PredictionResult) (Advisory, error)
}

// ConfigManager defines the interface for configuration management
type ConfigManager interface {
	GetConfig() *Config
	GetServerConfig() *ServerConfig
	GetDatabaseConfig() *DatabaseConfig
	Reload() error
	Validate() error
	GetDatabaseConnectionString() string
	GetDatabaseURL() string
	IsProduction() bool
	IsDevelopment() bool
}
