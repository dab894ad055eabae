package domain

import (
	"context"
)

// Classifier is the pre-trained progression model. Implementations must be
// safe for repeated calls and must not mutate shared state between calls.
type Classifier interface {
	// PredictProba returns the probability of the positive ("progression") class
	PredictProba(ctx context.Context, vector FeatureVector) (float64, error)
}

// ClassifierFunc adapts a plain function to the Classifier interface
type ClassifierFunc func(ctx context.Context, vector FeatureVector) (float64, error)

// PredictProba implements Classifier
func (f ClassifierFunc) PredictProba(ctx context.Context, vector FeatureVector) (float64, error) {
	return f(ctx, vector)
}

// ConfigManager defines the interface for configuration management
type ConfigManager interface {
	GetConfig() *Config
	GetServerConfig() *ServerConfig
	GetClassifierConfig() *ClassifierConfig
	Reload() error
	Validate() error
	IsProduction() bool
	IsDevelopment() bool
}
