package config

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/spf13/viper"

	"github.com/as-progression-tracker/internal/domain"
)

// EnvPrefix is the prefix for environment overrides, e.g. AS_TRACKER_SERVER_PORT
const EnvPrefix = "AS_TRACKER"

// Manager implements the ConfigManager interface using Viper
type Manager struct {
	v      *viper.Viper
	file   string
	config *domain.Config
}

// NewManager creates a configuration manager that searches the default paths
func NewManager() (*Manager, error) {
	return NewManagerFromFile("")
}

// NewManagerFromFile creates a configuration manager reading the given file.
// An empty path falls back to searching the default locations.
func NewManagerFromFile(path string) (*Manager, error) {
	m := &Manager{file: path}
	if err := m.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

func (m *Manager) loadConfig() error {
	v := viper.New()

	if m.file != "" {
		v.SetConfigFile(m.file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/as-tracker/")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Config file is optional unless one was named explicitly
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

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.request_timeout", "15s")

	// Classifier defaults
	v.SetDefault("classifier.backend", domain.BackendArtifact)
	v.SetDefault("classifier.artifact_path", "./models/as_progression.json")
	v.SetDefault("classifier.threshold", domain.DefaultDecisionThreshold)
	v.SetDefault("classifier.remote.url", "")
	v.SetDefault("classifier.remote.api_key", "")
	v.SetDefault("classifier.remote.model_version", "")
	v.SetDefault("classifier.remote.timeout", "5s")
	v.SetDefault("classifier.remote.rate_limit", 10)
	v.SetDefault("classifier.remote.breaker_max_requests", 3)
	v.SetDefault("classifier.remote.breaker_interval", "60s")
	v.SetDefault("classifier.remote.breaker_timeout", "30s")
	v.SetDefault("classifier.remote.breaker_failure_ratio", 0.6)

	// Cache defaults
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.max_items", 1000)
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.ttl", "24h")

	// Session defaults
	v.SetDefault("session.max_sessions", 1000)
	v.SetDefault("session.ttl", "2h")
	v.SetDefault("session.chronology_policy", domain.ChronologyAccept)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")

	// MCP defaults
	v.SetDefault("mcp.server_name", "as-progression-tracker")
	v.SetDefault("mcp.server_version", "1.0.0")
}

// GetConfig returns the complete configuration
func (m *Manager) GetConfig() *domain.Config {
	return m.config
}

// GetServerConfig returns server configuration
func (m *Manager) GetServerConfig() *domain.ServerConfig {
	return &m.config.Server
}

// GetClassifierConfig returns classifier configuration
func (m *Manager) GetClassifierConfig() *domain.ClassifierConfig {
	return &m.config.Classifier
}

// Reload reloads the configuration
func (m *Manager) Reload() error {
	return m.loadConfig()
}

// Validate validates the configuration
func (m *Manager) Validate() error {
	return Validate(m.config)
}

// Validate checks a configuration value independently of where it was loaded from
func Validate(config *domain.Config) error {
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	classifier := config.Classifier
	if math.IsNaN(classifier.Threshold) || classifier.Threshold <= 0 || classifier.Threshold >= 1 {
		return fmt.Errorf("classifier threshold must be in (0,1), got %v", classifier.Threshold)
	}
	switch classifier.Backend {
	case domain.BackendArtifact:
		if classifier.ArtifactPath == "" {
			return fmt.Errorf("classifier artifact path is required for the %q backend", classifier.Backend)
		}
	case domain.BackendRemote:
		if classifier.Remote.URL == "" {
			return fmt.Errorf("classifier remote url is required for the %q backend", classifier.Backend)
		}
		if classifier.Remote.BreakerFailureRatio < 0 || classifier.Remote.BreakerFailureRatio > 1 {
			return fmt.Errorf("breaker failure ratio must be in [0,1], got %v", classifier.Remote.BreakerFailureRatio)
		}
	default:
		return fmt.Errorf("unknown classifier backend: %q", classifier.Backend)
	}

	if config.Cache.Enabled && config.Cache.MaxItems <= 0 {
		return fmt.Errorf("cache max items must be positive when the cache is enabled")
	}

	switch config.Session.ChronologyPolicy {
	case domain.ChronologyAccept, domain.ChronologyRejectOutOfOrder:
	default:
		return fmt.Errorf("unknown chronology policy: %q", config.Session.ChronologyPolicy)
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(config.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", config.Logging.Level)
	}
	switch strings.ToLower(config.Logging.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("invalid log format: %s", config.Logging.Format)
	}

	return nil
}

// IsProduction returns true if running in production mode
func (m *Manager) IsProduction() bool {
	return strings.ToLower(m.v.GetString("environment")) == "production"
}

// IsDevelopment returns true if running in development mode
func (m *Manager) IsDevelopment() bool {
	env := strings.ToLower(m.v.GetString("environment"))
	return env == "development" || env == "dev" || env == ""
}
