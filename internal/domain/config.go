package domain

import (
	"time"
)

// Config represents the main application configuration
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Classifier ClassifierConfig `mapstructure:"classifier"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Session    SessionConfig    `mapstructure:"session"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	MCP        MCPConfig        `mapstructure:"mcp"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// Classifier backends
const (
	BackendArtifact = "artifact"
	BackendRemote   = "remote"
)

// ClassifierConfig selects and tunes the classifier backend
type ClassifierConfig struct {
	Backend      string              `mapstructure:"backend"` // "artifact", "remote"
	ArtifactPath string              `mapstructure:"artifact_path"`
	Threshold    float64             `mapstructure:"threshold"`
	Remote       RemoteScoringConfig `mapstructure:"remote"`
}

// RemoteScoringConfig represents the remote scoring service configuration
type RemoteScoringConfig struct {
	URL                 string        `mapstructure:"url"`
	APIKey              string        `mapstructure:"api_key"`
	ModelVersion        string        `mapstructure:"model_version"`
	Timeout             time.Duration `mapstructure:"timeout"`
	RateLimit           int           `mapstructure:"rate_limit"`
	BreakerMaxRequests  uint32        `mapstructure:"breaker_max_requests"`
	BreakerInterval     time.Duration `mapstructure:"breaker_interval"`
	BreakerTimeout      time.Duration `mapstructure:"breaker_timeout"`
	BreakerFailureRatio float64       `mapstructure:"breaker_failure_ratio"`
}

// CacheConfig represents prediction cache configuration
type CacheConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	MaxItems int           `mapstructure:"max_items"`
	RedisURL string        `mapstructure:"redis_url"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// Chronology policies for measurement entry
const (
	ChronologyAccept           = "accept"
	ChronologyRejectOutOfOrder = "reject_out_of_order"
)

// SessionConfig represents session registry configuration
type SessionConfig struct {
	MaxSessions      int           `mapstructure:"max_sessions"`
	TTL              time.Duration `mapstructure:"ttl"`
	ChronologyPolicy string        `mapstructure:"chronology_policy"`
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
