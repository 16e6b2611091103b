package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server      ServerConfig
	Logging     LogConfig
	RateLimit   RateLimitConfig
	Execution   ExecutionConfig
	Observatory ObservatoryConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8080"`
	Host string `envconfig:"HOST" default:"0.0.0.0"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// ExecutionConfig holds execution-span tracking configuration.
type ExecutionConfig struct {
	// RepoName names the repo span opened for every traced request.
	RepoName string `envconfig:"EXECUTION_REPO_NAME" default:"analytics-hub"`
}

// ObservatoryConfig holds trace-ingestion export configuration.
type ObservatoryConfig struct {
	Enabled     bool   `envconfig:"OBSERVATORY_ENABLED" default:"false"`
	Endpoint    string `envconfig:"OBSERVATORY_ENDPOINT" default:"http://localhost:8081"`
	APIKey      string `envconfig:"OBSERVATORY_API_KEY" default:""`
	TimeoutSecs int    `envconfig:"OBSERVATORY_TIMEOUT_SECS" default:"30"`
	BufferSize  int    `envconfig:"OBSERVATORY_BUFFER_SIZE" default:"1000"`
}

// Timeout returns the export timeout as a duration.
func (c ObservatoryConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8080",
			Host: "0.0.0.0",
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
		Execution: ExecutionConfig{
			RepoName: "analytics-hub",
		},
		Observatory: ObservatoryConfig{
			Enabled:     false,
			Endpoint:    "http://localhost:8081",
			TimeoutSecs: 30,
			BufferSize:  1000,
		},
	}
}
