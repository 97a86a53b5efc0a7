package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
	Catalog   CatalogConfig
	Browser   BrowserConfig
	Runtime   RuntimeConfig
	Webhook   WebhookConfig
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

// CatalogConfig points at the container catalog files loaded at startup.
type CatalogConfig struct {
	Dir string `envconfig:"CATALOG_DIR" default:"./catalogs"`
}

// BrowserConfig holds the browser-control collaborator settings.
type BrowserConfig struct {
	Enabled           bool          `envconfig:"BROWSER_ENABLED" default:"false"`
	ControlURL        string        `envconfig:"BROWSER_CONTROL_URL"`
	Headless          bool          `envconfig:"BROWSER_HEADLESS" default:"true"`
	NavigationTimeout time.Duration `envconfig:"BROWSER_NAV_TIMEOUT" default:"30s"`
}

// RuntimeConfig tunes matching, dispatch and the event bus.
type RuntimeConfig struct {
	MaxDepth         int           `envconfig:"MATCH_MAX_DEPTH" default:"64"`
	MaxChildren      int           `envconfig:"MATCH_MAX_CHILDREN" default:"500"`
	OperationTimeout time.Duration `envconfig:"OPERATION_TIMEOUT" default:"15s"`
	BatchConcurrency int           `envconfig:"BATCH_CONCURRENCY" default:"1"`
	HistoryLimit     int           `envconfig:"EVENT_HISTORY_LIMIT" default:"500"`
	ScriptTimeout    time.Duration `envconfig:"SCRIPT_TIMEOUT" default:"250ms"`
	PollInterval     time.Duration `envconfig:"SNAPSHOT_POLL_INTERVAL" default:"0s"`
}

// WebhookConfig configures the optional event webhook sink.
type WebhookConfig struct {
	URL        string        `envconfig:"WEBHOOK_URL"`
	Pattern    string        `envconfig:"WEBHOOK_PATTERN" default:"operation:*:execute"`
	Timeout    time.Duration `envconfig:"WEBHOOK_TIMEOUT" default:"10s"`
	MaxRetries int           `envconfig:"WEBHOOK_RETRIES" default:"3"`
	RPS        float64       `envconfig:"WEBHOOK_RPS" default:"20"`
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
		Catalog: CatalogConfig{
			Dir: "./catalogs",
		},
		Browser: BrowserConfig{
			Enabled:           false,
			Headless:          true,
			NavigationTimeout: 30 * time.Second,
		},
		Runtime: RuntimeConfig{
			MaxDepth:         64,
			MaxChildren:      500,
			OperationTimeout: 15 * time.Second,
			BatchConcurrency: 1,
			HistoryLimit:     500,
			ScriptTimeout:    250 * time.Millisecond,
		},
		Webhook: WebhookConfig{
			Pattern:    "operation:*:execute",
			Timeout:    10 * time.Second,
			MaxRetries: 3,
			RPS:        20,
		},
	}
}
