// Package platform provides the service configuration: YAML loading with
// environment variable expansion, defaults, and validation.
package platform

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/parentpass/chatbot-api/pkg/session"
)

// Config holds the complete service configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Auth      AuthConfig      `yaml:"auth"`
	Sessions  SessionsConfig  `yaml:"sessions"`
	Database  DatabaseConfig  `yaml:"database"`
	Warehouse WarehouseConfig `yaml:"warehouse"`
	Analytics AnalyticsConfig `yaml:"analytics"`
	LLM       LLMConfig       `yaml:"llm"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Address string `yaml:"address"`
	Version string `yaml:"version"`
}

// AuthConfig configures the static API key check. An empty key is allowed at
// load time; requests are rejected with a server-misconfiguration error until
// one is set.
type AuthConfig struct {
	APIKey string `yaml:"api_key"`
}

// SessionsConfig configures the session store.
type SessionsConfig struct {
	// Store selects the backend: "memory" or "postgres".
	Store string `yaml:"store"`
	// TTL is the session lifetime, measured from creation.
	TTL time.Duration `yaml:"ttl"`
	// CleanupInterval enables a periodic background sweep when positive.
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

// DatabaseConfig configures the platform Postgres database, used by the
// postgres session store and the report generator's relational queries.
type DatabaseConfig struct {
	DSN          string `yaml:"dsn"`
	MaxOpenConns int    `yaml:"max_open_conns"`
}

// WarehouseConfig configures the event warehouse connection.
type WarehouseConfig struct {
	DSN   string `yaml:"dsn"`
	Table string `yaml:"table"`
}

// AnalyticsConfig configures the analytics report directory.
type AnalyticsConfig struct {
	Dir string `yaml:"dir"`
}

// LLMConfig configures the Ark chat model.
type LLMConfig struct {
	APIKey      string   `yaml:"api_key"`
	Model       string   `yaml:"model"`
	BaseURL     string   `yaml:"base_url"`
	Region      string   `yaml:"region"`
	Temperature *float32 `yaml:"temperature"`
	MaxTokens   *int     `yaml:"max_tokens"`
}

// LoadConfig loads configuration from a YAML file, expanding ${VAR}
// references from the environment and applying defaults.
func LoadConfig(path string) (*Config, error) {
	// #nosec G304 -- path is from CLI args, controlled by admin
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	data = []byte(expandEnvVars(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	applyDefaults(&cfg)

	return &cfg, nil
}

// expandEnvVars expands ${VAR} patterns in the string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)
	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		return os.Getenv(varName)
	})
}

// applyDefaults applies default values to the config.
func applyDefaults(cfg *Config) {
	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8080"
	}
	if cfg.Server.Version == "" {
		cfg.Server.Version = "1.0.0"
	}
	if cfg.Sessions.Store == "" {
		cfg.Sessions.Store = "memory"
	}
	if cfg.Sessions.TTL == 0 {
		cfg.Sessions.TTL = session.DefaultTTL
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Analytics.Dir == "" {
		cfg.Analytics.Dir = "analytics_reports"
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	var errs []string

	switch c.Sessions.Store {
	case "memory", "postgres":
	default:
		errs = append(errs, fmt.Sprintf("sessions.store must be memory or postgres, got %q", c.Sessions.Store))
	}

	if c.Sessions.Store == "postgres" && c.Database.DSN == "" {
		errs = append(errs, "database.dsn is required when sessions.store is postgres")
	}
	if c.Sessions.TTL < 0 {
		errs = append(errs, "sessions.ttl must not be negative")
	}
	if c.Sessions.CleanupInterval < 0 {
		errs = append(errs, "sessions.cleanup_interval must not be negative")
	}
	if c.LLM.Temperature != nil && (*c.LLM.Temperature < 0 || *c.LLM.Temperature > 2) {
		errs = append(errs, "llm.temperature must be between 0 and 2")
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}
	return nil
}
