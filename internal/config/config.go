package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog/log"
)

// Environment represents different deployment environments
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvTesting     Environment = "testing"
	EnvProduction  Environment = "production"
)

// Config holds the configuration for all line-secretary services.
// Environment variables are parsed from the LINE_SECRETARY_ prefix.
type Config struct {
	// Build target selects high-level environment: local, cloud
	BuildTarget string `envconfig:"BUILD_TARGET" default:"local"`

	// Derived or override driver: sqlite, postgres, auto
	DBDriver string `envconfig:"DB_DRIVER" default:"auto"`

	Environment Environment `envconfig:"ENVIRONMENT" default:"development"`

	// HTTP Configuration
	HTTPPort int `envconfig:"HTTP_PORT" default:"8080"`

	// Storage
	PostgresDSN string `envconfig:"POSTGRES_DSN" default:""`
	SQLitePath  string `envconfig:"SQLITE_PATH" default:""`

	// LINE Messaging API / LIFF
	LineChannelSecret string `envconfig:"LINE_CHANNEL_SECRET" default:""`
	LineChannelToken  string `envconfig:"LINE_CHANNEL_TOKEN" default:""`
	LineChannelID     string `envconfig:"LINE_CHANNEL_ID" default:""`

	// Gemini
	GeminiAPIKey string `envconfig:"GEMINI_API_KEY" default:""`
	GeminiModel  string `envconfig:"GEMINI_MODEL" default:"gemini-2.0-flash"`

	// OCR providers
	GoogleVisionAPIKey  string `envconfig:"GOOGLE_VISION_API_KEY" default:""`
	AzureVisionEndpoint string `envconfig:"AZURE_VISION_ENDPOINT" default:""`
	AzureVisionKey      string `envconfig:"AZURE_VISION_KEY" default:""`

	// Default timezone for schedule parsing and cron jobs
	Timezone string `envconfig:"TIMEZONE" default:"Asia/Tokyo"`

	// Testing Configuration
	TestingTempDatabase bool `envconfig:"TESTING_TEMP_DATABASE" default:"true"`
}

// ResolveDefaults validates BuildTarget and derives DBDriver when set
// to "auto" or empty.
func (c *Config) ResolveDefaults() error {
	var defaultDB string

	switch c.BuildTarget {
	case "local":
		defaultDB = "sqlite"
	case "cloud":
		defaultDB = "postgres"
	default:
		return fmt.Errorf("unsupported BUILD_TARGET: %s", c.BuildTarget)
	}

	if c.DBDriver == "" || c.DBDriver == "auto" {
		c.DBDriver = defaultDB
	}

	if c.DBDriver == "sqlite" && c.SQLitePath == "" {
		c.SQLitePath = "line-secretary.db"
	}

	allowedDB := map[string]bool{"postgres": true, "sqlite": true}
	if !allowedDB[c.DBDriver] {
		return fmt.Errorf("unsupported DB_DRIVER: %s", c.DBDriver)
	}
	return nil
}

// New creates a new Config by parsing environment variables.
// Example: LINE_SECRETARY_HTTP_PORT, LINE_SECRETARY_POSTGRES_DSN.
func New() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("LINE_SECRETARY", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	if err := cfg.ResolveDefaults(); err != nil {
		return nil, err
	}

	log.Info().
		Str("build_target", cfg.BuildTarget).
		Str("db_driver", cfg.DBDriver).
		Str("environment", string(cfg.Environment)).
		Int("port", cfg.HTTPPort).
		Str("timezone", cfg.Timezone).
		Bool("postgres_dsn_present", cfg.PostgresDSN != "").
		Bool("line_credentials_present", cfg.LineChannelSecret != "" && cfg.LineChannelToken != "").
		Bool("gemini_key_present", cfg.GeminiAPIKey != "").
		Msg("Configuration loaded")

	return &cfg, nil
}

// NewForTesting creates a config specifically for testing
func NewForTesting() *Config {
	return &Config{
		BuildTarget:         "local",
		DBDriver:            "sqlite",
		Environment:         EnvTesting,
		HTTPPort:            8080,
		SQLitePath:          ":memory:",
		LineChannelSecret:   "test-channel-secret",
		LineChannelToken:    "test-channel-token",
		LineChannelID:       "1234567890",
		GeminiModel:         "gemini-2.0-flash",
		Timezone:            "Asia/Tokyo",
		TestingTempDatabase: true,
	}
}

// IsTesting returns true if the environment is set to testing
func (c *Config) IsTesting() bool {
	return c.Environment == EnvTesting
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

// GetHTTPAddr returns the HTTP server address
func (c *Config) GetHTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}
