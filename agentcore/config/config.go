// Package config loads and validates the runtime configuration.
//
// Precedence (highest to lowest): environment variables > config file >
// built-in defaults. Environment variables use the TABLETALK_ prefix with
// "__" as the nesting separator, e.g. TABLETALK_DATABASE__DSN maps to
// database.dsn.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// ConfigFileName is the default name of the config file.
const ConfigFileName = "tabletalk.yaml"

// ConfigFileNameAlt is the alternate name of the config file.
const ConfigFileNameAlt = "tabletalk.yml"

// envPrefix is the prefix for environment variable overrides.
const envPrefix = "TABLETALK_"

// DatabaseConfig holds data store connection settings.
type DatabaseConfig struct {
	// Driver selects the database dialect: sqlite or postgres.
	Driver string `koanf:"driver"`

	// DSN is the driver-specific connection string.
	DSN string `koanf:"dsn"`
}

// LLMConfig holds model provider settings.
type LLMConfig struct {
	// APIKey authenticates against the provider. Falls back to the
	// GEMINI_API_KEY environment variable when empty.
	APIKey string `koanf:"api_key"`

	// BaseURL overrides the provider endpoint, mainly for tests.
	BaseURL string `koanf:"base_url"`

	GeneratorModel string `koanf:"generator_model"`
	JudgeModel     string `koanf:"judge_model"`
	SummaryModel   string `koanf:"summary_model"`
}

// Config is the full runtime configuration.
type Config struct {
	// MaxIterations bounds the refinement loop. Must be at least 1.
	MaxIterations int `koanf:"max_iterations"`

	// LLMTimeoutSeconds bounds each individual model call.
	LLMTimeoutSeconds int `koanf:"llm_timeout_seconds"`

	// QueryTimeoutSeconds bounds each statement execution.
	QueryTimeoutSeconds int `koanf:"query_timeout_seconds"`

	// LogLevel is one of DEBUG, INFO, WARN, ERROR.
	LogLevel string `koanf:"log_level"`

	// OTLPEndpoint enables trace export when non-empty.
	OTLPEndpoint string `koanf:"otlp_endpoint"`

	Database DatabaseConfig `koanf:"database"`
	LLM      LLMConfig      `koanf:"llm"`
}

// Default returns the built-in configuration defaults.
func Default() *Config {
	return &Config{
		MaxIterations:       3,
		LLMTimeoutSeconds:   60,
		QueryTimeoutSeconds: 30,
		LogLevel:            "INFO",
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "tabletalk.db",
		},
		LLM: LLMConfig{
			GeneratorModel: "gemini-2.5-flash",
			JudgeModel:     "gemini-2.5-flash",
			SummaryModel:   "gemini-2.5-flash",
		},
	}
}

// Load reads configuration from the given file path (empty means search the
// working directory), then applies environment variable overrides.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	defaults := Default()
	if err := k.Load(confmap.Provider(map[string]interface{}{
		"max_iterations":        defaults.MaxIterations,
		"llm_timeout_seconds":   defaults.LLMTimeoutSeconds,
		"query_timeout_seconds": defaults.QueryTimeoutSeconds,
		"log_level":             defaults.LogLevel,
		"database.driver":       defaults.Database.Driver,
		"database.dsn":          defaults.Database.DSN,
		"llm.generator_model":   defaults.LLM.GeneratorModel,
		"llm.judge_model":       defaults.LLM.JudgeModel,
		"llm.summary_model":     defaults.LLM.SummaryModel,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("config: loading defaults: %w", err)
	}

	if path == "" {
		path = FindConfigFile(".")
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
	}

	// TABLETALK_MAX_ITERATIONS -> max_iterations
	// TABLETALK_DATABASE__DSN  -> database.dsn
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, envPrefix))
		return strings.ReplaceAll(key, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("config: loading environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("config: decoding: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FindConfigFile looks for tabletalk.yaml or tabletalk.yml in dir.
// Returns empty string if neither exists.
func FindConfigFile(dir string) string {
	for _, name := range []string{ConfigFileName, ConfigFileNameAlt} {
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

// Validate checks the configuration for values that cannot work.
func (c *Config) Validate() error {
	if c.MaxIterations < 1 {
		return fmt.Errorf("config: max_iterations must be at least 1, got %d", c.MaxIterations)
	}
	if c.LLMTimeoutSeconds < 1 {
		return fmt.Errorf("config: llm_timeout_seconds must be at least 1, got %d", c.LLMTimeoutSeconds)
	}
	if c.QueryTimeoutSeconds < 1 {
		return fmt.Errorf("config: query_timeout_seconds must be at least 1, got %d", c.QueryTimeoutSeconds)
	}
	switch strings.ToUpper(c.LogLevel) {
	case "DEBUG", "INFO", "WARN", "ERROR":
	default:
		return fmt.Errorf("config: unknown log_level %q", c.LogLevel)
	}
	switch strings.ToLower(c.Database.Driver) {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("config: unknown database driver %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("config: database dsn is required")
	}
	if c.LLM.GeneratorModel == "" || c.LLM.JudgeModel == "" || c.LLM.SummaryModel == "" {
		return fmt.Errorf("config: generator, judge, and summary models are all required")
	}
	return nil
}

// LLMTimeout returns the per-call model timeout as a duration.
func (c *Config) LLMTimeout() time.Duration {
	return time.Duration(c.LLMTimeoutSeconds) * time.Second
}

// QueryTimeout returns the per-statement execution timeout as a duration.
func (c *Config) QueryTimeout() time.Duration {
	return time.Duration(c.QueryTimeoutSeconds) * time.Second
}

// ResolveAPIKey returns the configured API key, falling back to the
// GEMINI_API_KEY environment variable.
func (c *Config) ResolveAPIKey() string {
	if c.LLM.APIKey != "" {
		return c.LLM.APIKey
	}
	return os.Getenv("GEMINI_API_KEY")
}
