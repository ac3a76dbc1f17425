// Package config loads the application configuration from YAML, with
// secrets sourced from the environment (a .env file is honored when present).
package config

import (
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/stockpulse-lab/stockpulse/pkg/errors"
)

const polygonAPIKeyEnv = "POLYGON_API_KEY"

// Duration parses YAML values like "2h" or "30m" into a time.Duration.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeInvalidConfiguration, err,
			"invalid duration %q", value.Value)
	}

	*d = Duration(parsed)

	return nil
}

type DatabaseConfig struct {
	// Path to the DuckDB file. Empty means in-memory.
	Path string `yaml:"path"`
}

type ProviderConfig struct {
	Type string `yaml:"type" validate:"required"`
}

type RefreshConfig struct {
	Workers        int           `yaml:"workers" validate:"gte=0"`
	HistoryYears   int           `yaml:"history_years" validate:"gte=0"`
	StaleThreshold Duration `yaml:"stale_threshold"`
	ShowProgress   bool          `yaml:"show_progress"`
}

type ServerConfig struct {
	Address string `yaml:"address"`
}

type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Provider ProviderConfig `yaml:"provider"`
	Refresh  RefreshConfig  `yaml:"refresh"`
	Server   ServerConfig   `yaml:"server"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Database: DatabaseConfig{Path: "stockpulse.db"},
		Provider: ProviderConfig{Type: "polygon"},
		Refresh: RefreshConfig{
			Workers:        4,
			HistoryYears:   5,
			StaleThreshold: Duration(24 * time.Hour),
			ShowProgress:   true,
		},
		Server: ServerConfig{Address: ":8080"},
	}
}

// Load reads the YAML config at path. An empty path yields Default.
func Load(path string) (Config, error) {
	// Secrets may live in a .env next to the binary. Missing file is fine.
	_ = godotenv.Load()

	config := Default()

	if path == "" {
		return config, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(errors.ErrCodeInvalidConfiguration, err,
			"failed to read config file %s", path)
	}

	if err := yaml.Unmarshal(content, &config); err != nil {
		return Config{}, errors.Wrapf(errors.ErrCodeInvalidConfiguration, err,
			"failed to parse config file %s", path)
	}

	if err := config.Validate(); err != nil {
		return Config{}, err
	}

	return config, nil
}

// Validate checks the loaded configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid configuration", err)
	}

	return nil
}

// PolygonAPIKey returns the polygon API key from the environment.
func (c *Config) PolygonAPIKey() string {
	return os.Getenv(polygonAPIKeyEnv)
}
