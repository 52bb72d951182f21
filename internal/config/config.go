// Package config loads process configuration from environment variables.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config is the dominiond process configuration.
type Config struct {
	// DBPath is the SQLite database file holding persisted state.
	DBPath string `env:"DOMINION_DB_PATH" envDefault:"data/dominion.db"`

	// TuningPath is an optional YAML tuning file; empty means defaults.
	TuningPath string `env:"DOMINION_TUNING_PATH"`

	// APIPort is the HTTP API listen port.
	APIPort int `env:"DOMINION_API_PORT" envDefault:"8080"`

	// AdminKey is the bearer token required on state-changing endpoints.
	// Empty disables them.
	AdminKey string `env:"DOMINION_ADMIN_KEY"`

	// LogLevel is the slog level name (debug, info, warn, error).
	LogLevel string `env:"DOMINION_LOG_LEVEL" envDefault:"info"`
}

// Parse loads configuration from the environment.
func Parse() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
