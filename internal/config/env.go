package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// dotEnvFile is read from the working directory when present
var dotEnvFile = ".env"

// loadDotEnv exports variables from the .env file without overriding the
// ones already set in the process environment.
func loadDotEnv() error {
	if err := godotenv.Load(dotEnvFile); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", dotEnvFile, err)
	}
	return nil
}

// loadFromEnv overrides configuration with environment variables
func loadFromEnv(config *Config) error {
	if err := env.Parse(config); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}
