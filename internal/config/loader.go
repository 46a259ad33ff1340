// loader.go implements the configuration loading lifecycle.
//
// The loading sequence is:
//  1. Enforce UTC timezone to prevent drift bugs.
//  2. Load .env file via godotenv (non-fatal if absent).
//  3. Use envconfig to process struct tags and populate the Config struct.
//  4. Validate the struct using go-playground/validator.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// ConfigErrorType classifies configuration failures for diagnostics.
type ConfigErrorType string

const (
	ErrParsing    ConfigErrorType = "parsing"
	ErrValidation ConfigErrorType = "validation"
)

// ConfigError is a diagnostic error type returned by Load to aid debugging.
// It wraps a ConfigErrorType and an underlying error message.
type ConfigError struct {
	Type    ConfigErrorType
	Message string
	Err     error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Load loads and validates the bot configuration from the environment.
//
// A .env file in the working directory is applied first without overriding
// variables already present in the environment. Missing required values or
// malformed durations surface as a ConfigError so the process can fail fast
// with a readable diagnostic.
func Load() (*Config, error) {
	// Step 1: Enforce UTC timezone to prevent drift bugs.
	time.Local = time.UTC

	// Step 2: Load .env file (non-fatal if absent). godotenv does NOT
	// override existing environment variables.
	_ = godotenv.Load()

	// Step 3: Process envconfig tags to populate the Config struct. The empty
	// prefix means tags are read verbatim (envconfig:"BOT_TOKEN" reads BOT_TOKEN).
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, &ConfigError{
			Type:    ErrParsing,
			Message: "failed to process environment configuration",
			Err:     err,
		}
	}

	// Step 4: Validate the populated struct.
	if err := validator.New().Struct(&cfg); err != nil {
		return nil, &ConfigError{
			Type:    ErrValidation,
			Message: "configuration failed validation",
			Err:     err,
		}
	}

	return &cfg, nil
}
