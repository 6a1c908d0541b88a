// Package config provides configuration loading and validation for the CLI
// and server.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config represents the configuration that can be loaded from a JSON file.
// All fields are optional; missing values use defaults or must be provided via CLI flags.
type Config struct {
	// Behavior
	APIKey        string `json:"api_key,omitempty"`        // Gemini API key
	DatabaseURL   string `json:"database_url,omitempty"`   // PostgreSQL connection URL
	MaxIterations int    `json:"max_iterations,omitempty"` // Default revision loop budget per job
	Verbose       bool   `json:"verbose,omitempty"`        // Print detailed pipeline output

	// Server
	Port        int    `json:"port,omitempty"`         // HTTP listen port
	CORSOrigins string `json:"cors_origins,omitempty"` // Comma-separated allowed origins

	// Worker
	WorkerConcurrency int `json:"worker_concurrency,omitempty"` // Concurrent jobs per worker process
	PollSeconds       int `json:"poll_seconds,omitempty"`       // Queue poll interval
}

// LoadConfig loads configuration from a JSON file.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	// Resolve path relative to current directory if not absolute
	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return &cfg, nil
}

// Validate checks that the configuration has valid values.
func (c *Config) Validate() error {
	if c.MaxIterations < 0 {
		return fmt.Errorf("config error: 'max_iterations' must be non-negative")
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("config error: 'port' must be between 0 and 65535")
	}
	if c.WorkerConcurrency < 0 {
		return fmt.Errorf("config error: 'worker_concurrency' must be non-negative")
	}
	if c.PollSeconds < 0 {
		return fmt.Errorf("config error: 'poll_seconds' must be non-negative")
	}
	return nil
}

// MergeWithDefaults returns a new Config with empty fields filled from
// defaults. This is used to apply config file values as defaults for CLI
// flags.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	// String fields: use default if empty
	if result.APIKey == "" {
		result.APIKey = defaults.APIKey
	}
	if result.DatabaseURL == "" {
		result.DatabaseURL = defaults.DatabaseURL
	}
	if result.CORSOrigins == "" {
		result.CORSOrigins = defaults.CORSOrigins
	}

	// Int fields: use default if zero
	if result.MaxIterations == 0 {
		result.MaxIterations = defaults.MaxIterations
	}
	if result.Port == 0 {
		result.Port = defaults.Port
	}
	if result.WorkerConcurrency == 0 {
		result.WorkerConcurrency = defaults.WorkerConcurrency
	}
	if result.PollSeconds == 0 {
		result.PollSeconds = defaults.PollSeconds
	}

	// Bool fields: true wins
	result.Verbose = result.Verbose || defaults.Verbose

	return result
}
