package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `{
		"api_key": "test-key",
		"database_url": "postgres://localhost/content",
		"max_iterations": 2,
		"port": 8080,
		"verbose": true
	}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "test-key", cfg.APIKey)
	assert.Equal(t, "postgres://localhost/content", cfg.DatabaseURL)
	assert.Equal(t, 2, cfg.MaxIterations)
	assert.Equal(t, 8080, cfg.Port)
	assert.True(t, cfg.Verbose)
}

func TestLoadConfig_Errors(t *testing.T) {
	_, err := LoadConfig("")
	assert.Error(t, err)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	_, err = LoadConfig(writeConfig(t, `{not json`))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := Config{MaxIterations: 3, Port: 8080}
	assert.NoError(t, valid.Validate())

	bad := Config{MaxIterations: -1}
	assert.Error(t, bad.Validate())

	bad = Config{Port: 70000}
	assert.Error(t, bad.Validate())
}

func TestMergeWithDefaults(t *testing.T) {
	cfg := Config{APIKey: "from-file", Verbose: false}
	defaults := Config{
		APIKey:            "ignored",
		DatabaseURL:       "postgres://localhost/content",
		MaxIterations:     3,
		Port:              8080,
		WorkerConcurrency: 2,
		PollSeconds:       5,
	}

	merged := cfg.MergeWithDefaults(defaults)
	assert.Equal(t, "from-file", merged.APIKey)
	assert.Equal(t, "postgres://localhost/content", merged.DatabaseURL)
	assert.Equal(t, 3, merged.MaxIterations)
	assert.Equal(t, 8080, merged.Port)
	assert.Equal(t, 2, merged.WorkerConcurrency)
	assert.Equal(t, 5, merged.PollSeconds)
}

func TestNewJWTConfig(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("JWT_EXPIRATION_HOURS", "48")

	cfg, err := NewJWTConfig()
	require.NoError(t, err)
	assert.Equal(t, "test-secret", cfg.Secret)
	assert.Equal(t, 48, cfg.ExpirationHours)
}

func TestNewJWTConfig_MissingSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	_, err := NewJWTConfig()
	assert.Error(t, err)
}

func TestNewJWTConfig_InvalidExpiration(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("JWT_EXPIRATION_HOURS", "zero")

	_, err := NewJWTConfig()
	assert.Error(t, err)
}
