package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.Database.MaxConnections)
	assert.Equal(t, 1000, cfg.Database.MaxRows)
	assert.Equal(t, "30s", cfg.Database.QueryTimeout)
	assert.Equal(t, "ollama", cfg.Inference.Provider)
	assert.Equal(t, 3, cfg.Engine.MaxAttempts)
	assert.Equal(t, 16384, cfg.Engine.MaxPromptBytes)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, ":8000", cfg.Server.Addr)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("AISAVVY_LLM_PROVIDER", "openai")
	t.Setenv("AISAVVY_LLM_API_KEY", "test-key")
	t.Setenv("AISAVVY_ENGINE_MAX_ATTEMPTS", "5")
	t.Setenv("AISAVVY_CACHE_ENABLED", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.Inference.Provider)
	assert.Equal(t, "test-key", cfg.Inference.APIKey)
	assert.Equal(t, 5, cfg.Engine.MaxAttempts)
	assert.False(t, cfg.Cache.Enabled)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	content := `{
		"inference": {"provider": "gemini", "model": "gemini-1.5-flash"},
		"engine": {"max_attempts": 4}
	}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("AISAVVY_CONFIG", path)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "gemini", cfg.Inference.Provider)
	assert.Equal(t, "gemini-1.5-flash", cfg.Inference.Model)
	assert.Equal(t, 4, cfg.Engine.MaxAttempts)
}

func TestEnvWinsOverFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	require.NoError(t, os.WriteFile(path, []byte(`{"logging": {"level": "debug"}}`), 0o600))

	t.Setenv("AISAVVY_CONFIG", path)
	t.Setenv("AISAVVY_LOG_LEVEL", "error")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "error", cfg.Logging.Level)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"bad log level", "AISAVVY_LOG_LEVEL", "verbose"},
		{"bad log format", "AISAVVY_LOG_FORMAT", "xml"},
		{"bad provider", "AISAVVY_LLM_PROVIDER", "bedrock"},
		{"bad duration", "AISAVVY_DB_QUERY_TIMEOUT", "fast"},
		{"zero max rows", "AISAVVY_DB_MAX_ROWS", "0"},
		{"zero attempts", "AISAVVY_ENGINE_MAX_ATTEMPTS", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingConfigFile(t *testing.T) {
	t.Setenv("AISAVVY_CONFIG", "/nonexistent/config.json")

	_, err := Load()
	assert.Error(t, err)
}

func TestDuration(t *testing.T) {
	assert.Equal(t, 30*time.Second, Duration("30s"))
	assert.Equal(t, time.Duration(0), Duration("not-a-duration"))
}
