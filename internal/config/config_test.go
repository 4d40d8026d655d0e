package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "3000", cfg.Server.Port)
	assert.Equal(t, "http://localhost:8000", cfg.API.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.Poll.Interval)
	assert.Equal(t, "gemini-1.5-flash", cfg.Research.ModelPreference)
	assert.Equal(t, "file", cfg.Store.Driver)
	assert.Equal(t, 20, cfg.RateLimit.StartPerHour)
	assert.Equal(t, "8000", cfg.DevBackend.Port)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("API_URL", "http://backend:9000/")
	t.Setenv("POLL_INTERVAL", "250ms")
	t.Setenv("STORE_DRIVER", "Redis")
	t.Setenv("PORT", "8080")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://backend:9000", cfg.API.BaseURL)
	assert.Equal(t, 250*time.Millisecond, cfg.Poll.Interval)
	assert.Equal(t, "redis", cfg.Store.Driver)
	assert.Equal(t, "8080", cfg.Server.Port)
}

func TestLoad_PublicAPIURLFallback(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("NEXT_PUBLIC_API_URL", "http://public:8000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "http://public:8000", cfg.API.BaseURL)
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	content := "poll:\n  interval: 1s\nresearch:\n  model_preference: gemini-1.5-pro\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o600))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, time.Second, cfg.Poll.Interval)
	assert.Equal(t, "gemini-1.5-pro", cfg.Research.ModelPreference)
}

func TestReadSecret(t *testing.T) {
	secret := filepath.Join(t.TempDir(), "redis_password")
	require.NoError(t, os.WriteFile(secret, []byte("s3cret\n"), 0o600))

	t.Setenv("REDIS_PASSWORD", "")
	t.Setenv("REDIS_PASSWORD_FILE", secret)

	readSecret("REDIS_PASSWORD")
	assert.Equal(t, "s3cret", os.Getenv("REDIS_PASSWORD"))
}
