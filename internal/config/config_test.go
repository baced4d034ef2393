package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "0123456789abcdef0123456789abcdef"

func TestLoadDefaults(t *testing.T) {
	t.Setenv("WORKBOARD_JWT_SECRET", secret)

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "data/workboard.db", cfg.DBPath)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Equal(t, 5*time.Minute, cfg.CacheTTL)
	assert.False(t, cfg.Redis.Enabled)
}

func TestLoadReadsEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := "WORKBOARD_ADDR=:9090\nWORKBOARD_LOG_LEVEL=debug\nWORKBOARD_REDIS_ENABLED=true\nWORKBOARD_REDIS_DB=2\nWORKBOARD_CACHE_TTL=1m\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("WORKBOARD_JWT_SECRET", secret)
	// Variables loaded from the file leak into the process; register them for cleanup.
	for _, k := range []string{"WORKBOARD_ADDR", "WORKBOARD_LOG_LEVEL", "WORKBOARD_REDIS_ENABLED", "WORKBOARD_REDIS_DB", "WORKBOARD_CACHE_TTL"} {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, 2, cfg.Redis.DB)
	assert.Equal(t, time.Minute, cfg.CacheTTL)
}

func TestLoadRejectsShortSecret(t *testing.T) {
	t.Setenv("WORKBOARD_JWT_SECRET", "short")
	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.ErrorContains(t, err, "WORKBOARD_JWT_SECRET")
}

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel("WARN")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, level)

	_, err = ParseLevel("loud")
	require.Error(t, err)
}
