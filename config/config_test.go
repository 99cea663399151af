package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigCreatesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config", "config.json")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Game, cfg.Game)
	assert.FileExists(t, path)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, SaveConfig(DefaultConfig(), path))

	t.Setenv("GEMINI_API_KEY", "test-key")
	t.Setenv("DATABASE_DRIVER", "sqlite")
	t.Setenv("WHATSAPP_PROPHETS", "5521999999999,5521888888888")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "test-key", cfg.Oracle.APIKey)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, []string{"5521999999999", "5521888888888"}, cfg.WhatsApp.Prophets)
	// Untouched values keep the file defaults
	assert.Equal(t, "8080", cfg.Server.Port)
}

func TestSaveConfigDropsAPIKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	path := filepath.Join(t.TempDir(), "config.json")
	cfg := DefaultConfig()
	cfg.Oracle.APIKey = "secret"
	require.NoError(t, SaveConfig(cfg, path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Empty(t, loaded.Oracle.APIKey)
}

func TestCycleDuration(t *testing.T) {
	g := DefaultConfig().Game
	assert.Equal(t, 30*time.Second, g.CycleDuration())
	assert.Equal(t, 100*time.Millisecond, g.TickDuration())
}
