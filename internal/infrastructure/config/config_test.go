package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "8090", cfg.Server.Port)
	assert.Equal(t, "local", cfg.Host.Mode)
	assert.Equal(t, 16, cfg.Mux.WriteDelayMs)
	assert.Equal(t, 150, cfg.Mux.ResizeDelayMs)
	assert.Equal(t, 3, cfg.Mux.CreateAttempts)
	assert.Equal(t, 200, cfg.Mux.CreateBackoffMs)
	assert.True(t, cfg.RateLimit.Enabled)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "9999")
	t.Setenv("HOST_MODE", "remote")
	t.Setenv("HOST_ADDR", "ws://hostd:7000/host")
	t.Setenv("MUX_WRITE_DELAY_MS", "8")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9999", cfg.Server.Port)
	assert.Equal(t, "remote", cfg.Host.Mode)
	assert.Equal(t, "ws://hostd:7000/host", cfg.Host.Address)
	assert.Equal(t, 8, cfg.Mux.WriteDelayMs)
	assert.Equal(t, "debug", cfg.Logging.Level)
	// Untouched fields fall back to struct tag defaults.
	assert.Equal(t, 150, cfg.Mux.ResizeDelayMs)
}

func TestLoadOrDefault(t *testing.T) {
	cfg := LoadOrDefault()
	require.NotNil(t, cfg)
	assert.NotEmpty(t, cfg.Server.Port)
}
