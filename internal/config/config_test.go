package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":3000", cfg.Addr)
	assert.Equal(t, 3*time.Second, cfg.StartDelay)
	assert.Empty(t, cfg.AllowedOrigins)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("LOBBY_ADDR", ":9090")
	t.Setenv("START_DELAY", "500ms")
	t.Setenv("ALLOWED_ORIGINS", "localhost:5173, example.com")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, 500*time.Millisecond, cfg.StartDelay)
	assert.Equal(t, []string{"localhost:5173", "example.com"}, cfg.AllowedOrigins)
}

func TestLoad_BadStartDelay(t *testing.T) {
	t.Setenv("START_DELAY", "soon")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("START_DELAY", "-1s")
	_, err = Load()
	assert.Error(t, err)
}
