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
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, time.Hour, cfg.Auth.MaxPastSkew)
	assert.False(t, cfg.Webhook.AllowUnverified, "fail closed by default")
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agora.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":9090"
auth:
  max_past_skew: 30m
webhook:
  allow_unverified: true
`), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 30*time.Minute, cfg.Auth.MaxPastSkew)
	assert.Equal(t, 10*time.Minute, cfg.Auth.MaxFutureSkew, "unset fields keep defaults")
	assert.True(t, cfg.Webhook.AllowUnverified)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agora.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  addr: \":9090\"\n"), 0600))

	t.Setenv("AGORA_ADDR", ":7070")
	t.Setenv("AGORA_WEBHOOK_SECRET", "from-env")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.Server.Addr)
	assert.Equal(t, "from-env", cfg.Webhook.Secret)
}

func TestLoadRejectsBadSkew(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agora.yaml")
	require.NoError(t, os.WriteFile(path, []byte("auth:\n  max_past_skew: -1s\n"), 0600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
