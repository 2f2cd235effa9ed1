package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsEnvOnly(t *testing.T) {
	cfg, err := Load("", true)
	require.NoError(t, err)
	assert.Equal(t, "prod", cfg.App.Env)
	assert.Equal(t, ":8080", cfg.Server.HTTPAddr)
	assert.Equal(t, 5000, cfg.Engine.ActivityLimit)
	assert.Equal(t, "sharded", cfg.Engine.PriceTree)
	assert.Equal(t, 200*time.Millisecond, cfg.Engine.MinTickInterval)
	assert.Equal(t, 12*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, "@every 1m", cfg.Cron.StatsSpec)
	assert.False(t, cfg.Engine.StrictInvariants, "an unset env must not panic on invariant violations")
	assert.False(t, cfg.IsDev())
}

func TestLoadDevEnablesStrictInvariants(t *testing.T) {
	t.Setenv("AUCTION_APP_ENV", "dev")
	cfg, err := Load("", true)
	require.NoError(t, err)
	assert.True(t, cfg.IsDev())
	assert.True(t, cfg.Engine.StrictInvariants)

	t.Setenv("AUCTION_ENGINE_STRICT_INVARIANTS", "false")
	cfg, err = Load("", true)
	require.NoError(t, err)
	assert.False(t, cfg.Engine.StrictInvariants, "explicit setting wins over the env default")
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "auction.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
app:
  env: prod
server:
  http_addr: ":9000"
  cors_origins: ["https://class.example"]
engine:
  price_tree: hashmap
  inbox_size: 32
auth:
  token_ttl: 30m
`), 0o600))

	t.Setenv("AUCTION_AUTH_HOST_PASSWORD", "s3cret")
	t.Setenv("AUCTION_ENGINE_ACTIVITY_LIMIT", "10")

	cfg, err := Load(path, false)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Server.HTTPAddr)
	assert.Equal(t, []string{"https://class.example"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "hashmap", cfg.Engine.PriceTree)
	assert.Equal(t, 32, cfg.Engine.InboxSize)
	assert.Equal(t, 30*time.Minute, cfg.Auth.TokenTTL)
	assert.Equal(t, "s3cret", cfg.Auth.HostPassword)
	assert.Equal(t, 10, cfg.Engine.ActivityLimit)
	assert.False(t, cfg.Engine.StrictInvariants, "outside dev invariants only log")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), false)
	assert.Error(t, err)
}
