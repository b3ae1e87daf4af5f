package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	var cfg Config
	require.Equal(t, "0.0.0.0:8080", cfg.Addr())
	require.Equal(t, DefaultEditWindow, cfg.EditWindow())

	cfg.Server.Address = "127.0.0.1"
	cfg.Server.Port = 9001
	cfg.Chat.EditWindow = 5 * time.Minute
	require.Equal(t, "127.0.0.1:9001", cfg.Addr())
	require.Equal(t, 5*time.Minute, cfg.EditWindow())
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	doc := `
server:
  address: 10.0.0.1
  port: 8443
storage:
  db_path: /var/lib/marketsync
chat:
  edit_window: 15m
  max_body_len: 2000
  retention:
    enabled: true
    cron: "0 3 * * *"
    period: 720h
notify:
  collections: ["products", "orders"]
security:
  api_keys:
    backend: ["bk1"]
    frontend: ["fk1", "fk2"]
directory:
  - id: adm-1
    role: shop
    counterparts:
      - id: shop-1
        role: shop
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "10.0.0.1:8443", cfg.Addr())
	require.Equal(t, "/var/lib/marketsync", cfg.Storage.DBPath)
	require.Equal(t, 15*time.Minute, cfg.EditWindow())
	require.Equal(t, 2000, cfg.Chat.MaxBodyLen)
	require.True(t, cfg.Chat.Retention.Enabled)
	require.Equal(t, 720*time.Hour, cfg.Chat.Retention.Period)
	require.Equal(t, []string{"products", "orders"}, cfg.Notify.Collections)
	require.Len(t, cfg.Directory, 1)
	require.Equal(t, "shop-1", cfg.Directory[0].Counterparts[0].ID)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("MARKETSYNC_DB_PATH", "/tmp/env-db")
	t.Setenv("MARKETSYNC_EDIT_WINDOW", "30m")
	t.Setenv("MARKETSYNC_API_BACKEND_KEYS", "bk-env")

	var cfg Config
	used := LoadEnvOverrides(&cfg)
	require.True(t, used)
	require.Equal(t, "/tmp/env-db", cfg.Storage.DBPath)
	require.Equal(t, 30*time.Minute, cfg.EditWindow())
	require.Contains(t, cfg.Security.APIKeys.Backend, "bk-env")
}

func TestLoadEffectiveMissingFileDegrades(t *testing.T) {
	cfg, _, err := LoadEffective(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	require.NotNil(t, cfg)
}

func TestBuildRuntimeBackendKeysSign(t *testing.T) {
	var cfg Config
	cfg.Security.APIKeys.Backend = []string{"bk1"}
	cfg.Security.APIKeys.Frontend = []string{"fk1"}

	rc := BuildRuntime(&cfg)
	SetRuntime(rc)
	t.Cleanup(func() { SetRuntime(nil) })

	require.Contains(t, GetBackendKeys(), "bk1")
	require.Contains(t, GetFrontendKeys(), "fk1")
	// backend keys double as identity-signing keys
	require.Contains(t, GetSigningKeys(), "bk1")
	require.NotContains(t, GetSigningKeys(), "fk1")
}
