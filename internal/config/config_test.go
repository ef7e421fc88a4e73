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
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, ":17171", cfg.Server.GRPC.Address)
	assert.Equal(t, 1000, cfg.Server.GRPC.MaxConcurrentStreams)
	assert.Equal(t, 30*time.Second, cfg.Server.GRPC.KeepaliveTime)
	assert.Equal(t, "immediate", cfg.Rules.RequestMode)
	assert.True(t, cfg.Rules.ReturnDisplacedEquipment)
	assert.False(t, cfg.Replay.Enabled)
	assert.Empty(t, cfg.Database.URL)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
}

func TestLoadFileAndEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  grpc:
    address: "127.0.0.1:9000"
  websocket:
    allowed_origins: ["http://localhost:3000"]
logging:
  level: debug
  format: json
rules:
  request_mode: deferred
  return_displaced_equipment: false
`), 0o600))
	t.Setenv("DUNGEON_DATABASE_URL", "postgres://dungeon@localhost/dungeon")
	t.Setenv("DUNGEON_REPLAY_ENABLED", "true")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.Server.GRPC.Address)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.Server.WebSocket.AllowedOrigins)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "deferred", cfg.Rules.RequestMode)
	assert.False(t, cfg.Rules.ReturnDisplacedEquipment)
	assert.Equal(t, "postgres://dungeon@localhost/dungeon", cfg.Database.URL)
	assert.Equal(t, int32(10), cfg.Database.MaxConns)
	assert.True(t, cfg.Replay.Enabled)
	assert.Equal(t, "replays", cfg.Replay.Directory)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
rules:
  request_mode: sometimes
logging:
  format: xml
`), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rules.request_mode")
	assert.Contains(t, err.Error(), "logging.format")
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unclosed"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}
