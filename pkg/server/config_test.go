package server

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 8083, cfg.TCPPort)
	assert.Equal(t, 8084, cfg.HTTPPort)
	assert.Equal(t, 0, cfg.SSHPort)
	assert.Equal(t, 64*1024, cfg.MaxLineLength)
	assert.Equal(t, 1024, cfg.MaxMailboxSize)
	assert.Equal(t, 100*time.Millisecond, cfg.DispatchInterval)
}

func TestLoadConfigCreatesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultTOMLConfig(), cfg)

	_, err = os.Stat(path)
	assert.NoError(t, err, "missing config file is created with defaults")

	// Loading again reads the file just written.
	again, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, again)
}

func TestLoadConfigParsesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[server]
tcp_port = 9000
http_port = 9001

[limits]
max_line_length = 1024
max_mailbox_size = 16

[notifications]
dispatch_interval_ms = 10
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.TCPPort)
	assert.Equal(t, 9001, cfg.Server.HTTPPort)
	assert.Equal(t, 1024, cfg.Limits.MaxLineLength)
	assert.Equal(t, 16, cfg.Limits.MaxMailboxSize)
	assert.Equal(t, 10, cfg.Notifications.DispatchIntervalMs)
}

func TestLoadConfigRejectsInvalidTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("not [valid toml"), 0644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestToServerConfigFillsZeroValues(t *testing.T) {
	var empty TOMLConfig
	cfg := empty.ToServerConfig()
	assert.Equal(t, DefaultConfig(), cfg)

	partial := TOMLConfig{}
	partial.Server.TCPPort = 9000
	partial.Notifications.DispatchIntervalMs = 25

	cfg = partial.ToServerConfig()
	assert.Equal(t, 9000, cfg.TCPPort)
	assert.Equal(t, 8084, cfg.HTTPPort, "unset fields keep their defaults")
	assert.Equal(t, 25*time.Millisecond, cfg.DispatchInterval)
}
