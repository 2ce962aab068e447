package server

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// ServerConfig holds the resolved runtime configuration.
type ServerConfig struct {
	TCPPort          int
	HTTPPort         int // WebSocket transport + /metrics; 0 disables
	SSHPort          int // 0 disables
	SSHHostKeyPath   string
	MaxLineLength    int
	MaxMailboxSize   int
	DispatchInterval time.Duration
}

// DefaultConfig returns default server configuration.
func DefaultConfig() ServerConfig {
	return ServerConfig{
		TCPPort:          8083,
		HTTPPort:         8084,
		SSHPort:          0,
		SSHHostKeyPath:   "~/.discussions/ssh_host_key",
		MaxLineLength:    64 * 1024,
		MaxMailboxSize:   1024,
		DispatchInterval: 100 * time.Millisecond,
	}
}

// TOMLConfig represents the structure of the server config file.
type TOMLConfig struct {
	Server        ServerSection        `toml:"server"`
	Limits        LimitsSection        `toml:"limits"`
	Notifications NotificationsSection `toml:"notifications"`
}

type ServerSection struct {
	TCPPort    int    `toml:"tcp_port"`
	HTTPPort   int    `toml:"http_port"`
	SSHPort    int    `toml:"ssh_port"`
	SSHHostKey string `toml:"ssh_host_key"`
}

type LimitsSection struct {
	MaxLineLength  int `toml:"max_line_length"`
	MaxMailboxSize int `toml:"max_mailbox_size"`
}

type NotificationsSection struct {
	DispatchIntervalMs int `toml:"dispatch_interval_ms"`
}

// DefaultTOMLConfig returns the default TOML configuration.
func DefaultTOMLConfig() TOMLConfig {
	return TOMLConfig{
		Server: ServerSection{
			TCPPort:    8083,
			HTTPPort:   8084,
			SSHPort:    0,
			SSHHostKey: "~/.discussions/ssh_host_key",
		},
		Limits: LimitsSection{
			MaxLineLength:  64 * 1024,
			MaxMailboxSize: 1024,
		},
		Notifications: NotificationsSection{
			DispatchIntervalMs: 100,
		},
	}
}

// LoadConfig loads configuration from a TOML file, creating it with defaults
// when it does not exist.
func LoadConfig(path string) (TOMLConfig, error) {
	expanded, err := expandHome(path)
	if err != nil {
		return TOMLConfig{}, err
	}
	path = expanded

	if _, err := os.Stat(path); os.IsNotExist(err) {
		config := DefaultTOMLConfig()
		if err := writeDefaultConfig(path, config); err != nil {
			// Could not persist defaults (permissions); still run with them.
			return config, nil
		}
		return config, nil
	}

	var config TOMLConfig
	if _, err := toml.DecodeFile(path, &config); err != nil {
		return TOMLConfig{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// writeDefaultConfig writes the default config to a file.
func writeDefaultConfig(path string, config TOMLConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	header := `# Discussions Server Configuration
# This file was auto-generated with default values
# Edit as needed and restart the server for changes to take effect

`
	if _, err := f.WriteString(header); err != nil {
		return err
	}

	encoder := toml.NewEncoder(f)
	if err := encoder.Encode(config); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// ToServerConfig converts TOMLConfig to ServerConfig, filling zero values
// with defaults.
func (c *TOMLConfig) ToServerConfig() ServerConfig {
	cfg := DefaultConfig()

	if c.Server.TCPPort != 0 {
		cfg.TCPPort = c.Server.TCPPort
	}
	if c.Server.HTTPPort != 0 {
		cfg.HTTPPort = c.Server.HTTPPort
	}
	cfg.SSHPort = c.Server.SSHPort
	if strings.TrimSpace(c.Server.SSHHostKey) != "" {
		cfg.SSHHostKeyPath = c.Server.SSHHostKey
	}
	if c.Limits.MaxLineLength != 0 {
		cfg.MaxLineLength = c.Limits.MaxLineLength
	}
	if c.Limits.MaxMailboxSize != 0 {
		cfg.MaxMailboxSize = c.Limits.MaxMailboxSize
	}
	if c.Notifications.DispatchIntervalMs != 0 {
		cfg.DispatchInterval = time.Duration(c.Notifications.DispatchIntervalMs) * time.Millisecond
	}

	return cfg
}

func expandHome(path string) (string, error) {
	if !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, path[2:]), nil
}
