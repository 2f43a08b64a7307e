package mpevent

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// ConfigPath returns the default location of the optional mpevent config
// file: $XDG_CONFIG_HOME/mpevent/config.toml, falling back to
// ~/.config/mpevent/config.toml.
func ConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "mpevent", "config.toml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "mpevent", "config.toml")
	}
	return filepath.Join(home, ".config", "mpevent", "config.toml")
}

// LoadConfig reads config.toml and returns a Config. A missing file is
// not an error: it returns a zero-value Config (library defaults apply).
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	data, err := os.ReadFile(ConfigPath())
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("mpevent: reading config: %w", err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("mpevent: parsing config.toml: %w", err)
	}
	return cfg, nil
}

// SaveConfig writes cfg to ConfigPath, creating its parent directory if
// needed.
func SaveConfig(cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(ConfigPath()), 0o755); err != nil {
		return fmt.Errorf("mpevent: creating config dir: %w", err)
	}
	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("mpevent: marshaling config: %w", err)
	}
	return os.WriteFile(ConfigPath(), data, 0o644)
}

// Apply installs cfg's overrides as the active package-level state (shm
// directory and lock stall probes). Call after LoadConfig if the application wants the file's
// settings to take effect.
func (cfg *Config) Apply() {
	if cfg.ShmDir != "" {
		SetShmDir(cfg.ShmDir)
	}
	if cfg.LockStallProbes > 0 {
		SetLockStallProbes(cfg.LockStallProbes)
	}
}
