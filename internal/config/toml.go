// Package config provides configuration helpers and TOML parsing.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// FileConfig represents the TOML configuration file.
type FileConfig struct {
	Practice PracticeConfig `toml:"practice"`
	Storage  StorageConfig  `toml:"storage"`
	Log      LogConfig      `toml:"log"`
}

// PracticeConfig maps practice-related settings. They apply when the CLI
// creates a user and as defaults for session flags.
type PracticeConfig struct {
	SessionLength *int     `toml:"session-length"`
	MaxNumber     *int     `toml:"max-number"`
	Operations    []string `toml:"operations"`
	WeakFactor    *float64 `toml:"weak-factor"`
	HistoryLimit  *int     `toml:"history-limit"`
}

// StorageConfig maps the database location and size cap.
type StorageConfig struct {
	Path       *string `toml:"path"`
	QuotaBytes *int    `toml:"quota-bytes"`
}

// LogConfig maps logging settings.
type LogConfig struct {
	Level *string `toml:"level"`
}

// Template is written by `tuimath config` when no file exists.
const Template = `# tuimath configuration

[practice]
# session-length = 10
# max-number = 20
# operations = ["add", "sub", "mul", "div"]
# weak-factor = 2.0
# history-limit = 0

[storage]
# path = "~/.local/share/tuimath/tuimath.db"
# quota-bytes = 5242880

[log]
# level = "info"
`

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return FileConfig{}, fmt.Errorf("unknown config keys: %v", undecoded)
	}
	return cfg, nil
}
