package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// ConfigPath returns the default configuration file path: ~/.confidant/config.json.
func ConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".confidant/config.json"
	}
	return filepath.Join(home, ".confidant", "config.json")
}

// DataDir returns the confidant data directory: ~/.confidant.
func DataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".confidant"
	}
	return filepath.Join(home, ".confidant")
}

// Load reads and parses the config file at path, then applies environment
// overrides. If path is empty, ConfigPath() is used.
// On parse failure it prints a warning and falls back to DefaultConfig().
func Load(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}

	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	default:
		if err := json.Unmarshal(data, &cfg); err != nil {
			fmt.Printf("Warning: failed to parse config %s: %v\n", path, err)
			fmt.Println("Using default configuration.")
			cfg = DefaultConfig()
		}
	}

	ApplyEnv(&cfg)
	return &cfg, nil
}

// Save writes cfg to path as indented JSON.
// If path is empty, ConfigPath() is used.
func Save(cfg *Config, path string) error {
	if path == "" {
		path = ConfigPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}
