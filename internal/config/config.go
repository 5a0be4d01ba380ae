package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is where Load looks when no path is given.
const DefaultConfigPath = "~/.config/pomo/config.yaml"

// Config holds process-level options. Timer settings live in the database.
// Empty paths mean the built-in default locations.
type Config struct {
	DBPath        string `yaml:"db_path"`
	StatePath     string `yaml:"state_path"`
	Debug         bool   `yaml:"debug"`
	LogFile       string `yaml:"log_file"`
	MaxLogFiles   int    `yaml:"max_log_files"`
	Notifications bool   `yaml:"notifications"`
	Sound         bool   `yaml:"sound"`
	FocusMode     bool   `yaml:"focus_mode"`
}

// DefaultConfig returns a Config populated with all default values.
func DefaultConfig() *Config {
	return &Config{
		MaxLogFiles:   20,
		Notifications: true,
		Sound:         true,
		FocusMode:     false,
	}
}

// Load reads the YAML file at path over the defaults. A missing file is not
// an error. Environment overrides are applied last and paths are expanded.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigPath
	}
	path, err := ExpandPath(path)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	if err := cfg.expand(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("POMO_DB_PATH"); v != "" {
		c.DBPath = v
	}
	if v := os.Getenv("POMO_STATE_PATH"); v != "" {
		c.StatePath = v
	}
	if v := os.Getenv("POMO_DEBUG"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Debug = b
		}
	}
}

func (c *Config) expand() error {
	for _, p := range []*string{&c.DBPath, &c.StatePath, &c.LogFile} {
		v, err := ExpandPath(*p)
		if err != nil {
			return err
		}
		*p = v
	}
	return nil
}

// ExpandPath replaces a leading ~ with the user's home directory.
func ExpandPath(path string) (string, error) {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}

// Write saves cfg as YAML at path, creating the directory.
func Write(cfg *Config, path string) error {
	path, err := ExpandPath(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}
