package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
)

// DefaultPath returns the default config file location under the user's
// config directory.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "savor.json"
	}
	return filepath.Join(dir, "savor", "config.json")
}

// DefaultSessionPath returns the default session file location.
func DefaultSessionPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "savor-session.json"
	}
	return filepath.Join(dir, "savor", "session.json")
}

// Load reads configuration from the given path, falling back to defaults
// when the file does not exist, then applies environment overrides and
// validates. Pass "" for the default path.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}

	cfg := DefaultConfig()
	cfg.SessionPath = DefaultSessionPath()

	b, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err == nil {
		if err := json.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("malformed config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides lets environment variables win over file values:
// SAVOR_API_URL, SAVOR_SESSION_PATH, SAVOR_PAGE_SIZE, SAVOR_LOG_LEVEL,
// SAVOR_DEBUG.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SAVOR_API_URL"); v != "" {
		cfg.APIBaseURL = v
	}
	if v := os.Getenv("SAVOR_SESSION_PATH"); v != "" {
		cfg.SessionPath = v
	}
	if v := os.Getenv("SAVOR_PAGE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.PageSize = n
		}
	}
	if v := os.Getenv("SAVOR_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("SAVOR_DEBUG"); v != "" {
		cfg.Debug = v == "true" || v == "1"
	}
}
