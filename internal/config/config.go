// Package config loads the client configuration from a JSON file with
// environment-variable overrides.
package config

// Config holds all configuration for the savor client tools.
type Config struct {
	APIBaseURL  string `json:"apiBaseUrl"`
	SessionPath string `json:"sessionPath"` // where the bearer token is persisted
	PageSize    int    `json:"pageSize"`    // list page size
	LogLevel    string `json:"logLevel"`
	Debug       bool   `json:"debug"`
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.APIBaseURL == "" {
		return ErrMissingAPIBaseURL
	}
	if c.PageSize < 1 {
		return ErrInvalidPageSize
	}
	return nil
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		APIBaseURL: "http://localhost:8081",
		PageSize:   20,
		LogLevel:   "info",
		Debug:      false,
	}
}
