package config

import "errors"

var (
	// ErrMissingAPIBaseURL indicates the API base URL is not configured
	ErrMissingAPIBaseURL = errors.New("apiBaseUrl is required")

	// ErrInvalidPageSize indicates the configured page size is not positive
	ErrInvalidPageSize = errors.New("pageSize must be > 0")
)
