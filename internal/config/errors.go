package config

import "errors"

var (
	// ErrInvalidConfig is returned by Validate and by loaders for values that
	// parse but make no sense.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrLoadConfig wraps read and decode failures.
	ErrLoadConfig    = errors.New("load config failed")
	ErrInvalidRoutes = errors.New("invalid route file")
)
