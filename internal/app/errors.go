package service

import "errors"

// Sentinel errors for the service lifecycle.
var (
	ErrNoSource   = errors.New("no feed source configured")
	ErrNotStarted = errors.New("service not started")
)
