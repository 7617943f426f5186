package repository

import "errors"

// Sentinel kinds for board errors.
var (
	ErrNotFound     = errors.New("rider not found")
	ErrInvalidLimit = errors.New("invalid leaderboard limit")
	ErrNoSnapshot   = errors.New("no board published yet")
)
