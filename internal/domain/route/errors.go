package route

import "errors"

// Sentinel kinds for route errors.
var (
	ErrInvalidRoute = errors.New("invalid route")
	ErrInvalidLeg   = errors.New("invalid leg")
)
