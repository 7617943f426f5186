package status

import "errors"

// Sentinel kinds for status errors.
var (
	ErrInvalidStatus = errors.New("invalid status")
)
