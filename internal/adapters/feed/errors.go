package feed

import "errors"

// Sentinel kinds for feed errors.
var (
	ErrNoSource         = errors.New("no feed source configured")
	ErrUnexpectedStatus = errors.New("unexpected feed status")
	ErrDecode           = errors.New("feed decode failed")
)
