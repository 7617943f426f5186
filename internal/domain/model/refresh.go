package model

import "time"

// RefreshRequest asks for the rider set to be fetched and evaluated again
// outside the regular interval.
type RefreshRequest struct {
	ID          string    `json:"id"`
	Reason      string    `json:"reason"`
	Force       bool      `json:"force"` // bypass the feed cache
	RequestedAt time.Time `json:"requested_at"`
	// Coalesced is set when an identical request was already waiting and
	// this one was folded into it instead of being queued.
	Coalesced bool `json:"coalesced,omitempty"`
}
