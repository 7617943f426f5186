// Package repository keeps the latest evaluated board and answers rider and
// leaderboard lookups against it.
package repository

import (
	"context"
	"time"

	"github.com/okian/audax/internal/domain/tracker"
)

// Entry represents a leaderboard row.
type Entry struct {
	Rank           int     `json:"rank"`
	RiderID        string  `json:"rider_id"`
	Name           string  `json:"name"`
	Variant        string  `json:"variant"`
	Status         string  `json:"status"`
	FurthestKm     float64 `json:"furthest_km"`
	EstimatedKm    float64 `json:"estimated_km"`
	Percent        float64 `json:"percent"`
	ElapsedMinutes int     `json:"elapsed_minutes"`
	HasElapsed     bool    `json:"has_elapsed"`
	Elapsed        string  `json:"elapsed"`
}

// Detail is a rider's leaderboard row together with the full evaluation.
type Detail struct {
	Entry
	Result tracker.Result `json:"result"`
}

// Snapshot is one published board. It is never modified after Publish.
type Snapshot struct {
	Generation string         `json:"generation"`
	TakenAt    time.Time      `json:"taken_at"`
	Report     tracker.Report `json:"report"`
	Ranking    []Entry        `json:"-"`

	// rider id to position in Report.Results and Ranking
	results map[string]int
	ranks   map[string]int
}

// Store provides access to the published board.
type Store interface {
	// Publish replaces the current board with one built from report.
	Publish(ctx context.Context, report tracker.Report) (*Snapshot, error)

	// Current returns the latest board or ErrNoSnapshot.
	Current(ctx context.Context) (*Snapshot, error)

	// Rider returns the row and evaluation of one rider.
	// Returns ErrNotFound if the rider is unknown.
	Rider(ctx context.Context, riderID string) (Detail, error)

	// TopN returns the first n rows ordered by distance covered.
	TopN(ctx context.Context, n int) ([]Entry, error)

	// Count returns the number of riders on the current board.
	Count(ctx context.Context) int
}
