package feedsim

import "time"

// Default simulation settings.
const (
	DefaultRiders        = 500
	DefaultTopN          = 50
	DefaultEventStart    = "2025-08-03"
	DefaultClock         = "Monday 12:00"
	DefaultSettleTimeout = 30 * time.Second
	DefaultSeed          = 1
)

// Config holds configuration for one simulation run.
type Config struct {
	BaseURL       string        // base URL of the tracker
	FeedFile      string        // feed document the tracker reads
	Riders        int           // number of riders to generate
	TopN          int           // leaderboard rows to fetch
	Workers       int           // concurrent generators and lookups
	Timeout       time.Duration // HTTP request timeout
	SettleTimeout time.Duration // how long to wait for the new board
	EventStart    string        // YYYY-MM-DD
	Clock         string        // simulated now, "Monday 12:00"
	Timezone      string        // IANA zone, empty means Europe/London
	Seed          uint64
	Verbose       bool
}

// Entry is the subset of a leaderboard row the run checks.
type Entry struct {
	Rank       int     `json:"rank"`
	RiderID    string  `json:"rider_id"`
	Status     string  `json:"status"`
	FurthestKm float64 `json:"furthest_km"`
}

// Stats holds run statistics.
type Stats struct {
	RidersGenerated    int
	NotStarted         int
	Finished           int
	Abandoned          int
	RidersRetrieved    int
	Mismatches         int
	LeaderboardEntries int
	Generation         string
	StartTime          time.Time
	EndTime            time.Time
	Duration           time.Duration
}
