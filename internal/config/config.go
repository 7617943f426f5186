// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Defaults live in New; Load layers a YAML file and the environment on top.
// - Derived values (zone, event date, waves) are parsed by accessor methods
//   so Validate and the service agree on one interpretation.
// - External errors are wrapped with this package's sentinels.
package config

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata" // timezone names must resolve on hosts without zoneinfo
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// FeedURL is fetched with GET when set. Otherwise FeedFile is read.
	FeedURL  string `koanf:"feed_url"`
	FeedFile string `koanf:"feed_file"`

	// FeedTTL is how long a fetched rider set is reused.
	FeedTTL time.Duration `koanf:"feed_ttl"`

	// FeedTimeout bounds one HTTP fetch.
	FeedTimeout time.Duration `koanf:"feed_timeout"`

	// FeedCacheSize bounds the number of cached feed resources.
	FeedCacheSize int `koanf:"feed_cache_size"`

	// RefreshIntervalS is the period of the refresh loop in seconds; 0 only
	// refreshes on request.
	RefreshIntervalS int `koanf:"refresh_interval_s"`

	// RefreshQueueSize bounds pending POST /refresh requests.
	RefreshQueueSize int `koanf:"refresh_queue_size"`

	// RouteFile optionally replaces the built-in control tables.
	RouteFile string `koanf:"route_file"`

	// EventStart is the first day of the event, YYYY-MM-DD. Empty means today.
	EventStart string `koanf:"event_start"`

	// Timezone is an IANA zone name.
	Timezone string `koanf:"timezone"`

	// NaiveTime makes time differences ignore DST transitions.
	NaiveTime bool `koanf:"naive_time"`

	// StallMinutes since the last record before an in-progress rider is DNF.
	StallMinutes int `koanf:"stall_minutes"`

	// Position estimate tunables.
	GraceMinutes    int     `koanf:"grace_minutes"`
	DefaultSpeedKmh float64 `koanf:"default_speed_kmh"`
	NextControlCap  float64 `koanf:"next_control_cap"`

	// Recent arrivals feed.
	ArrivalsWindowMinutes int `koanf:"arrivals_window_minutes"`
	ArrivalsLimit         int `koanf:"arrivals_limit"`

	// MaxLeaderboardLimit caps GET /leaderboard?limit.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit"`

	// WaveStarts overrides scheduled starts, wave code to HH:MM.
	WaveStarts map[string]string `koanf:"wave_starts"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:              "info",
		Addr:                  ":9080",
		FeedFile:              "data/riders.json",
		FeedTTL:               time.Minute,
		FeedTimeout:           15 * time.Second,
		FeedCacheSize:         16,
		RefreshIntervalS:      60,
		RefreshQueueSize:      16,
		Timezone:              "Europe/London",
		StallMinutes:          720,
		GraceMinutes:          10,
		DefaultSpeedKmh:       15,
		NextControlCap:        0.9,
		ArrivalsWindowMinutes: 1440,
		ArrivalsLimit:         25,
		MaxLeaderboardLimit:   100,
	}
}

// Validate checks ranges and that every derived value parses.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.FeedURL == "" && c.FeedFile == "":
		return fmt.Errorf("%w: feed_url or feed_file must be set", ErrInvalidConfig)
	case c.RefreshIntervalS < 0:
		return fmt.Errorf("%w: refresh_interval_s must not be negative", ErrInvalidConfig)
	case c.RefreshQueueSize < 1:
		return fmt.Errorf("%w: refresh_queue_size must be positive", ErrInvalidConfig)
	case c.StallMinutes < 1:
		return fmt.Errorf("%w: stall_minutes must be positive", ErrInvalidConfig)
	case c.NextControlCap <= 0 || c.NextControlCap >= 1:
		return fmt.Errorf("%w: next_control_cap must be between 0 and 1", ErrInvalidConfig)
	case c.MaxLeaderboardLimit < 1:
		return fmt.Errorf("%w: max_leaderboard_limit must be positive", ErrInvalidConfig)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if _, _, err := c.EventDate(); err != nil {
		return err
	}
	if _, err := c.Waves(); err != nil {
		return err
	}
	return nil
}

// RefreshInterval is RefreshIntervalS as a duration.
func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.RefreshIntervalS) * time.Second
}

// Location loads the configured timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: timezone %q: %v", ErrInvalidConfig, c.Timezone, err)
	}
	return loc, nil
}

// EventDate parses EventStart. ok is false when it is not set.
func (c *Config) EventDate() (time.Time, bool, error) {
	if c.EventStart == "" {
		return time.Time{}, false, nil
	}
	d, err := time.Parse(time.DateOnly, c.EventStart)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("%w: event_start %q: %v", ErrInvalidConfig, c.EventStart, err)
	}
	return d, true, nil
}

// Waves parses WaveStarts. It returns nil when no override is configured.
func (c *Config) Waves() (map[string]time.Duration, error) {
	if len(c.WaveStarts) == 0 {
		return nil, nil
	}
	out := make(map[string]time.Duration, len(c.WaveStarts))
	for code, hhmm := range c.WaveStarts {
		tod, err := ParseTimeOfDay(hhmm)
		if err != nil {
			return nil, fmt.Errorf("%w: wave %s: %v", ErrInvalidConfig, code, err)
		}
		out[strings.ToUpper(code)] = tod
	}
	return out, nil
}

// ParseTimeOfDay converts "HH:MM" to an offset from midnight.
func ParseTimeOfDay(s string) (time.Duration, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("time of day %q: %w", s, err)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}
