package feedsim

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/okian/audax/pkg/logger"
)

// File permission constants.
const (
	logFilePermission = 0o600
)

// SetupLogging sends log output to both stdout and a file. If logFile is
// empty, a timestamped filename is generated.
func SetupLogging(logFile string) error {
	if logFile == "" {
		logFile = "feed_sim_" + time.Now().Format("20060102_150405") + ".log"
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}

	if err := logger.Init(logger.WithWriter(io.MultiWriter(os.Stdout, file))); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

// ShowHelp prints usage information for the feed simulator.
func ShowHelp() {
	os.Stdout.WriteString(`Audax Feed Simulator
====================

Generates a synthetic rider feed, writes it where the tracker reads it,
forces a refresh and checks the published board against the generated
distances.

Usage:
  go run ./cmd/feed-sim [options]

Options:
  -url string
        Base URL of the tracker (default "http://localhost:9080")
  -feed string
        Feed file the tracker reads (default "data/riders.json")
  -riders int
        Number of riders to generate (default 500)
  -top int
        Number of leaderboard rows to fetch (default 50)
  -workers int
        Number of concurrent workers (default CPU cores * 2)
  -event string
        Event start date, YYYY-MM-DD (default "2025-08-03")
  -clock string
        Simulated current time as "DayName HH:MM" (default "Monday 12:00")
  -seed int
        Random seed; the same seed yields the same feed (default 1)
  -timeout duration
        HTTP request timeout (default 30s)
  -log string
        Log file (default: feed_sim_TIMESTAMP.log)
  -verbose
        Log every mismatch
  -help
        Show this help message

Examples:
  # Simulate the second morning of the event
  go run ./cmd/feed-sim -clock "Monday 08:00"

  # A bigger field against another instance
  go run ./cmd/feed-sim -riders 5000 -url http://localhost:8080
`)
}
