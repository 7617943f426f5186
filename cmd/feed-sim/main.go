package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"
	_ "time/tzdata" // day names must resolve in the event zone on any host

	"github.com/okian/audax/internal/feedsim"
)

// Default configuration constants.
const (
	defaultWorkers = 2 // multiplier for runtime.NumCPU()
	defaultTimeout = 30 * time.Second
	defaultRunTime = 10 * time.Minute
)

func main() {
	var (
		baseURL  = flag.String("url", "http://localhost:9080", "Base URL of the tracker")
		feedFile = flag.String("feed", "data/riders.json", "Feed file the tracker reads")
		riders   = flag.Int("riders", feedsim.DefaultRiders, "Number of riders to generate")
		topN     = flag.Int("top", feedsim.DefaultTopN, "Number of leaderboard rows to fetch")
		workers  = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent workers")
		event    = flag.String("event", feedsim.DefaultEventStart, "Event start date, YYYY-MM-DD")
		clock    = flag.String("clock", feedsim.DefaultClock, "Simulated current time, \"DayName HH:MM\"")
		timezone = flag.String("tz", "", "Event timezone (default Europe/London)")
		seed     = flag.Uint64("seed", feedsim.DefaultSeed, "Random seed")
		timeout  = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		logFile  = flag.String("log", "", "Log file (default: feed_sim_TIMESTAMP.log)")
		verbose  = flag.Bool("verbose", false, "Log every mismatch")
		help     = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		feedsim.ShowHelp()
		return
	}

	if err := feedsim.SetupLogging(*logFile); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultRunTime)
	defer cancel()

	config := &feedsim.Config{
		BaseURL:       *baseURL,
		FeedFile:      *feedFile,
		Riders:        *riders,
		TopN:          *topN,
		Workers:       *workers,
		Timeout:       *timeout,
		SettleTimeout: feedsim.DefaultSettleTimeout,
		EventStart:    *event,
		Clock:         *clock,
		Timezone:      *timezone,
		Seed:          *seed,
		Verbose:       *verbose,
	}

	if err := feedsim.Run(ctx, config); err != nil {
		os.Stderr.WriteString("Simulation failed: " + err.Error() + "\n")
		cancel()
		os.Exit(1) //nolint:gocritic // cancel already called
	}
}
