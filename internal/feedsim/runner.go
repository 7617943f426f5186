package feedsim

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/okian/audax/internal/domain/route"
	"github.com/okian/audax/internal/domain/status"
	"github.com/okian/audax/internal/domain/timefmt"
	"github.com/okian/audax/pkg/logger"
)

// Run writes a generated feed, makes the tracker publish it and verifies
// the result.
func Run(ctx context.Context, config *Config) error {
	stats := &Stats{StartTime: time.Now()}

	logger.Get().Info(ctx, "starting feed simulation",
		logger.String("baseURL", config.BaseURL),
		logger.String("feed", config.FeedFile),
		logger.Int("riders", config.Riders),
		logger.String("clock", config.Clock),
		logger.Int("topN", config.TopN))

	times, now, err := simClock(config)
	if err != nil {
		return err
	}
	client := newHTTPClient(config.Timeout)

	// Step 1: Check service health
	if err := checkServiceHealth(ctx, client, config.BaseURL); err != nil {
		return fmt.Errorf("service health check failed: %w", err)
	}

	// Step 2: Generate riders
	field, err := NewGenerator(route.Default(), times, now, config.Seed).Generate(ctx, config.Riders, config.Workers)
	if err != nil {
		return fmt.Errorf("rider generation failed: %w", err)
	}
	tally(field, stats)

	// Step 3: Publish the feed and ask for a refresh
	before, err := currentGeneration(ctx, client, config.BaseURL)
	if err != nil {
		return fmt.Errorf("reading board failed: %w", err)
	}
	if err := writeFeed(ctx, config.FeedFile, field.Riders); err != nil {
		return fmt.Errorf("writing feed failed: %w", err)
	}
	if err := requestRefresh(ctx, client, config.BaseURL); err != nil {
		return fmt.Errorf("refresh request failed: %w", err)
	}

	// Step 4: Wait for the new board
	stats.Generation, err = waitForGeneration(ctx, client, config.BaseURL, before, config.SettleTimeout)
	if err != nil {
		return err
	}

	// Step 5: Retrieve riders and the leaderboard
	ids := make([]string, len(field.Riders))
	for i := range field.Riders {
		ids[i] = field.Riders[i].ID
	}
	rows, err := retrieveRiders(ctx, config, ids, stats)
	if err != nil {
		return fmt.Errorf("rider retrieval failed: %w", err)
	}
	leaderboard, err := getLeaderboard(ctx, config, stats)
	if err != nil {
		return fmt.Errorf("leaderboard retrieval failed: %w", err)
	}

	// Step 6: Verify results
	if err := verifyResults(ctx, config, field.Expected, rows, leaderboard, stats); err != nil {
		return fmt.Errorf("result verification failed: %w", err)
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, stats)
	return nil
}

// simClock builds the normalizer the feed is written in and parses the
// simulated current time with it.
func simClock(config *Config) (*timefmt.Normalizer, time.Time, error) {
	opts := []timefmt.Option{}
	if config.Timezone != "" {
		loc, err := time.LoadLocation(config.Timezone)
		if err != nil {
			return nil, time.Time{}, fmt.Errorf("timezone %q: %w", config.Timezone, err)
		}
		opts = append(opts, timefmt.WithLocation(loc))
	}
	d, err := time.Parse(time.DateOnly, config.EventStart)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("event start %q: %w", config.EventStart, err)
	}
	opts = append(opts, timefmt.WithEventStart(d.Year(), d.Month(), d.Day()))

	times := timefmt.New(opts...)
	now, ok := times.Parse(config.Clock)
	if !ok {
		return nil, time.Time{}, fmt.Errorf("clock %q is not \"DayName HH:MM\" within the event week", config.Clock)
	}
	return times, now, nil
}

// tally counts the generated riders by reported status.
func tally(field Field, stats *Stats) {
	stats.RidersGenerated = len(field.Riders)
	for i := range field.Riders {
		switch status.ParseReported(field.Riders[i].Status) {
		case status.NotStarted:
			stats.NotStarted++
		case status.Finished:
			stats.Finished++
		case status.DNF:
			stats.Abandoned++
		}
	}
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, client *HTTPClient, baseURL string) error {
	resp, err := client.Get(ctx, baseURL+"/healthz")
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	// the health endpoint answers with Prometheus text
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("service health check failed with status: %d", resp.StatusCode)
	}
	return nil
}

// displayFinalStats logs the run statistics.
func displayFinalStats(ctx context.Context, stats *Stats) {
	logger.Get().Info(ctx, "final statistics",
		logger.Int("ridersGenerated", stats.RidersGenerated),
		logger.Int("notStarted", stats.NotStarted),
		logger.Int("finished", stats.Finished),
		logger.Int("abandoned", stats.Abandoned),
		logger.Int("ridersRetrieved", stats.RidersRetrieved),
		logger.Int("leaderboardEntries", stats.LeaderboardEntries),
		logger.String("generation", stats.Generation),
		logger.Duration("duration", stats.Duration))
}
