package feedsim

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"

	"github.com/okian/audax/pkg/logger"
)

// retrieveRiders fetches every generated rider's row concurrently.
func retrieveRiders(ctx context.Context, config *Config, ids []string, stats *Stats) ([]Entry, error) {
	logger.Get().Info(ctx, "retrieving riders", logger.Int("riders", len(ids)), logger.Int("workers", config.Workers))

	client := newHTTPClient(config.Timeout)

	rows := make([]Entry, len(ids))
	var failed atomic.Int64

	indexes := make(chan int, config.Workers*2)
	var wg sync.WaitGroup

	for w := 0; w < config.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexes {
				if ctx.Err() != nil {
					return
				}
				var row Entry
				err := client.getJSON(ctx, config.BaseURL+"/riders/"+url.PathEscape(ids[i]), &row)
				if err != nil {
					failed.Add(1)
					if config.Verbose {
						logger.Get().Warn(ctx, "rider lookup failed", logger.String("rider", ids[i]), logger.Error(err))
					}
					continue
				}
				rows[i] = row
			}
		}()
	}

	go func() {
		defer close(indexes)
		for i := range ids {
			select {
			case <-ctx.Done():
				return
			case indexes <- i:
			}
		}
	}()

	wg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled during retrieval: %w", err)
	}

	// empty RiderID marks a failed lookup
	valid := make([]Entry, 0, len(rows))
	for _, row := range rows {
		if row.RiderID != "" {
			valid = append(valid, row)
		}
	}
	stats.RidersRetrieved = len(valid)

	logger.Get().Info(ctx, "rider retrieval completed",
		logger.Int("retrieved", len(valid)),
		logger.Int("failed", int(failed.Load())))
	return valid, nil
}

// getLeaderboard retrieves the top N leaderboard rows.
func getLeaderboard(ctx context.Context, config *Config, stats *Stats) ([]Entry, error) {
	client := newHTTPClient(config.Timeout)

	var rows []Entry
	if err := client.getJSON(ctx, fmt.Sprintf("%s/leaderboard?limit=%d", config.BaseURL, config.TopN), &rows); err != nil {
		return nil, err
	}

	stats.LeaderboardEntries = len(rows)
	logger.Get().Info(ctx, "retrieved leaderboard", logger.Int("rows", len(rows)))
	return rows, nil
}
