package feedsim

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/okian/audax/pkg/logger"
)

// Sentinel verification failures.
var (
	ErrNoRiders      = errors.New("no riders retrieved")
	ErrDistance      = errors.New("distance mismatch")
	ErrLeaderboard   = errors.New("leaderboard inconsistent")
	ErrMissingRiders = errors.New("riders missing from the board")
)

const distanceTolerance = 1e-6

// verifyResults checks the board against the generated distances.
func verifyResults(ctx context.Context, config *Config, expected map[string]float64, rows, leaderboard []Entry, stats *Stats) error {
	if len(rows) == 0 {
		return ErrNoRiders
	}
	if len(rows) != len(expected) {
		return fmt.Errorf("%w: %d of %d", ErrMissingRiders, len(expected)-len(rows), len(expected))
	}

	for _, row := range rows {
		want := expected[row.RiderID]
		if math.Abs(row.FurthestKm-want) > distanceTolerance {
			stats.Mismatches++
			if config.Verbose {
				logger.Get().Warn(ctx, "distance mismatch",
					logger.String("rider", row.RiderID),
					logger.Float64("want", want),
					logger.Float64("got", row.FurthestKm))
			}
		}
	}
	if stats.Mismatches > 0 {
		return fmt.Errorf("%w: %d riders", ErrDistance, stats.Mismatches)
	}

	if err := verifyLeaderboard(expected, leaderboard); err != nil {
		return err
	}

	displayTop(ctx, leaderboard)
	logger.Get().Info(ctx, "result verification completed")
	return nil
}

// verifyLeaderboard checks that the first row holds the furthest distance
// and that distances never increase down the board.
func verifyLeaderboard(expected map[string]float64, leaderboard []Entry) error {
	if len(leaderboard) == 0 {
		return fmt.Errorf("%w: empty leaderboard", ErrLeaderboard)
	}

	furthest := 0.0
	for _, km := range expected {
		furthest = math.Max(furthest, km)
	}
	if math.Abs(leaderboard[0].FurthestKm-furthest) > distanceTolerance {
		return fmt.Errorf("%w: top row at %.1f km, furthest rider at %.1f km",
			ErrLeaderboard, leaderboard[0].FurthestKm, furthest)
	}

	for i := 1; i < len(leaderboard); i++ {
		if leaderboard[i].FurthestKm > leaderboard[i-1].FurthestKm {
			return fmt.Errorf("%w: row %d is further than row %d", ErrLeaderboard, i+1, i)
		}
		if leaderboard[i].Rank < leaderboard[i-1].Rank {
			return fmt.Errorf("%w: rank decreases at row %d", ErrLeaderboard, i+1)
		}
	}
	return nil
}

func displayTop(ctx context.Context, leaderboard []Entry) {
	for i := 0; i < min(10, len(leaderboard)); i++ {
		e := leaderboard[i]
		logger.Get().Info(ctx, "leaderboard",
			logger.Int("rank", e.Rank),
			logger.String("rider", e.RiderID),
			logger.String("status", e.Status),
			logger.Float64("km", e.FurthestKm))
	}
}
