package repository

import (
	"context"
	"sort"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/okian/audax/internal/domain/tracker"
	"github.com/okian/audax/pkg/metrics"
)

// DefaultMaxLimit is the largest TopN page unless WithMaxLimit says otherwise.
const DefaultMaxLimit = 500

// SnapshotStore publishes immutable boards through an atomic pointer, so
// readers never wait on a refresh in progress.
type SnapshotStore struct {
	snapshot atomic.Pointer[Snapshot]
	maxLimit int
	clock    func() time.Time
}

var _ Store = (*SnapshotStore)(nil)

// NewSnapshotStore constructs an empty store.
func NewSnapshotStore(opts ...Option) *SnapshotStore {
	s := &SnapshotStore{
		maxLimit: DefaultMaxLimit,
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	metrics.UpdateRepositoryRecordsTotal(0)
	return s
}

// Publish builds the ranking for report and swaps it in.
func (s *SnapshotStore) Publish(ctx context.Context, report tracker.Report) (*Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	snap := buildSnapshot(report)
	snap.Generation = uuid.NewString()
	snap.TakenAt = s.clock()
	s.snapshot.Store(snap)

	metrics.RecordRepositorySwap()
	metrics.UpdateRepositoryRecordsTotal(len(snap.Ranking))
	return snap, nil
}

// Current returns the latest board.
func (s *SnapshotStore) Current(ctx context.Context) (*Snapshot, error) {
	snap := s.snapshot.Load()
	if snap == nil {
		return nil, ErrNoSnapshot
	}
	return snap, nil
}

// Rider looks a rider up on the current board.
func (s *SnapshotStore) Rider(ctx context.Context, riderID string) (Detail, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryQueryLatency(float64(time.Since(start).Milliseconds()))
	}()

	snap := s.snapshot.Load()
	if snap == nil {
		metrics.RecordErrorByComponent("repository", "no_snapshot")
		return Detail{}, ErrNoSnapshot
	}
	i, ok := snap.results[riderID]
	if !ok {
		metrics.RecordErrorByComponent("repository", "not_found")
		return Detail{}, ErrNotFound
	}
	return Detail{
		Entry:  snap.Ranking[snap.ranks[riderID]],
		Result: snap.Report.Results[i],
	}, nil
}

// TopN returns the first n rows of the current board. n above the configured
// maximum is capped.
func (s *SnapshotStore) TopN(ctx context.Context, n int) ([]Entry, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryQueryLatency(float64(time.Since(start).Milliseconds()))
	}()

	if n < 1 {
		metrics.RecordErrorByComponent("repository", "invalid_limit")
		return nil, ErrInvalidLimit
	}
	snap := s.snapshot.Load()
	if snap == nil {
		metrics.RecordErrorByComponent("repository", "no_snapshot")
		return nil, ErrNoSnapshot
	}
	n = min(n, s.maxLimit, len(snap.Ranking))
	out := make([]Entry, n)
	copy(out, snap.Ranking[:n])
	return out, nil
}

// Count returns the number of riders on the current board.
func (s *SnapshotStore) Count(ctx context.Context) int {
	snap := s.snapshot.Load()
	if snap == nil {
		return 0
	}
	return len(snap.Ranking)
}

func buildSnapshot(report tracker.Report) *Snapshot {
	snap := &Snapshot{
		Report:  report,
		Ranking: make([]Entry, 0, len(report.Results)),
		results: make(map[string]int, len(report.Results)),
		ranks:   make(map[string]int, len(report.Results)),
	}
	for i := range report.Results {
		r := &report.Results[i]
		// first record wins when the feed repeats an id
		if _, dup := snap.results[r.RiderID]; dup {
			continue
		}
		snap.results[r.RiderID] = i
		snap.Ranking = append(snap.Ranking, entryFor(r))
	}

	sortEntries(snap.Ranking)
	assignRanksWithTies(snap.Ranking)
	for i, e := range snap.Ranking {
		snap.ranks[e.RiderID] = i
	}
	return snap
}

func entryFor(r *tracker.Result) Entry {
	p := &r.Progress
	return Entry{
		RiderID:        r.RiderID,
		Name:           r.Name,
		Variant:        p.Variant,
		Status:         r.Status().String(),
		FurthestKm:     p.FurthestKm,
		EstimatedKm:    p.EstimatedKm,
		Percent:        p.Percent,
		ElapsedMinutes: p.ElapsedMinutes,
		HasElapsed:     p.HasElapsed,
		Elapsed:        r.Elapsed,
	}
}

// sortEntries orders by furthest distance desc, then elapsed asc with unknown
// elapsed last, then rider id asc.
func sortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.FurthestKm != b.FurthestKm {
			return a.FurthestKm > b.FurthestKm
		}
		if a.HasElapsed != b.HasElapsed {
			return a.HasElapsed
		}
		if a.ElapsedMinutes != b.ElapsedMinutes {
			return a.ElapsedMinutes < b.ElapsedMinutes
		}
		return a.RiderID < b.RiderID
	})
}

func sameStanding(a, b Entry) bool {
	return a.FurthestKm == b.FurthestKm && a.HasElapsed == b.HasElapsed && a.ElapsedMinutes == b.ElapsedMinutes
}

// assignRanksWithTies gives riders level on distance and time the same rank.
// Ranks are consecutive.
func assignRanksWithTies(entries []Entry) {
	rank := 0
	for i := range entries {
		if i == 0 || !sameStanding(entries[i-1], entries[i]) {
			rank++
		}
		entries[i].Rank = rank
	}
}
