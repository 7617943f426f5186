// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/segmentio/ksuid"

	"github.com/okian/audax/internal/adapters/feed"
	"github.com/okian/audax/internal/adapters/mq/queue"
	"github.com/okian/audax/internal/adapters/mq/worker"
	"github.com/okian/audax/internal/adapters/repository"
	"github.com/okian/audax/internal/domain/dedupe"
	"github.com/okian/audax/internal/domain/model"
	"github.com/okian/audax/internal/domain/route"
	"github.com/okian/audax/internal/domain/status"
	"github.com/okian/audax/internal/domain/timefmt"
	"github.com/okian/audax/internal/domain/tracker"
	"github.com/okian/audax/pkg/logger"
	"github.com/okian/audax/pkg/metrics"
)

// Default service configuration.
const (
	defaultQueueSize       = 16
	defaultRefreshInterval = time.Minute
	defaultCacheSize       = 16
	defaultCacheTTL        = time.Minute
	defaultMaxLimit        = 100
	stopTimeout            = 5 * time.Second
)

// components are built by Start and live until the next Start.
type components struct {
	feed   *feed.Client
	engine *tracker.Engine
	store  *repository.SnapshotStore
	queue  *queue.InMemoryQueue
	worker *worker.RefreshWorker
	// pending holds the keys of requests that are queued but not yet picked
	// up by the worker.
	pending dedupe.Deduper
}

// Service implements the API dependencies for the rider tracker.
type Service struct {
	mu sync.RWMutex

	comp atomic.Pointer[components]

	// Configuration
	source          feed.Source
	cacheSize       int
	cacheTTL        time.Duration
	routes          *route.Model
	times           *timefmt.Normalizer
	engineOpts      []tracker.Option
	queueSize       int
	refreshInterval time.Duration
	refreshOnStart  bool
	maxLimit        int

	// State
	started     bool
	lastSuccess atomic.Int64
	lastError   atomic.Pointer[string]

	// Logging
	logger logger.Logger
}

var _ worker.Refresher = (*Service)(nil)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithSource sets where the rider document is read from.
func WithSource(src feed.Source) Option {
	return func(s *Service) { s.source = src }
}

// WithCache sets the feed cache size and how long a fetched document is reused.
func WithCache(size int, ttl time.Duration) Option {
	return func(s *Service) {
		if size > 0 {
			s.cacheSize = size
		}
		if ttl >= 0 {
			s.cacheTTL = ttl
		}
	}
}

// WithRoutes sets the route model.
func WithRoutes(m *route.Model) Option {
	return func(s *Service) {
		if m != nil {
			s.routes = m
		}
	}
}

// WithNormalizer sets the time normalizer, which also owns the clock.
func WithNormalizer(n *timefmt.Normalizer) Option {
	return func(s *Service) {
		if n != nil {
			s.times = n
		}
	}
}

// WithEngineOptions forwards options to the tracking engine.
func WithEngineOptions(opts ...tracker.Option) Option {
	return func(s *Service) { s.engineOpts = append(s.engineOpts, opts...) }
}

// WithQueueSize sets how many refresh requests may wait.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithRefreshInterval sets the scheduled refresh period. Zero disables it.
func WithRefreshInterval(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.refreshInterval = d
		}
	}
}

// WithRefreshOnStart controls whether Start triggers an immediate refresh.
func WithRefreshOnStart(enabled bool) Option {
	return func(s *Service) { s.refreshOnStart = enabled }
}

// WithMaxLimit caps leaderboard reads.
func WithMaxLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxLimit = n
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		cacheSize:       defaultCacheSize,
		cacheTTL:        defaultCacheTTL,
		queueSize:       defaultQueueSize,
		refreshInterval: defaultRefreshInterval,
		refreshOnStart:  true,
		maxLimit:        defaultMaxLimit,
		logger:          nil, // replaced when the service starts
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start builds the components and runs the refresh worker until ctx ends or
// Stop is called.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.source == nil {
		return ErrNoSource
	}

	if s.logger == nil {
		s.logger = logger.Get()
	}
	if s.routes == nil {
		s.routes = route.Default()
	}
	if s.times == nil {
		s.times = timefmt.New()
	}

	s.logger.Info(ctx, "starting rider tracker service...")

	c := &components{
		feed: feed.NewClient(s.source,
			feed.WithCache(feed.NewCache(s.cacheSize)),
			feed.WithTTL(s.cacheTTL),
			feed.WithLogger(s.logger.Named("feed")),
		),
		engine: tracker.New(s.routes, s.times, s.engineOpts...),
		store:  repository.NewSnapshotStore(repository.WithMaxLimit(s.maxLimit)),
		queue:  queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize)),
		// the worker holds one request beyond the queue capacity
		pending: dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.queueSize + 1)),
	}
	c.worker = worker.NewRefreshWorker(c.queue, s,
		worker.WithLogger(s.logger),
		worker.WithInterval(s.refreshInterval),
		worker.WithRefreshOnStart(s.refreshOnStart),
	)
	s.comp.Store(c)
	go c.worker.Run(ctx)

	s.started = true
	s.logger.Info(ctx, "rider tracker service started",
		logger.String("source", s.source.Name()),
		logger.Int("queueSize", s.queueSize),
		logger.Duration("refreshInterval", s.refreshInterval),
	)

	return nil
}

// Stop gracefully shuts down the service. The last published board stays
// readable.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()

	s.logger.Info(ctx, "stopping rider tracker service...")

	c := s.comp.Load()
	if err := c.worker.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "refresh worker did not stop", logger.Error(err))
	}
	_ = c.queue.Close()

	s.started = false
	s.logger.Info(ctx, "rider tracker service stopped")
}

// Refresh fetches the rider set, evaluates it and publishes a new board.
func (s *Service) Refresh(ctx context.Context, req worker.Request) error { //nolint:gocritic // hugeParam: matches interface
	c := s.comp.Load()
	if c == nil {
		return ErrNotStarted
	}

	// Only queued requests carry an id and hold a pending key. Requests
	// arriving from here on may see newer data, so they queue again.
	if req.ID != "" {
		c.pending.Unrecord(ctx, pendingKey(req.Reason, req.Force))
	}

	start := time.Now()
	defer func() {
		metrics.RecordRefreshLatency(float64(time.Since(start).Milliseconds()))
	}()

	if req.Force {
		c.feed.Invalidate()
	}
	riders, err := c.feed.Riders(ctx)
	if err != nil {
		return s.fail(fmt.Errorf("refresh %s: %w", req.Reason, err))
	}

	report := c.engine.Report(riders, c.engine.Now())
	snap, err := c.store.Publish(ctx, report)
	if err != nil {
		return s.fail(fmt.Errorf("publish: %w", err))
	}

	metrics.RecordRefresh("ok")
	metrics.UpdateRefreshLastSuccess(snap.TakenAt.Unix())
	metrics.UpdateRidersTotal(report.Summary.Total)
	for _, st := range status.All() {
		metrics.UpdateRidersByStatus(st.String(), report.Summary.Count(st))
	}
	metrics.UpdateRidersStalled(report.Summary.Stalled)
	metrics.AddUnparseableTimestamps(report.Unparseable)
	metrics.AddUnmatchedControls(report.Unmatched)
	s.lastSuccess.Store(snap.TakenAt.Unix())

	s.log().Info(ctx, "board published",
		logger.String("generation", snap.Generation),
		logger.String("reason", req.Reason),
		logger.Int("riders", report.Summary.Total),
		logger.Int("unparseable", report.Unparseable),
		logger.Int("unmatched", report.Unmatched),
	)
	return nil
}

func (s *Service) fail(err error) error {
	metrics.RecordRefresh("error")
	msg := err.Error()
	s.lastError.Store(&msg)
	return err
}

// RequestRefresh queues an out-of-band refresh. A request identical to one
// that is still waiting is coalesced into it and does not take a queue slot.
func (s *Service) RequestRefresh(ctx context.Context, reason string, force bool) (model.RefreshRequest, error) {
	c := s.comp.Load()
	if c == nil || !s.isStarted() {
		return model.RefreshRequest{}, queue.ErrClosed
	}

	req := model.RefreshRequest{
		ID:          ksuid.New().String(),
		Reason:      reason,
		Force:       force,
		RequestedAt: time.Now(),
	}
	key := pendingKey(reason, force)
	if c.pending.SeenAndRecord(ctx, key) {
		req.Coalesced = true
		metrics.RecordRefreshCoalesced()
		s.log().Debug(ctx, "refresh request coalesced",
			logger.String("id", req.ID),
			logger.String("reason", reason),
		)
		return req, nil
	}
	if err := c.queue.Enqueue(ctx, req); err != nil {
		c.pending.Unrecord(ctx, key)
		s.log().Warn(ctx, "refresh request rejected",
			logger.String("id", req.ID),
			logger.String("reason", reason),
			logger.Error(err),
		)
		return model.RefreshRequest{}, err
	}

	s.log().Debug(ctx, "refresh requested",
		logger.String("id", req.ID),
		logger.String("reason", reason),
		logger.Bool("force", force),
	)
	return req, nil
}

func pendingKey(reason string, force bool) string {
	if force {
		return reason + "|force"
	}
	return reason + "|cached"
}

func (s *Service) isStarted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}

// Current returns the latest published board.
func (s *Service) Current(ctx context.Context) (*repository.Snapshot, error) {
	c := s.comp.Load()
	if c == nil {
		return nil, repository.ErrNoSnapshot
	}
	return c.store.Current(ctx)
}

// Rider returns one rider's row and evaluation.
func (s *Service) Rider(ctx context.Context, riderID string) (repository.Detail, error) {
	c := s.comp.Load()
	if c == nil {
		return repository.Detail{}, repository.ErrNoSnapshot
	}
	return c.store.Rider(ctx, riderID)
}

// TopN returns the first n leaderboard rows.
func (s *Service) TopN(ctx context.Context, n int) ([]repository.Entry, error) {
	c := s.comp.Load()
	if c == nil {
		return nil, repository.ErrNoSnapshot
	}
	return c.store.TopN(ctx, n)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]any{
		"started":         s.started,
		"queueSize":       s.queueSize,
		"refreshInterval": s.refreshInterval.String(),
		"maxLimit":        s.maxLimit,
	}
	if s.source != nil {
		stats["source"] = s.source.Name()
	}
	if msg := s.lastError.Load(); msg != nil {
		stats["lastError"] = *msg
	}
	if ts := s.lastSuccess.Load(); ts > 0 {
		stats["lastSuccess"] = time.Unix(ts, 0).UTC().Format(time.RFC3339)
	}

	if c := s.comp.Load(); c != nil {
		queueLen := c.queue.Len(ctx)
		stats["queueLength"] = queueLen
		stats["riders"] = c.store.Count(ctx)
		stats["refreshes"] = c.worker.Runs()
		stats["refreshFailures"] = c.worker.Failures()
		if snap, err := c.store.Current(ctx); err == nil {
			stats["generation"] = snap.Generation
		}

		metrics.UpdateQueueSize(queueLen)
	}

	return stats
}

func (s *Service) log() logger.Logger {
	if s.logger == nil {
		return logger.Nop()
	}
	return s.logger
}
