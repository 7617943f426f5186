package worker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/audax/internal/adapters/mq/queue"
	"github.com/okian/audax/pkg/logger"
	"github.com/okian/audax/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultInterval = time.Minute

	TriggerStartup  = "startup"
	TriggerInterval = "interval"
	TriggerRequest  = "request"
)

// Request is what the worker reads off the queue.
type Request = queue.Request

// Refresher fetches and evaluates the rider set once.
type Refresher interface {
	Refresh(ctx context.Context, req Request) error
}

// Queue defines how the worker receives refresh requests.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Request
}

// Worker runs refreshes until stopped.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown stops the worker after the refresh in flight, if any.
	Shutdown(ctx context.Context) error
}

// RefreshWorker serialises every refresh onto one goroutine so two
// evaluations never race to publish.
type RefreshWorker struct {
	queue     Queue
	refresher Refresher
	name      string
	interval  time.Duration
	onStart   bool

	runs   atomic.Int64
	failed atomic.Int64

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

var _ Worker = (*RefreshWorker)(nil)

// NewRefreshWorker creates a new worker with configuration options.
func NewRefreshWorker(q Queue, r Refresher, opts ...Option) *RefreshWorker {
	w := &RefreshWorker{
		queue:     q,
		refresher: r,
		name:      "refresh-worker",
		interval:  defaultInterval,
		onStart:   true,
		shutdown:  make(chan struct{}),
		done:      make(chan struct{}),
		logger:    logger.Nop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.Named(w.name)
	return w
}

// Run starts the worker loop.
func (w *RefreshWorker) Run(ctx context.Context) {
	defer close(w.done)

	if w.onStart {
		w.refresh(ctx, TriggerStartup, Request{Reason: TriggerStartup, RequestedAt: time.Now()})
	}

	var tick <-chan time.Time
	if w.interval > 0 {
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	requests := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case t := <-tick:
			w.refresh(ctx, TriggerInterval, Request{Reason: TriggerInterval, RequestedAt: t})
		case req, ok := <-requests:
			if !ok {
				// queue closed; keep ticking
				requests = nil
				continue
			}
			w.refresh(ctx, TriggerRequest, req)
		}
	}
}

// Shutdown gracefully stops the worker.
func (w *RefreshWorker) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() { close(w.shutdown) })

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// Runs returns the number of refreshes attempted so far.
func (w *RefreshWorker) Runs() int64 { return w.runs.Load() }

// Failures returns the number of refreshes that returned an error.
func (w *RefreshWorker) Failures() int64 { return w.failed.Load() }

func (w *RefreshWorker) refresh(ctx context.Context, trigger string, req Request) { //nolint:gocritic // hugeParam: Request is passed by value for channel semantics
	start := time.Now()
	w.runs.Add(1)
	metrics.RecordPollerRun(trigger)

	if err := w.refresher.Refresh(ctx, req); err != nil {
		w.failed.Add(1)
		metrics.RecordPollerError()
		metrics.RecordErrorByComponent("worker", "refresh_error")
		metrics.RecordErrorByType("refresh_error", "medium")
		w.logger.Error(ctx, "refresh failed",
			logger.String("trigger", trigger),
			logger.String("request_id", req.ID),
			logger.Error(err),
		)
		return
	}
	w.logger.Debug(ctx, "refresh done",
		logger.String("trigger", trigger),
		logger.String("request_id", req.ID),
		logger.Duration("took", time.Since(start)),
	)
}
