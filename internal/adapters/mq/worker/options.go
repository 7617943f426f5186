// Package worker runs the refresh loop: one refresh at start, one per tick
// and one per queued request.
package worker

import (
	"time"

	"github.com/okian/audax/pkg/logger"
)

// Option applies a configuration option to the RefreshWorker.
type Option func(*RefreshWorker)

// WithName sets the worker name for identification and logging.
func WithName(name string) Option {
	return func(w *RefreshWorker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(logger logger.Logger) Option {
	return func(w *RefreshWorker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithInterval sets the time between periodic refreshes. Zero disables the
// ticker; queued requests are still served.
func WithInterval(d time.Duration) Option {
	return func(w *RefreshWorker) {
		if d >= 0 {
			w.interval = d
		}
	}
}

// WithRefreshOnStart controls the refresh performed before the loop starts.
func WithRefreshOnStart(enabled bool) Option {
	return func(w *RefreshWorker) { w.onStart = enabled }
}
