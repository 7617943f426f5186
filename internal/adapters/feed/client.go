package feed

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/audax/internal/domain/model"
	"github.com/okian/audax/pkg/logger"
	"github.com/okian/audax/pkg/metrics"
)

const defaultTTL = time.Minute

// Option configures a Client.
type Option func(*Client)

// WithCache shares a cache between clients.
func WithCache(c *Cache) Option {
	return func(cl *Client) {
		if c != nil {
			cl.cache = c
		}
	}
}

// WithTTL sets how long a fetched document is reused.
func WithTTL(ttl time.Duration) Option {
	return func(cl *Client) { cl.ttl = ttl }
}

// WithLogger sets a custom logger for the client.
func WithLogger(l logger.Logger) Option {
	return func(cl *Client) {
		if l != nil {
			cl.logger = l
		}
	}
}

// Client returns decoded riders from a source through the cache.
type Client struct {
	source Source
	cache  *Cache
	ttl    time.Duration
	logger logger.Logger
}

// NewClient reads from source.
func NewClient(source Source, opts ...Option) *Client {
	c := &Client{
		source: source,
		ttl:    defaultTTL,
		logger: logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.cache == nil {
		c.cache = NewCache(defaultCacheSize)
	}
	return c
}

// Riders returns the current rider list.
func (c *Client) Riders(ctx context.Context) ([]model.Rider, error) {
	if c.source == nil {
		return nil, ErrNoSource
	}
	riders, hit, err := c.cache.Get(ctx, c.source.Name(), c.ttl, c.load)
	if hit {
		metrics.RecordFeedCacheHit()
	} else {
		metrics.RecordFeedCacheMiss()
	}
	if err != nil {
		return nil, err
	}
	return riders, nil
}

// Invalidate forces the next Riders call to fetch.
func (c *Client) Invalidate() {
	if c.source != nil {
		c.cache.Invalidate(c.source.Name())
	}
}

func (c *Client) load(ctx context.Context) ([]model.Rider, error) {
	start := time.Now()
	b, err := c.source.Fetch(ctx)
	metrics.RecordFeedFetchLatency(float64(time.Since(start).Milliseconds()))
	if err != nil {
		metrics.RecordFeedFetch("error")
		metrics.RecordErrorByComponent("feed", "fetch")
		c.logger.Warn(ctx, "feed fetch failed", logger.String("source", c.source.Name()), logger.Error(err))
		return nil, fmt.Errorf("load %s: %w", c.source.Name(), err)
	}
	riders, err := Decode(b)
	if err != nil {
		metrics.RecordFeedFetch("invalid")
		metrics.RecordErrorByComponent("feed", "decode")
		c.logger.Warn(ctx, "feed decode failed", logger.String("source", c.source.Name()), logger.Error(err))
		return nil, fmt.Errorf("load %s: %w", c.source.Name(), err)
	}
	metrics.RecordFeedFetch("ok")
	c.logger.Debug(ctx, "feed loaded",
		logger.String("source", c.source.Name()),
		logger.Int("riders", len(riders)),
		logger.Int("bytes", len(b)),
	)
	return riders, nil
}
