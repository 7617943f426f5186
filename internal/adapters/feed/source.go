// Package feed fetches the rider list from the upstream JSON document and
// caches it for a caller-supplied TTL.
package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// Default source configuration constants.
const (
	defaultHTTPTimeout = 15 * time.Second
	maxBodyBytes       = 32 << 20
)

// Source yields the raw feed document.
type Source interface {
	// Name identifies the resource; it is also the cache key.
	Name() string
	Fetch(ctx context.Context) ([]byte, error)
}

// FileSource reads the document from disk.
type FileSource struct {
	path string
}

// NewFileSource reads from path on every fetch.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Name returns the file path.
func (s *FileSource) Name() string { return "file:" + s.path }

// Fetch reads the whole file.
func (s *FileSource) Fetch(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read feed file: %w", err)
	}
	return b, nil
}

// HTTPOption configures an HTTPSource.
type HTTPOption func(*HTTPSource)

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(s *HTTPSource) {
		if c != nil {
			s.client = c
		}
	}
}

// WithTimeout sets the client timeout of the default client.
func WithTimeout(d time.Duration) HTTPOption {
	return func(s *HTTPSource) {
		if d > 0 {
			s.client = &http.Client{Timeout: d}
		}
	}
}

// HTTPSource GETs the document. It does not retry.
type HTTPSource struct {
	url    string
	client *http.Client
}

// NewHTTPSource fetches url.
func NewHTTPSource(url string, opts ...HTTPOption) *HTTPSource {
	s := &HTTPSource{url: url, client: &http.Client{Timeout: defaultHTTPTimeout}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the URL.
func (s *HTTPSource) Name() string { return s.url }

// Fetch performs one GET and returns the body of a 200 response.
func (s *HTTPSource) Fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build feed request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch feed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return nil, fmt.Errorf("%w: %s", ErrUnexpectedStatus, resp.Status)
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read feed body: %w", err)
	}
	return b, nil
}
