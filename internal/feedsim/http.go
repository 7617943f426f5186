package feedsim

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/okian/audax/internal/domain/model"
	"github.com/okian/audax/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0o750
	feedFilePermission  = 0o644
	pollInterval        = 100 * time.Millisecond
)

// HTTPClient wraps http.Client with timeout
type HTTPClient struct {
	client *http.Client
}

// newHTTPClient creates a new HTTP client with timeout
func newHTTPClient(timeout time.Duration) *HTTPClient {
	return &HTTPClient{client: &http.Client{Timeout: timeout}}
}

// Get performs a GET request
func (c *HTTPClient) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return c.client.Do(req)
}

// Post performs a POST request with JSON body
func (c *HTTPClient) Post(ctx context.Context, url string, body any) (*http.Response, error) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	return c.client.Do(req)
}

// getJSON decodes a 200 response into v.
func (c *HTTPClient) getJSON(ctx context.Context, url string, v any) error {
	resp, err := c.Get(ctx, url)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return &StatusError{Code: resp.StatusCode, Body: string(body)}
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// StatusError is a non-200 answer from the tracker.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Code, e.Body)
}

// writeFeed replaces the feed document in one rename so the tracker never
// reads a partial file.
func writeFeed(ctx context.Context, path string, riders []model.Rider) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, directoryPermission); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	data, err := json.MarshalIndent(struct {
		Riders []model.Rider `json:"riders"`
	}{riders}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal feed: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".riders-*.json")
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write feed: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close feed: %w", err)
	}
	if err := os.Chmod(tmp.Name(), feedFilePermission); err != nil {
		return fmt.Errorf("failed to chmod feed: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace feed: %w", err)
	}

	logger.Get().Info(ctx, "feed written", logger.String("path", path), logger.Int("riders", len(riders)))
	return nil
}

// currentGeneration returns the published board id, or "" before the first
// publish.
func currentGeneration(ctx context.Context, client *HTTPClient, baseURL string) (string, error) {
	var summary struct {
		Generation string `json:"generation"`
	}
	err := client.getJSON(ctx, baseURL+"/summary", &summary)
	var se *StatusError
	if errors.As(err, &se) && se.Code == http.StatusServiceUnavailable {
		return "", nil
	}
	return summary.Generation, err
}

// requestRefresh asks the tracker to re-read the feed, bypassing its cache.
func requestRefresh(ctx context.Context, client *HTTPClient, baseURL string) error {
	resp, err := client.Post(ctx, baseURL+"/refresh?force=true", map[string]any{"reason": "feed-sim"})
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusAccepted {
		body, _ := io.ReadAll(resp.Body)
		return &StatusError{Code: resp.StatusCode, Body: string(body)}
	}
	return nil
}

// waitForGeneration polls until the board id differs from before.
func waitForGeneration(ctx context.Context, client *HTTPClient, baseURL, before string, timeout time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		gen, err := currentGeneration(ctx, client, baseURL)
		if err == nil && gen != "" && gen != before {
			return gen, nil
		}
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("no new board within %s: %w", timeout, ctx.Err())
		case <-ticker.C:
		}
	}
}
