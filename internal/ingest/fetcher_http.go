package ingest

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// RetryingFetcher fetches source payloads with a bounded per-call timeout and
// a small fixed number of retries with linear backoff. Timeouts are treated
// like any other transport failure.
type RetryingFetcher struct {
	client     *http.Client
	maxRetries int
	backoff    time.Duration
}

func NewRetryingFetcher(config FetchConfig) *RetryingFetcher {
	if config.TimeoutSeconds == 0 {
		config.TimeoutSeconds = 20
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = 2
	}
	if config.RetryBackoffMs == 0 {
		config.RetryBackoffMs = 500
	}

	return &RetryingFetcher{
		client: &http.Client{
			Timeout: time.Duration(config.TimeoutSeconds) * time.Second,
		},
		maxRetries: config.MaxRetries,
		backoff:    time.Duration(config.RetryBackoffMs) * time.Millisecond,
	}
}

// shouldRetry determines if an error or status code should trigger a retry.
func shouldRetry(err error, statusCode int) bool {
	if err != nil {
		if netErr, ok := err.(interface{ Timeout() bool }); ok && netErr.Timeout() {
			return true
		}
		return false
	}

	switch statusCode {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// Fetch implements the Fetcher interface. Backoff is linear: attempt n waits
// n * backoff before retrying.
func (f *RetryingFetcher) Fetch(ctx context.Context, url string) (*FetchedDocument, error) {
	var lastErr error

	for attempt := 0; attempt <= f.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * f.backoff):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Accept", "application/json, text/csv;q=0.9, */*;q=0.8")
		req.Header.Set("User-Agent", "tender-banana/1.0")

		resp, err := f.client.Do(req)
		if err != nil {
			lastErr = err
			if shouldRetry(err, 0) {
				continue
			}
			return nil, fmt.Errorf("failed to execute request: %w", err)
		}

		if resp.StatusCode == http.StatusOK {
			return &FetchedDocument{
				URL:         url,
				StatusCode:  resp.StatusCode,
				ContentType: resp.Header.Get("Content-Type"),
				Body:        resp.Body,
				FetchedAt:   time.Now(),
			}, nil
		}

		resp.Body.Close()
		lastErr = fmt.Errorf("status code %d", resp.StatusCode)
		if !shouldRetry(nil, resp.StatusCode) {
			return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
		}
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}
