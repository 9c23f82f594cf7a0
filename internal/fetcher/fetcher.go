// Package fetcher downloads chat attachments.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrTooLarge is returned when an attachment exceeds the download cap.
var ErrTooLarge = errors.New("attachment too large")

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Fetcher downloads attachments up to a size cap.
type Fetcher struct {
	client   HTTPClient
	maxBytes int64
	timeout  time.Duration
}

// New creates a Fetcher with the given HTTP client and size cap in bytes.
func New(client HTTPClient, maxBytes int64) *Fetcher {
	return &Fetcher{
		client:   client,
		maxBytes: maxBytes,
		timeout:  30 * time.Second,
	}
}

// MaxBytes returns the size cap.
func (f *Fetcher) MaxBytes() int64 {
	return f.maxBytes
}

// Fetch downloads url. size is the size the chat service reported, or 0 when unknown;
// a known size over the cap is rejected before any request is made.
func (f *Fetcher) Fetch(ctx context.Context, url string, size int64) ([]byte, error) {
	if size > f.maxBytes {
		return nil, fmt.Errorf("%w: %d bytes, max %d MB", ErrTooLarge, size, f.maxBytes>>20)
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "TomCatBot/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > f.maxBytes {
		return nil, fmt.Errorf("%w: max %d MB", ErrTooLarge, f.maxBytes>>20)
	}
	return body, nil
}
