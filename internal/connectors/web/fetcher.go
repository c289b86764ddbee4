// Package web fetches documents over HTTP(S).
package web

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/custodia-labs/sercha-kb/internal/core/ports/driven"
)

// Ensure Fetcher implements the interface.
var _ driven.DocumentFetcher = (*Fetcher)(nil)

// MaxDocumentSize caps the bytes read from one response.
const MaxDocumentSize = 64 << 20

// Fetcher downloads documents with a bounded HTTP client.
type Fetcher struct {
	client *http.Client
}

// New creates a fetcher whose requests time out after timeout.
// A zero timeout relies on the caller's context alone.
func New(timeout time.Duration) *Fetcher {
	return &Fetcher{client: &http.Client{Timeout: timeout}}
}

// NewWithClient creates a fetcher using client.
func NewWithClient(client *http.Client) *Fetcher {
	return &Fetcher{client: client}
}

// Supports reports whether location is an http or https URL.
func (f *Fetcher) Supports(location string) bool {
	lower := strings.ToLower(location)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// Fetch downloads the body of location.
func (f *Fetcher) Fetch(ctx context.Context, location string) (*driven.FetchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", location, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("get %s: status %d", location, resp.StatusCode)
	}

	content, err := io.ReadAll(io.LimitReader(resp.Body, MaxDocumentSize+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", location, err)
	}
	if len(content) > MaxDocumentSize {
		return nil, fmt.Errorf("%s exceeds %d bytes", location, MaxDocumentSize)
	}

	result := &driven.FetchResult{Content: content}
	if lm := resp.Header.Get("Last-Modified"); lm != "" {
		if t, err := http.ParseTime(lm); err == nil {
			result.LastModified = t.UTC()
		}
	}
	return result, nil
}
