package driven

import (
	"context"
	"time"
)

// DocumentFetcher retrieves raw document bytes from a location.
type DocumentFetcher interface {
	// Fetch reads the content at pathOrURL.
	Fetch(ctx context.Context, pathOrURL string) (*FetchResult, error)

	// Supports reports whether pathOrURL can be fetched.
	Supports(pathOrURL string) bool
}

// FetchResult is the content of a fetched document.
type FetchResult struct {
	Content []byte

	// LastModified is zero when the source does not report it.
	LastModified time.Time
}
