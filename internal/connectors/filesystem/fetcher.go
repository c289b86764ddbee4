// Package filesystem reads documents from the local filesystem.
package filesystem

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/custodia-labs/sercha-kb/internal/core/ports/driven"
)

// Ensure Fetcher implements the interface.
var _ driven.DocumentFetcher = (*Fetcher)(nil)

// Fetcher reads local files.
type Fetcher struct{}

// New creates a filesystem fetcher.
func New() *Fetcher {
	return &Fetcher{}
}

// Supports reports whether location is a local path or file:// URI.
func (f *Fetcher) Supports(location string) bool {
	if location == "" {
		return false
	}
	if strings.HasPrefix(location, "file://") {
		return true
	}
	return !strings.Contains(location, "://")
}

// Fetch reads the whole file and its modification time.
func (f *Fetcher) Fetch(ctx context.Context, location string) (*driven.FetchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path := LocalPath(location)
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return &driven.FetchResult{Content: content, LastModified: info.ModTime().UTC()}, nil
}
