package connectors

import (
	"context"
	"fmt"

	"github.com/custodia-labs/sercha-kb/internal/connectors/filesystem"
	"github.com/custodia-labs/sercha-kb/internal/connectors/s3"
	"github.com/custodia-labs/sercha-kb/internal/connectors/web"
	"github.com/custodia-labs/sercha-kb/internal/core/domain"
	"github.com/custodia-labs/sercha-kb/internal/core/ports/driven"
)

// Ensure Router implements the interface.
var _ driven.DocumentFetcher = (*Router)(nil)

// Router dispatches fetches to the first fetcher that supports a location.
type Router struct {
	fetchers []driven.DocumentFetcher
}

// NewRouter creates a router over fetchers, tried in order.
func NewRouter(fetchers ...driven.DocumentFetcher) *Router {
	return &Router{fetchers: fetchers}
}

// NewDefaultRouter wires the filesystem, web and s3 connectors from cfg.
func NewDefaultRouter(cfg domain.Config) *Router {
	return NewRouter(
		web.New(cfg.Timeouts.Fetch),
		s3.New(s3.Config{
			Endpoint:  cfg.S3.Endpoint,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			Region:    cfg.S3.Region,
			UseSSL:    cfg.S3.UseSSL,
		}),
		filesystem.New(),
	)
}

// Fetch reads pathOrURL with the matching fetcher.
func (r *Router) Fetch(ctx context.Context, pathOrURL string) (*driven.FetchResult, error) {
	for _, f := range r.fetchers {
		if f.Supports(pathOrURL) {
			return f.Fetch(ctx, pathOrURL)
		}
	}
	return nil, fmt.Errorf("%w: no fetcher for %s", domain.ErrUnsupportedType, pathOrURL)
}

// Supports reports whether any fetcher handles pathOrURL.
func (r *Router) Supports(pathOrURL string) bool {
	for _, f := range r.fetchers {
		if f.Supports(pathOrURL) {
			return true
		}
	}
	return false
}
