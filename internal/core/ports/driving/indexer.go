package driving

import (
	"context"

	"github.com/custodia-labs/sercha-kb/internal/core/domain"
)

// Indexer brings the vector index in line with a manifest.
type Indexer interface {
	// Sync loads the manifest at path and synchronises it.
	Sync(ctx context.Context, manifestPath string) (*domain.SyncRun, error)

	// SyncManifest synchronises an already loaded manifest.
	// Per-document failures are reported in the run, not returned.
	SyncManifest(ctx context.Context, manifest *domain.Manifest) (*domain.SyncRun, error)
}
