package driven

import "github.com/custodia-labs/sercha-kb/internal/core/domain"

// ManifestLoader reads a manifest file.
// Relative document paths are resolved against the manifest's directory.
type ManifestLoader interface {
	Load(path string) (*domain.Manifest, error)
}
