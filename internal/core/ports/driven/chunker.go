package driven

import (
	"context"

	"github.com/custodia-labs/sercha-kb/internal/core/domain"
)

// Chunker splits a normalised document of one type into chunks.
// Implementations exist for every domain.DocType.
type Chunker interface {
	// Type returns the document type this chunker handles.
	Type() domain.DocType

	// Chunk splits doc. Ordinals need not be contiguous; the pipeline
	// renumbers them after dropping empty chunks.
	Chunk(ctx context.Context, doc *domain.NormalisedDocument) ([]domain.Chunk, error)
}
