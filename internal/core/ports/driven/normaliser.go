package driven

import (
	"context"

	"github.com/custodia-labs/sercha-kb/internal/core/domain"
)

// Normaliser extracts text from a raw document of a given type.
type Normaliser interface {
	// SupportedTypes returns the document types this normaliser handles.
	SupportedTypes() []domain.DocType

	// Priority returns the selection priority (higher = preferred).
	// Format-specific normalisers return 50-89, fallbacks 1-9.
	Priority() int

	// Normalise transforms a raw document into text ready for chunking.
	Normalise(ctx context.Context, raw *domain.RawDocument) (*domain.NormalisedDocument, error)
}
