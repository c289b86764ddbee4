// Package finalise is the last pipeline step: it makes chunk identity
// consistent with the document being indexed.
package finalise

import (
	"context"
	"strings"

	"github.com/custodia-labs/sercha-kb/internal/core/domain"
	"github.com/custodia-labs/sercha-kb/internal/core/ports/driven"
)

// Ensure Processor implements the interface.
var _ driven.PostProcessor = (*Processor)(nil)

// Processor drops whitespace-only chunks, renumbers ordinals contiguously
// from 0 and stamps every chunk with the document id and content hash.
type Processor struct{}

// New creates a finalise processor.
func New() *Processor {
	return &Processor{}
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "finalise"
}

// Process returns the finalised chunks. An empty result is nil.
func (p *Processor) Process(_ context.Context, doc *domain.NormalisedDocument, chunks []domain.Chunk) ([]domain.Chunk, error) {
	var out []domain.Chunk
	for _, c := range chunks {
		if strings.TrimSpace(c.Text) == "" {
			continue
		}
		c.DocID = doc.Document.DocID
		c.ContentHash = doc.Document.ContentHash
		c.Ordinal = len(out)
		out = append(out, c)
	}
	return out, nil
}
