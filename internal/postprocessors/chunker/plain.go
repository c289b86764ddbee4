package chunker

import (
	"context"

	"github.com/custodia-labs/sercha-kb/internal/core/domain"
)

// Plain chunks by position only.
type Plain struct {
	splitter splitter
}

// NewPlain creates a plain text chunker.
func NewPlain(chunkSize, overlap int) *Plain {
	return &Plain{splitter: newSplitter(chunkSize, overlap, defaultSeparators)}
}

// Type returns domain.DocTypePlain.
func (p *Plain) Type() domain.DocType {
	return domain.DocTypePlain
}

// Chunk splits the document text.
func (p *Plain) Chunk(_ context.Context, doc *domain.NormalisedDocument) ([]domain.Chunk, error) {
	pieces, err := p.splitter.split(doc.Text)
	if err != nil {
		return nil, err
	}
	chunks := make([]domain.Chunk, 0, len(pieces))
	for i, piece := range pieces {
		chunks = append(chunks, domain.Chunk{
			DocID:   doc.Document.DocID,
			Ordinal: i,
			Text:    piece,
		})
	}
	return chunks, nil
}
