package chunker

import (
	"context"
	"strings"

	"github.com/custodia-labs/sercha-kb/internal/core/domain"
)

// PDF chunks page by page. Chunks never cross a page boundary and carry
// their 1-based page number.
type PDF struct {
	splitter splitter
}

// NewPDF creates a pdf chunker.
func NewPDF(chunkSize, overlap int) *PDF {
	return &PDF{splitter: newSplitter(chunkSize, overlap, defaultSeparators)}
}

// Type returns domain.DocTypePDF.
func (p *PDF) Type() domain.DocType {
	return domain.DocTypePDF
}

// Chunk splits each page of doc. When the normaliser produced no pages,
// the text is split on form feeds.
func (p *PDF) Chunk(ctx context.Context, doc *domain.NormalisedDocument) ([]domain.Chunk, error) {
	pages := doc.Pages
	if len(pages) == 0 {
		pages = strings.Split(doc.Text, "\f")
	}

	var chunks []domain.Chunk
	for i, page := range pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pieces, err := p.splitter.split(page)
		if err != nil {
			return nil, err
		}
		for _, piece := range pieces {
			chunks = append(chunks, domain.Chunk{
				DocID:   doc.Document.DocID,
				Ordinal: len(chunks),
				Text:    piece,
				Page:    i + 1,
			})
		}
	}
	return chunks, nil
}
