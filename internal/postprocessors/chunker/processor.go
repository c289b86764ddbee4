// Package chunker splits normalised documents into bounded chunks.
//
// Each document type has its own Chunker: markdown follows the heading
// structure, pdf never crosses a page boundary and plain text is split by
// position only. Processor dispatches on the document type.
package chunker

import (
	"context"
	"fmt"

	"github.com/custodia-labs/sercha-kb/internal/core/domain"
	"github.com/custodia-labs/sercha-kb/internal/core/ports/driven"
)

// DefaultChunkSize is the default number of characters per chunk.
const DefaultChunkSize = domain.DefaultChunkSize

// DefaultChunkOverlap is the default number of overlapping characters.
const DefaultChunkOverlap = domain.DefaultChunkOverlap

// Ensure Processor implements the interface.
var _ driven.PostProcessor = (*Processor)(nil)

// Processor creates chunks from document content using the chunker
// registered for the document's type. It implements the PostProcessor interface.
type Processor struct {
	chunkSize int
	overlap   int
	chunkers  map[domain.DocType]driven.Chunker
}

// Option configures the chunker processor.
type Option func(*Processor)

// WithChunkSize sets the chunk size in characters.
func WithChunkSize(size int) Option {
	return func(p *Processor) {
		if size > 0 {
			p.chunkSize = size
		}
	}
}

// WithOverlap sets the overlap between chunks in characters.
func WithOverlap(overlap int) Option {
	return func(p *Processor) {
		if overlap >= 0 {
			p.overlap = overlap
		}
	}
}

// WithChunker overrides the chunker for its document type.
func WithChunker(c driven.Chunker) Option {
	return func(p *Processor) {
		p.chunkers[c.Type()] = c
	}
}

// New creates a new chunker processor with the given options.
// Markdown, pdf and plain chunkers are registered by default.
func New(opts ...Option) *Processor {
	p := &Processor{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultChunkOverlap,
		chunkers:  make(map[domain.DocType]driven.Chunker),
	}

	for _, opt := range opts {
		opt(p)
	}

	// Ensure overlap doesn't exceed chunk size
	if p.overlap >= p.chunkSize {
		p.overlap = p.chunkSize / 4
	}

	defaults := []driven.Chunker{
		NewMarkdown(p.chunkSize, p.overlap),
		NewPDF(p.chunkSize, p.overlap),
		NewPlain(p.chunkSize, p.overlap),
	}
	for _, c := range defaults {
		if _, ok := p.chunkers[c.Type()]; !ok {
			p.chunkers[c.Type()] = c
		}
	}

	return p
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "chunker"
}

// Types returns the document types that can be chunked.
func (p *Processor) Types() []domain.DocType {
	types := make([]domain.DocType, 0, len(p.chunkers))
	for _, t := range []domain.DocType{domain.DocTypeMarkdown, domain.DocTypePDF, domain.DocTypePlain} {
		if _, ok := p.chunkers[t]; ok {
			types = append(types, t)
		}
	}
	return types
}

// Process splits the document content into chunks.
// Input chunks are ignored; this processor creates new chunks from document content.
func (p *Processor) Process(ctx context.Context, doc *domain.NormalisedDocument, _ []domain.Chunk) ([]domain.Chunk, error) {
	c, ok := p.chunkers[doc.Document.Type]
	if !ok {
		return nil, fmt.Errorf("%w: no chunker for %q", domain.ErrUnsupportedType, doc.Document.Type)
	}
	return c.Chunk(ctx, doc)
}
