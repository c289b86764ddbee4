package chunker

import (
	"context"
	"strings"
	"testing"

	"github.com/custodia-labs/sercha-kb/internal/core/domain"
)

func TestPDF_ChunkPerPage(t *testing.T) {
	p := NewPDF(100, 10)
	doc := &domain.NormalisedDocument{
		Document: domain.SourceDocument{DocID: "sop", Type: domain.DocTypePDF},
		Pages:    []string{"Scan every parcel.", "  \n", "Seal damaged boxes."},
	}

	chunks, err := p.Chunk(context.Background(), doc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}

	if chunks[0].Page != 1 || chunks[0].Text != "Scan every parcel." {
		t.Errorf("unexpected first chunk %+v", chunks[0])
	}
	if chunks[1].Page != 3 || chunks[1].Locator() != "page 3" {
		t.Errorf("unexpected second chunk %+v", chunks[1])
	}
	if chunks[1].Ordinal != 1 {
		t.Errorf("expected ordinal 1, got %d", chunks[1].Ordinal)
	}
}

func TestPDF_ChunksNeverCrossPages(t *testing.T) {
	p := NewPDF(60, 10)
	long := strings.Repeat("Pallets are wrapped twice. ", 8)
	doc := &domain.NormalisedDocument{
		Document: domain.SourceDocument{DocID: "sop", Type: domain.DocTypePDF},
		Pages:    []string{long, "END OF PAGE TWO"},
	}

	chunks, err := p.Chunk(context.Background(), doc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	last := chunks[len(chunks)-1]
	if last.Text != "END OF PAGE TWO" || last.Page != 2 {
		t.Errorf("expected page two to be its own chunk, got %+v", last)
	}
	for _, c := range chunks[:len(chunks)-1] {
		if c.Page != 1 {
			t.Errorf("expected page 1, got %d", c.Page)
		}
		if strings.Contains(c.Text, "END") {
			t.Errorf("page one chunk contains page two text: %q", c.Text)
		}
	}
}

func TestPDF_FormFeedFallback(t *testing.T) {
	p := NewPDF(100, 10)
	doc := &domain.NormalisedDocument{
		Document: domain.SourceDocument{DocID: "sop", Type: domain.DocTypePDF},
		Text:     "first page\fsecond page",
	}

	chunks, err := p.Chunk(context.Background(), doc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 2 || chunks[1].Page != 2 || chunks[1].Text != "second page" {
		t.Errorf("unexpected chunks %+v", chunks)
	}
}

func TestPDF_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewPDF(100, 10).Chunk(ctx, &domain.NormalisedDocument{Pages: []string{"x"}})
	if err == nil {
		t.Error("expected context error")
	}
}
