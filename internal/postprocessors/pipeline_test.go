package postprocessors

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/custodia-labs/sercha-kb/internal/core/domain"
)

// mockProcessor is a test processor that returns predefined chunks.
type mockProcessor struct {
	name   string
	chunks []domain.Chunk
	err    error
}

func (m *mockProcessor) Name() string {
	return m.name
}

func (m *mockProcessor) Process(_ context.Context, _ *domain.NormalisedDocument, chunks []domain.Chunk) ([]domain.Chunk, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.chunks != nil {
		return m.chunks, nil
	}
	return chunks, nil
}

func testDocument() *domain.NormalisedDocument {
	return &domain.NormalisedDocument{
		Document: domain.SourceDocument{DocID: "test-doc", Type: domain.DocTypePlain, ContentHash: "h1"},
		Text:     "test content",
	}
}

func TestNewPipeline(t *testing.T) {
	p := NewPipeline()
	if p == nil {
		t.Fatal("expected non-nil pipeline")
	}
	if p.Len() != 0 {
		t.Errorf("expected 0 processors, got %d", p.Len())
	}
}

func TestPipeline_Add(t *testing.T) {
	p := NewPipeline()
	p.Add(&mockProcessor{name: "test"})

	if p.Len() != 1 {
		t.Errorf("expected 1 processor, got %d", p.Len())
	}
}

func TestPipeline_Process_NilDocument(t *testing.T) {
	p := NewPipeline()

	_, err := p.Process(context.Background(), nil)
	if err == nil {
		t.Error("expected error for nil document")
	}
}

func TestPipeline_Process_EmptyPipeline(t *testing.T) {
	p := NewPipeline()

	chunks, err := p.Process(context.Background(), testDocument())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if chunks != nil {
		t.Errorf("expected nil chunks from empty pipeline, got %v", chunks)
	}
}

func TestPipeline_Process_MultipleProcessors(t *testing.T) {
	firstChunks := []domain.Chunk{
		{Ordinal: 0, Text: "first"},
	}
	secondChunks := []domain.Chunk{
		{Ordinal: 0, Text: "modified"},
		{Ordinal: 1, Text: "added"},
	}

	p := NewPipeline(
		&mockProcessor{name: "first", chunks: firstChunks},
		&mockProcessor{name: "second", chunks: secondChunks},
	)

	chunks, err := p.Process(context.Background(), testDocument())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(chunks) != len(secondChunks) {
		t.Errorf("expected %d chunks, got %d", len(secondChunks), len(chunks))
	}
}

func TestPipeline_Process_ProcessorError(t *testing.T) {
	expectedErr := errors.New("processor failed")

	p := NewPipeline(&mockProcessor{
		name: "failing",
		err:  expectedErr,
	})

	_, err := p.Process(context.Background(), testDocument())
	if err == nil {
		t.Fatal("expected error from failing processor")
	}
	if !errors.Is(err, expectedErr) {
		t.Errorf("expected wrapped error, got: %v", err)
	}
	if !strings.Contains(err.Error(), "processor failing") {
		t.Errorf("expected processor name in error, got: %v", err)
	}
}

func TestPipeline_Process_PassthroughProcessor(t *testing.T) {
	initialChunks := []domain.Chunk{
		{Text: "test"},
	}

	p := NewPipeline(
		&mockProcessor{name: "chunker", chunks: initialChunks},
		&mockProcessor{name: "passthrough"}, // Returns received chunks unchanged
	)

	chunks, err := p.Process(context.Background(), testDocument())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(chunks) != len(initialChunks) {
		t.Errorf("expected %d chunks, got %d", len(initialChunks), len(chunks))
	}
}

func TestNewDefaultPipeline(t *testing.T) {
	p, err := NewDefaultPipeline(domain.ChunkingSettings{Size: 200, Overlap: 20})
	if err != nil {
		t.Fatalf("NewDefaultPipeline failed: %v", err)
	}
	if p.Len() != 2 {
		t.Fatalf("expected 2 processors, got %d", p.Len())
	}

	doc := &domain.NormalisedDocument{
		Document: domain.SourceDocument{DocID: "returns", Type: domain.DocTypeMarkdown, ContentHash: "abc"},
		Text:     "# Returns\n\nItems may be returned within 30 days.\n\n## Exceptions\n\n   \n\nFinal sale items.",
	}

	chunks, err := p.Process(context.Background(), doc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d: %+v", len(chunks), chunks)
	}
	for i, c := range chunks {
		if c.Ordinal != i {
			t.Errorf("chunk %d: expected ordinal %d, got %d", i, i, c.Ordinal)
		}
		if c.DocID != "returns" || c.ContentHash != "abc" {
			t.Errorf("chunk %d: identity not stamped: %+v", i, c)
		}
	}
	if got := chunks[1].Locator(); got != "section: Returns > Exceptions" {
		t.Errorf("unexpected locator %q", got)
	}
}

func TestNewDefaultPipeline_EmptyDocument(t *testing.T) {
	p, err := NewDefaultPipeline(domain.ChunkingSettings{Size: 200, Overlap: 20})
	if err != nil {
		t.Fatalf("NewDefaultPipeline failed: %v", err)
	}

	doc := &domain.NormalisedDocument{
		Document: domain.SourceDocument{DocID: "empty", Type: domain.DocTypePlain},
		Text:     " \n\t ",
	}
	chunks, err := p.Process(context.Background(), doc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 0 {
		t.Errorf("expected no chunks, got %d", len(chunks))
	}
}
