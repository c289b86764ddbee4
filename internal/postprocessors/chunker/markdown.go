package chunker

import (
	"context"
	"regexp"
	"strings"

	"github.com/custodia-labs/sercha-kb/internal/core/domain"
)

var headingPattern = regexp.MustCompile(`^(#{1,6})\s+(.*?)(?:\s+#+)?\s*$`)

// Markdown chunks along the heading structure. Each chunk records the
// heading path active where it starts.
type Markdown struct {
	splitter splitter
}

// NewMarkdown creates a markdown chunker.
func NewMarkdown(chunkSize, overlap int) *Markdown {
	return &Markdown{splitter: newSplitter(chunkSize, overlap, markdownSeparators)}
}

// Type returns domain.DocTypeMarkdown.
func (m *Markdown) Type() domain.DocType {
	return domain.DocTypeMarkdown
}

// Chunk splits doc into sections, then bounds each section.
func (m *Markdown) Chunk(ctx context.Context, doc *domain.NormalisedDocument) ([]domain.Chunk, error) {
	var chunks []domain.Chunk
	for _, sec := range Sections(doc.Text) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pieces, err := m.splitter.split(sec.Body)
		if err != nil {
			return nil, err
		}
		for _, piece := range pieces {
			chunks = append(chunks, domain.Chunk{
				DocID:       doc.Document.DocID,
				Ordinal:     len(chunks),
				Text:        piece,
				SectionPath: sec.Path,
			})
		}
	}
	return chunks, nil
}

// Section is the body text under one heading path.
type Section struct {
	Path []string
	Body string
}

// Sections splits markdown at ATX headings. Text before the first heading
// has an empty path. Headings inside fenced code blocks are ignored, and
// sections with no body are dropped.
func Sections(text string) []Section {
	var (
		sections []Section
		stack    []string
		buf      []string
		inFence  bool
	)

	flush := func() {
		body := strings.TrimSpace(strings.Join(buf, "\n"))
		if body != "" {
			path := make([]string, len(stack))
			copy(path, stack)
			if len(path) == 0 {
				path = nil
			}
			sections = append(sections, Section{Path: path, Body: body})
		}
		buf = buf[:0]
	}

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~") {
			inFence = !inFence
		}
		if !inFence {
			if m := headingPattern.FindStringSubmatch(trimmed); m != nil {
				flush()
				level := len(m[1])
				if len(stack) >= level {
					stack = stack[:level-1]
				}
				stack = append(stack, m[2])
				continue
			}
		}
		buf = append(buf, line)
	}
	flush()

	return sections
}
