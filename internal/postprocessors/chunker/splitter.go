package chunker

import (
	"strings"

	"github.com/tmc/langchaingo/textsplitter"
)

// Separators tried in order when a segment exceeds the chunk size.
var (
	defaultSeparators  = []string{"\n\n", "\n", ". ", " ", ""}
	markdownSeparators = []string{"\n\n", "\n", "```", ". ", " ", ""}
)

// splitter bounds text to chunkSize characters with overlap between
// neighbouring pieces. A segment that fits yields a single piece with no overlap.
type splitter struct {
	inner     textsplitter.TextSplitter
	chunkSize int
}

func newSplitter(chunkSize, overlap int, separators []string) splitter {
	return splitter{
		inner: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(chunkSize),
			textsplitter.WithChunkOverlap(overlap),
			textsplitter.WithSeparators(separators),
		),
		chunkSize: chunkSize,
	}
}

// split returns the non-blank pieces of text.
func (s splitter) split(text string) ([]string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	if len([]rune(text)) <= s.chunkSize {
		return []string{text}, nil
	}

	pieces, err := s.inner.SplitText(text)
	if err != nil {
		return nil, err
	}
	out := pieces[:0]
	for _, p := range pieces {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out, nil
}
