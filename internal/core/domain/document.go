package domain

import (
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"
)

// DocType identifies how a document is normalised and chunked.
type DocType string

// Supported document types.
const (
	// DocTypeMarkdown chunks along the heading structure.
	DocTypeMarkdown DocType = "markdown"

	// DocTypePDF chunks per page.
	DocTypePDF DocType = "pdf"

	// DocTypePlain chunks by position only.
	DocTypePlain DocType = "plain"
)

// IsValid returns true if the document type is recognised.
func (t DocType) IsValid() bool {
	switch t {
	case DocTypeMarkdown, DocTypePDF, DocTypePlain:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (t DocType) String() string {
	return string(t)
}

// DocTypeFromPath infers the document type from a path or URL extension.
// Returns false for extensions that are not indexable.
func DocTypeFromPath(pathOrURL string) (DocType, bool) {
	p := pathOrURL
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	switch strings.ToLower(path.Ext(p)) {
	case ".md", ".markdown":
		return DocTypeMarkdown, true
	case ".pdf":
		return DocTypePDF, true
	case ".txt", ".text":
		return DocTypePlain, true
	default:
		return "", false
	}
}

// SourceDocument is a manifest entry resolved into an indexable document.
// It is refreshed on every sync and superseded when its content hash changes.
type SourceDocument struct {
	// DocID is the stable identifier. Falls back to PathOrURL.
	DocID string

	// PathOrURL is where the document content is fetched from.
	PathOrURL string

	// Title is the human-readable title used in citations.
	Title string

	// Tags are free-form labels from the manifest.
	Tags []string

	// AllowedRoles restricts retrieval to these roles. Empty means everyone.
	AllowedRoles []string

	// Type selects the normaliser and chunker variant.
	Type DocType

	// ContentHash is the fingerprint of the fetched bytes.
	ContentHash string

	// LastModified is reported by the fetcher when available.
	LastModified time.Time
}

// DisplayName returns the title, or the base name of the path when untitled.
func (d SourceDocument) DisplayName() string {
	if d.Title != "" {
		return d.Title
	}
	return path.Base(d.PathOrURL)
}

// AllowsRole reports whether a chunk of this document may be shown to role.
// An empty role or an empty AllowedRoles set matches everything.
func AllowsRole(allowed []string, role string) bool {
	if role == "" || len(allowed) == 0 {
		return true
	}
	for _, r := range allowed {
		if r == role {
			return true
		}
	}
	return false
}

// RawDocument is the fetched, not yet normalised, content of a SourceDocument.
type RawDocument struct {
	// Document is the resolved manifest entry.
	Document SourceDocument

	// Content is the raw bytes.
	Content []byte
}

// NormalisedDocument is extracted text ready for chunking.
type NormalisedDocument struct {
	// Document is the resolved manifest entry.
	Document SourceDocument

	// Text is the full extracted text.
	Text string

	// Pages holds per-page text for paginated formats (PDF).
	// Page numbers are 1-based: Pages[0] is page 1.
	Pages []string
}

// Chunk is a bounded segment of a document and the unit of embedding and citation.
// A chunk is immutable once embedded; content changes produce new chunks.
type Chunk struct {
	// DocID links to the SourceDocument.
	DocID string

	// Ordinal is the position within the document, assigned from 0.
	Ordinal int

	// Text is the chunk content.
	Text string

	// SectionPath is the heading path active at the chunk start (markdown).
	SectionPath []string

	// Page is the 1-based page number (pdf). Zero when not paginated.
	Page int

	// ContentHash is the fingerprint of the document version this chunk came from.
	ContentHash string
}

// EmbeddingRef returns the vector index key for this chunk.
func (c Chunk) EmbeddingRef() string {
	return ChunkRef(c.DocID, c.Ordinal)
}

// Locator returns the most specific citation locator available:
// section path, then page number, then chunk ordinal.
func (c Chunk) Locator() string {
	switch {
	case len(c.SectionPath) > 0:
		return "section: " + strings.Join(c.SectionPath, SectionSeparator)
	case c.Page > 0:
		return fmt.Sprintf("page %d", c.Page)
	default:
		return fmt.Sprintf("chunk %d", c.Ordinal+1)
	}
}

// SectionSeparator joins heading titles into a section path.
const SectionSeparator = " > "

// chunkRefSeparator separates the doc id from the ordinal in a chunk reference.
const chunkRefSeparator = "#"

// ChunkRef builds the composite vector index id for a document chunk.
func ChunkRef(docID string, ordinal int) string {
	return docID + chunkRefSeparator + strconv.Itoa(ordinal)
}

// ParseChunkRef splits a composite chunk id into doc id and ordinal.
func ParseChunkRef(ref string) (docID string, ordinal int, err error) {
	i := strings.LastIndex(ref, chunkRefSeparator)
	if i <= 0 {
		return "", 0, fmt.Errorf("%w: chunk ref %q", ErrInvalidInput, ref)
	}
	ordinal, err = strconv.Atoi(ref[i+1:])
	if err != nil || ordinal < 0 {
		return "", 0, fmt.Errorf("%w: chunk ref %q", ErrInvalidInput, ref)
	}
	return ref[:i], ordinal, nil
}
