package driven

import "context"

// VectorIndex stores chunk vectors with citation metadata and answers
// similarity queries.
//
// Records are keyed by the composite chunk reference (doc id + ordinal).
// Scores are cosine similarity in [-1, 1], higher is more similar,
// whatever distance the backend computes natively.
type VectorIndex interface {
	// Upsert inserts or replaces records by ID.
	Upsert(ctx context.Context, records []VectorRecord) error

	// DeleteByDoc removes every record of docID whose ID is not in keep.
	// A nil keep removes all of the document's records.
	DeleteByDoc(ctx context.Context, docID string, keep []string) error

	// UpdateMetadata replaces the document-level metadata of the listed
	// records of docID. Vectors and chunk text are left as they are.
	UpdateMetadata(ctx context.Context, docID string, ids []string, meta DocMetadata) error

	// Search returns up to k records most similar to query, best first.
	// The filter is applied before ranking.
	Search(ctx context.Context, query []float32, k int, filter VectorFilter) ([]VectorHit, error)

	// Identity names this index instance. It changes when the backing
	// store is replaced, so ledger entries written against another
	// instance can be detected.
	Identity() string

	// ScoreRange returns the inclusive bounds of scores reported by Search.
	ScoreRange() (lo, hi float64)

	// Close releases resources.
	Close() error
}

// VectorRecord is a chunk vector with the metadata needed to cite it.
type VectorRecord struct {
	// ID is the composite chunk reference.
	ID string

	DocID       string
	Ordinal     int
	Text        string
	Title       string
	Path        string
	SectionPath []string
	Page        int
	ContentHash string

	// AllowedRoles restricts visibility. Empty means everyone.
	AllowedRoles []string

	// Vector is the chunk embedding. Not populated on search hits.
	Vector []float32
}

// DocMetadata is the document-level part of a VectorRecord.
type DocMetadata struct {
	Title        string
	Path         string
	AllowedRoles []string
}

// VectorFilter restricts a search.
type VectorFilter struct {
	// Role, when set, excludes records whose AllowedRoles do not include it.
	Role string
}

// VectorHit is a similarity search result.
type VectorHit struct {
	// Record is the matched record without its vector.
	Record VectorRecord

	// Similarity is the cosine similarity score in [-1, 1].
	Similarity float64
}
