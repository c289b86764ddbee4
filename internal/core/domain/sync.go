package domain

import "time"

// DocState is the sync ledger entry for one document.
// There is exactly one entry per DocID.
type DocState struct {
	// DocID identifies the document.
	DocID string

	// Path is the path or URL the document was fetched from.
	Path string

	// ContentHash is the fingerprint that was last indexed.
	ContentHash string

	// MetaHash fingerprints the manifest metadata (title, tags, roles)
	// copied onto the indexed chunks.
	MetaHash string

	// IndexID identifies the vector index instance holding the chunks.
	IndexID string

	// ChunkCount is how many chunks the indexed version produced.
	ChunkCount int

	// IndexedAt is when the entry was last committed.
	IndexedAt time.Time
}

// SyncError describes a document that failed during a sync run.
type SyncError struct {
	DocID   string `json:"doc_id"`
	Message string `json:"message"`
}

// SyncRun is the append-only report of one ingestion pass.
type SyncRun struct {
	// ID is the unique run identifier.
	ID string

	// Timestamp is when the run started.
	Timestamp time.Time

	// ManifestPath is the manifest the run was driven by.
	ManifestPath string

	// DocsTotal is the number of manifest entries.
	DocsTotal int

	// DocsIndexed counts documents that are current after the run,
	// including unchanged documents that were skipped.
	DocsIndexed int

	// DocsFailed counts documents recorded in Errors.
	DocsFailed int

	// DocsChanged counts documents whose content hash differed from the ledger.
	DocsChanged int

	// Errors lists per-document failures.
	Errors []SyncError
}

// OK reports whether every document was processed without error.
func (r *SyncRun) OK() bool {
	return r.DocsFailed == 0
}
