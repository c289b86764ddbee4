// Package views defines the JSON shapes shared by the CLI, HTTP API and
// MCP server, so every surface reports answers, chunks and audit entries
// the same way.
package views

import (
	"time"

	"github.com/custodia-labs/sercha-kb/internal/core/domain"
)

// Chunk is a scored chunk as shown to callers.
type Chunk struct {
	Ref     string  `json:"ref"`
	DocID   string  `json:"doc_id"`
	Ordinal int     `json:"ordinal"`
	Title   string  `json:"title,omitempty"`
	Path    string  `json:"path,omitempty"`
	Locator string  `json:"locator"`
	Score   float64 `json:"score"`
	Text    string  `json:"text,omitempty"`
}

// Answer is the result of asking a question.
type Answer struct {
	ID        string             `json:"id,omitempty"`
	Status    domain.QueryStatus `json:"status"`
	Answer    string             `json:"answer"`
	BestScore float64            `json:"best_score"`
	Sources   []domain.SourceRef `json:"sources"`
	Retrieved []Chunk            `json:"retrieved,omitempty"`
}

// Retrieval is a scored chunk list without generation.
type Retrieval struct {
	Question  string  `json:"question"`
	K         int     `json:"k"`
	Role      string  `json:"role,omitempty"`
	BestScore float64 `json:"best_score"`
	Chunks    []Chunk `json:"chunks"`
}

// QueryRecord is one audit trail entry.
type QueryRecord struct {
	ID          string             `json:"id"`
	Timestamp   time.Time          `json:"timestamp"`
	Question    string             `json:"question"`
	Status      domain.QueryStatus `json:"status"`
	BestScore   float64            `json:"best_score"`
	K           int                `json:"k"`
	Role        string             `json:"role,omitempty"`
	Sources     []domain.SourceRef `json:"sources"`
	Answer      string             `json:"answer"`
	Reason      string             `json:"reason,omitempty"`
	ErrorDetail string             `json:"error_detail,omitempty"`
	LatencyMS   int64              `json:"latency_ms"`
}

// SyncRun is the summary of one sync run.
type SyncRun struct {
	OK          bool               `json:"ok"`
	RunID       string             `json:"run_id"`
	Timestamp   time.Time          `json:"timestamp"`
	Manifest    string             `json:"manifest"`
	DocsTotal   int                `json:"docs_total"`
	DocsIndexed int                `json:"docs_indexed"`
	DocsFailed  int                `json:"docs_failed"`
	DocsChanged int                `json:"changed_docs"`
	Errors      []domain.SyncError `json:"errors"`
}

// DocState is one sync ledger entry.
type DocState struct {
	DocID       string    `json:"doc_id"`
	Path        string    `json:"path"`
	ContentHash string    `json:"content_hash"`
	ChunkCount  int       `json:"chunk_count"`
	IndexedAt   time.Time `json:"indexed_at"`
}

// Error is the body of a failed request.
type Error struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// FromScoredChunk converts a retrieved chunk. Text is included when
// withText is set.
func FromScoredChunk(c domain.ScoredChunk, withText bool) Chunk {
	v := Chunk{
		Ref:     c.Chunk.EmbeddingRef(),
		DocID:   c.Chunk.DocID,
		Ordinal: c.Chunk.Ordinal,
		Title:   c.Title,
		Path:    c.Path,
		Locator: c.Chunk.Locator(),
		Score:   c.Score,
	}
	if withText {
		v.Text = c.Chunk.Text
	}
	return v
}

// FromRetrieval converts a retrieval result.
func FromRetrieval(question string, k int, role string, r *domain.RetrievalResult) Retrieval {
	v := Retrieval{
		Question:  question,
		K:         k,
		Role:      role,
		BestScore: r.Best(),
		Chunks:    []Chunk{},
	}
	if r != nil {
		for _, it := range r.Items {
			v.Chunks = append(v.Chunks, FromScoredChunk(it, true))
		}
	}
	return v
}

// FromAnswer converts an answer. Retrieved chunks are listed when
// withRetrieval is set.
func FromAnswer(a *domain.Answer, withRetrieval bool) Answer {
	v := Answer{
		ID:        a.RecordID,
		Status:    a.Status,
		Answer:    a.Text,
		BestScore: a.BestScore,
		Sources:   nonNilRefs(a.Sources),
	}
	if withRetrieval && a.Retrieval != nil {
		for _, it := range a.Retrieval.Items {
			v.Retrieved = append(v.Retrieved, FromScoredChunk(it, false))
		}
	}
	return v
}

// FromQueryRecord converts an audit record.
func FromQueryRecord(r domain.QueryRecord) QueryRecord {
	return QueryRecord{
		ID:          r.ID,
		Timestamp:   r.Timestamp.UTC(),
		Question:    r.Question,
		Status:      r.Status,
		BestScore:   r.BestScore,
		K:           r.K,
		Role:        r.Role,
		Sources:     nonNilRefs(r.Sources),
		Answer:      r.Answer,
		Reason:      r.Reason,
		ErrorDetail: r.ErrorDetail,
		LatencyMS:   r.LatencyMS,
	}
}

// FromQueryRecords converts a list of audit records.
func FromQueryRecords(records []domain.QueryRecord) []QueryRecord {
	out := make([]QueryRecord, 0, len(records))
	for _, r := range records {
		out = append(out, FromQueryRecord(r))
	}
	return out
}

// FromSyncRun converts a sync run.
func FromSyncRun(r *domain.SyncRun) SyncRun {
	syncErrors := r.Errors
	if syncErrors == nil {
		syncErrors = []domain.SyncError{}
	}
	return SyncRun{
		OK:          r.OK(),
		RunID:       r.ID,
		Timestamp:   r.Timestamp.UTC(),
		Manifest:    r.ManifestPath,
		DocsTotal:   r.DocsTotal,
		DocsIndexed: r.DocsIndexed,
		DocsFailed:  r.DocsFailed,
		DocsChanged: r.DocsChanged,
		Errors:      syncErrors,
	}
}

// FromSyncRuns converts a list of sync runs.
func FromSyncRuns(runs []domain.SyncRun) []SyncRun {
	out := make([]SyncRun, 0, len(runs))
	for i := range runs {
		out = append(out, FromSyncRun(&runs[i]))
	}
	return out
}

// FromDocStates converts ledger entries.
func FromDocStates(states []domain.DocState) []DocState {
	out := make([]DocState, 0, len(states))
	for _, s := range states {
		out = append(out, DocState{
			DocID:       s.DocID,
			Path:        s.Path,
			ContentHash: s.ContentHash,
			ChunkCount:  s.ChunkCount,
			IndexedAt:   s.IndexedAt.UTC(),
		})
	}
	return out
}

func nonNilRefs(refs []domain.SourceRef) []domain.SourceRef {
	if refs == nil {
		return []domain.SourceRef{}
	}
	return refs
}
