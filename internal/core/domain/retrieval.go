package domain

import "sort"

// ScoredChunk is a retrieved chunk together with document display metadata.
type ScoredChunk struct {
	// Chunk is the matched chunk.
	Chunk Chunk

	// Title is the document title at index time.
	Title string

	// Path is the document path or URL at index time.
	Path string

	// Score is the similarity to the question. Higher is better.
	Score float64
}

// DisplayName returns the title, falling back to the path.
func (s ScoredChunk) DisplayName() string {
	if s.Title != "" {
		return s.Title
	}
	return s.Path
}

// RetrievalResult is an ordered list of scored chunks, best first.
type RetrievalResult struct {
	Items []ScoredChunk
}

// Empty reports whether nothing was retrieved.
func (r *RetrievalResult) Empty() bool {
	return r == nil || len(r.Items) == 0
}

// Best returns the highest score, or zero when empty.
func (r *RetrievalResult) Best() float64 {
	if r.Empty() {
		return 0
	}
	return r.Items[0].Score
}

// Sort orders items by descending score with ties broken by ascending
// (DocID, Ordinal) so results are deterministic.
func (r *RetrievalResult) Sort() {
	sort.SliceStable(r.Items, func(i, j int) bool {
		a, b := r.Items[i], r.Items[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Chunk.DocID != b.Chunk.DocID {
			return a.Chunk.DocID < b.Chunk.DocID
		}
		return a.Chunk.Ordinal < b.Chunk.Ordinal
	})
}

// DocIDs returns the distinct document ids in result order.
func (r *RetrievalResult) DocIDs() []string {
	if r.Empty() {
		return nil
	}
	seen := make(map[string]bool, len(r.Items))
	ids := make([]string, 0, len(r.Items))
	for _, it := range r.Items {
		if !seen[it.Chunk.DocID] {
			seen[it.Chunk.DocID] = true
			ids = append(ids, it.Chunk.DocID)
		}
	}
	return ids
}

// RefuseReason explains why the gating policy refused to answer.
type RefuseReason string

// Refusal reasons.
const (
	RefuseNoResults      RefuseReason = "no_results"
	RefuseBelowThreshold RefuseReason = "below_threshold"
)

// Decision is the outcome of the gating policy.
// When Accepted is false, Chunks is always empty.
type Decision struct {
	// Accepted is true when retrieval is confident enough to answer.
	Accepted bool

	// Chunks are the accepted evidence, in retrieval order.
	Chunks []ScoredChunk

	// Reason is set when the decision is a refusal.
	Reason RefuseReason

	// BestScore is the top retrieval score the decision was made on.
	BestScore float64

	// Threshold is the threshold the decision was made against.
	Threshold float64
}

// Accept builds an accepting decision.
func Accept(chunks []ScoredChunk, best, threshold float64) Decision {
	return Decision{Accepted: true, Chunks: chunks, BestScore: best, Threshold: threshold}
}

// Refuse builds a refusing decision.
func Refuse(reason RefuseReason, best, threshold float64) Decision {
	return Decision{Reason: reason, BestScore: best, Threshold: threshold}
}
