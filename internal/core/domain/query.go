package domain

import "time"

// RefusalText is returned verbatim whenever the knowledge base cannot
// support an answer.
const RefusalText = "Not in KB yet. Please add the relevant SOP/policy document to the knowledge base."

// QueryStatus is the outcome of a query attempt.
type QueryStatus string

// Query statuses.
const (
	// QueryStatusAnswered means a cited answer was produced.
	QueryStatusAnswered QueryStatus = "answered"

	// QueryStatusNotInKB means the pipeline refused to answer.
	QueryStatusNotInKB QueryStatus = "not_in_kb"

	// QueryStatusError means retrieval or generation failed.
	QueryStatusError QueryStatus = "error"
)

// IsValid returns true if the status is recognised.
func (s QueryStatus) IsValid() bool {
	switch s {
	case QueryStatusAnswered, QueryStatusNotInKB, QueryStatusError:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (s QueryStatus) String() string {
	return string(s)
}

// Outcome reasons recorded alongside a status.
const (
	ReasonUncitedAnswer   = "uncited_answer"
	ReasonFabricatedLabel = "fabricated_label"
	ReasonModelRefused    = "model_refused"
)

// SourceRef is a labelled citation of a retrieved chunk.
type SourceRef struct {
	// Label is the per-query citation label, e.g. "S1".
	Label string `json:"label"`

	// ChunkRef is the vector index id of the cited chunk.
	ChunkRef string `json:"chunk_ref"`

	// DocID identifies the cited document.
	DocID string `json:"doc_id"`

	// Title is the document title.
	Title string `json:"title,omitempty"`

	// Path is the document path or URL.
	Path string `json:"path,omitempty"`

	// Locator is the section path, page or ordinal of the chunk.
	Locator string `json:"locator"`

	// Score is the retrieval score of the chunk.
	Score float64 `json:"score"`
}

// QueryRequest is a question submitted to the pipeline.
type QueryRequest struct {
	// Question is the natural-language question.
	Question string

	// K overrides the configured number of chunks to retrieve. Zero uses the default.
	K int

	// Role restricts retrieval to documents visible to this role. Empty disables filtering.
	Role string

	// Temperature overrides the configured generation temperature when non-nil.
	Temperature *float64
}

// Answer is the response returned to the caller of the pipeline.
type Answer struct {
	// Text is the cited answer, the refusal text, or a safe error message.
	Text string

	// Status is the recorded outcome.
	Status QueryStatus

	// Sources are the cited chunks, in label order.
	Sources []SourceRef

	// Retrieval is what the retriever returned, for display and debugging.
	Retrieval *RetrievalResult

	// BestScore is the top retrieval score.
	BestScore float64

	// RecordID is the id of the audit record, empty when none was written.
	RecordID string
}

// QueryRecord is the append-only audit entry for one query attempt.
type QueryRecord struct {
	// ID is the unique record identifier.
	ID string

	// Timestamp is when the query was recorded.
	Timestamp time.Time

	// Question is the question as asked.
	Question string

	// Status is the outcome.
	Status QueryStatus

	// BestScore is the top retrieval score. Zero when retrieval failed.
	BestScore float64

	// K is the number of chunks requested.
	K int

	// Role is the role filter applied, if any.
	Role string

	// Sources lists cited chunks for answered queries, or the retrieved
	// chunks for refused and failed ones.
	Sources []SourceRef

	// Answer is the text returned to the caller. Empty on error.
	Answer string

	// Reason is a machine-readable outcome detail (refusal reason or error code).
	Reason string

	// ErrorDetail is the full failure description. Never shown to callers.
	ErrorDetail string

	// LatencyMS is the wall time of the query in milliseconds.
	LatencyMS int64
}
