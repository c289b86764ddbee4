package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedType indicates an unknown document type.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrDuplicateDocID indicates a manifest lists the same document id twice.
	ErrDuplicateDocID = errors.New("duplicate document id")

	// ErrEmptyQuestion indicates a query with no question text.
	ErrEmptyQuestion = errors.New("empty question")

	// ErrLLMUnavailable indicates the generation service is not configured.
	ErrLLMUnavailable = errors.New("LLM service unavailable")

	// ErrEmbeddingUnavailable indicates the embedding service is not configured.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrVectorIndexUnavailable indicates the vector index is not configured.
	ErrVectorIndexUnavailable = errors.New("vector index unavailable")

	// ErrDimensionMismatch indicates a vector does not match the index dimensions.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)
