package driven

import (
	"context"

	"github.com/custodia-labs/sercha-kb/internal/core/domain"
)

// SyncLedger persists the last indexed state of each document.
// There is exactly one entry per document id.
type SyncLedger interface {
	// Get returns the state for docID, or domain.ErrNotFound.
	Get(ctx context.Context, docID string) (*domain.DocState, error)

	// Put creates or replaces the state for state.DocID.
	Put(ctx context.Context, state domain.DocState) error

	// List returns all entries ordered by doc id.
	List(ctx context.Context) ([]domain.DocState, error)
}
