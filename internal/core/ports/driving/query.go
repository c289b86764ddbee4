package driving

import (
	"context"

	"github.com/custodia-labs/sercha-kb/internal/core/domain"
)

// QueryService answers questions from the knowledge base.
type QueryService interface {
	// Ask runs retrieval, gating and composition, and records the attempt.
	// Refusals are answers with status not_in_kb, not errors.
	Ask(ctx context.Context, req domain.QueryRequest) (*domain.Answer, error)

	// Retrieve returns scored chunks without generating or recording anything.
	Retrieve(ctx context.Context, question string, k int, role string) (*domain.RetrievalResult, error)
}
