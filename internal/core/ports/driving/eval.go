package driving

import (
	"context"

	"github.com/custodia-labs/sercha-kb/internal/core/domain"
)

// Evaluator measures retrieval quality over a labelled question set.
type Evaluator interface {
	// Evaluate retrieves k chunks per case and computes recall@k.
	Evaluate(ctx context.Context, cases []domain.GoldenCase, k int) (*domain.EvalReport, error)
}
