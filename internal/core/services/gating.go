package services

import "github.com/custodia-labs/sercha-kb/internal/core/domain"

// GatingPolicy decides whether retrieval is confident enough to answer.
//
// It is the only path by which chunks reach the AnswerComposer: a refusal
// carries no chunks. Raising the threshold trades recall for precision.
type GatingPolicy struct {
	threshold float64
}

// NewGatingPolicy creates a policy with the given similarity threshold.
func NewGatingPolicy(threshold float64) *GatingPolicy {
	return &GatingPolicy{threshold: threshold}
}

// Threshold returns the configured threshold.
func (g *GatingPolicy) Threshold() float64 {
	return g.threshold
}

// Decide accepts iff result is non-empty and its best score is at least the threshold.
func (g *GatingPolicy) Decide(result *domain.RetrievalResult) domain.Decision {
	if result.Empty() {
		return domain.Refuse(domain.RefuseNoResults, 0, g.threshold)
	}
	best := result.Best()
	if best < g.threshold {
		return domain.Refuse(domain.RefuseBelowThreshold, best, g.threshold)
	}
	chunks := make([]domain.ScoredChunk, len(result.Items))
	copy(chunks, result.Items)
	return domain.Accept(chunks, best, g.threshold)
}
