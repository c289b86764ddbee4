package driven

import (
	"time"

	"github.com/custodia-labs/sercha-kb/internal/core/domain"
)

// Provider call kinds reported to PipelineMetrics.
const (
	CallEmbedding   = "embedding"
	CallGeneration  = "generation"
	CallVectorIndex = "vector_index"
)

// Per-document sync outcomes reported to PipelineMetrics.
const (
	SyncOutcomeIndexed   = "indexed"
	SyncOutcomeUnchanged = "unchanged"
	SyncOutcomeFailed    = "failed"
)

// PipelineMetrics receives pipeline observations.
// Implementations must be safe for concurrent use.
type PipelineMetrics interface {
	// ObserveQuery records a completed query attempt.
	ObserveQuery(status domain.QueryStatus, bestScore float64, latency time.Duration)

	// ObserveSyncDocument records the outcome of one document in a sync run.
	ObserveSyncDocument(outcome string)

	// ObserveProviderCall records one call to an external provider.
	ObserveProviderCall(kind string, latency time.Duration, err error)
}

// NopMetrics discards all observations.
type NopMetrics struct{}

// ObserveQuery implements PipelineMetrics.
func (NopMetrics) ObserveQuery(domain.QueryStatus, float64, time.Duration) {}

// ObserveSyncDocument implements PipelineMetrics.
func (NopMetrics) ObserveSyncDocument(string) {}

// ObserveProviderCall implements PipelineMetrics.
func (NopMetrics) ObserveProviderCall(string, time.Duration, error) {}
