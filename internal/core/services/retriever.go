package services

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/custodia-labs/sercha-kb/internal/core/domain"
	"github.com/custodia-labs/sercha-kb/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-kb/internal/errs"
	"github.com/custodia-labs/sercha-kb/internal/logger"
)

// Retriever embeds a question and finds the most similar chunks.
// It never mutates the index.
type Retriever struct {
	embedder driven.EmbeddingService
	index    driven.VectorIndex
	timeouts domain.TimeoutSettings
	metrics  driven.PipelineMetrics
}

// NewRetriever creates a new retriever. metrics may be nil.
func NewRetriever(
	embedder driven.EmbeddingService,
	index driven.VectorIndex,
	timeouts domain.TimeoutSettings,
	metrics driven.PipelineMetrics,
) *Retriever {
	if metrics == nil {
		metrics = driven.NopMetrics{}
	}
	return &Retriever{
		embedder: embedder,
		index:    index,
		timeouts: timeouts,
		metrics:  metrics,
	}
}

// Retrieve returns up to k chunks ordered by descending score, ties broken
// by ascending (doc id, ordinal). When role is set, only chunks whose
// document allows that role are returned.
func (r *Retriever) Retrieve(ctx context.Context, question string, k int, role string) (*domain.RetrievalResult, error) {
	ctx, span := tracer.Start(ctx, "Retriever.Retrieve")
	defer span.End()
	span.SetAttributes(attribute.Int("retrieval.k", k), attribute.String("retrieval.role", role))

	logger.Section("Retrieval")
	logger.Debug("Question: %q, k=%d, role=%q", question, k, role)

	if strings.TrimSpace(question) == "" {
		return nil, errs.Wrap(domain.ErrEmptyQuestion, errs.CodeRetrievalQueryInvalid, "empty question")
	}
	if k <= 0 {
		return nil, errs.Errorf(errs.CodeRetrievalQueryInvalid, "k must be positive, got %d", k)
	}
	if r.embedder == nil {
		return nil, errs.Wrap(domain.ErrEmbeddingUnavailable, errs.CodeRetrievalEmbeddingFailure, "retrieve")
	}
	if r.index == nil {
		return nil, errs.Wrap(domain.ErrVectorIndexUnavailable, errs.CodeRetrievalIndexUnavailable, "retrieve")
	}

	embedding, err := r.embedQuestion(ctx, question)
	if err != nil {
		logger.Warn("Question embedding failed: %v", err)
		return nil, errs.WrapProvider(err, errs.CodeRetrievalEmbeddingTimeout, errs.CodeRetrievalEmbeddingFailure,
			"embed question")
	}
	logger.Debug("Question embedding: %d dimensions", len(embedding))

	hits, err := r.search(ctx, embedding, k, role)
	if err != nil {
		logger.Warn("Vector index search failed: %v", err)
		return nil, errs.WrapProvider(err, errs.CodeRetrievalIndexTimeout, errs.CodeRetrievalIndexUnavailable,
			"search vector index")
	}

	result := &domain.RetrievalResult{Items: make([]domain.ScoredChunk, 0, len(hits))}
	for _, hit := range hits {
		// Backends prefilter; this keeps the role guarantee independent of them.
		if !domain.AllowsRole(hit.Record.AllowedRoles, role) {
			continue
		}
		result.Items = append(result.Items, toScoredChunk(hit))
	}
	result.Sort()
	if len(result.Items) > k {
		result.Items = result.Items[:k]
	}

	span.SetAttributes(attribute.Int("retrieval.hits", len(result.Items)),
		attribute.Float64("retrieval.best_score", result.Best()))
	logger.Debug("Retrieved %d chunks, best score %.4f", len(result.Items), result.Best())
	return result, nil
}

func (r *Retriever) embedQuestion(ctx context.Context, question string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeouts.Embedding)
	defer cancel()
	begin := time.Now()
	embedding, err := r.embedder.Embed(ctx, question)
	r.metrics.ObserveProviderCall(driven.CallEmbedding, time.Since(begin), err)
	return embedding, err
}

func (r *Retriever) search(ctx context.Context, embedding []float32, k int, role string) ([]driven.VectorHit, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeouts.VectorIndex)
	defer cancel()
	begin := time.Now()
	hits, err := r.index.Search(ctx, embedding, k, driven.VectorFilter{Role: role})
	r.metrics.ObserveProviderCall(driven.CallVectorIndex, time.Since(begin), err)
	return hits, err
}

func toScoredChunk(hit driven.VectorHit) domain.ScoredChunk {
	rec := hit.Record
	return domain.ScoredChunk{
		Chunk: domain.Chunk{
			DocID:       rec.DocID,
			Ordinal:     rec.Ordinal,
			Text:        rec.Text,
			SectionPath: rec.SectionPath,
			Page:        rec.Page,
			ContentHash: rec.ContentHash,
		},
		Title: rec.Title,
		Path:  rec.Path,
		Score: hit.Similarity,
	}
}
