package services

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/custodia-labs/sercha-kb/internal/core/domain"
	"github.com/custodia-labs/sercha-kb/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-kb/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-kb/internal/errs"
	"github.com/custodia-labs/sercha-kb/internal/logger"
)

// Ensure QueryService implements the interface.
var _ driving.QueryService = (*QueryService)(nil)

// QueryService runs the query path: retrieve, gate, compose, record.
type QueryService struct {
	retriever *Retriever
	gate      *GatingPolicy
	composer  *AnswerComposer
	recorder  *AuditRecorder
	defaultK  int
	metrics   driven.PipelineMetrics
}

// NewQueryService creates a new query service. metrics may be nil.
func NewQueryService(
	retriever *Retriever,
	gate *GatingPolicy,
	composer *AnswerComposer,
	recorder *AuditRecorder,
	settings domain.RetrievalSettings,
	metrics driven.PipelineMetrics,
) *QueryService {
	if metrics == nil {
		metrics = driven.NopMetrics{}
	}
	k := settings.K
	if k <= 0 {
		k = domain.DefaultK
	}
	return &QueryService{
		retriever: retriever,
		gate:      gate,
		composer:  composer,
		recorder:  recorder,
		defaultK:  k,
		metrics:   metrics,
	}
}

// Ask answers req.Question and records the attempt.
//
// Refusals are returned as answers with status not_in_kb and a nil error.
// On a retrieval or generation failure the returned Answer has status
// error and a caller-safe message, and the classified error is returned
// alongside it. A cancelled query returns only the context error and is
// not recorded.
func (s *QueryService) Ask(ctx context.Context, req domain.QueryRequest) (*domain.Answer, error) {
	ctx, span := tracer.Start(ctx, "QueryService.Ask")
	defer span.End()

	start := time.Now()
	k := req.K
	if k <= 0 {
		k = s.defaultK
	}
	question := strings.TrimSpace(req.Question)
	span.SetAttributes(attribute.Int("query.k", k), attribute.String("query.role", req.Role))

	outcome := QueryOutcome{Question: question, K: k, Role: req.Role}

	result, err := s.retriever.Retrieve(ctx, question, k, req.Role)
	outcome.Retrieval = result
	if err == nil {
		decision := s.gate.Decide(result)
		outcome.Composition, err = s.composer.Compose(ctx, question, decision, req.Temperature)
	}
	outcome.Err = err
	outcome.Latency = time.Since(start)

	if err != nil && ctx.Err() != nil {
		span.SetStatus(codes.Error, "cancelled")
		return nil, ctx.Err()
	}

	rec, recErr := s.recorder.Record(ctx, outcome)
	if recErr != nil && ctx.Err() != nil {
		return nil, ctx.Err()
	}

	answer := &domain.Answer{Retrieval: result, BestScore: result.Best()}
	if rec != nil {
		answer.RecordID = rec.ID
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(errs.CodeOf(err)))
		logger.Warn("Query failed: %v", err)
		answer.Status = domain.QueryStatusError
		answer.Text = errs.SafeMessage(err)
		s.metrics.ObserveQuery(answer.Status, answer.BestScore, outcome.Latency)
		return answer, err
	}

	answer.Status = outcome.Composition.Status
	answer.Text = outcome.Composition.Text
	if answer.Status == domain.QueryStatusAnswered {
		answer.Sources = outcome.Composition.Cited
	}
	span.SetAttributes(attribute.String("query.status", string(answer.Status)))
	s.metrics.ObserveQuery(answer.Status, answer.BestScore, outcome.Latency)

	if recErr != nil {
		return answer, recErr
	}
	return answer, nil
}

// Retrieve returns scored chunks without generating or recording anything.
// A non-positive k uses the configured default.
func (s *QueryService) Retrieve(ctx context.Context, question string, k int, role string) (*domain.RetrievalResult, error) {
	if k <= 0 {
		k = s.defaultK
	}
	return s.retriever.Retrieve(ctx, strings.TrimSpace(question), k, role)
}
