package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/sercha-kb/internal/core/domain"
	"github.com/custodia-labs/sercha-kb/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-kb/internal/errs"
	"github.com/custodia-labs/sercha-kb/internal/logger"
)

// QueryOutcome is everything known about a finished query attempt.
type QueryOutcome struct {
	Question    string
	K           int
	Role        string
	Retrieval   *domain.RetrievalResult
	Composition *Composition
	Err         error
	Latency     time.Duration
}

// AuditRecorder writes exactly one QueryRecord per query attempt.
//
// If the caller's context is already done, nothing is written. Otherwise
// the record is written as one insert on a context detached from the
// caller, so a cancellation during the write cannot leave a partial record.
type AuditRecorder struct {
	store   driven.AuditStore
	timeout time.Duration
	now     func() time.Time
	newID   func() string
}

// NewAuditRecorder creates a recorder backed by store.
func NewAuditRecorder(store driven.AuditStore) *AuditRecorder {
	return &AuditRecorder{
		store:   store,
		timeout: auditWriteTimeout,
		now:     time.Now,
		newID:   func() string { return uuid.New().String() },
	}
}

// Record maps outcome to a QueryRecord and appends it.
func (r *AuditRecorder) Record(ctx context.Context, outcome QueryOutcome) (*domain.QueryRecord, error) {
	if err := ctx.Err(); err != nil {
		logger.Debug("Query cancelled before recording: %v", err)
		return nil, err
	}

	rec := BuildQueryRecord(outcome)
	rec.ID = r.newID()
	rec.Timestamp = r.now()

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()
	if err := r.store.AppendQuery(writeCtx, rec); err != nil {
		logger.Error("Failed to record query %s: %v", rec.ID, err)
		return nil, fmt.Errorf("record query: %w", err)
	}

	logger.Event("query", "id", rec.ID, "status", rec.Status, "best_score", rec.BestScore,
		"k", rec.K, "reason", rec.Reason, "latency_ms", rec.LatencyMS)
	return rec, nil
}

// BuildQueryRecord maps a query outcome to its audit record. ID and
// Timestamp are left for the caller to assign.
//
// Retrieval failures and generation failures produce status error with an
// empty answer. Refusals store the refusal text and the retrieved chunks
// for replay. Answers store the cited sources only.
func BuildQueryRecord(outcome QueryOutcome) *domain.QueryRecord {
	rec := &domain.QueryRecord{
		Question:  outcome.Question,
		K:         outcome.K,
		Role:      outcome.Role,
		BestScore: outcome.Retrieval.Best(),
		LatencyMS: outcome.Latency.Milliseconds(),
	}

	switch {
	case outcome.Err != nil:
		rec.Status = domain.QueryStatusError
		rec.Reason = string(errs.CodeOf(outcome.Err))
		if rec.Reason == "" {
			rec.Reason = "internal"
		}
		rec.ErrorDetail = outcome.Err.Error()
		rec.Sources = retrievedRefs(outcome.Retrieval)
	case outcome.Composition == nil:
		rec.Status = domain.QueryStatusError
		rec.Reason = "internal"
		rec.ErrorDetail = "no composition"
		rec.Sources = retrievedRefs(outcome.Retrieval)
	case outcome.Composition.Status == domain.QueryStatusAnswered:
		rec.Status = domain.QueryStatusAnswered
		rec.Answer = outcome.Composition.Text
		rec.Sources = outcome.Composition.Cited
	default:
		rec.Status = domain.QueryStatusNotInKB
		rec.Answer = outcome.Composition.Text
		rec.Reason = outcome.Composition.Reason
		rec.Sources = retrievedRefs(outcome.Retrieval)
	}
	return rec
}

func retrievedRefs(result *domain.RetrievalResult) []domain.SourceRef {
	if result.Empty() {
		return nil
	}
	return LabelSources(result.Items)
}
