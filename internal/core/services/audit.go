package services

import (
	"context"
	"fmt"

	"github.com/custodia-labs/sercha-kb/internal/core/domain"
	"github.com/custodia-labs/sercha-kb/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-kb/internal/core/ports/driving"
)

// Ensure AuditService implements the interface.
var _ driving.AuditService = (*AuditService)(nil)

// DefaultListLimit is used when a non-positive limit is requested.
const DefaultListLimit = 50

// AuditService exposes the audit trail and the sync ledger for reading.
type AuditService struct {
	store  driven.AuditStore
	ledger driven.SyncLedger
}

// NewAuditService creates a new audit service.
func NewAuditService(store driven.AuditStore, ledger driven.SyncLedger) *AuditService {
	return &AuditService{store: store, ledger: ledger}
}

// ListQueries returns up to limit query records, newest first.
func (s *AuditService) ListQueries(ctx context.Context, limit int) ([]domain.QueryRecord, error) {
	records, err := s.store.ListQueries(ctx, normaliseLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list queries: %w", err)
	}
	return records, nil
}

// GetQuery returns a query record by id.
func (s *AuditService) GetQuery(ctx context.Context, id string) (*domain.QueryRecord, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: empty record id", domain.ErrInvalidInput)
	}
	return s.store.GetQuery(ctx, id)
}

// ListSyncRuns returns up to limit sync runs, newest first.
func (s *AuditService) ListSyncRuns(ctx context.Context, limit int) ([]domain.SyncRun, error) {
	runs, err := s.store.ListSyncRuns(ctx, normaliseLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list sync runs: %w", err)
	}
	return runs, nil
}

// ListDocuments returns the sync ledger entries.
func (s *AuditService) ListDocuments(ctx context.Context) ([]domain.DocState, error) {
	states, err := s.ledger.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return states, nil
}

func normaliseLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return limit
}
