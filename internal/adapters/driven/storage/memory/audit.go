package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/custodia-labs/sercha-kb/internal/core/domain"
	"github.com/custodia-labs/sercha-kb/internal/core/ports/driven"
)

// Ensure AuditStore implements the interface.
var _ driven.AuditStore = (*AuditStore)(nil)

// AuditStore is an in-memory implementation of driven.AuditStore.
// Entries are kept in append order.
type AuditStore struct {
	mu      sync.RWMutex
	queries []domain.QueryRecord
	byID    map[string]int
	runs    []domain.SyncRun
}

// NewAuditStore creates a new in-memory audit store.
func NewAuditStore() *AuditStore {
	return &AuditStore{
		byID: make(map[string]int),
	}
}

// AppendQuery stores a query record.
func (a *AuditStore) AppendQuery(_ context.Context, record *domain.QueryRecord) error {
	if record == nil || record.ID == "" {
		return fmt.Errorf("%w: query record id is required", domain.ErrInvalidInput)
	}
	if !record.Status.IsValid() {
		return fmt.Errorf("%w: invalid status %q", domain.ErrInvalidInput, record.Status)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if _, exists := a.byID[record.ID]; exists {
		return fmt.Errorf("%w: query record %s already exists", domain.ErrInvalidInput, record.ID)
	}
	rec := *record
	rec.Sources = append([]domain.SourceRef(nil), record.Sources...)
	a.byID[rec.ID] = len(a.queries)
	a.queries = append(a.queries, rec)
	return nil
}

// GetQuery returns a query record by id.
func (a *AuditStore) GetQuery(_ context.Context, id string) (*domain.QueryRecord, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	i, ok := a.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	rec := a.queries[i]
	return &rec, nil
}

// ListQueries returns up to limit records, newest first.
// Records with equal timestamps are returned in reverse append order.
func (a *AuditStore) ListQueries(_ context.Context, limit int) ([]domain.QueryRecord, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]domain.QueryRecord, len(a.queries))
	for i := range a.queries {
		out[len(a.queries)-1-i] = a.queries[i]
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return truncate(out, limit), nil
}

// AppendSyncRun stores a sync run report.
func (a *AuditStore) AppendSyncRun(_ context.Context, run *domain.SyncRun) error {
	if run == nil || run.ID == "" {
		return fmt.Errorf("%w: sync run id is required", domain.ErrInvalidInput)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	r := *run
	r.Errors = append([]domain.SyncError(nil), run.Errors...)
	a.runs = append(a.runs, r)
	return nil
}

// ListSyncRuns returns up to limit runs, newest first.
func (a *AuditStore) ListSyncRuns(_ context.Context, limit int) ([]domain.SyncRun, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]domain.SyncRun, len(a.runs))
	for i := range a.runs {
		out[len(a.runs)-1-i] = a.runs[i]
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return truncate(out, limit), nil
}

func truncate[T any](items []T, limit int) []T {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}
