package driven

import (
	"context"

	"github.com/custodia-labs/sercha-kb/internal/core/domain"
)

// AuditStore persists query records and sync runs.
// Entries are append-only: there are no update or delete operations.
type AuditStore interface {
	// AppendQuery stores a new query record. Each call writes exactly one record.
	AppendQuery(ctx context.Context, record *domain.QueryRecord) error

	// GetQuery returns a query record by id, or domain.ErrNotFound.
	GetQuery(ctx context.Context, id string) (*domain.QueryRecord, error)

	// ListQueries returns up to limit records, newest first.
	ListQueries(ctx context.Context, limit int) ([]domain.QueryRecord, error)

	// AppendSyncRun stores a new sync run report.
	AppendSyncRun(ctx context.Context, run *domain.SyncRun) error

	// ListSyncRuns returns up to limit runs, newest first.
	ListSyncRuns(ctx context.Context, limit int) ([]domain.SyncRun, error)
}
