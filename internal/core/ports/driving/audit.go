package driving

import (
	"context"

	"github.com/custodia-labs/sercha-kb/internal/core/domain"
)

// AuditService reads the audit trail and ledger.
type AuditService interface {
	// ListQueries returns up to limit query records, newest first.
	ListQueries(ctx context.Context, limit int) ([]domain.QueryRecord, error)

	// GetQuery returns a query record by id.
	GetQuery(ctx context.Context, id string) (*domain.QueryRecord, error)

	// ListSyncRuns returns up to limit sync runs, newest first.
	ListSyncRuns(ctx context.Context, limit int) ([]domain.SyncRun, error)

	// ListDocuments returns the sync ledger entries.
	ListDocuments(ctx context.Context) ([]domain.DocState, error)
}
