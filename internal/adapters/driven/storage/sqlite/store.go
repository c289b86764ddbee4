package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/sercha-kb/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/sercha-kb/internal/core/domain"
	"github.com/custodia-labs/sercha-kb/internal/core/ports/driven"
)

// FileName is the database file inside the data directory.
const FileName = "kb.db"

// Store is a unified SQLite-based storage that provides access to
// the ledger and audit interfaces through wrapper types.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a new SQLite store in the specified data directory.
// If dataDir is empty, defaults to ~/.sercha-kb/data.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".sercha-kb", "data")
	}

	// Ensure directory exists
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, FileName)

	// Open database with WAL mode for better concurrency
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// SyncLedger returns a SyncLedger backed by this store.
func (s *Store) SyncLedger() driven.SyncLedger {
	return &syncLedger{store: s}
}

// AuditStore returns an AuditStore backed by this store.
func (s *Store) AuditStore() driven.AuditStore {
	return &auditStore{store: s}
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys embed.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// "001_initial.up.sql" -> 1
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
	}

	return nil
}

// ==================== Sync Ledger ====================

// syncLedger implements driven.SyncLedger.
type syncLedger struct {
	store *Store
}

var _ driven.SyncLedger = (*syncLedger)(nil)

// Get returns the ledger entry for a document.
func (l *syncLedger) Get(ctx context.Context, docID string) (*domain.DocState, error) {
	row := l.store.db.QueryRowContext(ctx, `
		SELECT doc_id, path, content_hash, meta_hash, index_id, chunk_count, indexed_at
		FROM doc_states WHERE doc_id = ?
	`, docID)

	state, err := scanDocState(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning doc state: %w", err)
	}
	return state, nil
}

// Put creates or replaces the ledger entry for a document.
func (l *syncLedger) Put(ctx context.Context, state domain.DocState) error {
	if state.DocID == "" {
		return fmt.Errorf("%w: doc id is required", domain.ErrInvalidInput)
	}
	_, err := l.store.db.ExecContext(ctx, `
		INSERT INTO doc_states (doc_id, path, content_hash, meta_hash, index_id, chunk_count, indexed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(doc_id) DO UPDATE SET
			path = excluded.path,
			content_hash = excluded.content_hash,
			meta_hash = excluded.meta_hash,
			index_id = excluded.index_id,
			chunk_count = excluded.chunk_count,
			indexed_at = excluded.indexed_at
	`, state.DocID, state.Path, state.ContentHash, state.MetaHash, state.IndexID,
		state.ChunkCount, toUnix(state.IndexedAt))
	if err != nil {
		return fmt.Errorf("saving doc state: %w", err)
	}
	return nil
}

// List returns all ledger entries ordered by doc id.
func (l *syncLedger) List(ctx context.Context) ([]domain.DocState, error) {
	rows, err := l.store.db.QueryContext(ctx, `
		SELECT doc_id, path, content_hash, meta_hash, index_id, chunk_count, indexed_at
		FROM doc_states ORDER BY doc_id
	`)
	if err != nil {
		return nil, fmt.Errorf("listing doc states: %w", err)
	}
	defer rows.Close()

	var states []domain.DocState
	for rows.Next() {
		state, err := scanDocState(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning doc state: %w", err)
		}
		states = append(states, *state)
	}
	return states, rows.Err()
}

// ==================== Audit Store ====================

// auditStore implements driven.AuditStore.
type auditStore struct {
	store *Store
}

var _ driven.AuditStore = (*auditStore)(nil)

// AppendQuery inserts a query record. Records are never updated.
func (a *auditStore) AppendQuery(ctx context.Context, record *domain.QueryRecord) error {
	if record == nil || record.ID == "" {
		return fmt.Errorf("%w: query record id is required", domain.ErrInvalidInput)
	}
	if !record.Status.IsValid() {
		return fmt.Errorf("%w: invalid status %q", domain.ErrInvalidInput, record.Status)
	}

	sources, err := json.Marshal(nonNilSources(record.Sources))
	if err != nil {
		return fmt.Errorf("marshalling sources: %w", err)
	}

	_, err = a.store.db.ExecContext(ctx, `
		INSERT INTO queries (id, ts, question, status, best_score, k, role,
			sources, answer, reason, error_detail, latency_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, record.ID, toUnix(record.Timestamp), record.Question, string(record.Status),
		record.BestScore, record.K, record.Role, string(sources), record.Answer,
		record.Reason, record.ErrorDetail, record.LatencyMS)
	if err != nil {
		return fmt.Errorf("appending query record: %w", err)
	}
	return nil
}

const queryColumns = `id, ts, question, status, best_score, k, role,
	sources, answer, reason, error_detail, latency_ms`

// GetQuery returns a query record by id.
func (a *auditStore) GetQuery(ctx context.Context, id string) (*domain.QueryRecord, error) {
	row := a.store.db.QueryRowContext(ctx, `SELECT `+queryColumns+` FROM queries WHERE id = ?`, id)
	record, err := scanQuery(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning query record: %w", err)
	}
	return record, nil
}

// ListQueries returns up to limit records, newest first. A non-positive
// limit returns every record.
func (a *auditStore) ListQueries(ctx context.Context, limit int) ([]domain.QueryRecord, error) {
	rows, err := a.store.db.QueryContext(ctx,
		`SELECT `+queryColumns+` FROM queries ORDER BY ts DESC, rowid DESC LIMIT ?`, sqlLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("listing query records: %w", err)
	}
	defer rows.Close()

	var records []domain.QueryRecord
	for rows.Next() {
		record, err := scanQuery(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning query record: %w", err)
		}
		records = append(records, *record)
	}
	return records, rows.Err()
}

// AppendSyncRun inserts a sync run report.
func (a *auditStore) AppendSyncRun(ctx context.Context, run *domain.SyncRun) error {
	if run == nil || run.ID == "" {
		return fmt.Errorf("%w: sync run id is required", domain.ErrInvalidInput)
	}

	syncErrors := run.Errors
	if syncErrors == nil {
		syncErrors = []domain.SyncError{}
	}
	errorsJSON, err := json.Marshal(syncErrors)
	if err != nil {
		return fmt.Errorf("marshalling sync errors: %w", err)
	}

	_, err = a.store.db.ExecContext(ctx, `
		INSERT INTO sync_runs (id, ts, manifest_path, docs_total, docs_indexed,
			docs_failed, docs_changed, errors)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, toUnix(run.Timestamp), run.ManifestPath, run.DocsTotal, run.DocsIndexed,
		run.DocsFailed, run.DocsChanged, string(errorsJSON))
	if err != nil {
		return fmt.Errorf("appending sync run: %w", err)
	}
	return nil
}

// ListSyncRuns returns up to limit runs, newest first.
func (a *auditStore) ListSyncRuns(ctx context.Context, limit int) ([]domain.SyncRun, error) {
	rows, err := a.store.db.QueryContext(ctx, `
		SELECT id, ts, manifest_path, docs_total, docs_indexed, docs_failed, docs_changed, errors
		FROM sync_runs ORDER BY ts DESC, rowid DESC LIMIT ?
	`, sqlLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("listing sync runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.SyncRun
	for rows.Next() {
		var (
			run        domain.SyncRun
			ts         int64
			errorsJSON string
		)
		if err := rows.Scan(&run.ID, &ts, &run.ManifestPath, &run.DocsTotal, &run.DocsIndexed,
			&run.DocsFailed, &run.DocsChanged, &errorsJSON); err != nil {
			return nil, fmt.Errorf("scanning sync run: %w", err)
		}
		run.Timestamp = fromUnix(ts)
		if err := json.Unmarshal([]byte(errorsJSON), &run.Errors); err != nil {
			return nil, fmt.Errorf("unmarshaling sync errors: %w", err)
		}
		if len(run.Errors) == 0 {
			run.Errors = nil
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// ==================== Helpers ====================

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocState(row rowScanner) (*domain.DocState, error) {
	var (
		state     domain.DocState
		indexedAt int64
	)
	if err := row.Scan(&state.DocID, &state.Path, &state.ContentHash, &state.MetaHash,
		&state.IndexID, &state.ChunkCount, &indexedAt); err != nil {
		return nil, err
	}
	state.IndexedAt = fromUnix(indexedAt)
	return &state, nil
}

func scanQuery(row rowScanner) (*domain.QueryRecord, error) {
	var (
		record  domain.QueryRecord
		ts      int64
		status  string
		sources string
	)
	if err := row.Scan(&record.ID, &ts, &record.Question, &status, &record.BestScore,
		&record.K, &record.Role, &sources, &record.Answer, &record.Reason,
		&record.ErrorDetail, &record.LatencyMS); err != nil {
		return nil, err
	}
	record.Timestamp = fromUnix(ts)
	record.Status = domain.QueryStatus(status)
	if err := json.Unmarshal([]byte(sources), &record.Sources); err != nil {
		return nil, fmt.Errorf("unmarshaling sources: %w", err)
	}
	if len(record.Sources) == 0 {
		record.Sources = nil
	}
	return &record, nil
}

func nonNilSources(sources []domain.SourceRef) []domain.SourceRef {
	if sources == nil {
		return []domain.SourceRef{}
	}
	return sources
}

// sqlLimit maps a non-positive limit to SQLite's "no limit".
func sqlLimit(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}

func toUnix(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnix(ns int64) time.Time {
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns).UTC()
}
