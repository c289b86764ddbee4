// Package sqlitevec provides a VectorIndex backed by SQLite with the
// sqlite-vec extension.
//
// Vectors live in a vec0 virtual table using cosine distance. Chunk
// metadata lives in a companion table keyed by the same chunk id.
// Unfiltered searches use the vec0 KNN operator; role-filtered searches
// scan with vec_distance_cosine so the filter applies before the limit.
package sqlitevec

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/custodia-labs/sercha-kb/internal/core/domain"
	"github.com/custodia-labs/sercha-kb/internal/core/ports/driven"
)

func init() {
	sqlite_vec.Auto()
}

// Ensure Index implements the interface.
var _ driven.VectorIndex = (*Index)(nil)

// Index is a persistent vector index in a single SQLite file.
type Index struct {
	db         *sql.DB
	dimensions int
	instance   string
}

// Open opens (or creates) the index at path. The dimension count is fixed
// when the index is first created; reopening with a different count
// returns domain.ErrDimensionMismatch.
func Open(path string, dimensions int) (*Index, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("%w: dimensions must be positive", domain.ErrInvalidInput)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging sqlite db: %w", err)
	}

	if err := migrate(db, dimensions); err != nil {
		_ = db.Close()
		return nil, err
	}
	instance, err := instanceID(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Index{db: db, dimensions: dimensions, instance: instance}, nil
}

// instanceID returns the id recorded when the database was created.
// A deleted and recreated file gets a new one.
func instanceID(db *sql.DB) (string, error) {
	if _, err := db.Exec(`INSERT OR IGNORE INTO vector_meta(key, value) VALUES ('instance', ?)`,
		uuid.New().String()); err != nil {
		return "", fmt.Errorf("recording instance id: %w", err)
	}
	var id string
	if err := db.QueryRow(`SELECT value FROM vector_meta WHERE key = 'instance'`).Scan(&id); err != nil {
		return "", fmt.Errorf("reading instance id: %w", err)
	}
	return id, nil
}

func migrate(db *sql.DB, dimensions int) error {
	const metaDDL = `
CREATE TABLE IF NOT EXISTS vector_meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
)`
	if _, err := db.Exec(metaDDL); err != nil {
		return fmt.Errorf("creating vector_meta table: %w", err)
	}

	var stored string
	err := db.QueryRow(`SELECT value FROM vector_meta WHERE key = 'dimensions'`).Scan(&stored)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := db.Exec(`INSERT INTO vector_meta(key, value) VALUES ('dimensions', ?)`,
			strconv.Itoa(dimensions)); err != nil {
			return fmt.Errorf("recording dimensions: %w", err)
		}
	case err != nil:
		return fmt.Errorf("reading dimensions: %w", err)
	default:
		if stored != strconv.Itoa(dimensions) {
			return fmt.Errorf("%w: index was built with %s dimensions, embedder produces %d",
				domain.ErrDimensionMismatch, stored, dimensions)
		}
	}

	vecDDL := fmt.Sprintf(
		`CREATE VIRTUAL TABLE IF NOT EXISTS vectors USING vec0(id TEXT PRIMARY KEY, embedding float[%d] distance_metric=cosine)`,
		dimensions,
	)
	if _, err := db.Exec(vecDDL); err != nil {
		return fmt.Errorf("creating vectors virtual table: %w", err)
	}

	const chunkDDL = `
CREATE TABLE IF NOT EXISTS chunk_metadata (
	id            TEXT PRIMARY KEY,
	doc_id        TEXT NOT NULL,
	ordinal       INTEGER NOT NULL,
	text          TEXT NOT NULL,
	title         TEXT NOT NULL DEFAULT '',
	path          TEXT NOT NULL DEFAULT '',
	section_path  TEXT NOT NULL DEFAULT '[]',
	page          INTEGER NOT NULL DEFAULT 0,
	content_hash  TEXT NOT NULL DEFAULT '',
	allowed_roles TEXT NOT NULL DEFAULT '[]'
)`
	if _, err := db.Exec(chunkDDL); err != nil {
		return fmt.Errorf("creating chunk_metadata table: %w", err)
	}
	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_chunk_metadata_doc ON chunk_metadata(doc_id)`); err != nil {
		return fmt.Errorf("creating chunk_metadata index: %w", err)
	}
	return nil
}

// Upsert stores records in one transaction.
func (x *Index) Upsert(ctx context.Context, records []driven.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}
	for _, rec := range records {
		if len(rec.Vector) != x.dimensions {
			return fmt.Errorf("%w: record %s has %d dimensions, want %d",
				domain.ErrDimensionMismatch, rec.ID, len(rec.Vector), x.dimensions)
		}
	}

	tx, err := x.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const metaQ = `INSERT INTO chunk_metadata
	(id, doc_id, ordinal, text, title, path, section_path, page, content_hash, allowed_roles)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	doc_id = excluded.doc_id,
	ordinal = excluded.ordinal,
	text = excluded.text,
	title = excluded.title,
	path = excluded.path,
	section_path = excluded.section_path,
	page = excluded.page,
	content_hash = excluded.content_hash,
	allowed_roles = excluded.allowed_roles`

	for _, rec := range records {
		blob, err := sqlite_vec.SerializeFloat32(rec.Vector)
		if err != nil {
			return fmt.Errorf("serializing embedding: %w", err)
		}

		// vec0 does not support ON CONFLICT; delete first for upsert.
		if _, err := tx.ExecContext(ctx, `DELETE FROM vectors WHERE id = ?`, rec.ID); err != nil {
			return fmt.Errorf("deleting existing vector %s: %w", rec.ID, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO vectors(id, embedding) VALUES (?, ?)`, rec.ID, blob); err != nil {
			return fmt.Errorf("inserting vector %s: %w", rec.ID, err)
		}

		sections, err := encodeList(rec.SectionPath)
		if err != nil {
			return err
		}
		roles, err := encodeList(rec.AllowedRoles)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, metaQ,
			rec.ID, rec.DocID, rec.Ordinal, rec.Text, rec.Title, rec.Path,
			sections, rec.Page, rec.ContentHash, roles,
		); err != nil {
			return fmt.Errorf("upserting chunk metadata %s: %w", rec.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing vector upsert: %w", err)
	}
	return nil
}

// DeleteByDoc removes the records of docID whose ids are not in keep.
func (x *Index) DeleteByDoc(ctx context.Context, docID string, keep []string) error {
	rows, err := x.db.QueryContext(ctx, `SELECT id FROM chunk_metadata WHERE doc_id = ?`, docID)
	if err != nil {
		return fmt.Errorf("listing chunks of %s: %w", docID, err)
	}
	keepSet := make(map[string]bool, len(keep))
	for _, id := range keep {
		keepSet[id] = true
	}
	var stale []any
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			_ = rows.Close()
			return fmt.Errorf("scanning chunk id: %w", err)
		}
		if !keepSet[id] {
			stale = append(stale, id)
		}
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating chunk ids: %w", err)
	}
	if len(stale) == 0 {
		return nil
	}

	placeholders := strings.Repeat("?,", len(stale))
	placeholders = placeholders[:len(placeholders)-1]

	tx, err := x.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM vectors WHERE id IN (`+placeholders+`)`, stale...); err != nil {
		return fmt.Errorf("deleting vectors: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM chunk_metadata WHERE id IN (`+placeholders+`)`, stale...); err != nil {
		return fmt.Errorf("deleting chunk metadata: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing vector delete: %w", err)
	}
	return nil
}

// UpdateMetadata rewrites the title, path and roles of the listed records
// of docID. The vectors table is not touched.
func (x *Index) UpdateMetadata(ctx context.Context, docID string, ids []string, meta driven.DocMetadata) error {
	if len(ids) == 0 {
		return nil
	}
	roles, err := encodeList(meta.AllowedRoles)
	if err != nil {
		return err
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := []any{meta.Title, meta.Path, roles, docID}
	for _, id := range ids {
		args = append(args, id)
	}

	q := `UPDATE chunk_metadata SET title = ?, path = ?, allowed_roles = ?
WHERE doc_id = ? AND id IN (` + placeholders + `)`
	if _, err := x.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("updating metadata of %s: %w", docID, err)
	}
	return nil
}

const selectColumns = `m.id, m.doc_id, m.ordinal, m.text, m.title, m.path,
	m.section_path, m.page, m.content_hash, m.allowed_roles`

// Search returns up to k records nearest to query that role may see.
func (x *Index) Search(ctx context.Context, query []float32, k int, filter driven.VectorFilter) ([]driven.VectorHit, error) {
	if k <= 0 {
		return nil, nil
	}
	if len(query) != x.dimensions {
		return nil, fmt.Errorf("%w: query has %d dimensions, want %d",
			domain.ErrDimensionMismatch, len(query), x.dimensions)
	}
	blob, err := sqlite_vec.SerializeFloat32(query)
	if err != nil {
		return nil, fmt.Errorf("serializing query vector: %w", err)
	}

	var rows *sql.Rows
	if filter.Role == "" {
		q := `SELECT ` + selectColumns + `, v.distance
FROM vectors v
JOIN chunk_metadata m ON m.id = v.id
WHERE v.embedding MATCH ? AND k = ?
ORDER BY v.distance, m.doc_id, m.ordinal`
		rows, err = x.db.QueryContext(ctx, q, blob, k)
	} else {
		q := `SELECT ` + selectColumns + `, vec_distance_cosine(v.embedding, ?) AS distance
FROM vectors v
JOIN chunk_metadata m ON m.id = v.id
WHERE json_array_length(m.allowed_roles) = 0
	OR EXISTS (SELECT 1 FROM json_each(m.allowed_roles) WHERE json_each.value = ?)
ORDER BY distance, m.doc_id, m.ordinal
LIMIT ?`
		rows, err = x.db.QueryContext(ctx, q, blob, filter.Role, k)
	}
	if err != nil {
		return nil, fmt.Errorf("searching vectors: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var hits []driven.VectorHit
	for rows.Next() {
		var (
			rec      driven.VectorRecord
			sections string
			roles    string
			distance float64
		)
		if err := rows.Scan(&rec.ID, &rec.DocID, &rec.Ordinal, &rec.Text, &rec.Title, &rec.Path,
			&sections, &rec.Page, &rec.ContentHash, &roles, &distance); err != nil {
			return nil, fmt.Errorf("scanning vector result: %w", err)
		}
		if rec.SectionPath, err = decodeList(sections); err != nil {
			return nil, err
		}
		if rec.AllowedRoles, err = decodeList(roles); err != nil {
			return nil, err
		}
		hits = append(hits, driven.VectorHit{Record: rec, Similarity: SimilarityFromDistance(distance)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating vector results: %w", err)
	}
	return hits, nil
}

// Identity names the database instance.
func (x *Index) Identity() string {
	return "sqlite-vec:" + x.instance
}

// ScoreRange reports cosine similarity bounds.
func (x *Index) ScoreRange() (lo, hi float64) {
	return -1, 1
}

// Close closes the underlying database connection.
func (x *Index) Close() error {
	return x.db.Close()
}

// SimilarityFromDistance converts a cosine distance in [0,2] to a
// similarity in [-1,1].
func SimilarityFromDistance(distance float64) float64 {
	return 1 - distance
}

func encodeList(values []string) (string, error) {
	if len(values) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(values)
	if err != nil {
		return "", fmt.Errorf("encoding list: %w", err)
	}
	return string(b), nil
}

func decodeList(raw string) ([]string, error) {
	if raw == "" || raw == "[]" {
		return nil, nil
	}
	var values []string
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil, fmt.Errorf("decoding list: %w", err)
	}
	return values, nil
}
