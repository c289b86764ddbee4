// Package memory provides an in-process VectorIndex.
// Vectors are lost when the process exits.
package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/custodia-labs/sercha-kb/internal/core/domain"
	"github.com/custodia-labs/sercha-kb/internal/core/ports/driven"
)

// Ensure Index implements the interface.
var _ driven.VectorIndex = (*Index)(nil)

// Index is a brute-force cosine similarity index.
type Index struct {
	mu         sync.RWMutex
	id         string
	dimensions int
	records    map[string]driven.VectorRecord
}

// New creates an empty index. A zero dimensions accepts the size of the
// first vector stored.
func New(dimensions int) *Index {
	return &Index{
		id:         "memory:" + uuid.New().String(),
		dimensions: dimensions,
		records:    make(map[string]driven.VectorRecord),
	}
}

// Upsert stores records, replacing any with the same id.
func (x *Index) Upsert(ctx context.Context, records []driven.VectorRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	for _, rec := range records {
		if x.dimensions == 0 {
			x.dimensions = len(rec.Vector)
		}
		if len(rec.Vector) != x.dimensions {
			return fmt.Errorf("%w: record %s has %d dimensions, want %d",
				domain.ErrDimensionMismatch, rec.ID, len(rec.Vector), x.dimensions)
		}
	}
	for _, rec := range records {
		rec.Vector = append([]float32(nil), rec.Vector...)
		rec.SectionPath = append([]string(nil), rec.SectionPath...)
		rec.AllowedRoles = append([]string(nil), rec.AllowedRoles...)
		x.records[rec.ID] = rec
	}
	return nil
}

// DeleteByDoc removes the records of docID whose ids are not in keep.
func (x *Index) DeleteByDoc(ctx context.Context, docID string, keep []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	keepSet := make(map[string]bool, len(keep))
	for _, id := range keep {
		keepSet[id] = true
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	for id, rec := range x.records {
		if rec.DocID == docID && !keepSet[id] {
			delete(x.records, id)
		}
	}
	return nil
}

// UpdateMetadata rewrites the title, path and roles of the listed records
// of docID. Unknown ids are ignored.
func (x *Index) UpdateMetadata(ctx context.Context, docID string, ids []string, meta driven.DocMetadata) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	for _, id := range ids {
		rec, ok := x.records[id]
		if !ok || rec.DocID != docID {
			continue
		}
		rec.Title = meta.Title
		rec.Path = meta.Path
		rec.AllowedRoles = append([]string(nil), meta.AllowedRoles...)
		x.records[id] = rec
	}
	return nil
}

// Search returns up to k records most similar to query that role may see.
func (x *Index) Search(ctx context.Context, query []float32, k int, filter driven.VectorFilter) ([]driven.VectorHit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, nil
	}

	x.mu.RLock()
	defer x.mu.RUnlock()

	if x.dimensions != 0 && len(query) != x.dimensions {
		return nil, fmt.Errorf("%w: query has %d dimensions, want %d",
			domain.ErrDimensionMismatch, len(query), x.dimensions)
	}

	hits := make([]driven.VectorHit, 0, len(x.records))
	for _, rec := range x.records {
		if !domain.AllowsRole(rec.AllowedRoles, filter.Role) {
			continue
		}
		similarity := Cosine(query, rec.Vector)
		rec.Vector = nil
		hits = append(hits, driven.VectorHit{Record: rec, Similarity: similarity})
	}

	sort.Slice(hits, func(i, j int) bool {
		a, b := hits[i], hits[j]
		if a.Similarity != b.Similarity {
			return a.Similarity > b.Similarity
		}
		if a.Record.DocID != b.Record.DocID {
			return a.Record.DocID < b.Record.DocID
		}
		return a.Record.Ordinal < b.Record.Ordinal
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Identity is unique per Index value, since vectors do not outlive it.
func (x *Index) Identity() string {
	return x.id
}

// ScoreRange reports cosine similarity bounds.
func (x *Index) ScoreRange() (lo, hi float64) {
	return -1, 1
}

// Len returns the number of stored records.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.records)
}

// Close releases resources.
func (x *Index) Close() error {
	return nil
}

// Cosine returns the cosine similarity of a and b, or 0 when either is a
// zero vector or the lengths differ.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
