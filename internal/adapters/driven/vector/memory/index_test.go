package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-kb/internal/core/domain"
	"github.com/custodia-labs/sercha-kb/internal/core/ports/driven"
)

func rec(docID string, ordinal int, vec []float32, roles ...string) driven.VectorRecord {
	return driven.VectorRecord{
		ID:           domain.ChunkRef(docID, ordinal),
		DocID:        docID,
		Ordinal:      ordinal,
		Text:         docID + " text",
		AllowedRoles: roles,
		Vector:       vec,
	}
}

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"zero vector", []float32{0, 0}, []float32{1, 0}, 0},
		{"length mismatch", []float32{1}, []float32{1, 0}, 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.want, Cosine(tc.a, tc.b), 1e-9)
		})
	}
}

func TestSearch_OrderAndTieBreak(t *testing.T) {
	idx := New(2)
	ctx := context.Background()
	require.NoError(t, idx.Upsert(ctx, []driven.VectorRecord{
		rec("b", 1, []float32{1, 0}),
		rec("b", 0, []float32{1, 0}),
		rec("a", 3, []float32{1, 0}),
		rec("c", 0, []float32{0, 1}),
		rec("d", 0, []float32{0.8, 0.6}),
	}))

	hits, err := idx.Search(ctx, []float32{1, 0}, 4, driven.VectorFilter{})
	require.NoError(t, err)
	require.Len(t, hits, 4)

	var ids []string
	for _, h := range hits {
		ids = append(ids, h.Record.ID)
	}
	assert.Equal(t, []string{"a#3", "b#0", "b#1", "d#0"}, ids)
	assert.InDelta(t, 0.8, hits[3].Similarity, 1e-6)
}

func TestSearch_HitsOmitVectors(t *testing.T) {
	idx := New(2)
	ctx := context.Background()
	require.NoError(t, idx.Upsert(ctx, []driven.VectorRecord{rec("a", 0, []float32{1, 0})}))

	hits, err := idx.Search(ctx, []float32{1, 0}, 1, driven.VectorFilter{})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Nil(t, hits[0].Record.Vector)

	// The stored vector is untouched.
	hits, err = idx.Search(ctx, []float32{1, 0}, 1, driven.VectorFilter{})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, hits[0].Similarity, 1e-9)
}

func TestUpdateMetadata(t *testing.T) {
	idx := New(2)
	ctx := context.Background()
	require.NoError(t, idx.Upsert(ctx, []driven.VectorRecord{
		rec("returns", 0, []float32{1, 0}, "warehouse"),
		rec("returns", 1, []float32{0.8, 0.6}, "warehouse"),
		rec("leave", 0, []float32{1, 0}, "warehouse"),
	}))

	err := idx.UpdateMetadata(ctx, "returns",
		[]string{"returns#0", "returns#1", "leave#0", "missing#0"},
		driven.DocMetadata{Title: "Returns", Path: "kb/returns.md", AllowedRoles: []string{"hr"}})
	require.NoError(t, err)

	hits, err := idx.Search(ctx, []float32{1, 0}, 5, driven.VectorFilter{Role: "warehouse"})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "leave#0", hits[0].Record.ID, "ids of other documents are left alone")

	hits, err = idx.Search(ctx, []float32{1, 0}, 5, driven.VectorFilter{Role: "hr"})
	require.NoError(t, err)
	require.Len(t, hits, 2)
	for _, h := range hits {
		assert.Equal(t, "Returns", h.Record.Title)
		assert.Equal(t, "kb/returns.md", h.Record.Path)
		assert.Equal(t, []string{"hr"}, h.Record.AllowedRoles)
	}
	assert.InDelta(t, 1.0, hits[0].Similarity, 1e-9, "vectors are kept")
	assert.Equal(t, 3, idx.Len())
}

func TestSearch_RoleFilter(t *testing.T) {
	idx := New(2)
	ctx := context.Background()
	require.NoError(t, idx.Upsert(ctx, []driven.VectorRecord{
		rec("warehouse-sop", 0, []float32{1, 0}, "warehouse"),
		rec("returns", 0, []float32{0.9, 0.1}, "cs", "warehouse"),
		rec("handbook", 0, []float32{0.5, 0.5}),
	}))

	hits, err := idx.Search(ctx, []float32{1, 0}, 10, driven.VectorFilter{Role: "cs"})
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "returns", hits[0].Record.DocID)
	assert.Equal(t, "handbook", hits[1].Record.DocID)

	all, err := idx.Search(ctx, []float32{1, 0}, 10, driven.VectorFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestUpsert_Replaces(t *testing.T) {
	idx := New(2)
	ctx := context.Background()
	require.NoError(t, idx.Upsert(ctx, []driven.VectorRecord{rec("a", 0, []float32{1, 0})}))

	updated := rec("a", 0, []float32{0, 1})
	updated.Text = "new text"
	require.NoError(t, idx.Upsert(ctx, []driven.VectorRecord{updated}))

	assert.Equal(t, 1, idx.Len())
	hits, err := idx.Search(ctx, []float32{0, 1}, 1, driven.VectorFilter{})
	require.NoError(t, err)
	assert.Equal(t, "new text", hits[0].Record.Text)
	assert.InDelta(t, 1, hits[0].Similarity, 1e-9)
}

func TestUpsert_DimensionMismatch(t *testing.T) {
	idx := New(3)
	err := idx.Upsert(context.Background(), []driven.VectorRecord{
		rec("a", 0, []float32{1, 0, 0}),
		rec("a", 1, []float32{1, 0}),
	})
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
	// Nothing is stored when any record is rejected.
	assert.Equal(t, 0, idx.Len())
}

func TestNew_InfersDimensions(t *testing.T) {
	idx := New(0)
	ctx := context.Background()
	require.NoError(t, idx.Upsert(ctx, []driven.VectorRecord{rec("a", 0, []float32{1, 0})}))

	_, err := idx.Search(ctx, []float32{1, 0, 0}, 1, driven.VectorFilter{})
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
}

func TestDeleteByDoc_KeepsListed(t *testing.T) {
	idx := New(2)
	ctx := context.Background()
	require.NoError(t, idx.Upsert(ctx, []driven.VectorRecord{
		rec("a", 0, []float32{1, 0}),
		rec("a", 1, []float32{1, 0}),
		rec("a", 2, []float32{1, 0}),
		rec("b", 0, []float32{1, 0}),
	}))

	require.NoError(t, idx.DeleteByDoc(ctx, "a", []string{"a#0"}))
	assert.Equal(t, 2, idx.Len())

	require.NoError(t, idx.DeleteByDoc(ctx, "a", nil))
	hits, err := idx.Search(ctx, []float32{1, 0}, 10, driven.VectorFilter{})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "b", hits[0].Record.DocID)
}

func TestSearch_Empty(t *testing.T) {
	idx := New(2)
	hits, err := idx.Search(context.Background(), []float32{1, 0}, 4, driven.VectorFilter{})
	require.NoError(t, err)
	assert.Empty(t, hits)

	hits, err = idx.Search(context.Background(), []float32{1, 0}, 0, driven.VectorFilter{})
	require.NoError(t, err)
	assert.Nil(t, hits)
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	idx := New(2)
	assert.ErrorIs(t, idx.Upsert(ctx, nil), context.Canceled)
	_, err := idx.Search(ctx, []float32{1, 0}, 1, driven.VectorFilter{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestScoreRange(t *testing.T) {
	lo, hi := New(2).ScoreRange()
	assert.Equal(t, -1.0, lo)
	assert.Equal(t, 1.0, hi)
}

func TestIdentity_UniquePerIndex(t *testing.T) {
	a, b := New(2), New(2)
	assert.NotEqual(t, a.Identity(), b.Identity())
	assert.Equal(t, a.Identity(), a.Identity())
	assert.Contains(t, a.Identity(), "memory:")
}
