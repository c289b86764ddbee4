package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-kb/internal/core/domain"
	"github.com/custodia-labs/sercha-kb/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-kb/internal/errs"
)

func testTimeouts() domain.TimeoutSettings {
	return domain.TimeoutSettings{
		Embedding:   time.Second,
		Generation:  time.Second,
		VectorIndex: time.Second,
		Fetch:       time.Second,
	}
}

func TestRetriever_OrdersByScoreThenDocAndOrdinal(t *testing.T) {
	index := newMockVectorIndex()
	index.hits = []driven.VectorHit{
		hit("b", 0, 0.5, "b0"),
		hit("a", 2, 0.7, "a2"),
		hit("a", 1, 0.5, "a1"),
		hit("c", 0, 0.9, "c0"),
		hit("a", 0, 0.5, "a0"),
	}
	r := NewRetriever(&mockEmbedder{}, index, testTimeouts(), nil)

	result, err := r.Retrieve(context.Background(), "what is the policy?", 10, "")
	require.NoError(t, err)

	var got []string
	for _, it := range result.Items {
		got = append(got, it.Chunk.EmbeddingRef())
	}
	assert.Equal(t, []string{"c#0", "a#2", "a#0", "a#1", "b#0"}, got)
	assert.InDelta(t, 0.9, result.Best(), 1e-9)
}

func TestRetriever_TruncatesToK(t *testing.T) {
	index := newMockVectorIndex()
	index.hits = []driven.VectorHit{
		hit("a", 0, 0.9, "x"),
		hit("a", 1, 0.8, "x"),
		hit("a", 2, 0.7, "x"),
	}
	r := NewRetriever(&mockEmbedder{}, index, testTimeouts(), nil)

	result, err := r.Retrieve(context.Background(), "q", 2, "")
	require.NoError(t, err)
	assert.Len(t, result.Items, 2)
	assert.Equal(t, 2, index.lastK)
}

func TestRetriever_RoleFilter(t *testing.T) {
	index := newMockVectorIndex()
	index.hits = []driven.VectorHit{
		hit("refund-limits", 0, 0.8, "Refunds above $500 need approval.", "cs"),
		hit("returns", 0, 0.6, "Returns within 30 days."),
		hit("warehouse-sop", 0, 0.5, "Scan every parcel.", "warehouse"),
	}
	r := NewRetriever(&mockEmbedder{}, index, testTimeouts(), nil)

	t.Run("warehouse never sees cs-only chunks", func(t *testing.T) {
		result, err := r.Retrieve(context.Background(), "refund limit", 4, "warehouse")
		require.NoError(t, err)
		assert.Equal(t, []string{"returns", "warehouse-sop"}, result.DocIDs())
		assert.Equal(t, "warehouse", index.lastFilter.Role)
	})

	t.Run("cs sees unrestricted and cs chunks", func(t *testing.T) {
		result, err := r.Retrieve(context.Background(), "refund limit", 4, "cs")
		require.NoError(t, err)
		assert.Equal(t, []string{"refund-limits", "returns"}, result.DocIDs())
	})

	t.Run("no role sees everything", func(t *testing.T) {
		result, err := r.Retrieve(context.Background(), "refund limit", 4, "")
		require.NoError(t, err)
		assert.Len(t, result.Items, 3)
	})
}

func TestRetriever_MapsRecordToChunk(t *testing.T) {
	index := newMockVectorIndex()
	h := hit("handbook", 3, 0.42, "Leave policy text.")
	h.Record.SectionPath = []string{"HR", "Leave"}
	h.Record.Page = 0
	index.hits = []driven.VectorHit{h}
	r := NewRetriever(&mockEmbedder{}, index, testTimeouts(), nil)

	result, err := r.Retrieve(context.Background(), "leave", 1, "")
	require.NoError(t, err)
	require.Len(t, result.Items, 1)

	sc := result.Items[0]
	assert.Equal(t, "handbook", sc.Chunk.DocID)
	assert.Equal(t, 3, sc.Chunk.Ordinal)
	assert.Equal(t, "Leave policy text.", sc.Chunk.Text)
	assert.Equal(t, "section: HR > Leave", sc.Chunk.Locator())
	assert.Equal(t, "kb/handbook", sc.Path)
	assert.InDelta(t, 0.42, sc.Score, 1e-9)
}

func TestRetriever_EmptyIndex(t *testing.T) {
	r := NewRetriever(&mockEmbedder{}, newMockVectorIndex(), testTimeouts(), nil)

	result, err := r.Retrieve(context.Background(), "anything", 4, "")
	require.NoError(t, err)
	assert.True(t, result.Empty())
	assert.Equal(t, 0.0, result.Best())
}

func TestRetriever_InvalidInput(t *testing.T) {
	embedder := &mockEmbedder{}
	r := NewRetriever(embedder, newMockVectorIndex(), testTimeouts(), nil)

	tests := []struct {
		name     string
		question string
		k        int
	}{
		{"empty question", "", 4},
		{"whitespace question", "  \n\t", 4},
		{"zero k", "question", 0},
		{"negative k", "question", -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Retrieve(context.Background(), tt.question, tt.k, "")
			require.Error(t, err)
			assert.True(t, errs.HasCode(err, errs.CodeRetrievalQueryInvalid))
			assert.True(t, errs.IsInvalidInput(err))
		})
	}
	assert.Equal(t, 0, embedder.embedCalls)
}

func TestRetriever_EmptyQuestionWrapsSentinel(t *testing.T) {
	r := NewRetriever(&mockEmbedder{}, newMockVectorIndex(), testTimeouts(), nil)
	_, err := r.Retrieve(context.Background(), " ", 4, "")
	assert.ErrorIs(t, err, domain.ErrEmptyQuestion)
}

func TestRetriever_ProviderFailures(t *testing.T) {
	short := testTimeouts()
	short.Embedding = 10 * time.Millisecond
	short.VectorIndex = 10 * time.Millisecond

	tests := []struct {
		name     string
		embedder *mockEmbedder
		index    func() *mockVectorIndex
		code     errs.Code
	}{
		{
			name:     "embedding failure",
			embedder: &mockEmbedder{err: errors.New("401 unauthorized")},
			index:    newMockVectorIndex,
			code:     errs.CodeRetrievalEmbeddingFailure,
		},
		{
			name:     "embedding timeout",
			embedder: &mockEmbedder{block: true},
			index:    newMockVectorIndex,
			code:     errs.CodeRetrievalEmbeddingTimeout,
		},
		{
			name:     "index unavailable",
			embedder: &mockEmbedder{},
			index: func() *mockVectorIndex {
				idx := newMockVectorIndex()
				idx.searchErr = errors.New("connection refused")
				return idx
			},
			code: errs.CodeRetrievalIndexUnavailable,
		},
		{
			name:     "index timeout",
			embedder: &mockEmbedder{},
			index: func() *mockVectorIndex {
				idx := newMockVectorIndex()
				idx.block = true
				return idx
			},
			code: errs.CodeRetrievalIndexTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRetriever(tt.embedder, tt.index(), short, nil)
			_, err := r.Retrieve(context.Background(), "question", 4, "")
			require.Error(t, err)
			assert.True(t, errs.HasCode(err, tt.code), "got code %s", errs.CodeOf(err))
			assert.True(t, errs.IsRetrieval(err))
		})
	}
}

func TestRetriever_MissingDependencies(t *testing.T) {
	_, err := NewRetriever(nil, newMockVectorIndex(), testTimeouts(), nil).
		Retrieve(context.Background(), "q", 4, "")
	assert.True(t, errs.HasCode(err, errs.CodeRetrievalEmbeddingFailure))

	_, err = NewRetriever(&mockEmbedder{}, nil, testTimeouts(), nil).
		Retrieve(context.Background(), "q", 4, "")
	assert.True(t, errs.HasCode(err, errs.CodeRetrievalIndexUnavailable))
	assert.ErrorIs(t, err, domain.ErrVectorIndexUnavailable)
}
