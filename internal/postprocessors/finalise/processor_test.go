package finalise

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-kb/internal/core/domain"
)

func TestProcessor_Process(t *testing.T) {
	doc := &domain.NormalisedDocument{
		Document: domain.SourceDocument{DocID: "returns", ContentHash: "abc123"},
	}
	in := []domain.Chunk{
		{Ordinal: 0, Text: "first", SectionPath: []string{"Returns"}},
		{Ordinal: 1, Text: " \n\t"},
		{Ordinal: 2, Text: "third", Page: 2},
		{Ordinal: 7, Text: ""},
		{Ordinal: 9, Text: "fifth"},
	}

	out, err := New().Process(context.Background(), doc, in)
	require.NoError(t, err)
	require.Len(t, out, 3)

	for i, c := range out {
		assert.Equal(t, i, c.Ordinal)
		assert.Equal(t, "returns", c.DocID)
		assert.Equal(t, "abc123", c.ContentHash)
	}
	assert.Equal(t, "third", out[1].Text)
	assert.Equal(t, 2, out[1].Page)
	assert.Equal(t, []string{"Returns"}, out[0].SectionPath)
	assert.Equal(t, "returns#2", out[2].EmbeddingRef())
}

func TestProcessor_Process_Empty(t *testing.T) {
	out, err := New().Process(context.Background(), &domain.NormalisedDocument{}, nil)
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestProcessor_Name(t *testing.T) {
	assert.Equal(t, "finalise", New().Name())
}
