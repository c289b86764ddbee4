package gemini

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/custodia-labs/sercha-kb/internal/core/ports/driven"
)

func TestNewLLMService(t *testing.T) {
	_, err := NewLLMService(context.Background(), Config{})
	assert.ErrorContains(t, err, "API key is required")

	svc, err := NewLLMService(context.Background(), Config{APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, DefaultModel, svc.ModelName())
	assert.NoError(t, svc.Close())
}

func TestBuildConfig(t *testing.T) {
	cfg := buildConfig(driven.GenerateOptions{
		System:      "rules",
		MaxTokens:   128,
		Temperature: 0,
		StopWords:   []string{"END"},
	})

	require.NotNil(t, cfg.Temperature)
	assert.Equal(t, float32(0), *cfg.Temperature)
	assert.Equal(t, int32(128), cfg.MaxOutputTokens)
	assert.Equal(t, []string{"END"}, cfg.StopSequences)
	require.NotNil(t, cfg.SystemInstruction)
	assert.Equal(t, "rules", cfg.SystemInstruction.Parts[0].Text)

	bare := buildConfig(driven.GenerateOptions{})
	assert.Nil(t, bare.SystemInstruction)
	assert.Zero(t, bare.MaxOutputTokens)
}

func TestResponseText(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{
				{Text: "thinking...", Thought: true},
				{Text: "Ships in 2 days "},
				{Text: "[S2]."},
			}},
		}},
	}

	got, err := responseText(resp)
	require.NoError(t, err)
	assert.Equal(t, "Ships in 2 days [S2].", got)

	_, err = responseText(&genai.GenerateContentResponse{})
	assert.ErrorContains(t, err, "no candidates")

	_, err = responseText(nil)
	assert.Error(t, err)
}
