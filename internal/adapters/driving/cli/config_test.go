package cli

import (
	"bufio"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"github.com/custodia-labs/sercha-kb/internal/config"
)

func TestConfigCmd_HasSubcommands(t *testing.T) {
	names := make([]string, 0)
	for _, c := range configCmd.Commands() {
		names = append(names, c.Name())
	}

	assert.ElementsMatch(t, []string{"show", "set", "path", "check", "wizard"}, names)
}

func TestConfigPathCmd(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	out, err := executeCommand("config", "path")

	require.NoError(t, err)
	assert.Equal(t, ":memory:\n", out)
}

func TestConfigSetCmd_TypedValue(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()

	out, err := executeCommand("config", "set", "retrieval.threshold", "0.42")

	require.NoError(t, err)
	assert.Contains(t, out, "Set retrieval.threshold = 0.42")
	v, ok := ts.config.Get(config.KeyRetrievalThreshold)
	require.True(t, ok)
	assert.InDelta(t, 0.42, v, 1e-9)
}

func TestConfigSetCmd_UnknownKey(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	_, err := executeCommand("config", "set", "retrieval.magic", "1")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown key")
}

func TestConfigSetCmd_MasksSecret(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()

	out, err := executeCommand("config", "set", "llm.api_key", "sk-ant-1234567890")

	require.NoError(t, err)
	assert.Contains(t, out, "sk-a...7890")
	assert.NotContains(t, out, "sk-ant-1234567890")
	assert.Equal(t, "sk-ant-1234567890", ts.config.GetString(config.KeyLLMAPIKey))
}

func TestConfigSetCmd_SecretFromPrompt(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	stdin = bufio.NewReader(strings.NewReader("sk-prompted-secret\n"))
	defer func() { stdin = nil }()

	_, err := executeCommand("config", "set", "embedding.api_key")

	require.NoError(t, err)
	assert.Equal(t, "sk-prompted-secret", ts.config.GetString(config.KeyEmbedAPIKey))
}

func TestConfigSetCmd_Keyring(t *testing.T) {
	keyring.MockInit()
	ts, cleanup := setupTestServices()
	defer cleanup()

	out, err := executeCommand("config", "set", "embedding.api_key", "sk-openai-abcdefgh", "--keyring")

	require.NoError(t, err)
	ref := ts.config.GetString(config.KeyEmbedAPIKey)
	assert.Equal(t, "keyring://sercha-kb/embedding.api_key", ref)
	assert.Contains(t, out, ref)

	secret, err := config.ResolveSecret(ref)
	require.NoError(t, err)
	assert.Equal(t, "sk-openai-abcdefgh", secret)
}

func TestConfigSetCmd_KeyringRejectsPlainKey(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	_, err := executeCommand("config", "set", "retrieval.k", "5", "--keyring")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "only applies to secrets")
}

func TestConfigShowCmd(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	require.NoError(t, ts.config.Set(config.KeyRetrievalK, 6))
	require.NoError(t, ts.config.Set(config.KeyLLMAPIKey, "sk-ant-1234567890"))
	getenv = func(key string) string {
		if key == "SERCHA_KB_RETRIEVAL_THRESHOLD" {
			return "0.5"
		}
		return ""
	}

	out, err := executeCommand("config", "show")

	require.NoError(t, err)
	assert.Contains(t, out, "retrieval.k")
	assert.Contains(t, out, "6 (file)")
	assert.Contains(t, out, "0.5 (env SERCHA_KB_RETRIEVAL_THRESHOLD)")
	assert.Contains(t, out, "sk-a...7890")
	assert.NotContains(t, out, "sk-ant-1234567890")
	assert.Contains(t, out, "(default)")
}

func TestConfigCheckCmd(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	require.NoError(t, ts.config.Set(config.KeyDataDir, t.TempDir()))
	require.NoError(t, ts.config.Set(config.KeyEmbedProvider, "ollama"))

	oldValidator := aiValidator
	defer func() { aiValidator = oldValidator }()

	aiValidator = &mockAIValidator{}
	out, err := executeCommand("config", "check")
	require.NoError(t, err)
	assert.Contains(t, out, "OK")
	assert.Contains(t, out, "Generation: not configured")

	aiValidator = &mockAIValidator{embedErr: errors.New("connection refused")}
	_, err = executeCommand("config", "check")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "embedding provider check failed")
}

func TestConfigWizardCmd(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	// Embedding: ollama with default model. Generation: anthropic with a key.
	stdin = bufio.NewReader(strings.NewReader("1\n\n3\nclaude-test\nsk-ant-wizard-key\n"))
	defer func() { stdin = nil }()

	_, err := executeCommand("config", "wizard")

	require.NoError(t, err)
	assert.Equal(t, "ollama", ts.config.GetString(config.KeyEmbedProvider))
	assert.NotEmpty(t, ts.config.GetString(config.KeyEmbedModel))
	assert.Equal(t, "anthropic", ts.config.GetString(config.KeyLLMProvider))
	assert.Equal(t, "claude-test", ts.config.GetString(config.KeyLLMModel))
	assert.Equal(t, "sk-ant-wizard-key", ts.config.GetString(config.KeyLLMAPIKey))
}

func TestParseValue(t *testing.T) {
	assert.Equal(t, 4, parseValue("4"))
	assert.InDelta(t, 0.35, parseValue("0.35"), 1e-9)
	assert.Equal(t, true, parseValue("true"))
	assert.Equal(t, "sqlite_vec", parseValue("sqlite_vec"))
}

func TestMaskAPIKey(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "Short key",
			input:    "abc123",
			expected: "****",
		},
		{
			name:     "Exactly 8 chars",
			input:    "12345678",
			expected: "****",
		},
		{
			name:     "Long key",
			input:    "sk-1234567890abcdef",
			expected: "sk-1...cdef",
		},
		{
			name:     "Very long key",
			input:    "sk-proj-1234567890abcdefghijklmnop",
			expected: "sk-p...mnop",
		},
		{
			name:     "Empty key",
			input:    "",
			expected: "****",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := maskAPIKey(tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestParseChoice(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		maxVal     int
		defaultVal int
		expected   int
	}{
		{
			name:       "Empty input returns default",
			input:      "",
			maxVal:     5,
			defaultVal: 1,
			expected:   1,
		},
		{
			name:       "Valid choice within range",
			input:      "3",
			maxVal:     5,
			defaultVal: 1,
			expected:   3,
		},
		{
			name:       "Choice below minimum returns default",
			input:      "0",
			maxVal:     5,
			defaultVal: 1,
			expected:   1,
		},
		{
			name:       "Choice above maximum returns default",
			input:      "6",
			maxVal:     5,
			defaultVal: 1,
			expected:   1,
		},
		{
			name:       "Invalid input returns default",
			input:      "abc",
			maxVal:     5,
			defaultVal: 2,
			expected:   2,
		},
		{
			name:       "Negative number returns default",
			input:      "-1",
			maxVal:     5,
			defaultVal: 1,
			expected:   1,
		},
		{
			name:       "Whitespace returns default",
			input:      "   ",
			maxVal:     5,
			defaultVal: 1,
			expected:   1,
		},
		{
			name:       "Maximum value is valid",
			input:      "5",
			maxVal:     5,
			defaultVal: 1,
			expected:   5,
		},
		{
			name:       "Minimum value is valid",
			input:      "1",
			maxVal:     5,
			defaultVal: 3,
			expected:   1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := parseChoice(tt.input, tt.maxVal, tt.defaultVal)
			assert.Equal(t, tt.expected, result)
		})
	}
}
