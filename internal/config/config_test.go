package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"github.com/custodia-labs/sercha-kb/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/sercha-kb/internal/core/domain"
	"github.com/custodia-labs/sercha-kb/internal/errs"
)

func init() {
	// Never touch the real OS keyring from tests.
	keyring.MockInit()
}

func envFrom(values map[string]string) func(string) string {
	return func(k string) string { return values[k] }
}

func newTestLoader(t *testing.T, store map[string]any, env map[string]string) *Loader {
	t.Helper()
	return NewLoader(memory.NewConfigStoreFrom(store),
		WithGetenv(envFrom(env)),
		WithBaseDir(t.TempDir()))
}

func TestLoad_Defaults(t *testing.T) {
	l := newTestLoader(t, nil, nil)

	cfg, err := l.Load()
	require.NoError(t, err)

	assert.Equal(t, domain.DefaultK, cfg.Retrieval.K)
	assert.InDelta(t, domain.DefaultThreshold, cfg.Retrieval.Threshold, 1e-9)
	assert.Equal(t, domain.DefaultChunkSize, cfg.Chunking.Size)
	assert.Equal(t, domain.DefaultChunkOverlap, cfg.Chunking.Overlap)
	assert.Equal(t, 30*time.Second, cfg.Timeouts.Embedding)
	assert.Equal(t, 60*time.Second, cfg.Timeouts.Generation)
	assert.Equal(t, 10*time.Second, cfg.Timeouts.VectorIndex)
	assert.Equal(t, domain.VectorBackendSQLiteVec, cfg.VectorIndex.Backend)
	assert.Equal(t, domain.LedgerBackendSQLite, cfg.Ledger.Backend)
	assert.Equal(t, DataDirName, filepath.Base(cfg.DataDir))
	assert.Zero(t, cfg.LLM.Temperature)
}

func TestLoad_FromStore(t *testing.T) {
	l := newTestLoader(t, map[string]any{
		KeyRetrievalK:         int64(6),
		KeyRetrievalThreshold: 0.5,
		KeyEmbedProvider:      "ollama",
		KeyLLMProvider:        "ollama",
		KeyLLMTemperature:     0.2,
		KeyTimeoutGeneration:  "90s",
		KeyTimeoutFetch:       int64(5),
		KeyS3UseSSL:           true,
		KeyDataDir:            "/srv/kb",
	}, nil)

	cfg, err := l.Load()
	require.NoError(t, err)

	assert.Equal(t, 6, cfg.Retrieval.K)
	assert.InDelta(t, 0.5, cfg.Retrieval.Threshold, 1e-9)
	assert.Equal(t, domain.AIProviderOllama, cfg.Embedding.Provider)
	assert.Equal(t, "nomic-embed-text", cfg.Embedding.Model)
	assert.Equal(t, "llama3.2", cfg.LLM.Model)
	assert.InDelta(t, 0.2, cfg.LLM.Temperature, 1e-9)
	assert.Equal(t, 90*time.Second, cfg.Timeouts.Generation)
	assert.Equal(t, 5*time.Second, cfg.Timeouts.Fetch)
	assert.True(t, cfg.S3.UseSSL)
	assert.Equal(t, "/srv/kb", cfg.DataDir)
}

func TestLoad_EnvOverridesStore(t *testing.T) {
	l := newTestLoader(t,
		map[string]any{KeyRetrievalThreshold: 0.5, KeyVectorBackend: "sqlite_vec"},
		map[string]string{
			"SERCHA_KB_RETRIEVAL_THRESHOLD":  "0.7",
			"SERCHA_KB_VECTOR_INDEX_BACKEND": "memory",
		})

	cfg, err := l.Load()
	require.NoError(t, err)
	assert.InDelta(t, 0.7, cfg.Retrieval.Threshold, 1e-9)
	assert.Equal(t, domain.VectorBackendMemory, cfg.VectorIndex.Backend)
}

func TestLoad_ProviderKeyFallback(t *testing.T) {
	l := newTestLoader(t,
		map[string]any{KeyEmbedProvider: "openai", KeyLLMProvider: "anthropic"},
		map[string]string{"OPENAI_API_KEY": "sk-openai", "ANTHROPIC_API_KEY": "sk-ant"})

	cfg, err := l.Load()
	require.NoError(t, err)
	assert.Equal(t, "sk-openai", cfg.Embedding.APIKey)
	assert.Equal(t, "sk-ant", cfg.LLM.APIKey)
	assert.Equal(t, "text-embedding-3-small", cfg.Embedding.Model)
}

func TestLoad_MissingCredential(t *testing.T) {
	l := newTestLoader(t, map[string]any{KeyLLMProvider: "openai"}, nil)

	_, err := l.Load()
	require.Error(t, err)
	assert.Equal(t, errs.CodeConfigurationCredentialMissing, errs.CodeOf(err))
	assert.True(t, errs.IsConfiguration(err))
}

func TestLoad_UnknownProvider(t *testing.T) {
	l := newTestLoader(t, map[string]any{KeyEmbedProvider: "cohere"}, nil)

	_, err := l.Load()
	assert.Equal(t, errs.CodeConfigurationProviderUnsupported, errs.CodeOf(err))
}

func TestLoad_AnthropicCannotEmbed(t *testing.T) {
	l := newTestLoader(t, map[string]any{
		KeyEmbedProvider: "anthropic",
		KeyEmbedAPIKey:   "sk-ant",
	}, nil)

	_, err := l.Load()
	assert.Equal(t, errs.CodeConfigurationProviderUnsupported, errs.CodeOf(err))
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		store map[string]any
	}{
		{"threshold above one", map[string]any{KeyRetrievalThreshold: 1.5}},
		{"threshold below minus one", map[string]any{KeyRetrievalThreshold: -2.0}},
		{"threshold not a number", map[string]any{KeyRetrievalThreshold: "high"}},
		{"k zero", map[string]any{KeyRetrievalK: int64(0)}},
		{"overlap not below size", map[string]any{KeyChunkSize: int64(100), KeyChunkOverlap: int64(100)}},
		{"bad duration", map[string]any{KeyTimeoutEmbedding: "soon"}},
		{"zero timeout", map[string]any{KeyTimeoutVector: "0s"}},
		{"unknown vector backend", map[string]any{KeyVectorBackend: "faiss"}},
		{"weaviate without host", map[string]any{KeyVectorBackend: "weaviate"}},
		{"unknown ledger backend", map[string]any{KeyLedgerBackend: "redis"}},
		{"temperature too high", map[string]any{KeyLLMTemperature: 3.0}},
		{"bad weaviate scheme", map[string]any{KeyVectorWeaviateScheme: "grpc"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestLoader(t, tt.store, nil).Load()
			require.Error(t, err)
			assert.Equal(t, errs.CodeConfigurationValueInvalid, errs.CodeOf(err), err.Error())
		})
	}
}

func TestLoad_ThresholdMessageNamesKey(t *testing.T) {
	_, err := newTestLoader(t, map[string]any{KeyRetrievalThreshold: 1.5}, nil).Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), KeyRetrievalThreshold)
}

func TestLoad_KeyringSecret(t *testing.T) {
	ref, err := StoreSecret("sercha-kb-test", "openai", "sk-from-keyring")
	require.NoError(t, err)
	assert.Equal(t, "keyring://sercha-kb-test/openai", ref)

	l := newTestLoader(t, map[string]any{
		KeyEmbedProvider: "openai",
		KeyEmbedAPIKey:   ref,
	}, nil)

	cfg, err := l.Load()
	require.NoError(t, err)
	assert.Equal(t, "sk-from-keyring", cfg.Embedding.APIKey)
}

func TestLoad_KeyringSecretMissing(t *testing.T) {
	l := newTestLoader(t, map[string]any{
		KeyEmbedProvider: "openai",
		KeyEmbedAPIKey:   "keyring://sercha-kb-test/absent",
	}, nil)

	_, err := l.Load()
	assert.Equal(t, errs.CodeConfigurationCredentialMissing, errs.CodeOf(err))
}

func TestResolveSecret(t *testing.T) {
	v, err := ResolveSecret("plain-value")
	require.NoError(t, err)
	assert.Equal(t, "plain-value", v)

	_, err = ResolveSecret("keyring://no-key")
	assert.Equal(t, errs.CodeConfigurationValueInvalid, errs.CodeOf(err))
}

func TestEnvName(t *testing.T) {
	assert.Equal(t, "SERCHA_KB_RETRIEVAL_K", EnvName(KeyRetrievalK))
	assert.Equal(t, "SERCHA_KB_DATA_DIR", EnvName(KeyDataDir))
	assert.Equal(t, "SERCHA_KB_TIMEOUTS_EMBEDDING", EnvName(KeyTimeoutEmbedding))
}

func TestKeys(t *testing.T) {
	assert.True(t, IsKnownKey(KeyRetrievalThreshold))
	assert.False(t, IsKnownKey("search.mode"))
	assert.True(t, IsSecretKey(KeyLLMAPIKey))
	assert.False(t, IsSecretKey(KeyLLMModel))
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("SERCHA_KB_DOTENV_PROBE=loaded\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("SERCHA_KB_DOTENV_PROBE") })

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "loaded", os.Getenv("SERCHA_KB_DOTENV_PROBE"))

	assert.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")))
}

func TestValidate_DefaultConfigNeedsDataDir(t *testing.T) {
	err := Validate(domain.DefaultConfig())
	assert.Equal(t, errs.CodeConfigurationValueInvalid, errs.CodeOf(err))

	cfg := domain.DefaultConfig()
	cfg.DataDir = t.TempDir()
	assert.NoError(t, Validate(cfg))
}
