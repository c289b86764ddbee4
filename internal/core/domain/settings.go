package domain

import "time"

const unknownDescription = "Unknown"

// AIProvider identifies an AI service provider for embeddings or generation.
type AIProvider string

// Available AI providers.
const (
	// AIProviderOllama is local Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is OpenAI cloud API.
	AIProviderOpenAI AIProvider = "openai"

	// AIProviderAnthropic is Anthropic cloud API.
	AIProviderAnthropic AIProvider = "anthropic"

	// AIProviderGemini is the Google Gemini API.
	AIProviderGemini AIProvider = "gemini"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOllama, AIProviderOpenAI, AIProviderAnthropic, AIProviderGemini:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderOpenAI || p == AIProviderAnthropic || p == AIProviderGemini
}

// IsLocal returns true if this provider runs locally.
func (p AIProvider) IsLocal() bool {
	return p == AIProviderOllama
}

// SupportsEmbeddings returns true if the provider offers an embedding API.
func (p AIProvider) SupportsEmbeddings() bool {
	return p == AIProviderOllama || p == AIProviderOpenAI || p == AIProviderGemini
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderOllama:
		return "Ollama (local)"
	case AIProviderOpenAI:
		return "OpenAI (cloud)"
	case AIProviderAnthropic:
		return "Anthropic (cloud)"
	case AIProviderGemini:
		return "Google Gemini (cloud)"
	default:
		return unknownDescription
	}
}

// VectorBackend selects the vector index implementation.
type VectorBackend string

// Available vector backends.
const (
	// VectorBackendMemory keeps vectors in process. Lost on exit.
	VectorBackendMemory VectorBackend = "memory"

	// VectorBackendSQLiteVec stores vectors in a local sqlite-vec database.
	VectorBackendSQLiteVec VectorBackend = "sqlite_vec"

	// VectorBackendWeaviate stores vectors in a Weaviate instance.
	VectorBackendWeaviate VectorBackend = "weaviate"
)

// IsValid returns true if the backend is recognised.
func (b VectorBackend) IsValid() bool {
	switch b {
	case VectorBackendMemory, VectorBackendSQLiteVec, VectorBackendWeaviate:
		return true
	default:
		return false
	}
}

// LedgerBackend selects the sync ledger implementation.
type LedgerBackend string

// Available ledger backends.
const (
	// LedgerBackendSQLite stores doc state in the metadata database.
	LedgerBackendSQLite LedgerBackend = "sqlite"

	// LedgerBackendBadger stores doc state in an embedded key-value store.
	LedgerBackendBadger LedgerBackend = "badger"
)

// IsValid returns true if the backend is recognised.
func (b LedgerBackend) IsValid() bool {
	return b == LedgerBackendSQLite || b == LedgerBackendBadger
}

// RetrievalSettings controls retrieval and gating.
type RetrievalSettings struct {
	// K is the number of chunks retrieved per question.
	K int `validate:"min=1,max=50"`

	// Threshold is the minimum best score required to answer.
	// Raising it trades recall for precision.
	Threshold float64 `validate:"gte=-1,lte=1"`
}

// ChunkingSettings controls chunk sizes.
type ChunkingSettings struct {
	// Size is the maximum chunk length in characters.
	Size int `validate:"min=50"`

	// Overlap is the number of characters shared by consecutive chunks.
	Overlap int `validate:"gte=0,ltfield=Size"`
}

// EmbeddingSettings holds embedding provider configuration.
type EmbeddingSettings struct {
	// Provider is the embedding service provider.
	Provider AIProvider

	// Model is the embedding model name.
	Model string

	// BaseURL is the API endpoint override.
	BaseURL string

	// APIKey is the API key for cloud providers.
	APIKey string

	// Dimensions overrides the model's known vector size.
	Dimensions int `validate:"gte=0"`

	// RateLimit caps embedding requests per second. Zero disables limiting.
	RateLimit float64 `validate:"gte=0"`
}

// IsConfigured returns true if the embedding provider is set up.
func (e EmbeddingSettings) IsConfigured() bool {
	if !e.Provider.IsValid() {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return true
}

// LLMSettings holds generation provider configuration.
type LLMSettings struct {
	// Provider is the generation service provider.
	Provider AIProvider

	// Model is the model name.
	Model string

	// BaseURL is the API endpoint override.
	BaseURL string

	// APIKey is the API key for cloud providers.
	APIKey string

	// Temperature controls randomness (0.0 = deterministic).
	Temperature float64 `validate:"gte=0,lte=2"`

	// MaxTokens caps the generated answer length.
	MaxTokens int `validate:"gte=0"`
}

// IsConfigured returns true if the generation provider is set up.
func (l LLMSettings) IsConfigured() bool {
	if !l.Provider.IsValid() {
		return false
	}
	if l.Provider.RequiresAPIKey() && l.APIKey == "" {
		return false
	}
	return true
}

// VectorIndexSettings selects and configures the vector index.
type VectorIndexSettings struct {
	// Backend is the index implementation.
	Backend VectorBackend

	// WeaviateHost is host:port of the Weaviate instance.
	WeaviateHost string

	// WeaviateScheme is http or https.
	WeaviateScheme string `validate:"omitempty,oneof=http https"`

	// WeaviateClass is the collection name chunks are stored in.
	WeaviateClass string
}

// LedgerSettings selects the sync ledger implementation.
type LedgerSettings struct {
	// Backend is the ledger implementation.
	Backend LedgerBackend
}

// S3Settings configures fetching s3:// documents.
type S3Settings struct {
	// Endpoint is the S3-compatible endpoint (host:port or URL).
	Endpoint string

	// AccessKey is the access key id.
	AccessKey string

	// SecretKey is the secret access key.
	SecretKey string

	// Region is the bucket region.
	Region string

	// UseSSL enables TLS.
	UseSSL bool
}

// TimeoutSettings bounds every provider call.
type TimeoutSettings struct {
	// Embedding bounds a single embedding request.
	Embedding time.Duration `validate:"gt=0"`

	// Generation bounds a single generation request.
	Generation time.Duration `validate:"gt=0"`

	// VectorIndex bounds a single vector index operation.
	VectorIndex time.Duration `validate:"gt=0"`

	// Fetch bounds fetching a single document.
	Fetch time.Duration `validate:"gt=0"`
}

// ServerSettings configures the HTTP API.
type ServerSettings struct {
	// Addr is the listen address.
	Addr string
}

// Config is the immutable application configuration.
// It is built once at startup and passed by value to constructors.
type Config struct {
	// DataDir holds databases, prompts and vector files.
	DataDir string `validate:"required"`

	Retrieval   RetrievalSettings
	Chunking    ChunkingSettings
	Embedding   EmbeddingSettings
	LLM         LLMSettings
	VectorIndex VectorIndexSettings
	Ledger      LedgerSettings
	S3          S3Settings
	Timeouts    TimeoutSettings
	Server      ServerSettings
}

// Defaults shared by the config loader and tests.
const (
	DefaultK            = 4
	DefaultThreshold    = 0.35
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// DefaultConfig returns a configuration with sensible defaults.
// AI providers are left unconfigured.
func DefaultConfig() Config {
	return Config{
		Retrieval: RetrievalSettings{
			K:         DefaultK,
			Threshold: DefaultThreshold,
		},
		Chunking: ChunkingSettings{
			Size:    DefaultChunkSize,
			Overlap: DefaultChunkOverlap,
		},
		VectorIndex: VectorIndexSettings{
			Backend:        VectorBackendSQLiteVec,
			WeaviateScheme: "http",
			WeaviateClass:  "KnowledgeChunk",
		},
		Ledger: LedgerSettings{
			Backend: LedgerBackendSQLite,
		},
		Timeouts: TimeoutSettings{
			Embedding:   30 * time.Second,
			Generation:  60 * time.Second,
			VectorIndex: 10 * time.Second,
			Fetch:       30 * time.Second,
		},
		Server: ServerSettings{
			Addr: ":8080",
		},
	}
}

// AllEmbeddingProviders returns providers that support embeddings.
func AllEmbeddingProviders() []AIProvider {
	return []AIProvider{
		AIProviderOllama,
		AIProviderOpenAI,
		AIProviderGemini,
	}
}

// AllLLMProviders returns providers that support generation.
func AllLLMProviders() []AIProvider {
	return []AIProvider{
		AIProviderOllama,
		AIProviderOpenAI,
		AIProviderAnthropic,
		AIProviderGemini,
	}
}

// DefaultEmbeddingModels returns default models for each embedding provider.
func DefaultEmbeddingModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama: "nomic-embed-text",
		AIProviderOpenAI: "text-embedding-3-small",
		AIProviderGemini: "text-embedding-004",
	}
}

// DefaultLLMModels returns default models for each generation provider.
func DefaultLLMModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama:    "llama3.2",
		AIProviderOpenAI:    "gpt-4o-mini",
		AIProviderAnthropic: "claude-3-5-sonnet-latest",
		AIProviderGemini:    "gemini-2.0-flash",
	}
}

// EmbeddingDimensions returns the vector dimensions for known models.
func EmbeddingDimensions() map[string]int {
	return map[string]int{
		// Ollama models
		"nomic-embed-text":  768,
		"mxbai-embed-large": 1024,
		"all-minilm":        384,
		// OpenAI models
		"text-embedding-3-small": 1536,
		"text-embedding-3-large": 3072,
		"text-embedding-ada-002": 1536,
		// Gemini models
		"text-embedding-004": 768,
	}
}

// SuggestedThresholds maps embedding providers to a starting gating threshold.
// Cosine scores for relevant matches cluster differently per model family.
func SuggestedThresholds() map[AIProvider]float64 {
	return map[AIProvider]float64{
		AIProviderOpenAI: 0.35,
		AIProviderOllama: 0.5,
		AIProviderGemini: 0.55,
	}
}
