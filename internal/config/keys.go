package config

// Config keys. Dotted keys map onto TOML tables in config.toml and onto
// SERCHA_KB_<SECTION>_<KEY> environment variables.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	KeyDataDir = "data_dir"

	KeyRetrievalK         = "retrieval.k"
	KeyRetrievalThreshold = "retrieval.threshold"

	KeyChunkSize    = "chunking.size"
	KeyChunkOverlap = "chunking.overlap"

	KeyEmbedProvider   = "embedding.provider"
	KeyEmbedModel      = "embedding.model"
	KeyEmbedBaseURL    = "embedding.base_url"
	KeyEmbedAPIKey     = "embedding.api_key"
	KeyEmbedDimensions = "embedding.dimensions"
	KeyEmbedRateLimit  = "embedding.rate_limit"

	KeyLLMProvider    = "llm.provider"
	KeyLLMModel       = "llm.model"
	KeyLLMBaseURL     = "llm.base_url"
	KeyLLMAPIKey      = "llm.api_key"
	KeyLLMTemperature = "llm.temperature"
	KeyLLMMaxTokens   = "llm.max_tokens"

	KeyVectorBackend        = "vector_index.backend"
	KeyVectorWeaviateHost   = "vector_index.weaviate_host"
	KeyVectorWeaviateScheme = "vector_index.weaviate_scheme"
	KeyVectorWeaviateClass  = "vector_index.weaviate_class"

	KeyLedgerBackend = "ledger.backend"

	KeyS3Endpoint  = "s3.endpoint"
	KeyS3AccessKey = "s3.access_key"
	KeyS3SecretKey = "s3.secret_key"
	KeyS3Region    = "s3.region"
	KeyS3UseSSL    = "s3.use_ssl"

	KeyTimeoutEmbedding  = "timeouts.embedding"
	KeyTimeoutGeneration = "timeouts.generation"
	KeyTimeoutVector     = "timeouts.vector"
	KeyTimeoutFetch      = "timeouts.fetch"

	KeyServerAddr = "server.addr"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "SERCHA_KB_"

// Keys lists every recognised key in display order.
func Keys() []string {
	return []string{
		KeyDataDir,
		KeyRetrievalK, KeyRetrievalThreshold,
		KeyChunkSize, KeyChunkOverlap,
		KeyEmbedProvider, KeyEmbedModel, KeyEmbedBaseURL, KeyEmbedAPIKey, KeyEmbedDimensions, KeyEmbedRateLimit,
		KeyLLMProvider, KeyLLMModel, KeyLLMBaseURL, KeyLLMAPIKey, KeyLLMTemperature, KeyLLMMaxTokens,
		KeyVectorBackend, KeyVectorWeaviateHost, KeyVectorWeaviateScheme, KeyVectorWeaviateClass,
		KeyLedgerBackend,
		KeyS3Endpoint, KeyS3AccessKey, KeyS3SecretKey, KeyS3Region, KeyS3UseSSL,
		KeyTimeoutEmbedding, KeyTimeoutGeneration, KeyTimeoutVector, KeyTimeoutFetch,
		KeyServerAddr,
	}
}

// IsKnownKey reports whether key is recognised.
func IsKnownKey(key string) bool {
	for _, k := range Keys() {
		if k == key {
			return true
		}
	}
	return false
}

// IsSecretKey reports whether the key holds a credential.
func IsSecretKey(key string) bool {
	switch key {
	case KeyEmbedAPIKey, KeyLLMAPIKey, KeyS3AccessKey, KeyS3SecretKey:
		return true
	default:
		return false
	}
}

// providerKeyEnv names the conventional API key variable per provider.
var providerKeyEnv = map[string]string{
	"openai":    "OPENAI_API_KEY",
	"anthropic": "ANTHROPIC_API_KEY",
	"gemini":    "GEMINI_API_KEY",
}
