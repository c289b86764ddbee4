// Package ai provides factory functions for creating AI service adapters.
package ai

import (
	"context"
	"time"

	geminiembed "github.com/custodia-labs/sercha-kb/internal/adapters/driven/embedding/gemini"
	ollamaembed "github.com/custodia-labs/sercha-kb/internal/adapters/driven/embedding/ollama"
	openaiembed "github.com/custodia-labs/sercha-kb/internal/adapters/driven/embedding/openai"
	"github.com/custodia-labs/sercha-kb/internal/adapters/driven/embedding/ratelimit"
	anthropicllm "github.com/custodia-labs/sercha-kb/internal/adapters/driven/llm/anthropic"
	geminillm "github.com/custodia-labs/sercha-kb/internal/adapters/driven/llm/gemini"
	ollamallm "github.com/custodia-labs/sercha-kb/internal/adapters/driven/llm/ollama"
	openaillm "github.com/custodia-labs/sercha-kb/internal/adapters/driven/llm/openai"
	"github.com/custodia-labs/sercha-kb/internal/core/domain"
	"github.com/custodia-labs/sercha-kb/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-kb/internal/errs"
)

// pingTimeout is the maximum time to wait for service connectivity validation.
const pingTimeout = 5 * time.Second

// InitResult holds the AI services built from configuration.
type InitResult struct {
	EmbeddingService driven.EmbeddingService
	LLMService       driven.LLMService // Nil when generation is not needed.
}

// Close releases all resources held by InitResult.
func (r *InitResult) Close() {
	if r.EmbeddingService != nil {
		r.EmbeddingService.Close()
	}
	if r.LLMService != nil {
		r.LLMService.Close()
	}
}

// Init builds the embedding service and, when withLLM is set, the
// generation service. Errors are configuration errors.
func Init(ctx context.Context, cfg domain.Config, withLLM bool) (*InitResult, error) {
	result := &InitResult{}

	embedder, err := CreateEmbeddingService(ctx, &cfg.Embedding)
	if err != nil {
		return nil, err
	}
	result.EmbeddingService = embedder

	if withLLM {
		llm, err := CreateLLMService(ctx, &cfg.LLM)
		if err != nil {
			result.Close()
			return nil, err
		}
		result.LLMService = llm
	}
	return result, nil
}

// CreateAndValidateEmbeddingService creates an embedding service and validates connectivity.
func CreateAndValidateEmbeddingService(ctx context.Context, settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	svc, err := CreateEmbeddingService(ctx, settings)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := svc.Ping(pingCtx); err != nil {
		svc.Close()
		return nil, errs.Wrap(err, errs.CodeConfigurationProviderUnreachable,
			"embedding service unreachable", errs.FieldProvider(settings.Provider.String()))
	}
	return svc, nil
}

// CreateAndValidateLLMService creates an LLM service and validates connectivity.
func CreateAndValidateLLMService(ctx context.Context, settings *domain.LLMSettings) (driven.LLMService, error) {
	svc, err := CreateLLMService(ctx, settings)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := svc.Ping(pingCtx); err != nil {
		svc.Close()
		return nil, errs.Wrap(err, errs.CodeConfigurationProviderUnreachable,
			"LLM service unreachable", errs.FieldProvider(settings.Provider.String()))
	}
	return svc, nil
}

// ValidateEmbeddingConfig validates an embedding configuration by creating a service and pinging it.
func ValidateEmbeddingConfig(ctx context.Context, settings *domain.EmbeddingSettings) error {
	svc, err := CreateAndValidateEmbeddingService(ctx, settings)
	if err != nil {
		return err
	}
	return svc.Close()
}

// ValidateLLMConfig validates an LLM configuration by creating a service and pinging it.
func ValidateLLMConfig(ctx context.Context, settings *domain.LLMSettings) error {
	svc, err := CreateAndValidateLLMService(ctx, settings)
	if err != nil {
		return err
	}
	return svc.Close()
}

// checkProvider reports missing or unusable provider settings.
func checkProvider(kind string, provider domain.AIProvider, apiKey string) error {
	if provider == "" {
		return errs.New(errs.CodeConfigurationValueInvalid, kind+" provider is not set")
	}
	if !provider.IsValid() {
		return errs.New(errs.CodeConfigurationProviderUnsupported,
			"unsupported "+kind+" provider", errs.FieldProvider(provider.String()))
	}
	if provider.RequiresAPIKey() && apiKey == "" {
		return errs.New(errs.CodeConfigurationCredentialMissing,
			provider.String()+" API key is not set", errs.FieldProvider(provider.String()))
	}
	return nil
}

// CreateEmbeddingService creates the embedding service selected by settings,
// wrapped in a rate limiter when settings.RateLimit is positive.
func CreateEmbeddingService(ctx context.Context, settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	if settings == nil {
		return nil, errs.New(errs.CodeConfigurationValueInvalid, "embedding settings are missing")
	}
	if err := checkProvider("embedding", settings.Provider, settings.APIKey); err != nil {
		return nil, err
	}

	var (
		svc driven.EmbeddingService
		err error
	)
	switch settings.Provider {
	case domain.AIProviderOllama:
		svc = createOllamaEmbedding(settings)

	case domain.AIProviderOpenAI:
		svc, err = createOpenAIEmbedding(settings)

	case domain.AIProviderGemini:
		svc, err = createGeminiEmbedding(ctx, settings)

	default:
		// Anthropic does not offer embeddings.
		return nil, errs.New(errs.CodeConfigurationProviderUnsupported,
			settings.Provider.String()+" does not support embeddings, use ollama, openai or gemini",
			errs.FieldProvider(settings.Provider.String()))
	}
	if err != nil {
		return nil, errs.Wrap(err, errs.CodeConfigurationValueInvalid, "create embedding service",
			errs.FieldProvider(settings.Provider.String()))
	}

	return ratelimit.New(svc, ratelimit.Config{RequestsPerSecond: settings.RateLimit}), nil
}

// CreateLLMService creates the generation service selected by settings.
func CreateLLMService(ctx context.Context, settings *domain.LLMSettings) (driven.LLMService, error) {
	if settings == nil {
		return nil, errs.New(errs.CodeConfigurationValueInvalid, "LLM settings are missing")
	}
	if err := checkProvider("LLM", settings.Provider, settings.APIKey); err != nil {
		return nil, err
	}

	var (
		svc driven.LLMService
		err error
	)
	switch settings.Provider {
	case domain.AIProviderOllama:
		svc = createOllamaLLM(settings)

	case domain.AIProviderOpenAI:
		svc, err = createOpenAILLM(settings)

	case domain.AIProviderAnthropic:
		svc, err = createAnthropicLLM(settings)

	case domain.AIProviderGemini:
		svc, err = createGeminiLLM(ctx, settings)
	}
	if err != nil {
		return nil, errs.Wrap(err, errs.CodeConfigurationValueInvalid, "create LLM service",
			errs.FieldProvider(settings.Provider.String()))
	}
	return svc, nil
}

// embeddingDimensions picks the configured size, then the known size for the model.
func embeddingDimensions(settings *domain.EmbeddingSettings) int {
	if settings.Dimensions > 0 {
		return settings.Dimensions
	}
	return domain.EmbeddingDimensions()[settings.Model]
}

// createOllamaEmbedding creates an Ollama embedding service.
func createOllamaEmbedding(settings *domain.EmbeddingSettings) driven.EmbeddingService {
	dimensions := embeddingDimensions(settings)
	if dimensions == 0 {
		dimensions = ollamaembed.DefaultDimensions
	}

	return ollamaembed.NewEmbeddingService(ollamaembed.Config{
		BaseURL:    settings.BaseURL,
		Model:      settings.Model,
		Dimensions: dimensions,
	})
}

// createOpenAIEmbedding creates an OpenAI embedding service.
func createOpenAIEmbedding(settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	return openaiembed.NewEmbeddingService(openaiembed.Config{
		APIKey:     settings.APIKey,
		BaseURL:    settings.BaseURL,
		Model:      settings.Model,
		Dimensions: embeddingDimensions(settings),
	})
}

// createGeminiEmbedding creates a Gemini embedding service.
func createGeminiEmbedding(ctx context.Context, settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	return geminiembed.NewEmbeddingService(ctx, geminiembed.Config{
		APIKey:     settings.APIKey,
		BaseURL:    settings.BaseURL,
		Model:      settings.Model,
		Dimensions: settings.Dimensions,
	})
}

// createOllamaLLM creates an Ollama LLM service.
func createOllamaLLM(settings *domain.LLMSettings) driven.LLMService {
	return ollamallm.NewLLMService(ollamallm.LLMConfig{
		BaseURL: settings.BaseURL,
		Model:   settings.Model,
	})
}

// createOpenAILLM creates an OpenAI LLM service.
func createOpenAILLM(settings *domain.LLMSettings) (driven.LLMService, error) {
	return openaillm.NewLLMService(openaillm.LLMConfig{
		APIKey:  settings.APIKey,
		BaseURL: settings.BaseURL,
		Model:   settings.Model,
	})
}

// createAnthropicLLM creates an Anthropic LLM service.
func createAnthropicLLM(settings *domain.LLMSettings) (driven.LLMService, error) {
	return anthropicllm.NewLLMService(anthropicllm.Config{
		APIKey:  settings.APIKey,
		BaseURL: settings.BaseURL,
		Model:   settings.Model,
	})
}

// createGeminiLLM creates a Gemini LLM service.
func createGeminiLLM(ctx context.Context, settings *domain.LLMSettings) (driven.LLMService, error) {
	return geminillm.NewLLMService(ctx, geminillm.Config{
		APIKey:  settings.APIKey,
		BaseURL: settings.BaseURL,
		Model:   settings.Model,
	})
}
