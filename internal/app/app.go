// Package app is the composition root. It turns an immutable configuration
// into wired core services over the adapters that configuration selects.
package app

import (
	"context"
	"errors"

	"github.com/custodia-labs/sercha-kb/internal/adapters/driven/ai"
	"github.com/custodia-labs/sercha-kb/internal/adapters/driven/config/file"
	"github.com/custodia-labs/sercha-kb/internal/adapters/driven/manifest"
	"github.com/custodia-labs/sercha-kb/internal/adapters/driven/storage"
	"github.com/custodia-labs/sercha-kb/internal/adapters/driven/vector"
	"github.com/custodia-labs/sercha-kb/internal/connectors"
	"github.com/custodia-labs/sercha-kb/internal/core/domain"
	"github.com/custodia-labs/sercha-kb/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-kb/internal/core/services"
	"github.com/custodia-labs/sercha-kb/internal/errs"
	"github.com/custodia-labs/sercha-kb/internal/logger"
	"github.com/custodia-labs/sercha-kb/internal/normalisers"
	"github.com/custodia-labs/sercha-kb/internal/postprocessors"
)

// Options adjusts how services are built.
type Options struct {
	// WithLLM builds the generation provider. Commands that only retrieve
	// or sync leave it unset so no generation credentials are needed.
	WithLLM bool

	// PromptDir overrides the prompt directory. Empty uses the default.
	PromptDir string

	// Metrics receives pipeline observations. Nil discards them.
	Metrics driven.PipelineMetrics

	// Embedder, LLM, Index, Fetcher and Stores replace the adapters that
	// cfg would select.
	Embedder driven.EmbeddingService
	LLM      driven.LLMService
	Index    driven.VectorIndex
	Fetcher  driven.DocumentFetcher
	Stores   *storage.Stores
}

// App holds the wired services.
type App struct {
	Config    domain.Config
	Query     *services.QueryService
	Indexer   *services.Indexer
	Audit     *services.AuditService
	Evaluator *services.Evaluator

	closers []func() error
}

// Build wires the application. On error everything opened so far is closed.
func Build(ctx context.Context, cfg domain.Config, opts Options) (*App, error) {
	a := &App{Config: cfg}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = driven.NopMetrics{}
	}

	stores := opts.Stores
	if stores == nil {
		var err error
		stores, err = storage.Open(cfg)
		if err != nil {
			return nil, err
		}
	}
	a.closers = append(a.closers, stores.Close)

	embedder := opts.Embedder
	if embedder == nil {
		var err error
		embedder, err = ai.CreateEmbeddingService(ctx, &cfg.Embedding)
		if err != nil {
			return nil, a.fail(err)
		}
		a.closers = append(a.closers, embedder.Close)
	}

	llm := opts.LLM
	if llm == nil && opts.WithLLM {
		var err error
		llm, err = ai.CreateLLMService(ctx, &cfg.LLM)
		if err != nil {
			return nil, a.fail(err)
		}
		a.closers = append(a.closers, llm.Close)
	}
	if llm == nil {
		llm = unconfiguredLLM{}
	}

	index := opts.Index
	if index == nil {
		var err error
		index, err = vector.Open(ctx, cfg, embedder.Dimensions())
		if err != nil {
			return nil, a.fail(err)
		}
		a.closers = append(a.closers, index.Close)
	}

	fetcher := opts.Fetcher
	if fetcher == nil {
		fetcher = connectors.NewDefaultRouter(cfg)
	}

	pipeline, err := postprocessors.NewDefaultPipeline(cfg.Chunking)
	if err != nil {
		return nil, a.fail(errs.Wrap(err, errs.CodeConfigurationValueInvalid, "building chunking pipeline"))
	}

	var promptStore driven.PromptStore
	if prompts, err := file.NewPromptStore(opts.PromptDir); err != nil {
		logger.Warn("Prompt directory unavailable, using built-in prompts: %v", err)
	} else {
		promptStore = prompts
	}

	a.Indexer = services.NewIndexer(
		manifest.NewLoader(),
		fetcher,
		normalisers.NewDefaultRegistry(),
		pipeline,
		embedder,
		index,
		stores.Ledger,
		stores.Audit,
		services.WithIndexerTimeouts(cfg.Timeouts),
		services.WithIndexerMetrics(metrics),
	)

	retriever := services.NewRetriever(embedder, index, cfg.Timeouts, metrics)
	a.Query = services.NewQueryService(
		retriever,
		services.NewGatingPolicy(cfg.Retrieval.Threshold),
		services.NewAnswerComposer(llm, promptStore, cfg.LLM, cfg.Timeouts.Generation, metrics),
		services.NewAuditRecorder(stores.Audit),
		cfg.Retrieval,
		metrics,
	)
	a.Audit = services.NewAuditService(stores.Audit, stores.Ledger)
	a.Evaluator = services.NewEvaluator(a.Query)

	logger.Debug("Services ready: embedding=%s vector=%s ledger=%s",
		embedder.ModelName(), cfg.VectorIndex.Backend, cfg.Ledger.Backend)
	return a, nil
}

// Close releases every adapter in reverse order of opening.
func (a *App) Close() error {
	var err error
	for i := len(a.closers) - 1; i >= 0; i-- {
		err = errors.Join(err, a.closers[i]())
	}
	a.closers = nil
	return err
}

func (a *App) fail(err error) error {
	if closeErr := a.Close(); closeErr != nil {
		logger.Debug("Cleanup after failed build: %v", closeErr)
	}
	return err
}

// unconfiguredLLM stands in when generation was not requested. Reaching
// it means a command asked a question without building the LLM.
type unconfiguredLLM struct{}

func (unconfiguredLLM) Generate(context.Context, string, driven.GenerateOptions) (string, error) {
	return "", errs.New(errs.CodeConfigurationValueInvalid, "generation provider was not initialised")
}

func (unconfiguredLLM) ModelName() string { return "" }

func (unconfiguredLLM) Ping(context.Context) error { return nil }

func (unconfiguredLLM) Close() error { return nil }
