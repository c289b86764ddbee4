// Package vector selects a VectorIndex implementation from configuration.
package vector

import (
	"context"
	"os"
	"path/filepath"

	"github.com/custodia-labs/sercha-kb/internal/adapters/driven/vector/memory"
	"github.com/custodia-labs/sercha-kb/internal/adapters/driven/vector/sqlitevec"
	"github.com/custodia-labs/sercha-kb/internal/adapters/driven/vector/weaviate"
	"github.com/custodia-labs/sercha-kb/internal/core/domain"
	"github.com/custodia-labs/sercha-kb/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-kb/internal/errs"
)

// FileName is the sqlite-vec database name inside the data directory.
const FileName = "vectors.db"

// Open creates the vector index selected by cfg for vectors of dims size.
func Open(ctx context.Context, cfg domain.Config, dims int) (driven.VectorIndex, error) {
	backend := cfg.VectorIndex.Backend
	if backend == "" {
		backend = domain.VectorBackendSQLiteVec
	}

	switch backend {
	case domain.VectorBackendMemory:
		return memory.New(dims), nil

	case domain.VectorBackendSQLiteVec:
		if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
			return nil, errs.Wrap(err, errs.CodeRetrievalIndexUnavailable, "creating data directory")
		}
		idx, err := sqlitevec.Open(filepath.Join(cfg.DataDir, FileName), dims)
		if err != nil {
			return nil, errs.Wrap(err, errs.CodeRetrievalIndexUnavailable, "opening sqlite-vec index")
		}
		return idx, nil

	case domain.VectorBackendWeaviate:
		if cfg.VectorIndex.WeaviateHost == "" {
			return nil, errs.New(errs.CodeConfigurationValueInvalid, "vector_index.weaviate_host is required for the weaviate backend")
		}
		openCtx := ctx
		if cfg.Timeouts.VectorIndex > 0 {
			var cancel context.CancelFunc
			openCtx, cancel = context.WithTimeout(ctx, cfg.Timeouts.VectorIndex)
			defer cancel()
		}
		idx, err := weaviate.New(openCtx, weaviate.Config{
			Host:   cfg.VectorIndex.WeaviateHost,
			Scheme: cfg.VectorIndex.WeaviateScheme,
			Class:  cfg.VectorIndex.WeaviateClass,
		}, dims)
		if err != nil {
			return nil, errs.Wrap(err, errs.CodeRetrievalIndexUnavailable, "connecting to weaviate")
		}
		return idx, nil

	default:
		return nil, errs.Errorf(errs.CodeConfigurationValueInvalid, "unknown vector backend %q", backend)
	}
}
