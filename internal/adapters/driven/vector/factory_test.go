package vector

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-kb/internal/adapters/driven/vector/memory"
	"github.com/custodia-labs/sercha-kb/internal/adapters/driven/vector/sqlitevec"
	"github.com/custodia-labs/sercha-kb/internal/core/domain"
	"github.com/custodia-labs/sercha-kb/internal/errs"
)

func TestOpen(t *testing.T) {
	ctx := context.Background()

	t.Run("memory", func(t *testing.T) {
		cfg := domain.DefaultConfig()
		cfg.VectorIndex.Backend = domain.VectorBackendMemory
		idx, err := Open(ctx, cfg, 4)
		require.NoError(t, err)
		assert.IsType(t, &memory.Index{}, idx)
	})

	t.Run("sqlite_vec", func(t *testing.T) {
		cfg := domain.DefaultConfig()
		cfg.DataDir = filepath.Join(t.TempDir(), "nested")
		idx, err := Open(ctx, cfg, 4)
		require.NoError(t, err)
		defer idx.Close()
		assert.IsType(t, &sqlitevec.Index{}, idx)

		_, err = os.Stat(filepath.Join(cfg.DataDir, FileName))
		assert.NoError(t, err)
	})

	t.Run("weaviate without host", func(t *testing.T) {
		cfg := domain.DefaultConfig()
		cfg.VectorIndex.Backend = domain.VectorBackendWeaviate
		_, err := Open(ctx, cfg, 4)
		assert.True(t, errs.HasCode(err, errs.CodeConfigurationValueInvalid))
	})

	t.Run("unknown backend", func(t *testing.T) {
		cfg := domain.DefaultConfig()
		cfg.VectorIndex.Backend = "qdrant"
		_, err := Open(ctx, cfg, 4)
		assert.True(t, errs.HasCode(err, errs.CodeConfigurationValueInvalid))
	})
}
