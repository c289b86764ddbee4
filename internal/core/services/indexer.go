package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/custodia-labs/sercha-kb/internal/core/domain"
	"github.com/custodia-labs/sercha-kb/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-kb/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-kb/internal/errs"
	"github.com/custodia-labs/sercha-kb/internal/logger"
)

// Ensure Indexer implements the interface.
var _ driving.Indexer = (*Indexer)(nil)

var tracer = otel.Tracer("github.com/custodia-labs/sercha-kb/internal/core/services")

// DefaultEmbedBatchSize is the number of chunk texts sent per embedding request.
const DefaultEmbedBatchSize = 32

// auditWriteTimeout bounds audit writes made after the caller's context ended.
const auditWriteTimeout = 5 * time.Second

// Indexer synchronises the vector index with a manifest.
//
// Each document is processed independently: a failure is recorded in the
// SyncRun and the run continues. A document's ledger entry is committed only
// after its chunks are in the index, so an interrupted run leaves a valid,
// resumable state.
type Indexer struct {
	loader    driven.ManifestLoader
	fetcher   driven.DocumentFetcher
	registry  driven.NormaliserRegistry
	pipeline  driven.PostProcessorPipeline
	embedder  driven.EmbeddingService
	index     driven.VectorIndex
	ledger    driven.SyncLedger
	audit     driven.AuditStore
	timeouts  domain.TimeoutSettings
	metrics   driven.PipelineMetrics
	batchSize int
	now       func() time.Time
	newID     func() string
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithIndexerTimeouts sets the per-call timeouts.
func WithIndexerTimeouts(t domain.TimeoutSettings) IndexerOption {
	return func(ix *Indexer) {
		ix.timeouts = t
	}
}

// WithIndexerMetrics sets the metrics sink.
func WithIndexerMetrics(m driven.PipelineMetrics) IndexerOption {
	return func(ix *Indexer) {
		if m != nil {
			ix.metrics = m
		}
	}
}

// WithEmbedBatchSize sets how many chunks are embedded per request.
func WithEmbedBatchSize(n int) IndexerOption {
	return func(ix *Indexer) {
		if n > 0 {
			ix.batchSize = n
		}
	}
}

// WithIndexerClock overrides the time source. Used in tests.
func WithIndexerClock(now func() time.Time) IndexerOption {
	return func(ix *Indexer) {
		ix.now = now
	}
}

// NewIndexer creates a new indexer.
func NewIndexer(
	loader driven.ManifestLoader,
	fetcher driven.DocumentFetcher,
	registry driven.NormaliserRegistry,
	pipeline driven.PostProcessorPipeline,
	embedder driven.EmbeddingService,
	index driven.VectorIndex,
	ledger driven.SyncLedger,
	audit driven.AuditStore,
	opts ...IndexerOption,
) *Indexer {
	ix := &Indexer{
		loader:    loader,
		fetcher:   fetcher,
		registry:  registry,
		pipeline:  pipeline,
		embedder:  embedder,
		index:     index,
		ledger:    ledger,
		audit:     audit,
		timeouts:  domain.DefaultConfig().Timeouts,
		metrics:   driven.NopMetrics{},
		batchSize: DefaultEmbedBatchSize,
		now:       time.Now,
		newID:     func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// Sync loads the manifest at manifestPath and synchronises it.
func (ix *Indexer) Sync(ctx context.Context, manifestPath string) (*domain.SyncRun, error) {
	if ix.loader == nil {
		return nil, errs.New(errs.CodeConfigurationValueInvalid, "manifest loader not configured")
	}
	manifest, err := ix.loader.Load(manifestPath)
	if err != nil {
		return nil, errs.Wrap(err, errs.CodeIngestionManifestInvalid, "load manifest",
			errs.Field("manifest", manifestPath))
	}
	return ix.SyncManifest(ctx, manifest)
}

// SyncManifest synchronises every entry of manifest and records the run.
// It returns an error only when the run could not be recorded or was cancelled;
// per-document failures are reported in the returned run.
func (ix *Indexer) SyncManifest(ctx context.Context, manifest *domain.Manifest) (*domain.SyncRun, error) {
	if manifest == nil {
		return nil, errs.New(errs.CodeIngestionManifestInvalid, "manifest is nil")
	}

	ctx, span := tracer.Start(ctx, "Indexer.SyncManifest")
	defer span.End()

	run := &domain.SyncRun{
		ID:           ix.newID(),
		Timestamp:    ix.now(),
		ManifestPath: manifest.Path,
		DocsTotal:    len(manifest.Entries),
	}

	logger.Section("Sync")
	logger.Info("Manifest %s: %d documents", manifest.Path, run.DocsTotal)

	seen := make(map[string]bool, len(manifest.Entries))
	var cancelErr error

	for _, entry := range manifest.Entries {
		if err := ctx.Err(); err != nil {
			cancelErr = err
			break
		}

		docID := entry.ID()
		if seen[docID] {
			ix.recordFailure(run, docID, errs.Wrap(domain.ErrDuplicateDocID,
				errs.CodeIngestionManifestInvalid, "duplicate document id", errs.FieldDocID(docID)))
			continue
		}
		seen[docID] = true

		changed, err := ix.syncDocument(ctx, entry)
		if changed {
			run.DocsChanged++
		}
		if err != nil {
			ix.recordFailure(run, docID, err)
			if ctx.Err() != nil {
				cancelErr = ctx.Err()
				break
			}
			continue
		}

		run.DocsIndexed++
		if changed {
			ix.metrics.ObserveSyncDocument(driven.SyncOutcomeIndexed)
		} else {
			ix.metrics.ObserveSyncDocument(driven.SyncOutcomeUnchanged)
		}
	}

	span.SetAttributes(
		attribute.Int("sync.docs_total", run.DocsTotal),
		attribute.Int("sync.docs_indexed", run.DocsIndexed),
		attribute.Int("sync.docs_failed", run.DocsFailed),
	)
	logger.Info("Sync complete: %d indexed, %d changed, %d failed",
		run.DocsIndexed, run.DocsChanged, run.DocsFailed)
	logger.Event("sync_run", "id", run.ID, "manifest", run.ManifestPath,
		"total", run.DocsTotal, "indexed", run.DocsIndexed, "failed", run.DocsFailed)

	if err := ix.recordRun(ctx, run); err != nil {
		span.SetStatus(codes.Error, "record sync run")
		return run, err
	}
	if cancelErr != nil {
		span.SetStatus(codes.Error, "cancelled")
		return run, fmt.Errorf("sync cancelled: %w", cancelErr)
	}
	return run, nil
}

func (ix *Indexer) recordFailure(run *domain.SyncRun, docID string, err error) {
	run.DocsFailed++
	run.Errors = append(run.Errors, domain.SyncError{DocID: docID, Message: err.Error()})
	ix.metrics.ObserveSyncDocument(driven.SyncOutcomeFailed)
	logger.Warn("Failed to index %s: %v", docID, err)
}

// recordRun appends the run even when ctx was cancelled, so a partial run
// is still reported.
func (ix *Indexer) recordRun(ctx context.Context, run *domain.SyncRun) error {
	if ix.audit == nil {
		return nil
	}
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditWriteTimeout)
	defer cancel()
	if err := ix.audit.AppendSyncRun(writeCtx, run); err != nil {
		return errs.Wrap(err, errs.CodeIngestionLedgerFailure, "record sync run")
	}
	return nil
}

// syncDocument indexes one manifest entry. changed reports whether the
// fetched content differs from the ledger, even when indexing then failed.
// Unchanged content is re-embedded only when the ledger entry belongs to
// another index instance.
//
//nolint:gocyclo // Pipeline orchestration with sequential steps
func (ix *Indexer) syncDocument(ctx context.Context, entry domain.ManifestEntry) (changed bool, err error) {
	docID := entry.ID()
	ctx, span := tracer.Start(ctx, "Indexer.syncDocument")
	span.SetAttributes(attribute.String("doc.id", docID))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, string(errs.CodeOf(err)))
		}
		span.End()
	}()

	logger.Debug("Processing: %s (%s)", docID, entry.PathOrURL)

	// 1. RESOLVE TYPE
	docType, ok := domain.DocTypeFromPath(entry.PathOrURL)
	if !ok {
		return false, errs.Wrapf(domain.ErrUnsupportedType, errs.CodeIngestionTypeUnsupported,
			"unsupported document type: %s", entry.PathOrURL)
	}

	// 2. FETCH
	fetched, err := ix.fetch(ctx, entry.PathOrURL)
	if err != nil {
		return false, errs.Wrap(err, errs.CodeIngestionDocumentUnreadable, "fetch document", errs.FieldDocID(docID))
	}

	// 3. FINGERPRINT AND COMPARE
	hash := Fingerprint(fetched.Content)
	prev, err := ix.ledger.Get(ctx, docID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return false, errs.Wrap(err, errs.CodeIngestionLedgerFailure, "read ledger", errs.FieldDocID(docID))
	}
	// An entry written against another index instance describes vectors
	// this index does not hold.
	indexID := ix.index.Identity()
	metaHash := MetadataFingerprint(entry)
	contentChanged := prev == nil || prev.ContentHash != hash
	reindex := contentChanged || prev.IndexID != indexID
	if !reindex && prev.MetaHash == metaHash {
		logger.Debug("Unchanged: %s", docID)
		return false, nil
	}
	if !contentChanged && reindex {
		logger.Debug("Index %s does not hold %s, re-indexing", indexID, docID)
	}

	doc := domain.SourceDocument{
		DocID:        docID,
		PathOrURL:    entry.PathOrURL,
		Title:        entry.Title,
		Tags:         entry.Tags,
		AllowedRoles: entry.AllowedRoles,
		Type:         docType,
		ContentHash:  hash,
		LastModified: fetched.LastModified,
	}

	// 4. NORMALISE
	normalised, err := ix.normalise(ctx, doc, fetched.Content)
	if err != nil {
		return contentChanged, err
	}

	// Same content, new manifest metadata: the stored vectors stay valid.
	if !reindex {
		return false, ix.refreshMetadata(ctx, *prev, normalised.Document, metaHash)
	}

	// 5. CHUNK
	chunks, err := ix.pipeline.Process(ctx, normalised)
	if err != nil {
		return contentChanged, errs.Wrap(err, errs.CodeIngestionDocumentUnreadable, "chunk", errs.FieldDocID(docID))
	}
	if len(chunks) == 0 {
		logger.Warn("Empty document %s: no chunks produced", docID)
	}

	// 6. EMBED
	vectors, err := ix.embed(ctx, chunks)
	if err != nil {
		return contentChanged, errs.Wrap(err, errs.CodeIngestionEmbeddingFailure, "embed chunks", errs.FieldDocID(docID))
	}

	// 7. UPSERT NEW CHUNKS, THEN REMOVE STALE ONES
	records := make([]driven.VectorRecord, len(chunks))
	keep := make([]string, len(chunks))
	for i, c := range chunks {
		records[i] = toVectorRecord(c, normalised.Document, vectors[i])
		keep[i] = records[i].ID
	}
	if len(records) > 0 {
		if err := ix.vectorCall(ctx, func(ctx context.Context) error {
			return ix.index.Upsert(ctx, records)
		}); err != nil {
			return contentChanged, errs.Wrap(err, errs.CodeIngestionIndexFailure, "upsert chunks", errs.FieldDocID(docID))
		}
	}
	if err := ix.vectorCall(ctx, func(ctx context.Context) error {
		return ix.index.DeleteByDoc(ctx, docID, keep)
	}); err != nil {
		return contentChanged, errs.Wrap(err, errs.CodeIngestionIndexFailure, "delete stale chunks", errs.FieldDocID(docID))
	}

	// 8. COMMIT LEDGER
	state := domain.DocState{
		DocID:       docID,
		Path:        entry.PathOrURL,
		ContentHash: hash,
		MetaHash:    metaHash,
		IndexID:     indexID,
		ChunkCount:  len(chunks),
		IndexedAt:   ix.now(),
	}
	if err := ix.ledger.Put(ctx, state); err != nil {
		return contentChanged, errs.Wrap(err, errs.CodeIngestionLedgerFailure, "write ledger", errs.FieldDocID(docID))
	}

	logger.Debug("Indexed %s: %d chunks", docID, len(chunks))
	return contentChanged, nil
}

func (ix *Indexer) normalise(ctx context.Context, doc domain.SourceDocument, content []byte) (*domain.NormalisedDocument, error) {
	normalised, err := ix.registry.Normalise(ctx, &domain.RawDocument{Document: doc, Content: content})
	if err != nil {
		if errors.Is(err, domain.ErrUnsupportedType) {
			return nil, errs.Wrap(err, errs.CodeIngestionTypeUnsupported, "normalise", errs.FieldDocID(doc.DocID))
		}
		return nil, errs.Wrap(err, errs.CodeIngestionDocumentUnreadable, "normalise", errs.FieldDocID(doc.DocID))
	}
	if normalised.Document.Title == "" {
		normalised.Document.Title = doc.Title
	}
	return normalised, nil
}

// refreshMetadata rewrites the citation metadata and roles of an indexed
// document whose content is unchanged. No embeddings are requested.
func (ix *Indexer) refreshMetadata(ctx context.Context, prev domain.DocState, doc domain.SourceDocument, metaHash string) error {
	ids := make([]string, prev.ChunkCount)
	for i := range ids {
		ids[i] = domain.ChunkRef(doc.DocID, i)
	}
	meta := driven.DocMetadata{
		Title:        doc.DisplayName(),
		Path:         doc.PathOrURL,
		AllowedRoles: doc.AllowedRoles,
	}
	if len(ids) > 0 {
		if err := ix.vectorCall(ctx, func(ctx context.Context) error {
			return ix.index.UpdateMetadata(ctx, doc.DocID, ids, meta)
		}); err != nil {
			return errs.Wrap(err, errs.CodeIngestionIndexFailure, "update chunk metadata", errs.FieldDocID(doc.DocID))
		}
	}

	prev.Path = doc.PathOrURL
	prev.MetaHash = metaHash
	prev.IndexedAt = ix.now()
	if err := ix.ledger.Put(ctx, prev); err != nil {
		return errs.Wrap(err, errs.CodeIngestionLedgerFailure, "write ledger", errs.FieldDocID(doc.DocID))
	}

	logger.Debug("Metadata updated: %s (%d chunks)", doc.DocID, prev.ChunkCount)
	return nil
}

func (ix *Indexer) fetch(ctx context.Context, pathOrURL string) (*driven.FetchResult, error) {
	ctx, cancel := context.WithTimeout(ctx, ix.timeouts.Fetch)
	defer cancel()
	return ix.fetcher.Fetch(ctx, pathOrURL)
}

// embed requests vectors in batches, each bounded by the embedding timeout.
func (ix *Indexer) embed(ctx context.Context, chunks []domain.Chunk) ([][]float32, error) {
	vectors := make([][]float32, 0, len(chunks))
	for start := 0; start < len(chunks); start += ix.batchSize {
		end := min(start+ix.batchSize, len(chunks))
		texts := make([]string, 0, end-start)
		for _, c := range chunks[start:end] {
			texts = append(texts, c.Text)
		}

		callCtx, cancel := context.WithTimeout(ctx, ix.timeouts.Embedding)
		begin := time.Now()
		batch, err := ix.embedder.EmbedBatch(callCtx, texts)
		cancel()
		ix.metrics.ObserveProviderCall(driven.CallEmbedding, time.Since(begin), err)
		if err != nil {
			return nil, err
		}
		if len(batch) != len(texts) {
			return nil, fmt.Errorf("embedding provider returned %d vectors for %d texts", len(batch), len(texts))
		}
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}

func (ix *Indexer) vectorCall(ctx context.Context, fn func(context.Context) error) error {
	callCtx, cancel := context.WithTimeout(ctx, ix.timeouts.VectorIndex)
	defer cancel()
	begin := time.Now()
	err := fn(callCtx)
	ix.metrics.ObserveProviderCall(driven.CallVectorIndex, time.Since(begin), err)
	return err
}

func toVectorRecord(c domain.Chunk, doc domain.SourceDocument, vector []float32) driven.VectorRecord {
	return driven.VectorRecord{
		ID:           c.EmbeddingRef(),
		DocID:        c.DocID,
		Ordinal:      c.Ordinal,
		Text:         c.Text,
		Title:        doc.DisplayName(),
		Path:         doc.PathOrURL,
		SectionPath:  c.SectionPath,
		Page:         c.Page,
		ContentHash:  c.ContentHash,
		AllowedRoles: doc.AllowedRoles,
		Vector:       vector,
	}
}
