package services

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/custodia-labs/sercha-kb/internal/core/domain"
	"github.com/custodia-labs/sercha-kb/internal/core/ports/driven"
)

// --- Mock implementations shared by service tests ---

// mockManifestLoader implements driven.ManifestLoader.
type mockManifestLoader struct {
	manifest *domain.Manifest
	err      error
}

func (m *mockManifestLoader) Load(path string) (*domain.Manifest, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := *m.manifest
	out.Path = path
	return &out, nil
}

// mockFetcher implements driven.DocumentFetcher over an in-memory file map.
type mockFetcher struct {
	mu    sync.Mutex
	files map[string]string
	errs  map[string]error
	calls map[string]int
}

func newMockFetcher(files map[string]string) *mockFetcher {
	return &mockFetcher{files: files, errs: map[string]error{}, calls: map[string]int{}}
}

func (m *mockFetcher) Fetch(_ context.Context, pathOrURL string) (*driven.FetchResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[pathOrURL]++
	if err := m.errs[pathOrURL]; err != nil {
		return nil, err
	}
	content, ok := m.files[pathOrURL]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &driven.FetchResult{Content: []byte(content)}, nil
}

func (m *mockFetcher) Supports(string) bool { return true }

// mockRegistry implements driven.NormaliserRegistry by passing text through.
type mockRegistry struct {
	err error
}

func (m *mockRegistry) Normalise(_ context.Context, raw *domain.RawDocument) (*domain.NormalisedDocument, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &domain.NormalisedDocument{Document: raw.Document, Text: string(raw.Content)}, nil
}

func (m *mockRegistry) Register(driven.Normaliser) {}

func (m *mockRegistry) SupportedTypes() []domain.DocType {
	return []domain.DocType{domain.DocTypeMarkdown, domain.DocTypePDF, domain.DocTypePlain}
}

// paragraphPipeline implements driven.PostProcessorPipeline: one chunk per paragraph.
type paragraphPipeline struct{}

func (paragraphPipeline) Process(_ context.Context, doc *domain.NormalisedDocument) ([]domain.Chunk, error) {
	var chunks []domain.Chunk
	for _, para := range strings.Split(doc.Text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		chunks = append(chunks, domain.Chunk{
			DocID:       doc.Document.DocID,
			Ordinal:     len(chunks),
			Text:        para,
			ContentHash: doc.Document.ContentHash,
		})
	}
	return chunks, nil
}

// mockEmbedder implements driven.EmbeddingService.
type mockEmbedder struct {
	mu         sync.Mutex
	vectors    map[string][]float32
	err        error
	block      bool
	embedCalls int
	batchCalls int
	batchTexts int
}

func (m *mockEmbedder) vectorFor(text string) []float32 {
	if v, ok := m.vectors[text]; ok {
		return v
	}
	return []float32{1, 0, 0}
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	m.embedCalls++
	m.mu.Unlock()
	if m.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if m.err != nil {
		return nil, m.err
	}
	return m.vectorFor(text), nil
}

func (m *mockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	m.batchCalls++
	m.batchTexts += len(texts)
	m.mu.Unlock()
	if m.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if m.err != nil {
		return nil, m.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = m.vectorFor(t)
	}
	return out, nil
}

func (m *mockEmbedder) Dimensions() int { return 3 }
func (m *mockEmbedder) ModelName() string { return "mock-embed" }
func (m *mockEmbedder) Ping(context.Context) error { return nil }
func (m *mockEmbedder) Close() error { return nil }

// mockVectorIndex implements driven.VectorIndex. Stored records are kept for
// assertions; Search returns the configured hits when set.
type mockVectorIndex struct {
	mu         sync.Mutex
	records    map[string]driven.VectorRecord
	ops        []string
	hits       []driven.VectorHit
	searchErr  error
	upsertErr  error
	updateErr  error
	identity   string
	block      bool
	lastK      int
	lastFilter driven.VectorFilter
	searches   int
}

func newMockVectorIndex() *mockVectorIndex {
	return &mockVectorIndex{records: map[string]driven.VectorRecord{}}
}

func (m *mockVectorIndex) Upsert(_ context.Context, records []driven.VectorRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.upsertErr != nil {
		return m.upsertErr
	}
	for _, r := range records {
		m.records[r.ID] = r
		m.ops = append(m.ops, "upsert "+r.ID)
	}
	return nil
}

func (m *mockVectorIndex) DeleteByDoc(_ context.Context, docID string, keep []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	keepSet := make(map[string]bool, len(keep))
	for _, id := range keep {
		keepSet[id] = true
	}
	for id, r := range m.records {
		if r.DocID == docID && !keepSet[id] {
			delete(m.records, id)
		}
	}
	m.ops = append(m.ops, "delete "+docID)
	return nil
}

func (m *mockVectorIndex) UpdateMetadata(_ context.Context, docID string, ids []string, meta driven.DocMetadata) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	for _, id := range ids {
		r, ok := m.records[id]
		if !ok || r.DocID != docID {
			continue
		}
		r.Title = meta.Title
		r.Path = meta.Path
		r.AllowedRoles = meta.AllowedRoles
		m.records[id] = r
	}
	m.ops = append(m.ops, "update "+docID)
	return nil
}

func (m *mockVectorIndex) Search(ctx context.Context, _ []float32, k int, filter driven.VectorFilter) ([]driven.VectorHit, error) {
	m.mu.Lock()
	m.searches++
	m.lastK = k
	m.lastFilter = filter
	m.mu.Unlock()
	if m.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	return m.hits, nil
}

func (m *mockVectorIndex) Identity() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.identity == "" {
		return "mock"
	}
	return m.identity
}

func (m *mockVectorIndex) ScoreRange() (float64, float64) { return -1, 1 }
func (m *mockVectorIndex) Close() error { return nil }

func (m *mockVectorIndex) ids() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.records))
	for id := range m.records {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// mockLedger implements driven.SyncLedger.
type mockLedger struct {
	mu     sync.Mutex
	states map[string]domain.DocState
	putErr error
}

func newMockLedger() *mockLedger {
	return &mockLedger{states: map[string]domain.DocState{}}
}

func (m *mockLedger) Get(_ context.Context, docID string) (*domain.DocState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.states[docID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &s, nil
}

func (m *mockLedger) Put(_ context.Context, state domain.DocState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putErr != nil {
		return m.putErr
	}
	m.states[state.DocID] = state
	return nil
}

func (m *mockLedger) List(_ context.Context) ([]domain.DocState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.DocState, 0, len(m.states))
	for _, s := range m.states {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DocID < out[j].DocID })
	return out, nil
}

// mockAuditStore implements driven.AuditStore.
type mockAuditStore struct {
	mu        sync.Mutex
	queries   []domain.QueryRecord
	runs      []domain.SyncRun
	appendErr error
	lastLimit int
}

func (m *mockAuditStore) AppendQuery(_ context.Context, rec *domain.QueryRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.appendErr != nil {
		return m.appendErr
	}
	m.queries = append(m.queries, *rec)
	return nil
}

func (m *mockAuditStore) GetQuery(_ context.Context, id string) (*domain.QueryRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.queries {
		if m.queries[i].ID == id {
			rec := m.queries[i]
			return &rec, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockAuditStore) ListQueries(_ context.Context, limit int) ([]domain.QueryRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastLimit = limit
	out := make([]domain.QueryRecord, 0, len(m.queries))
	for i := len(m.queries) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.queries[i])
	}
	return out, nil
}

func (m *mockAuditStore) AppendSyncRun(_ context.Context, run *domain.SyncRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.appendErr != nil {
		return m.appendErr
	}
	m.runs = append(m.runs, *run)
	return nil
}

func (m *mockAuditStore) ListSyncRuns(_ context.Context, limit int) ([]domain.SyncRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastLimit = limit
	out := make([]domain.SyncRun, 0, len(m.runs))
	for i := len(m.runs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.runs[i])
	}
	return out, nil
}

// mockLLM implements driven.LLMService.
type mockLLM struct {
	mu         sync.Mutex
	response   string
	err        error
	block      bool
	onGenerate func()
	calls      int
	lastPrompt string
	lastOpts   driven.GenerateOptions
}

func (m *mockLLM) Generate(ctx context.Context, prompt string, opts driven.GenerateOptions) (string, error) {
	m.mu.Lock()
	m.calls++
	m.lastPrompt = prompt
	m.lastOpts = opts
	m.mu.Unlock()
	if m.onGenerate != nil {
		m.onGenerate()
	}
	if m.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if m.err != nil {
		return "", m.err
	}
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	return m.response, nil
}

func (m *mockLLM) ModelName() string { return "mock-llm" }
func (m *mockLLM) Ping(context.Context) error { return nil }
func (m *mockLLM) Close() error { return nil }

// mockPromptStore implements driven.PromptStore.
type mockPromptStore struct {
	prompts map[string]string
}

func (m *mockPromptStore) Load(name string) (string, error) {
	if p, ok := m.prompts[name]; ok {
		return p, nil
	}
	return "", errors.New("prompt not found")
}

func (m *mockPromptStore) Reload() {}

// hit builds a vector hit for retrieval tests.
func hit(docID string, ordinal int, score float64, text string, roles ...string) driven.VectorHit {
	return driven.VectorHit{
		Record: driven.VectorRecord{
			ID:           domain.ChunkRef(docID, ordinal),
			DocID:        docID,
			Ordinal:      ordinal,
			Text:         text,
			Title:        docID,
			Path:         "kb/" + docID,
			AllowedRoles: roles,
		},
		Similarity: score,
	}
}
