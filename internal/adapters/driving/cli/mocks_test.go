package cli

import (
	"bytes"
	"context"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/custodia-labs/sercha-kb/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/sercha-kb/internal/core/domain"
)

// mockQueryService implements driving.QueryService for testing.
type mockQueryService struct {
	answer    *domain.Answer
	err       error
	retrieval *domain.RetrievalResult
	lastReq   domain.QueryRequest
	lastK     int
	lastRole  string
}

func (m *mockQueryService) Ask(_ context.Context, req domain.QueryRequest) (*domain.Answer, error) {
	m.lastReq = req
	return m.answer, m.err
}

func (m *mockQueryService) Retrieve(_ context.Context, _ string, k int, role string) (*domain.RetrievalResult, error) {
	m.lastK = k
	m.lastRole = role
	if m.err != nil {
		return nil, m.err
	}
	return m.retrieval, nil
}

// mockAuditService implements driving.AuditService for testing.
type mockAuditService struct {
	records []domain.QueryRecord
	runs    []domain.SyncRun
	docs    []domain.DocState
}

func (m *mockAuditService) ListQueries(_ context.Context, limit int) ([]domain.QueryRecord, error) {
	if limit > 0 && len(m.records) > limit {
		return m.records[:limit], nil
	}
	return m.records, nil
}

func (m *mockAuditService) GetQuery(_ context.Context, id string) (*domain.QueryRecord, error) {
	for i := range m.records {
		if m.records[i].ID == id {
			return &m.records[i], nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockAuditService) ListSyncRuns(_ context.Context, _ int) ([]domain.SyncRun, error) {
	return m.runs, nil
}

func (m *mockAuditService) ListDocuments(_ context.Context) ([]domain.DocState, error) {
	return m.docs, nil
}

// mockIndexer implements driving.Indexer for testing.
type mockIndexer struct {
	run      *domain.SyncRun
	err      error
	manifest string
	calls    int
}

func (m *mockIndexer) Sync(_ context.Context, manifestPath string) (*domain.SyncRun, error) {
	m.manifest = manifestPath
	m.calls++
	if m.run != nil {
		m.run.ManifestPath = manifestPath
	}
	return m.run, m.err
}

func (m *mockIndexer) SyncManifest(_ context.Context, _ *domain.Manifest) (*domain.SyncRun, error) {
	m.calls++
	return m.run, m.err
}

// mockEvaluator implements driving.Evaluator for testing.
type mockEvaluator struct {
	report *domain.EvalReport
	cases  []domain.GoldenCase
	k      int
}

func (m *mockEvaluator) Evaluate(_ context.Context, cases []domain.GoldenCase, k int) (*domain.EvalReport, error) {
	m.cases = cases
	m.k = k
	return m.report, nil
}

// mockAIValidator implements driven.AIConfigValidator for testing.
type mockAIValidator struct {
	embedErr error
	llmErr   error
}

func (m *mockAIValidator) ValidateEmbedding(_ *domain.EmbeddingSettings) error { return m.embedErr }

func (m *mockAIValidator) ValidateLLM(_ *domain.LLMSettings) error { return m.llmErr }

var testTime = time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

type testServices struct {
	query   *mockQueryService
	audit   *mockAuditService
	indexer *mockIndexer
	eval    *mockEvaluator
	config  *memory.ConfigStore
}

// setupTestServices swaps every package-level service for a mock and
// returns the mocks plus a cleanup function.
func setupTestServices() (*testServices, func()) {
	oldQuery, oldAudit, oldIndexer, oldEval := queryService, auditService, indexer, evaluator
	oldStore, oldConfig, oldGetenv := configStore, appConfig, getenv

	ts := &testServices{
		query: &mockQueryService{
			answer: &domain.Answer{
				Text:      "Refunds are issued within 14 days [S1].\n\nSources:\n- [S1] Refunds policy (section: Refunds)",
				Status:    domain.QueryStatusAnswered,
				BestScore: 0.82,
				RecordID:  "q-1",
				Sources: []domain.SourceRef{
					{Label: "S1", ChunkRef: "refunds#0", DocID: "refunds", Locator: "Refunds", Score: 0.82},
				},
			},
			retrieval: &domain.RetrievalResult{Items: []domain.ScoredChunk{
				{Chunk: domain.Chunk{DocID: "refunds", Ordinal: 0, Text: "Refunds are issued within 14 days."}, Title: "Refunds policy", Path: "refunds.md", Score: 0.82},
			}},
		},
		audit: &mockAuditService{
			records: []domain.QueryRecord{
				{ID: "q-1", Timestamp: testTime, Question: "How long do refunds take?", Status: domain.QueryStatusAnswered, BestScore: 0.82, K: 4, Answer: "Refunds are issued within 14 days [S1].",
					Sources: []domain.SourceRef{{Label: "S1", DocID: "refunds", Locator: "Refunds", Score: 0.82}}},
				{ID: "q-2", Timestamp: testTime, Question: "What is the parental leave policy?", Status: domain.QueryStatusNotInKB, BestScore: 0.12, K: 4, Answer: domain.RefusalText, Reason: "below_threshold"},
			},
			runs: []domain.SyncRun{
				{ID: "run-1", Timestamp: testTime, ManifestPath: "kb.yaml", DocsTotal: 2, DocsIndexed: 1, DocsFailed: 1, DocsChanged: 1,
					Errors: []domain.SyncError{{DocID: "missing", Message: "document not found"}}},
			},
			docs: []domain.DocState{
				{DocID: "refunds", Path: "refunds.md", ContentHash: "0123456789abcdef", ChunkCount: 3, IndexedAt: testTime},
			},
		},
		indexer: &mockIndexer{
			run: &domain.SyncRun{ID: "run-2", Timestamp: testTime, DocsTotal: 2, DocsIndexed: 2, DocsChanged: 1},
		},
		eval: &mockEvaluator{
			report: &domain.EvalReport{K: 5, ExpectedTotal: 2, HitTotal: 1, RecallAtK: 0.5},
		},
		config: memory.NewConfigStore(),
	}

	queryService = ts.query
	auditService = ts.audit
	indexer = ts.indexer
	evaluator = ts.eval
	configStore = ts.config
	getenv = func(string) string { return "" }

	return ts, func() {
		queryService, auditService, indexer, evaluator = oldQuery, oldAudit, oldIndexer, oldEval
		configStore, appConfig, getenv = oldStore, oldConfig, oldGetenv
	}
}

// executeCommand runs the root command with args and returns its output.
// Flags are reset first because cobra keeps parsed values between runs.
func executeCommand(args ...string) (string, error) {
	resetFlags(rootCmd)

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)

	err := rootCmd.Execute()
	return buf.String(), err
}

func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}
