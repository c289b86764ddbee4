package api

import (
	"context"

	"github.com/custodia-labs/sercha-kb/internal/core/domain"
)

type mockQueryService struct {
	answer    *domain.Answer
	retrieval *domain.RetrievalResult
	err       error

	asked       bool
	lastRequest domain.QueryRequest
}

func (m *mockQueryService) Ask(_ context.Context, req domain.QueryRequest) (*domain.Answer, error) {
	m.asked = true
	m.lastRequest = req
	return m.answer, m.err
}

func (m *mockQueryService) Retrieve(_ context.Context, question string, k int, role string) (*domain.RetrievalResult, error) {
	m.lastRequest = domain.QueryRequest{Question: question, K: k, Role: role}
	return m.retrieval, m.err
}

type mockAuditService struct {
	records []domain.QueryRecord
	runs    []domain.SyncRun
	docs    []domain.DocState
	err     error

	lastLimit int
}

func (m *mockAuditService) ListQueries(_ context.Context, limit int) ([]domain.QueryRecord, error) {
	m.lastLimit = limit
	return m.records, m.err
}

func (m *mockAuditService) GetQuery(_ context.Context, id string) (*domain.QueryRecord, error) {
	for i := range m.records {
		if m.records[i].ID == id {
			return &m.records[i], nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockAuditService) ListSyncRuns(_ context.Context, limit int) ([]domain.SyncRun, error) {
	m.lastLimit = limit
	return m.runs, m.err
}

func (m *mockAuditService) ListDocuments(_ context.Context) ([]domain.DocState, error) {
	return m.docs, m.err
}

type mockIndexer struct {
	run      *domain.SyncRun
	err      error
	manifest string
}

func (m *mockIndexer) Sync(_ context.Context, manifestPath string) (*domain.SyncRun, error) {
	m.manifest = manifestPath
	return m.run, m.err
}

func (m *mockIndexer) SyncManifest(_ context.Context, _ *domain.Manifest) (*domain.SyncRun, error) {
	return m.run, m.err
}
