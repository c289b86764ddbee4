package mcp

import (
	"context"

	"github.com/custodia-labs/sercha-kb/internal/core/domain"
)

// mockQueryService is a mock implementation of driving.QueryService.
type mockQueryService struct {
	answer    *domain.Answer
	retrieval *domain.RetrievalResult
	err       error

	lastRequest domain.QueryRequest
	lastK       int
	lastRole    string
}

func (m *mockQueryService) Ask(_ context.Context, req domain.QueryRequest) (*domain.Answer, error) {
	m.lastRequest = req
	return m.answer, m.err
}

func (m *mockQueryService) Retrieve(_ context.Context, _ string, k int, role string) (*domain.RetrievalResult, error) {
	m.lastK = k
	m.lastRole = role
	return m.retrieval, m.err
}

// mockAuditService is a mock implementation of driving.AuditService.
type mockAuditService struct {
	records []domain.QueryRecord
	runs    []domain.SyncRun
	docs    []domain.DocState
	err     error
}

func (m *mockAuditService) ListQueries(_ context.Context, limit int) ([]domain.QueryRecord, error) {
	if limit > 0 && len(m.records) > limit {
		return m.records[:limit], m.err
	}
	return m.records, m.err
}

func (m *mockAuditService) GetQuery(_ context.Context, id string) (*domain.QueryRecord, error) {
	if m.err != nil {
		return nil, m.err
	}
	for i := range m.records {
		if m.records[i].ID == id {
			return &m.records[i], nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockAuditService) ListSyncRuns(_ context.Context, _ int) ([]domain.SyncRun, error) {
	return m.runs, m.err
}

func (m *mockAuditService) ListDocuments(_ context.Context) ([]domain.DocState, error) {
	return m.docs, m.err
}
