package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-kb/internal/core/domain"
	"github.com/custodia-labs/sercha-kb/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-kb/internal/errs"
)

type queryFixture struct {
	embedder *mockEmbedder
	index    *mockVectorIndex
	llm      *mockLLM
	audit    *mockAuditStore
	service  *QueryService
}

func newQueryFixture(hits ...driven.VectorHit) *queryFixture {
	f := &queryFixture{
		embedder: &mockEmbedder{},
		index:    newMockVectorIndex(),
		llm:      &mockLLM{},
		audit:    &mockAuditStore{},
	}
	f.index.hits = hits
	timeouts := testTimeouts()
	f.service = NewQueryService(
		NewRetriever(f.embedder, f.index, timeouts, nil),
		NewGatingPolicy(domain.DefaultThreshold),
		NewAnswerComposer(f.llm, nil, domain.LLMSettings{}, timeouts.Generation, nil),
		NewAuditRecorder(f.audit),
		domain.RetrievalSettings{K: 4, Threshold: domain.DefaultThreshold},
		nil,
	)
	return f
}

func returnsHit() driven.VectorHit {
	h := hit("returns", 0, 0.62, "Customers may return items within 30 days of delivery.")
	h.Record.Title = "Returns Policy"
	h.Record.Path = "kb/returns.md"
	h.Record.SectionPath = []string{"Returns"}
	return h
}

func TestQueryService_AnswersFromReturnsPolicy(t *testing.T) {
	f := newQueryFixture(returnsHit(), hit("shipping", 0, 0.30, "Ships in 2 days."))
	f.llm.response = "Customers have 30 days from delivery to return an item [S1]."

	answer, err := f.service.Ask(context.Background(), domain.QueryRequest{
		Question: "How long do customers have to return an item?",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.QueryStatusAnswered, answer.Status)
	assert.Contains(t, answer.Text, "30 days")
	assert.Contains(t, answer.Text, "[S1]")
	assert.Contains(t, answer.Text, "Sources:\n- [S1] Returns Policy (section: Returns)")
	require.Len(t, answer.Sources, 1)
	assert.Equal(t, "returns", answer.Sources[0].DocID)
	assert.InDelta(t, 0.62, answer.BestScore, 1e-9)

	require.Len(t, f.audit.queries, 1)
	rec := f.audit.queries[0]
	assert.Equal(t, answer.RecordID, rec.ID)
	assert.Equal(t, domain.QueryStatusAnswered, rec.Status)
	assert.Equal(t, answer.Text, rec.Answer)
	assert.Equal(t, 4, rec.K)
	assert.Equal(t, 4, f.index.lastK)
}

func TestQueryService_RefusesBelowThreshold(t *testing.T) {
	f := newQueryFixture(hit("handbook", 0, 0.21, "Holiday schedule."))
	f.llm.response = "Parental leave is 12 weeks [S1]."

	answer, err := f.service.Ask(context.Background(), domain.QueryRequest{
		Question: "What is the parental leave policy?",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.QueryStatusNotInKB, answer.Status)
	assert.Equal(t, domain.RefusalText, answer.Text)
	assert.Empty(t, answer.Sources)
	assert.Equal(t, 0, f.llm.calls, "no generation call below threshold")

	require.Len(t, f.audit.queries, 1)
	rec := f.audit.queries[0]
	assert.Equal(t, "What is the parental leave policy?", rec.Question)
	assert.Equal(t, domain.QueryStatusNotInKB, rec.Status)
	assert.InDelta(t, 0.21, rec.BestScore, 1e-9)
	assert.Equal(t, "below_threshold", rec.Reason)
}

func TestQueryService_RoleFilterHidesRestrictedDocuments(t *testing.T) {
	f := newQueryFixture(hit("refund-limits", 0, 0.8, "Refunds above $500 need lead approval.", "cs"))
	f.llm.response = "Refunds above $500 need approval [S1]."

	answer, err := f.service.Ask(context.Background(), domain.QueryRequest{
		Question: "What is the refund limit?",
		Role:     "warehouse",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.QueryStatusNotInKB, answer.Status)
	assert.Equal(t, 0, f.llm.calls)
	assert.Equal(t, "warehouse", f.audit.queries[0].Role)

	answer, err = f.service.Ask(context.Background(), domain.QueryRequest{
		Question: "What is the refund limit?",
		Role:     "cs",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.QueryStatusAnswered, answer.Status)
	assert.Equal(t, "refund-limits", answer.Sources[0].DocID)
}

func TestQueryService_GenerationTimeout(t *testing.T) {
	f := newQueryFixture(returnsHit())
	f.llm.block = true
	f.service.composer.timeout = 10 * time.Millisecond

	answer, err := f.service.Ask(context.Background(), domain.QueryRequest{Question: "Return window?"})
	require.Error(t, err)
	assert.True(t, errs.HasCode(err, errs.CodeGenerationProviderTimeout))

	require.NotNil(t, answer)
	assert.Equal(t, domain.QueryStatusError, answer.Status)
	assert.Equal(t, errs.SafeMessage(err), answer.Text)
	assert.NotEmpty(t, answer.RecordID)

	require.Len(t, f.audit.queries, 1)
	rec := f.audit.queries[0]
	assert.Equal(t, domain.QueryStatusError, rec.Status)
	assert.Empty(t, rec.Answer)
	assert.Equal(t, "generation.provider.timeout", rec.Reason)
}

func TestQueryService_RetrievalFailure(t *testing.T) {
	f := newQueryFixture()
	f.embedder.err = errors.New("connection refused to 10.0.0.5:11434")

	answer, err := f.service.Ask(context.Background(), domain.QueryRequest{Question: "anything"})
	require.Error(t, err)
	assert.True(t, errs.IsRetrieval(err))
	assert.Equal(t, domain.QueryStatusError, answer.Status)
	assert.NotContains(t, answer.Text, "10.0.0.5", "provider detail must not leak to callers")
	assert.Equal(t, 0, f.llm.calls)

	require.Len(t, f.audit.queries, 1)
	assert.Contains(t, f.audit.queries[0].ErrorDetail, "connection refused")
}

func TestQueryService_EmptyQuestion(t *testing.T) {
	f := newQueryFixture(returnsHit())

	answer, err := f.service.Ask(context.Background(), domain.QueryRequest{Question: "   "})
	require.Error(t, err)
	assert.True(t, errs.IsInvalidInput(err))
	assert.Equal(t, domain.QueryStatusError, answer.Status)
	assert.Equal(t, 0, f.embedder.embedCalls)
	assert.Len(t, f.audit.queries, 1)
}

func TestQueryService_CancelledDuringGenerationIsNotRecorded(t *testing.T) {
	f := newQueryFixture(returnsHit())
	ctx, cancel := context.WithCancel(context.Background())
	f.llm.response = "Thirty days [S1]."
	f.llm.onGenerate = cancel

	answer, err := f.service.Ask(ctx, domain.QueryRequest{Question: "Return window?"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, answer)
	assert.Equal(t, 1, f.llm.calls)
	assert.Empty(t, f.audit.queries)
}

func TestQueryService_RecordFailureStillReturnsAnswer(t *testing.T) {
	f := newQueryFixture(returnsHit())
	f.llm.response = "Thirty days [S1]."
	f.audit.appendErr = errors.New("disk full")

	answer, err := f.service.Ask(context.Background(), domain.QueryRequest{Question: "Return window?"})
	require.Error(t, err)
	require.NotNil(t, answer)
	assert.Equal(t, domain.QueryStatusAnswered, answer.Status)
	assert.Empty(t, answer.RecordID)
}

func TestQueryService_KOverride(t *testing.T) {
	f := newQueryFixture(returnsHit())
	f.llm.response = "Thirty days [S1]."

	_, err := f.service.Ask(context.Background(), domain.QueryRequest{Question: "q", K: 7})
	require.NoError(t, err)
	assert.Equal(t, 7, f.index.lastK)
	assert.Equal(t, 7, f.audit.queries[0].K)
}

func TestQueryService_Retrieve(t *testing.T) {
	f := newQueryFixture(returnsHit())

	result, err := f.service.Retrieve(context.Background(), "  return window  ", 0, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"returns"}, result.DocIDs())
	assert.Equal(t, 4, f.index.lastK)
	assert.Empty(t, f.audit.queries, "retrieve never records")
	assert.Equal(t, 0, f.llm.calls)
}

func TestQueryService_DefaultK(t *testing.T) {
	s := NewQueryService(nil, nil, nil, nil, domain.RetrievalSettings{}, nil)
	assert.Equal(t, domain.DefaultK, s.defaultK)
}
