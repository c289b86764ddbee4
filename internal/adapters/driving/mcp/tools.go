package mcp

import (
	"context"
	"errors"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/sercha-kb/internal/adapters/driving/views"
	"github.com/custodia-labs/sercha-kb/internal/core/domain"
	"github.com/custodia-labs/sercha-kb/internal/errs"
)

// AskInput is the input schema for the ask tool.
type AskInput struct {
	Question string `json:"question" jsonschema:"the question to answer from the knowledge base"`
	K        int    `json:"k,omitempty" jsonschema:"number of chunks to retrieve (default from configuration)"`
	Role     string `json:"role,omitempty" jsonschema:"only use documents this role may read"`
}

// RetrieveInput is the input schema for the retrieve tool.
type RetrieveInput struct {
	Question string `json:"question" jsonschema:"the question to retrieve chunks for"`
	K        int    `json:"k,omitempty" jsonschema:"number of chunks to return (default from configuration)"`
	Role     string `json:"role,omitempty" jsonschema:"only return chunks from documents this role may read"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name: "ask",
		Description: "Answer a question using only the curated knowledge base. " +
			"Answers cite sources as [S1], [S2]; questions the knowledge base " +
			"does not cover return status not_in_kb.",
	}, s.handleAsk)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "retrieve",
		Description: "Return the knowledge base chunks most similar to a question, with scores",
	}, s.handleRetrieve)
}

// handleAsk handles the ask tool invocation. Provider failures and empty
// questions are reported as an answer with status error rather than a
// protocol error, so the query service records them.
func (s *Server) handleAsk(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input AskInput,
) (*mcp.CallToolResult, views.Answer, error) {
	answer, err := s.ports.Query.Ask(ctx, domain.QueryRequest{
		Question: strings.TrimSpace(input.Question),
		K:        input.K,
		Role:     input.Role,
	})
	if answer == nil {
		return nil, views.Answer{}, safeError(err)
	}
	return nil, views.FromAnswer(answer, false), nil
}

// handleRetrieve handles the retrieve tool invocation.
func (s *Server) handleRetrieve(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input RetrieveInput,
) (*mcp.CallToolResult, views.Retrieval, error) {
	question := strings.TrimSpace(input.Question)
	if question == "" {
		return nil, views.Retrieval{}, ErrEmptyQuestion
	}

	result, err := s.ports.Query.Retrieve(ctx, question, input.K, input.Role)
	if err != nil {
		return nil, views.Retrieval{}, safeError(err)
	}
	return nil, views.FromRetrieval(question, input.K, input.Role, result), nil
}

// safeError hides provider internals from the client.
func safeError(err error) error {
	if err == nil {
		return errors.New("no answer produced")
	}
	if errs.CodeOf(err) == "" {
		return err
	}
	return errors.New(errs.SafeMessage(err))
}
