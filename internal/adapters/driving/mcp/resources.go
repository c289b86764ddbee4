package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/sercha-kb/internal/adapters/driving/views"
	"github.com/custodia-labs/sercha-kb/internal/core/domain"
)

const (
	// uriScheme is the custom URI scheme for knowledge base resources.
	uriScheme = "sercha-kb://"

	// resourceListLimit caps list resources.
	resourceListLimit = 50
)

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "queries",
		Name:        "queries",
		Description: "Most recent questions and their outcomes, newest first",
		MIMEType:    "application/json",
	}, s.handleQueriesResource)

	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "queries/{id}",
		Name:        "query",
		Description: "A single audit trail entry",
		MIMEType:    "application/json",
	}, s.handleQueryResource)

	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "sync-runs",
		Name:        "sync-runs",
		Description: "Most recent sync runs, newest first",
		MIMEType:    "application/json",
	}, s.handleSyncRunsResource)
}

// handleQueriesResource lists recent audit records.
func (s *Server) handleQueriesResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	records, err := s.ports.Audit.ListQueries(ctx, resourceListLimit)
	if err != nil {
		return nil, fmt.Errorf("listing queries: %w", err)
	}
	return jsonResource(req.Params.URI, views.FromQueryRecords(records))
}

// handleQueryResource returns one audit record.
func (s *Server) handleQueryResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	// Extract id from URI: sercha-kb://queries/{id}
	id := extractQueryID(req.Params.URI)
	if id == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	record, err := s.ports.Audit.GetQuery(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}
	if err != nil {
		return nil, fmt.Errorf("getting query: %w", err)
	}
	return jsonResource(req.Params.URI, views.FromQueryRecord(*record))
}

// handleSyncRunsResource lists recent sync runs.
func (s *Server) handleSyncRunsResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	runs, err := s.ports.Audit.ListSyncRuns(ctx, resourceListLimit)
	if err != nil {
		return nil, fmt.Errorf("listing sync runs: %w", err)
	}
	return jsonResource(req.Params.URI, views.FromSyncRuns(runs))
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling resource: %w", err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// extractQueryID extracts the record id from a URI like sercha-kb://queries/{id}.
func extractQueryID(uri string) string {
	const prefix = uriScheme + "queries/"

	if !strings.HasPrefix(uri, prefix) {
		return ""
	}

	id := strings.TrimPrefix(uri, prefix)
	if strings.Contains(id, "/") {
		return ""
	}
	return id
}
