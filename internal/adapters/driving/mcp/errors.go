// Package mcp provides an MCP (Model Context Protocol) server adapter.
// It lets AI assistants ask grounded questions of the knowledge base and
// read the audit trail.
package mcp

import "errors"

// ErrMissingQueryService is returned when the query service is not provided.
var ErrMissingQueryService = errors.New("mcp: query service is required")

// ErrEmptyQuestion is returned when retrieve is called without a question.
var ErrEmptyQuestion = errors.New("mcp: question is required")
