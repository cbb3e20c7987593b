// Package mcp provides an MCP (Model Context Protocol) server adapter for kbase.
// It lets AI assistants retrieve cited passages from the knowledge base and
// add web pages to it.
package mcp

import "errors"

// ErrMissingRetrievalService is returned when the retrieval service is not provided.
var ErrMissingRetrievalService = errors.New("mcp: retrieval service is required")

// errNotConfigured is returned by tools whose backing port is nil.
var errNotConfigured = errors.New("mcp: service not configured")
