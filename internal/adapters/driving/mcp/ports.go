package mcp

import (
	"github.com/custodia-labs/kbase/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the MCP server.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Retrieval answers queries. Required.
	Retrieval driving.RetrievalService

	// Citations labels results. Optional; without it results carry no labels.
	Citations driving.CitationService

	// KnowledgeBase lists and reads documents. Optional.
	KnowledgeBase driving.KnowledgeBaseService

	// Ingest adds web pages. Optional; without it ingest_url fails.
	Ingest driving.IngestService
}

// Validate ensures all required ports are set.
// Returns an error if any required port is nil.
func (p *Ports) Validate() error {
	if p.Retrieval == nil {
		return ErrMissingRetrievalService
	}
	return nil
}
