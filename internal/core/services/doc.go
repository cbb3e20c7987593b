// Package services implements the driving port interfaces.
// Services contain the core business logic and orchestrate
// calls to driven ports (adapters).
//
// The ingestion path is LoaderService -> chunker -> IngestService, which
// commits through KnowledgeBase. The query path is RetrievalService ->
// CitationService.
//
// Services are pure Go with no CGO or external dependencies.
package services
