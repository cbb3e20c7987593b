package driving

import (
	"context"

	"github.com/custodia-labs/kbase/internal/core/domain"
)

// IngestService loads, chunks and indexes sources.
type IngestService interface {
	// Load turns a source into a Document without storing it.
	Load(ctx context.Context, source domain.Source) (*domain.Document, error)

	// Ingest loads, chunks, embeds and indexes one source.
	// On failure nothing of the source is visible in the knowledge base.
	Ingest(ctx context.Context, source domain.Source) (*domain.Document, error)

	// IngestAll ingests sources concurrently. A failure affects only its own source.
	// progress, if non-nil, is called once per finished source.
	IngestAll(ctx context.Context, sources []domain.Source, progress func(IngestOutcome)) []IngestOutcome
}

// IngestOutcome is the result of ingesting one source.
type IngestOutcome struct {
	Source   domain.Source
	Document *domain.Document
	Chunks   int
	Err      error
}
