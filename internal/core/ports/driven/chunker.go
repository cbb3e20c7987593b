package driven

import (
	"context"

	"github.com/custodia-labs/kbase/internal/core/domain"
)

// Chunker splits a document's text into overlapping windows.
type Chunker interface {
	// Name returns the chunker name for logging.
	Name() string

	// Chunk returns the document's chunks in sequence order.
	// The result is deterministic for a given document and configuration.
	Chunk(ctx context.Context, doc *domain.Document) ([]domain.Chunk, error)
}
