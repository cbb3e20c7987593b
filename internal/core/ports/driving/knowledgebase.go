package driving

import (
	"context"

	"github.com/custodia-labs/kbase/internal/core/domain"
)

// KnowledgeBaseService manages the lifecycle and contents of the knowledge base.
type KnowledgeBaseService interface {
	// Init prepares an empty knowledge base, restoring persisted state if any.
	Init(ctx context.Context) error

	// Clear removes every document and unbinds the embedding space.
	Clear(ctx context.Context) error

	// List returns every document with its chunk count.
	List(ctx context.Context) ([]domain.DocumentSummary, error)

	// Get retrieves a document by ID.
	Get(ctx context.Context, documentID string) (*domain.Document, error)

	// Chunks returns a document's chunks in sequence order.
	Chunks(ctx context.Context, documentID string) ([]domain.Chunk, error)

	// Remove deletes a document and everything derived from it.
	// Unknown IDs fail with domain.ErrNotFound.
	Remove(ctx context.Context, documentID string) error

	// Stats summarises the knowledge base.
	Stats(ctx context.Context) (*domain.Stats, error)
}
