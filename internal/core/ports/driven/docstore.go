package driven

import (
	"context"

	"github.com/custodia-labs/kbase/internal/core/domain"
)

// DocumentStore persists documents, chunks and index entries.
type DocumentStore interface {
	// Save stores a document with its chunks and index entries in one transaction.
	Save(ctx context.Context, doc *domain.Document, chunks []domain.Chunk, entries []domain.IndexEntry) error

	// GetDocument retrieves a document by ID.
	GetDocument(ctx context.Context, id string) (*domain.Document, error)

	// GetChunks retrieves all chunks for a document in sequence order.
	GetChunks(ctx context.Context, documentID string) ([]domain.Chunk, error)

	// ListDocuments returns every document with its chunk count, oldest first.
	ListDocuments(ctx context.Context) ([]domain.DocumentSummary, error)

	// LoadEntries returns every stored index entry in insertion order.
	LoadEntries(ctx context.Context) ([]domain.IndexEntry, error)

	// DeleteDocument removes a document, its chunks and its entries.
	// Unknown IDs fail with domain.ErrNotFound.
	DeleteDocument(ctx context.Context, id string) error

	// Space returns the persisted embedding space tag, zero if none.
	Space(ctx context.Context) (domain.EmbeddingSpace, error)

	// SetSpace persists the embedding space tag.
	SetSpace(ctx context.Context, space domain.EmbeddingSpace) error

	// Clear removes every document and the space tag.
	Clear(ctx context.Context) error
}
