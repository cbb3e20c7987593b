package driven

import (
	"context"

	"github.com/custodia-labs/kbase/internal/core/domain"
)

// SearchEngine provides full-text search over chunk text.
// Backed by bleve for BM25 keyword search.
type SearchEngine interface {
	// Index adds or updates chunks in the search index.
	Index(ctx context.Context, chunks []domain.Chunk) error

	// DeleteDocument removes every chunk of a document from the search index.
	DeleteDocument(ctx context.Context, documentID string) error

	// Search performs a keyword search and returns matching chunk IDs with scores.
	Search(ctx context.Context, query string, limit int) ([]SearchHit, error)

	// Reset drops every indexed chunk.
	Reset(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// SearchHit represents a search result from the engine.
type SearchHit struct {
	// ChunkID is the matched chunk.
	ChunkID string

	// Score is the relevance score (BM25).
	Score float64
}
