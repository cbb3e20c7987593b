package driven

import (
	"context"

	"github.com/custodia-labs/kbase/internal/core/domain"
)

// VectorIndex stores index entries and answers nearest-neighbour queries.
//
// The index carries an embedding space tag. The first AddDocument fixes it
// unless Bind was called; afterwards every vector must come from that space.
type VectorIndex interface {
	// Bind fixes the index's embedding space. Binding an already bound index
	// to a different space fails with domain.ErrEmbeddingMismatch.
	Bind(space domain.EmbeddingSpace) error

	// Space returns the bound embedding space, zero if unbound.
	Space() domain.EmbeddingSpace

	// AddDocument inserts all entries of one document in a single step.
	// Readers see either none or all of them.
	AddDocument(ctx context.Context, space domain.EmbeddingSpace, entries []domain.IndexEntry) error

	// RemoveDocument deletes every entry of a document in a single step and
	// returns how many were removed. Unknown documents fail with domain.ErrNotFound.
	RemoveDocument(ctx context.Context, documentID string) (int, error)

	// Search returns at most k entries ordered by descending score, ties by
	// insertion order. An empty index returns no hits and no error.
	Search(ctx context.Context, space domain.EmbeddingSpace, query []float32, k int) ([]VectorHit, error)

	// Lookup returns the entries for the given chunk IDs that are present.
	Lookup(ctx context.Context, chunkIDs []string) []domain.IndexEntry

	// Len returns the number of entries.
	Len() int

	// Reset drops every entry and unbinds the space.
	Reset()

	// Close releases resources.
	Close() error
}

// VectorHit represents a similarity search result.
type VectorHit struct {
	// Entry is the matched index entry.
	Entry domain.IndexEntry

	// Score is the similarity under the index metric (higher = closer).
	Score float64
}
