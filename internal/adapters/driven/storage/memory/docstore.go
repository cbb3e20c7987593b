// Package memory provides an in-memory driven.DocumentStore for runs
// without a database and for tests.
package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/custodia-labs/kbase/internal/core/domain"
	"github.com/custodia-labs/kbase/internal/core/ports/driven"
)

// Ensure DocumentStore implements the interface.
var _ driven.DocumentStore = (*DocumentStore)(nil)

type record struct {
	doc     domain.Document
	chunks  []domain.Chunk
	entries []domain.IndexEntry
}

// DocumentStore is an in-memory implementation of driven.DocumentStore.
type DocumentStore struct {
	mu    sync.RWMutex
	docs  map[string]*record
	order []string // document IDs, oldest first
	space domain.EmbeddingSpace
}

// NewDocumentStore creates a new in-memory document store.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{docs: make(map[string]*record)}
}

// Save stores a document with its chunks and entries.
func (s *DocumentStore) Save(ctx context.Context, doc *domain.Document, chunks []domain.Chunk, entries []domain.IndexEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if doc == nil || doc.ID == "" {
		return fmt.Errorf("%w: document without ID", domain.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.docs[doc.ID]; exists {
		return fmt.Errorf("%w: document %s already stored", domain.ErrInvalidInput, doc.ID)
	}

	stored := *doc
	stored.Metadata = maps.Clone(doc.Metadata)
	s.docs[doc.ID] = &record{
		doc:     stored,
		chunks:  slices.Clone(chunks),
		entries: slices.Clone(entries),
	}
	s.order = append(s.order, doc.ID)
	return nil
}

// GetDocument retrieves a document by ID.
func (s *DocumentStore) GetDocument(_ context.Context, id string) (*domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.docs[id]
	if !ok {
		return nil, fmt.Errorf("%w: document %s", domain.ErrNotFound, id)
	}
	doc := rec.doc
	doc.Metadata = maps.Clone(rec.doc.Metadata)
	return &doc, nil
}

// GetChunks retrieves all chunks for a document in sequence order.
func (s *DocumentStore) GetChunks(_ context.Context, documentID string) ([]domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.docs[documentID]
	if !ok {
		return nil, fmt.Errorf("%w: document %s", domain.ErrNotFound, documentID)
	}
	return slices.Clone(rec.chunks), nil
}

// ListDocuments returns every document with its chunk count, oldest first.
func (s *DocumentStore) ListDocuments(_ context.Context) ([]domain.DocumentSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.DocumentSummary, 0, len(s.order))
	for _, id := range s.order {
		rec := s.docs[id]
		out = append(out, domain.DocumentSummary{Document: rec.doc, ChunkCount: len(rec.chunks)})
	}
	return out, nil
}

// LoadEntries returns every entry, oldest document first.
func (s *DocumentStore) LoadEntries(_ context.Context) ([]domain.IndexEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.IndexEntry
	for _, id := range s.order {
		out = append(out, s.docs[id].entries...)
	}
	return out, nil
}

// DeleteDocument removes a document, its chunks and its entries.
func (s *DocumentStore) DeleteDocument(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[id]; !ok {
		return fmt.Errorf("%w: document %s", domain.ErrNotFound, id)
	}
	delete(s.docs, id)
	s.order = slices.DeleteFunc(s.order, func(v string) bool { return v == id })
	return nil
}

// Space returns the stored embedding space tag.
func (s *DocumentStore) Space(context.Context) (domain.EmbeddingSpace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.space, nil
}

// SetSpace stores the embedding space tag.
func (s *DocumentStore) SetSpace(_ context.Context, space domain.EmbeddingSpace) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.space = space
	return nil
}

// Clear removes every document and the space tag.
func (s *DocumentStore) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.docs)
	s.order = nil
	s.space = domain.EmbeddingSpace{}
	return nil
}
