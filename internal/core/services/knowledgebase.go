package services

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync"

	"github.com/custodia-labs/kbase/internal/core/domain"
	"github.com/custodia-labs/kbase/internal/core/ports/driven"
	"github.com/custodia-labs/kbase/internal/core/ports/driving"
	"github.com/custodia-labs/kbase/internal/logger"
)

// Ensure KnowledgeBase implements the interface.
var _ driving.KnowledgeBaseService = (*KnowledgeBase)(nil)

// KnowledgeBase is the process state shared by ingestion and retrieval:
// the document store, the vector index and the optional keyword index.
// Writes to all three go through commit and Remove, which are serialised
// so every store sees documents in the same order.
type KnowledgeBase struct {
	store    driven.DocumentStore
	index    driven.VectorIndex
	search   driven.SearchEngine
	embedder driven.EmbeddingService

	mu sync.Mutex
}

// NewKnowledgeBase creates a knowledge base. search may be nil.
func NewKnowledgeBase(
	store driven.DocumentStore,
	index driven.VectorIndex,
	search driven.SearchEngine,
	embedder driven.EmbeddingService,
) *KnowledgeBase {
	return &KnowledgeBase{
		store:    store,
		index:    index,
		search:   search,
		embedder: embedder,
	}
}

// EmbedderSpace returns the space of the configured embedding service.
func (kb *KnowledgeBase) EmbedderSpace() domain.EmbeddingSpace {
	if kb.embedder == nil {
		return domain.EmbeddingSpace{}
	}
	return domain.EmbeddingSpace{Model: kb.embedder.ModelName(), Dimensions: kb.embedder.Dimensions()}
}

// Init rebuilds the in-memory indexes from the document store.
// A persisted space that differs from the embedder's fails with
// domain.ErrEmbeddingMismatch before anything is loaded.
func (kb *KnowledgeBase) Init(ctx context.Context) error {
	kb.mu.Lock()
	defer kb.mu.Unlock()

	logger.Section("Knowledge Base Init")

	persisted, err := kb.store.Space(ctx)
	if err != nil {
		return fmt.Errorf("read space: %w", err)
	}
	current := kb.EmbedderSpace()
	if !persisted.IsZero() && persisted != current {
		return &domain.MismatchError{Index: persisted, Query: current}
	}

	kb.index.Reset()
	if kb.search != nil {
		if err := kb.search.Reset(ctx); err != nil {
			return fmt.Errorf("reset keyword index: %w", err)
		}
	}
	if !persisted.IsZero() {
		if err := kb.index.Bind(persisted); err != nil {
			return err
		}
	}

	entries, err := kb.store.LoadEntries(ctx)
	if err != nil {
		return fmt.Errorf("load entries: %w", err)
	}

	restore := persisted
	if restore.IsZero() {
		restore = current
	}

	docs := 0
	for group := range groupByDocument(entries) {
		if err := kb.index.AddDocument(ctx, restore, group); err != nil {
			return fmt.Errorf("restore document %s: %w", group[0].DocumentID, err)
		}
		if kb.search != nil {
			if err := kb.search.Index(ctx, chunksFromEntries(group)); err != nil {
				return fmt.Errorf("restore keyword index for %s: %w", group[0].DocumentID, err)
			}
		}
		docs++
	}

	logger.Info("Restored %d documents (%d entries), space %s", docs, len(entries), kb.index.Space())
	return nil
}

// Clear removes every document from every store and unbinds the space.
func (kb *KnowledgeBase) Clear(ctx context.Context) error {
	kb.mu.Lock()
	defer kb.mu.Unlock()

	if err := kb.store.Clear(ctx); err != nil {
		return fmt.Errorf("clear store: %w", err)
	}
	kb.index.Reset()
	if kb.search != nil {
		if err := kb.search.Reset(ctx); err != nil {
			return fmt.Errorf("clear keyword index: %w", err)
		}
	}
	logger.Info("Knowledge base cleared")
	return nil
}

// List returns every document with its chunk count, oldest first.
func (kb *KnowledgeBase) List(ctx context.Context) ([]domain.DocumentSummary, error) {
	return kb.store.ListDocuments(ctx)
}

// Get retrieves a document by ID.
func (kb *KnowledgeBase) Get(ctx context.Context, documentID string) (*domain.Document, error) {
	return kb.store.GetDocument(ctx, documentID)
}

// Chunks returns a document's chunks in sequence order.
func (kb *KnowledgeBase) Chunks(ctx context.Context, documentID string) ([]domain.Chunk, error) {
	return kb.store.GetChunks(ctx, documentID)
}

// Remove deletes a document from the store, then from the vector and keyword
// indexes. The store goes first: if it fails, nothing changes and the
// document stays visible, so a restart cannot bring back a removed document.
func (kb *KnowledgeBase) Remove(ctx context.Context, documentID string) error {
	kb.mu.Lock()
	defer kb.mu.Unlock()

	if err := kb.store.DeleteDocument(ctx, documentID); err != nil {
		return fmt.Errorf("remove %s: %w", documentID, err)
	}

	// The store no longer holds the document; finish even if ctx is cancelled.
	ctx = context.WithoutCancel(ctx)

	n, err := kb.index.RemoveDocument(ctx, documentID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("remove %s from vector index: %w", documentID, err)
	}
	if kb.search != nil {
		// Keyword hits are filtered through the vector index, and the keyword
		// index is rebuilt from the store at Init, so a leftover is harmless.
		if err := kb.search.DeleteDocument(ctx, documentID); err != nil {
			logger.Warn("Removing %s from keyword index: %v", documentID, err)
		}
	}

	logger.Info("Removed document %s (%d entries)", documentID, n)
	return nil
}

// Stats summarises the knowledge base.
func (kb *KnowledgeBase) Stats(ctx context.Context) (*domain.Stats, error) {
	docs, err := kb.store.ListDocuments(ctx)
	if err != nil {
		return nil, err
	}

	stats := &domain.Stats{TotalDocuments: len(docs), Space: kb.index.Space()}
	seenSource := make(map[string]bool)
	seenKind := make(map[domain.OriginKind]bool)
	for _, d := range docs {
		stats.TotalChunks += d.ChunkCount
		if !seenSource[d.Document.SourceName] {
			seenSource[d.Document.SourceName] = true
			stats.SourceList = append(stats.SourceList, d.Document.SourceName)
		}
		if !seenKind[d.Document.Origin.Kind] {
			seenKind[d.Document.Origin.Kind] = true
			stats.Kinds = append(stats.Kinds, d.Document.Origin.Kind)
		}
	}
	stats.Sources = len(stats.SourceList)
	return stats, nil
}

// commit makes one ingested document visible. The store is written first;
// if a later index step fails, the earlier ones are rolled back.
func (kb *KnowledgeBase) commit(
	ctx context.Context,
	doc *domain.Document,
	chunks []domain.Chunk,
	entries []domain.IndexEntry,
	space domain.EmbeddingSpace,
) error {
	kb.mu.Lock()
	defer kb.mu.Unlock()

	// Last chance to honour cancellation before anything becomes visible.
	if err := ctx.Err(); err != nil {
		return err
	}

	// A space mismatch must fail before the store is touched.
	if bound := kb.index.Space(); !bound.IsZero() && bound != space {
		return &domain.MismatchError{Index: bound, Query: space}
	}

	// The store and indexes must not be half-written by a cancellation past this point.
	ctx = context.WithoutCancel(ctx)

	if err := kb.store.Save(ctx, doc, chunks, entries); err != nil {
		return fmt.Errorf("save: %w", err)
	}

	if err := kb.index.AddDocument(ctx, space, entries); err != nil {
		return errors.Join(fmt.Errorf("index: %w", err), kb.store.DeleteDocument(ctx, doc.ID))
	}

	if kb.search != nil {
		if err := kb.search.Index(ctx, chunks); err != nil {
			_, rmErr := kb.index.RemoveDocument(ctx, doc.ID)
			return errors.Join(
				fmt.Errorf("keyword index: %w", err),
				rmErr,
				kb.search.DeleteDocument(ctx, doc.ID),
				kb.store.DeleteDocument(ctx, doc.ID),
			)
		}
	}

	persisted, err := kb.store.Space(ctx)
	if err != nil {
		return fmt.Errorf("read space: %w", err)
	}
	if persisted.IsZero() {
		if err := kb.store.SetSpace(ctx, space); err != nil {
			return fmt.Errorf("persist space: %w", err)
		}
	}
	return nil
}

// groupByDocument yields consecutive runs of entries sharing a document ID.
func groupByDocument(entries []domain.IndexEntry) iter.Seq[[]domain.IndexEntry] {
	return func(yield func([]domain.IndexEntry) bool) {
		start := 0
		for i := 1; i <= len(entries); i++ {
			if i == len(entries) || entries[i].DocumentID != entries[start].DocumentID {
				if !yield(entries[start:i]) {
					return
				}
				start = i
			}
		}
	}
}

// chunksFromEntries rebuilds chunks from entry snapshots.
func chunksFromEntries(entries []domain.IndexEntry) []domain.Chunk {
	chunks := make([]domain.Chunk, len(entries))
	for i, e := range entries {
		chunks[i] = domain.Chunk{
			ID:         e.ChunkID,
			DocumentID: e.DocumentID,
			Text:       e.Snapshot.Text,
			Span:       e.Snapshot.Span,
			Sequence:   e.Snapshot.Sequence,
		}
	}
	return chunks
}
