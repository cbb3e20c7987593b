// Package memory provides an exact in-memory vector index.
//
// Search is brute force over every entry. Entries are kept in insertion
// order, so equal scores resolve to the earlier insertion.
package memory

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"slices"
	"sync"

	"github.com/custodia-labs/kbase/internal/core/domain"
	"github.com/custodia-labs/kbase/internal/core/ports/driven"
)

// Ensure Index implements the interface.
var _ driven.VectorIndex = (*Index)(nil)

// Index is a thread-safe exact vector index.
type Index struct {
	mu      sync.RWMutex
	metric  domain.Metric
	space   domain.EmbeddingSpace
	entries []domain.IndexEntry // ascending Seq
	byChunk map[string]int      // chunk ID -> position in entries
	docs    map[string]int      // document ID -> entry count
	nextSeq uint64
	closed  bool
}

// Option configures an Index.
type Option func(*Index)

// WithMetric sets the similarity metric. Default cosine.
func WithMetric(m domain.Metric) Option {
	return func(idx *Index) {
		idx.metric = m
	}
}

// New creates an empty, unbound index.
func New(opts ...Option) (*Index, error) {
	idx := &Index{
		metric:  domain.MetricCosine,
		byChunk: make(map[string]int),
		docs:    make(map[string]int),
	}
	for _, opt := range opts {
		opt(idx)
	}
	if !idx.metric.IsValid() {
		return nil, fmt.Errorf("%w: unknown metric %q", domain.ErrConfig, idx.metric)
	}
	return idx, nil
}

// Metric returns the similarity metric.
func (idx *Index) Metric() domain.Metric {
	return idx.metric
}

// Bind fixes the embedding space.
func (idx *Index) Bind(space domain.EmbeddingSpace) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.bind(space)
}

func (idx *Index) bind(space domain.EmbeddingSpace) error {
	if space.IsZero() || space.Dimensions <= 0 {
		return fmt.Errorf("%w: invalid embedding space %s", domain.ErrInvalidInput, space)
	}
	if idx.space.IsZero() {
		idx.space = space
		return nil
	}
	if idx.space != space {
		return &domain.MismatchError{Index: idx.space, Query: space}
	}
	return nil
}

// Space returns the bound embedding space.
func (idx *Index) Space() domain.EmbeddingSpace {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.space
}

// AddDocument inserts all entries of one document under a single write lock.
func (idx *Index) AddDocument(ctx context.Context, space domain.EmbeddingSpace, entries []domain.IndexEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(entries) == 0 {
		return fmt.Errorf("%w: no entries", domain.ErrInvalidInput)
	}
	docID := entries[0].DocumentID
	for _, e := range entries {
		if e.DocumentID != docID {
			return fmt.Errorf("%w: entries span documents %s and %s", domain.ErrInvalidInput, docID, e.DocumentID)
		}
		if len(e.Vector) != space.Dimensions {
			return &domain.MismatchError{
				Index: space,
				Query: domain.EmbeddingSpace{Model: space.Model, Dimensions: len(e.Vector)},
			}
		}
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.closed {
		return fmt.Errorf("%w: index is closed", domain.ErrInvalidInput)
	}
	if _, exists := idx.docs[docID]; exists {
		return fmt.Errorf("%w: document %s already indexed", domain.ErrInvalidInput, docID)
	}
	for _, e := range entries {
		if _, exists := idx.byChunk[e.ChunkID]; exists {
			return fmt.Errorf("%w: chunk %s already indexed", domain.ErrInvalidInput, e.ChunkID)
		}
	}
	if err := idx.bind(space); err != nil {
		return err
	}

	for _, e := range entries {
		idx.nextSeq++
		e.Seq = idx.nextSeq
		e.Vector = slices.Clone(e.Vector)
		idx.byChunk[e.ChunkID] = len(idx.entries)
		idx.entries = append(idx.entries, e)
	}
	idx.docs[docID] = len(entries)
	return nil
}

// RemoveDocument deletes every entry of documentID under a single write lock.
func (idx *Index) RemoveDocument(ctx context.Context, documentID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	count, ok := idx.docs[documentID]
	if !ok {
		return 0, fmt.Errorf("%w: document %s", domain.ErrNotFound, documentID)
	}

	before := len(idx.entries)
	idx.entries = slices.DeleteFunc(idx.entries, func(e domain.IndexEntry) bool {
		return e.DocumentID == documentID
	})
	removed := before - len(idx.entries)
	if removed != count {
		return removed, fmt.Errorf("index corrupted: document %s had %d entries, removed %d", documentID, count, removed)
	}

	delete(idx.docs, documentID)
	clear(idx.byChunk)
	for i, e := range idx.entries {
		idx.byChunk[e.ChunkID] = i
	}
	return removed, nil
}

// Search scores every entry against query and returns the best k.
func (idx *Index) Search(ctx context.Context, space domain.EmbeddingSpace, query []float32, k int) ([]driven.VectorHit, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", domain.ErrConfig, k)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if len(idx.entries) == 0 {
		return nil, nil
	}
	if space != idx.space {
		return nil, &domain.MismatchError{Index: idx.space, Query: space}
	}
	if len(query) != idx.space.Dimensions {
		return nil, &domain.MismatchError{
			Index: idx.space,
			Query: domain.EmbeddingSpace{Model: space.Model, Dimensions: len(query)},
		}
	}

	hits := make([]driven.VectorHit, len(idx.entries))
	for i, e := range idx.entries {
		hits[i] = driven.VectorHit{Entry: e, Score: Score(idx.metric, query, e.Vector)}
	}
	slices.SortStableFunc(hits, compareHits)
	return hits[:min(k, len(hits))], nil
}

// compareHits orders by descending score, then ascending insertion order.
func compareHits(a, b driven.VectorHit) int {
	if c := cmp.Compare(b.Score, a.Score); c != 0 {
		return c
	}
	return cmp.Compare(a.Entry.Seq, b.Entry.Seq)
}

// Lookup returns the entries present for chunkIDs, in the order given.
func (idx *Index) Lookup(_ context.Context, chunkIDs []string) []domain.IndexEntry {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	out := make([]domain.IndexEntry, 0, len(chunkIDs))
	for _, id := range chunkIDs {
		if pos, ok := idx.byChunk[id]; ok {
			out = append(out, idx.entries[pos])
		}
	}
	return out
}

// Len returns the number of entries.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.entries)
}

// Documents returns the number of indexed documents.
func (idx *Index) Documents() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.docs)
}

// Reset drops every entry and unbinds the space. Sequence numbers keep
// increasing across resets.
func (idx *Index) Reset() {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.entries = nil
	clear(idx.byChunk)
	clear(idx.docs)
	idx.space = domain.EmbeddingSpace{}
}

// Close releases resources. Further writes fail.
func (idx *Index) Close() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.closed = true
	return nil
}

// Score computes the similarity of a and b under metric m. Higher is closer.
// Vectors must have equal length.
func Score(m domain.Metric, a, b []float32) float64 {
	switch m {
	case domain.MetricDot:
		return dot(a, b)
	case domain.MetricEuclidean:
		var sum float64
		for i := range a {
			d := float64(a[i]) - float64(b[i])
			sum += d * d
		}
		return 1 / (1 + math.Sqrt(sum))
	default:
		na, nb := math.Sqrt(dot(a, a)), math.Sqrt(dot(b, b))
		if na == 0 || nb == 0 {
			return 0
		}
		return dot(a, b) / (na * nb)
	}
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
