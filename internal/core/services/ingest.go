package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/custodia-labs/kbase/internal/core/domain"
	"github.com/custodia-labs/kbase/internal/core/ports/driven"
	"github.com/custodia-labs/kbase/internal/core/ports/driving"
	"github.com/custodia-labs/kbase/internal/logger"
)

// Ensure IngestService implements the interface.
var _ driving.IngestService = (*IngestService)(nil)

// DefaultWorkers is the number of sources IngestAll processes at once.
const DefaultWorkers = 4

// IngestService runs the ingestion path: load, chunk, embed, commit.
type IngestService struct {
	loader   *LoaderService
	chunker  driven.Chunker
	embedder driven.EmbeddingService
	kb       *KnowledgeBase
	workers  int
}

// IngestOption configures an IngestService.
type IngestOption func(*IngestService)

// WithWorkers sets the IngestAll worker count. Values below 1 are ignored.
func WithWorkers(n int) IngestOption {
	return func(s *IngestService) {
		if n > 0 {
			s.workers = n
		}
	}
}

// NewIngestService creates an ingestion service.
func NewIngestService(
	loader *LoaderService,
	chunker driven.Chunker,
	embedder driven.EmbeddingService,
	kb *KnowledgeBase,
	opts ...IngestOption,
) *IngestService {
	s := &IngestService{
		loader:   loader,
		chunker:  chunker,
		embedder: embedder,
		kb:       kb,
		workers:  DefaultWorkers,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load turns a source into a Document without storing it.
func (s *IngestService) Load(ctx context.Context, source domain.Source) (*domain.Document, error) {
	return s.loader.Load(ctx, source)
}

// Ingest loads, chunks, embeds and commits one source.
// Network and embedding calls happen before any lock is taken; on failure
// nothing of the source is visible.
func (s *IngestService) Ingest(ctx context.Context, source domain.Source) (*domain.Document, error) {
	doc, _, err := s.ingest(ctx, source)
	return doc, err
}

func (s *IngestService) ingest(ctx context.Context, source domain.Source) (*domain.Document, int, error) {
	if s.embedder == nil {
		return nil, 0, &domain.SourceError{Locator: source.Locator, Err: domain.ErrEmbeddingUnavailable}
	}

	doc, err := s.loader.Load(ctx, source)
	if err != nil {
		return nil, 0, err
	}
	logger.Debug("Loaded %s: %d runes, title %q", doc.Origin.Locator, len([]rune(doc.RawText)), doc.Title)

	wrap := func(err error) error {
		return &domain.SourceError{Locator: source.Locator, DocumentID: doc.ID, Err: err}
	}

	chunks, err := s.chunker.Chunk(ctx, doc)
	if err != nil {
		return nil, 0, wrap(fmt.Errorf("chunk: %w", err))
	}
	if len(chunks) == 0 {
		return nil, 0, wrap(fmt.Errorf("%w: no chunks produced", domain.ErrEmptyContent))
	}
	logger.Debug("Chunked %s into %d chunks (%s)", doc.ID, len(chunks), s.chunker.Name())

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, 0, wrap(fmt.Errorf("embed: %w", err))
	}
	if len(vectors) != len(chunks) {
		return nil, 0, wrap(fmt.Errorf("%w: %d vectors for %d chunks",
			domain.ErrEmbeddingUnavailable, len(vectors), len(chunks)))
	}

	entries := make([]domain.IndexEntry, len(chunks))
	for i, c := range chunks {
		entries[i] = domain.NewIndexEntry(doc, c, vectors[i])
	}

	space := domain.EmbeddingSpace{Model: s.embedder.ModelName(), Dimensions: s.embedder.Dimensions()}
	if err := s.kb.commit(ctx, doc, chunks, entries, space); err != nil {
		return nil, 0, wrap(err)
	}

	logger.Info("Ingested %s as %s (%d chunks)", doc.Origin.Locator, doc.ID, len(chunks))
	return doc, len(chunks), nil
}

// IngestAll ingests sources on a bounded worker pool. Outcomes are returned
// in input order; a failing source never stops the others.
func (s *IngestService) IngestAll(
	ctx context.Context,
	sources []domain.Source,
	progress func(driving.IngestOutcome),
) []driving.IngestOutcome {
	outcomes := make([]driving.IngestOutcome, len(sources))
	if len(sources) == 0 {
		return outcomes
	}

	jobs := make(chan int)
	var (
		wg         sync.WaitGroup
		progressMu sync.Mutex
	)

	workers := min(s.workers, len(sources))
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				doc, n, err := s.ingest(ctx, sources[i])
				if err != nil {
					logger.Warn("Ingest failed: %v", err)
				}
				outcomes[i] = driving.IngestOutcome{Source: sources[i], Document: doc, Chunks: n, Err: err}
				if progress != nil {
					progressMu.Lock()
					progress(outcomes[i])
					progressMu.Unlock()
				}
			}
		}()
	}

	for i := range sources {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return outcomes
}
