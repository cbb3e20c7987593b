package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/kbase/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/kbase/internal/core/domain"
	"github.com/custodia-labs/kbase/internal/core/ports/driving"
	"github.com/custodia-labs/kbase/internal/normalisers"
	"github.com/custodia-labs/kbase/internal/postprocessors/chunker"
)

func TestIngestService_Ingest(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	src := h.page("https://climate.nasa.gov/causes/", "Causes",
		"Greenhouse gases trap heat in the atmosphere.",
		"Carbon dioxide from burning fossil fuels is the main driver of warming.",
		"Methane and nitrous oxide also contribute to the greenhouse effect.")

	doc, err := h.ingest.Ingest(ctx, src)
	require.NoError(t, err)
	require.NotNil(t, doc)

	chunks, err := h.kb.Chunks(ctx, doc.ID)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	assert.Equal(t, len(chunks), h.index.Len())

	count, err := h.search.Count()
	require.NoError(t, err)
	assert.Equal(t, uint64(len(chunks)), count)

	space, err := h.store.Space(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.EmbeddingSpace{Model: "hash-v1-64", Dimensions: 64}, space)
	assert.Equal(t, space, h.index.Space())
}

func TestIngestService_Load(t *testing.T) {
	h := newHarness(t)
	src := h.page("https://example.com/a", "A", "preview only")

	doc, err := h.ingest.Load(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, "A", doc.Title)
	assert.Zero(t, h.index.Len())
}

func TestIngestService_FailureLeavesNothing(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.ingest.Ingest(ctx, domain.URLSource("https://example.com/missing"))
	require.ErrorIs(t, err, domain.ErrHTTPStatus)

	docs, err := h.kb.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, docs)
	assert.Zero(t, h.index.Len())
}

func TestIngestService_EmbeddingFailure(t *testing.T) {
	embedder := &mockEmbeddingService{model: "broken", dims: 4, err: domain.ErrEmbeddingUnavailable}
	h := newHarnessWith(t, embedder, memory.NewDocumentStore())
	src := h.page("https://example.com/a", "A", "text to embed")

	_, err := h.ingest.Ingest(context.Background(), src)
	require.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)

	var srcErr *domain.SourceError
	require.True(t, errors.As(err, &srcErr))
	assert.Equal(t, "https://example.com/a", srcErr.Locator)
	assert.NotEmpty(t, srcErr.DocumentID)
	assert.Zero(t, h.index.Len())
}

func TestIngestService_CancelledContext(t *testing.T) {
	h := newHarness(t)
	src := h.page("https://example.com/a", "A", "text")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.ingest.Ingest(ctx, src)
	require.Error(t, err)

	docs, err := h.kb.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, docs)
	assert.Zero(t, h.index.Len())
}

func TestIngestService_SpaceMismatch(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.index.Bind(domain.EmbeddingSpace{Model: "other", Dimensions: 64}))
	src := h.page("https://example.com/a", "A", "text")

	_, err := h.ingest.Ingest(context.Background(), src)
	require.ErrorIs(t, err, domain.ErrEmbeddingMismatch)

	docs, err := h.kb.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestIngestService_KeywordIndexFailureRollsBack(t *testing.T) {
	h := newHarness(t)
	search := &mockSearchEngine{indexErr: errors.New("disk full")}
	h.kb = NewKnowledgeBase(h.store, h.index, search, h.embedder)
	ch, err := chunker.New()
	require.NoError(t, err)
	ingest := NewIngestService(NewLoaderService(h.fetcher, normalisers.NewDefaultRegistry()), ch, h.embedder, h.kb)
	src := h.page("https://example.com/a", "A", "text")

	_, err = ingest.Ingest(context.Background(), src)
	require.ErrorContains(t, err, "disk full")

	docs, err := h.kb.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, docs)
	assert.Zero(t, h.index.Len())
}

func TestIngestService_NoEmbedder(t *testing.T) {
	h := newHarness(t)
	ingest := NewIngestService(NewLoaderService(h.fetcher, normalisers.NewDefaultRegistry()), nil, nil, h.kb)

	_, err := ingest.Ingest(context.Background(), domain.URLSource("https://example.com"))
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
}

func TestIngestService_IngestAll(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	var sources []domain.Source
	for i := range 5 {
		url := fmt.Sprintf("https://example.com/%d", i)
		if i == 2 {
			sources = append(sources, domain.URLSource(url))
			continue
		}
		sources = append(sources, h.page(url, fmt.Sprintf("Page %d", i), "topic", fmt.Sprint(i)))
	}

	var (
		mu   sync.Mutex
		seen []string
	)
	outcomes := h.ingest.IngestAll(ctx, sources, func(o driving.IngestOutcome) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, o.Source.Locator)
	})

	require.Len(t, outcomes, 5)
	assert.Len(t, seen, 5)
	for i, o := range outcomes {
		assert.Equal(t, sources[i], o.Source)
		if i == 2 {
			assert.ErrorIs(t, o.Err, domain.ErrHTTPStatus)
			assert.Nil(t, o.Document)
			continue
		}
		require.NoError(t, o.Err)
		assert.Equal(t, sources[i].Locator, o.Document.Origin.Locator)
		assert.Positive(t, o.Chunks)
	}

	docs, err := h.kb.List(ctx)
	require.NoError(t, err)
	assert.Len(t, docs, 4)
}

func TestIngestService_IngestAllEmpty(t *testing.T) {
	h := newHarness(t)
	assert.Empty(t, h.ingest.IngestAll(context.Background(), nil, nil))
}

func TestIngestService_IngestAllBoundedWorkers(t *testing.T) {
	h := newHarness(t)
	h.fetcher.block = make(chan struct{})

	sources := make([]domain.Source, 6)
	for i := range sources {
		sources[i] = h.page(fmt.Sprintf("https://example.com/%d", i), "P", "text")
	}

	done := make(chan []driving.IngestOutcome)
	go func() { done <- h.ingest.IngestAll(context.Background(), sources, nil) }()

	// Three workers are blocked in Fetch; the rest wait for a free worker.
	require.Eventually(t, func() bool { return h.fetcher.calls.Load() == 3 }, timeout, tick)
	assert.Never(t, func() bool { return h.fetcher.calls.Load() > 3 }, 50*tick, tick)

	close(h.fetcher.block)
	outcomes := <-done
	for _, o := range outcomes {
		assert.NoError(t, o.Err)
	}
}
