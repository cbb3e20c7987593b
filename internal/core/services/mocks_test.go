package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/kbase/internal/adapters/driven/embedding/hash"
	"github.com/custodia-labs/kbase/internal/adapters/driven/search/bleve"
	"github.com/custodia-labs/kbase/internal/adapters/driven/storage/memory"
	vectormemory "github.com/custodia-labs/kbase/internal/adapters/driven/vectorindex/memory"
	"github.com/custodia-labs/kbase/internal/core/domain"
	"github.com/custodia-labs/kbase/internal/core/ports/driven"
	"github.com/custodia-labs/kbase/internal/normalisers"
	"github.com/custodia-labs/kbase/internal/postprocessors/chunker"
)

// --- Mock implementations ---

// mockFetcher implements driven.Fetcher by serving canned pages keyed by URL.
type mockFetcher struct {
	mu    sync.Mutex
	pages map[string]*domain.RawDocument
	errs  map[string]error
	calls atomic.Int32

	// block, if set, is waited on before returning.
	block chan struct{}
}

func newMockFetcher() *mockFetcher {
	return &mockFetcher{
		pages: make(map[string]*domain.RawDocument),
		errs:  make(map[string]error),
	}
}

func (m *mockFetcher) html(url, title, body string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pages[url] = &domain.RawDocument{
		Locator:  url,
		MIMEType: "text/html; charset=utf-8",
		Content:  []byte("<html><head><title>" + title + "</title></head><body><p>" + body + "</p></body></html>"),
		Metadata: map[string]any{"status_code": 200},
	}
}

func (m *mockFetcher) fail(url string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[url] = err
}

func (m *mockFetcher) Fetch(ctx context.Context, url string) (*domain.RawDocument, error) {
	m.calls.Add(1)
	if m.block != nil {
		select {
		case <-m.block:
		case <-ctx.Done():
			return nil, errors.Join(domain.ErrFetch, ctx.Err())
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.errs[url]; ok {
		return nil, err
	}
	if page, ok := m.pages[url]; ok {
		return page, nil
	}
	return nil, &domain.HTTPStatusError{URL: url, StatusCode: 404}
}

// mockEmbeddingService implements driven.EmbeddingService with a fixed model tag
// and an optional error.
type mockEmbeddingService struct {
	model string
	dims  int
	err   error
}

func (m *mockEmbeddingService) Embed(_ context.Context, text string) ([]float32, error) {
	if m.err != nil {
		return nil, m.err
	}
	vec := make([]float32, m.dims)
	for i := range vec {
		vec[i] = float32(len(text)%7 + i)
	}
	return vec, nil
}

func (m *mockEmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := m.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (m *mockEmbeddingService) Dimensions() int { return m.dims }
func (m *mockEmbeddingService) ModelName() string { return m.model }
func (m *mockEmbeddingService) Ping(context.Context) error { return m.err }
func (m *mockEmbeddingService) Close() error { return nil }

// mockSearchEngine implements driven.SearchEngine with canned hits.
type mockSearchEngine struct {
	hits      []driven.SearchHit
	searchErr error
	indexErr  error
}

func (m *mockSearchEngine) Index(context.Context, []domain.Chunk) error { return m.indexErr }
func (m *mockSearchEngine) DeleteDocument(context.Context, string) error { return nil }
func (m *mockSearchEngine) Reset(context.Context) error { return nil }
func (m *mockSearchEngine) Close() error { return nil }

func (m *mockSearchEngine) Search(_ context.Context, _ string, limit int) ([]driven.SearchHit, error) {
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	return m.hits[:min(limit, len(m.hits))], nil
}

// --- Fixture ---

// harness wires real in-memory adapters behind the services.
type harness struct {
	fetcher   *mockFetcher
	store     *memory.DocumentStore
	index     *vectormemory.Index
	search    *bleve.Engine
	embedder  driven.EmbeddingService
	kb        *KnowledgeBase
	ingest    *IngestService
	retrieval *RetrievalService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWith(t, hash.NewEmbeddingService(64), memory.NewDocumentStore())
}

func newHarnessWith(t *testing.T, embedder driven.EmbeddingService, store *memory.DocumentStore) *harness {
	t.Helper()

	index, err := vectormemory.New()
	require.NoError(t, err)
	search, err := bleve.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = search.Close() })

	ch, err := chunker.New(chunker.WithChunkSize(120), chunker.WithOverlap(20))
	require.NoError(t, err)

	h := &harness{
		fetcher:  newMockFetcher(),
		store:    store,
		index:    index,
		search:   search,
		embedder: embedder,
	}
	h.kb = NewKnowledgeBase(store, index, search, embedder)
	loader := NewLoaderService(h.fetcher, normalisers.NewDefaultRegistry())
	h.ingest = NewIngestService(loader, ch, embedder, h.kb, WithWorkers(3))
	h.retrieval = NewRetrievalService(index, search, embedder)
	return h
}

// page adds a web page and returns its source.
func (h *harness) page(url, title string, words ...string) domain.Source {
	h.fetcher.html(url, title, strings.Join(words, " "))
	return domain.URLSource(url)
}

// stubExtractor implements pdf.TextExtractor with fixed pages.
type stubExtractor struct {
	pages []string
}

func (s stubExtractor) Extract(context.Context, []byte) ([]string, error) {
	return s.pages, nil
}

const (
	timeout = 2 * time.Second
	tick    = time.Millisecond
)
