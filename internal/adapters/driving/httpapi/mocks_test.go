package httpapi

import (
	"context"

	"github.com/custodia-labs/kbase/internal/core/domain"
	"github.com/custodia-labs/kbase/internal/core/ports/driving"
)

type mockRetrievalService struct {
	results []domain.RetrievalResult
	err     error

	lastQuery string
	lastOpts  domain.RetrievalOptions
}

func (m *mockRetrievalService) Retrieve(
	_ context.Context,
	query string,
	opts domain.RetrievalOptions,
) ([]domain.RetrievalResult, error) {
	m.lastQuery = query
	m.lastOpts = opts
	return m.results, m.err
}

type mockCitationService struct{}

func (mockCitationService) Format(r domain.RetrievalResult) domain.Citation {
	return domain.Citation{DocumentID: r.DocumentID, Label: r.SourceName + " (" + r.Origin.Locator + ")", Excerpt: r.Text}
}

func (m mockCitationService) FormatAll(results []domain.RetrievalResult) []domain.Citation {
	out := make([]domain.Citation, len(results))
	for i, r := range results {
		out[i] = m.Format(r)
	}
	return out
}

func (m mockCitationService) BuildContext(results []domain.RetrievalResult) domain.Context {
	ctx := domain.Context{Citations: m.FormatAll(results)}
	for _, r := range results {
		ctx.Text += r.Text
		ctx.Sources = append(ctx.Sources, r.SourceName)
	}
	return ctx
}

// mockKnowledgeBase keeps documents and chunks in memory.
type mockKnowledgeBase struct {
	docs   []domain.DocumentSummary
	chunks map[string][]domain.Chunk
	err    error

	removed []string
}

func (m *mockKnowledgeBase) Init(context.Context) error  { return m.err }
func (m *mockKnowledgeBase) Clear(context.Context) error { return m.err }

func (m *mockKnowledgeBase) List(context.Context) ([]domain.DocumentSummary, error) {
	return m.docs, m.err
}

func (m *mockKnowledgeBase) find(id string) (*domain.Document, error) {
	if m.err != nil {
		return nil, m.err
	}
	for i := range m.docs {
		if m.docs[i].Document.ID == id {
			doc := m.docs[i].Document
			return &doc, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockKnowledgeBase) Get(_ context.Context, id string) (*domain.Document, error) {
	return m.find(id)
}

func (m *mockKnowledgeBase) Chunks(_ context.Context, id string) ([]domain.Chunk, error) {
	if _, err := m.find(id); err != nil {
		return nil, err
	}
	return m.chunks[id], nil
}

func (m *mockKnowledgeBase) Remove(_ context.Context, id string) error {
	if _, err := m.find(id); err != nil {
		return err
	}
	m.removed = append(m.removed, id)
	return nil
}

func (m *mockKnowledgeBase) Stats(context.Context) (*domain.Stats, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &domain.Stats{
		TotalDocuments: len(m.docs),
		Kinds:          []domain.OriginKind{domain.OriginWebPage},
		Space:          domain.EmbeddingSpace{Model: "hash-v1", Dimensions: 256},
	}, nil
}

type mockIngestService struct {
	doc    *domain.Document
	chunks int
	err    error

	sources []domain.Source
}

func (m *mockIngestService) Load(context.Context, domain.Source) (*domain.Document, error) {
	return m.doc, m.err
}

func (m *mockIngestService) Ingest(_ context.Context, src domain.Source) (*domain.Document, error) {
	m.sources = append(m.sources, src)
	return m.doc, m.err
}

func (m *mockIngestService) IngestAll(
	_ context.Context,
	sources []domain.Source,
	_ func(driving.IngestOutcome),
) []driving.IngestOutcome {
	out := make([]driving.IngestOutcome, len(sources))
	for i, src := range sources {
		m.sources = append(m.sources, src)
		out[i] = driving.IngestOutcome{Source: src, Document: m.doc, Chunks: m.chunks, Err: m.err}
	}
	return out
}
