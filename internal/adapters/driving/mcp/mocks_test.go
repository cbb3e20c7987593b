package mcp

import (
	"context"

	"github.com/custodia-labs/kbase/internal/core/domain"
	"github.com/custodia-labs/kbase/internal/core/ports/driving"
)

// mockRetrievalService is a mock implementation of driving.RetrievalService.
type mockRetrievalService struct {
	results []domain.RetrievalResult
	err     error

	// lastOpts records the options of the most recent call.
	lastOpts domain.RetrievalOptions
}

func (m *mockRetrievalService) Retrieve(
	_ context.Context,
	_ string,
	opts domain.RetrievalOptions,
) ([]domain.RetrievalResult, error) {
	m.lastOpts = opts
	return m.results, m.err
}

// mockCitationService labels every result "label-<document id>".
type mockCitationService struct{}

func (mockCitationService) Format(r domain.RetrievalResult) domain.Citation {
	return domain.Citation{DocumentID: r.DocumentID, Label: "label-" + r.DocumentID, Excerpt: r.Text}
}

func (m mockCitationService) FormatAll(results []domain.RetrievalResult) []domain.Citation {
	out := make([]domain.Citation, len(results))
	for i, r := range results {
		out[i] = m.Format(r)
	}
	return out
}

func (m mockCitationService) BuildContext(results []domain.RetrievalResult) domain.Context {
	return domain.Context{Text: "context", Citations: m.FormatAll(results)}
}

// mockKnowledgeBase is a mock implementation of driving.KnowledgeBaseService.
type mockKnowledgeBase struct {
	docs []domain.DocumentSummary
	err  error
}

func (m *mockKnowledgeBase) Init(context.Context) error  { return m.err }
func (m *mockKnowledgeBase) Clear(context.Context) error { return m.err }

func (m *mockKnowledgeBase) List(context.Context) ([]domain.DocumentSummary, error) {
	return m.docs, m.err
}

func (m *mockKnowledgeBase) Get(_ context.Context, id string) (*domain.Document, error) {
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

func (m *mockKnowledgeBase) Chunks(context.Context, string) ([]domain.Chunk, error) {
	return nil, m.err
}

func (m *mockKnowledgeBase) Remove(context.Context, string) error { return m.err }

func (m *mockKnowledgeBase) Stats(context.Context) (*domain.Stats, error) {
	return &domain.Stats{TotalDocuments: len(m.docs)}, m.err
}

// mockIngestService is a mock implementation of driving.IngestService.
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
