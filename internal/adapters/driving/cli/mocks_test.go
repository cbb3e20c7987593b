package cli

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/custodia-labs/kbase/internal/core/domain"
	"github.com/custodia-labs/kbase/internal/core/ports/driven"
	"github.com/custodia-labs/kbase/internal/core/ports/driving"
)

// mockKnowledgeBase implements driving.KnowledgeBaseService over a slice.
type mockKnowledgeBase struct {
	docs    []domain.DocumentSummary
	chunks  map[string][]domain.Chunk
	initErr error

	initCalls  int
	clearCalls int
	removed    []string
}

func (m *mockKnowledgeBase) Init(context.Context) error {
	m.initCalls++
	return m.initErr
}

func (m *mockKnowledgeBase) Clear(context.Context) error {
	m.clearCalls++
	m.docs = nil
	return nil
}

func (m *mockKnowledgeBase) List(context.Context) ([]domain.DocumentSummary, error) {
	return m.docs, nil
}

func (m *mockKnowledgeBase) Get(_ context.Context, id string) (*domain.Document, error) {
	for i := range m.docs {
		if m.docs[i].Document.ID == id {
			doc := m.docs[i].Document
			return &doc, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockKnowledgeBase) Chunks(ctx context.Context, id string) ([]domain.Chunk, error) {
	if _, err := m.Get(ctx, id); err != nil {
		return nil, err
	}
	return m.chunks[id], nil
}

func (m *mockKnowledgeBase) Remove(ctx context.Context, id string) error {
	if _, err := m.Get(ctx, id); err != nil {
		return err
	}
	m.removed = append(m.removed, id)
	return nil
}

func (m *mockKnowledgeBase) Stats(context.Context) (*domain.Stats, error) {
	return &domain.Stats{
		TotalDocuments: len(m.docs),
		TotalChunks:    3,
		Sources:        len(m.docs),
		SourceList:     []string{"climate.nasa.gov", "ipcc.pdf"},
		Kinds:          []domain.OriginKind{domain.OriginPDF, domain.OriginWebPage},
		Space:          domain.EmbeddingSpace{Model: "hash-v1", Dimensions: 256},
	}, nil
}

// mockIngestService fails the locators listed in errs and succeeds otherwise.
type mockIngestService struct {
	errs    map[string]error
	sources []domain.Source
}

func (m *mockIngestService) Load(_ context.Context, src domain.Source) (*domain.Document, error) {
	return m.document(src), m.errs[src.Locator]
}

func (m *mockIngestService) Ingest(_ context.Context, src domain.Source) (*domain.Document, error) {
	m.sources = append(m.sources, src)
	if err := m.errs[src.Locator]; err != nil {
		return nil, err
	}
	return m.document(src), nil
}

func (m *mockIngestService) IngestAll(
	ctx context.Context,
	sources []domain.Source,
	progress func(driving.IngestOutcome),
) []driving.IngestOutcome {
	out := make([]driving.IngestOutcome, len(sources))
	for i, src := range sources {
		doc, err := m.Ingest(ctx, src)
		out[i] = driving.IngestOutcome{Source: src, Document: doc, Err: err}
		if err == nil {
			out[i].Chunks = 2
		}
		if progress != nil {
			progress(out[i])
		}
	}
	return out
}

func (m *mockIngestService) document(src domain.Source) *domain.Document {
	return &domain.Document{
		ID:         "id-" + src.DisplayName(),
		Origin:     domain.Origin{Kind: src.Kind, Locator: src.Locator},
		SourceName: src.DisplayName(),
	}
}

// mockRetrievalService returns canned results and records the options.
type mockRetrievalService struct {
	results  []domain.RetrievalResult
	err      error
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

type mockCitationService struct{}

func (mockCitationService) Format(r domain.RetrievalResult) domain.Citation {
	return domain.Citation{DocumentID: r.DocumentID, Label: "[" + r.SourceName + "]", Excerpt: r.Text}
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
	for i, r := range results {
		if i > 0 {
			ctx.Text += "\n\n"
		}
		ctx.Text += "Source: " + r.SourceName + "\n" + r.Text
		ctx.Sources = append(ctx.Sources, r.SourceName)
	}
	return ctx
}

// mockFolderService records the roots it was asked to sync.
type mockFolderService struct {
	synced []string
	report driving.FolderReport
}

func (m *mockFolderService) Sync(
	_ context.Context,
	src driven.FileSource,
	_ bool,
	progress func(driving.IngestOutcome),
) (*driving.FolderReport, error) {
	m.synced = append(m.synced, src.Root())
	for _, o := range m.report.Ingested {
		if progress != nil {
			progress(o)
		}
	}
	report := m.report
	return &report, nil
}

func (m *mockFolderService) Watch(context.Context, driven.FileSource, func(driving.FolderEvent)) error {
	return nil
}

// testServices holds the mocks installed by setupTestServices.
type testServices struct {
	kb        *mockKnowledgeBase
	ingest    *mockIngestService
	retrieval *mockRetrievalService
	folders   *mockFolderService
}

func sampleDocuments() []domain.DocumentSummary {
	retrieved := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return []domain.DocumentSummary{
		{
			Document: domain.Document{
				ID:          "doc-1",
				Origin:      domain.Origin{Kind: domain.OriginWebPage, Locator: "https://climate.nasa.gov/evidence/"},
				SourceName:  "climate.nasa.gov",
				Title:       "Evidence",
				RawText:     "Global temperature rose about 1.1C.",
				Metadata:    map[string]any{"content_type": "text/html"},
				RetrievedAt: retrieved,
			},
			ChunkCount: 2,
		},
		{
			Document: domain.Document{
				ID:          "doc-2",
				Origin:      domain.Origin{Kind: domain.OriginPDF, Locator: "/papers/ipcc.pdf"},
				SourceName:  "ipcc.pdf",
				RawText:     "Summary for policymakers.",
				Metadata:    map[string]any{"page_count": 2},
				RetrievedAt: retrieved,
			},
			ChunkCount: 1,
		},
	}
}

// setupTestServices installs mock services and returns a restore function.
func setupTestServices() (*testServices, func()) {
	ts := &testServices{
		kb: &mockKnowledgeBase{
			docs: sampleDocuments(),
			chunks: map[string][]domain.Chunk{
				"doc-1": {
					{ID: "c1", DocumentID: "doc-1", Text: "Global temperature", Span: domain.Span{Start: 0, End: 18}},
					{ID: "c2", DocumentID: "doc-1", Text: "rose about 1.1C.", Span: domain.Span{Start: 19, End: 35}, Sequence: 1},
				},
			},
		},
		ingest: &mockIngestService{errs: map[string]error{}},
		retrieval: &mockRetrievalService{
			results: []domain.RetrievalResult{{
				ChunkID:    "c1",
				DocumentID: "doc-1",
				Score:      0.912,
				Origin:     domain.Origin{Kind: domain.OriginWebPage, Locator: "https://climate.nasa.gov/evidence/"},
				SourceName: "climate.nasa.gov",
				Text:       "Global temperature rose about 1.1C.",
			}},
		},
		folders: &mockFolderService{},
	}

	SetServices(&Services{
		Ingest:        ts.ingest,
		Retrieval:     ts.retrieval,
		Citations:     mockCitationService{},
		KnowledgeBase: ts.kb,
		Folders:       ts.folders,
	})
	return ts, func() { SetServices(&Services{}) }
}

// execute runs the root command with args and returns its output.
// Flags are reset first so values do not leak between tests.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetIn(new(bytes.Buffer))
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)

	err := rootCmd.Execute()
	return buf.String(), err
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}
