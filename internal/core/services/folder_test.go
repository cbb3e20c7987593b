package services

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/kbase/internal/connectors/filesystem"
	"github.com/custodia-labs/kbase/internal/core/domain"
	"github.com/custodia-labs/kbase/internal/core/ports/driving"
	"github.com/custodia-labs/kbase/internal/normalisers"
	"github.com/custodia-labs/kbase/internal/normalisers/html"
	"github.com/custodia-labs/kbase/internal/normalisers/pdf"
	"github.com/custodia-labs/kbase/internal/postprocessors/chunker"
)

const pdfHeader = "%PDF-1.4\n"

// echoExtractor treats the bytes after the PDF header as a single page.
type echoExtractor struct{}

func (echoExtractor) Extract(_ context.Context, data []byte) ([]string, error) {
	return []string{strings.TrimPrefix(string(data), pdfHeader)}, nil
}

// fakeFileSource feeds changes from a channel and reads files from a map.
type fakeFileSource struct {
	root    string
	files   map[string]string
	changes chan domain.FileChange
	closed  bool
}

func (f *fakeFileSource) Root() string                           { return f.root }
func (f *fakeFileSource) Scan(context.Context) ([]string, error) { return nil, nil }
func (f *fakeFileSource) Matches(string) bool                    { return true }

func (f *fakeFileSource) Close() error {
	f.closed = true
	return nil
}

func (f *fakeFileSource) Watch(context.Context) (<-chan domain.FileChange, error) {
	return f.changes, nil
}

func (f *fakeFileSource) ReadFile(path string) ([]byte, error) {
	content, ok := f.files[path]
	if !ok {
		return nil, os.ErrNotExist
	}
	return []byte(pdfHeader + content), nil
}

func newFolderHarness(t *testing.T) (*harness, *FolderService) {
	t.Helper()
	h := newHarness(t)

	registry := normalisers.NewRegistry()
	registry.Register(pdf.NewWithExtractor(echoExtractor{}))
	registry.Register(html.New())
	ch, err := chunker.New(chunker.WithChunkSize(120), chunker.WithOverlap(20))
	require.NoError(t, err)
	h.ingest = NewIngestService(NewLoaderService(h.fetcher, registry), ch, h.embedder, h.kb)

	return h, NewFolderService(h.ingest, h.kb)
}

func writePDF(t *testing.T, path, text string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(pdfHeader+text), 0o644))
}

func mustRead(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return data
}

func locators(t *testing.T, kb *KnowledgeBase) []string {
	t.Helper()
	docs, err := kb.List(context.Background())
	require.NoError(t, err)
	out := make([]string, len(docs))
	for i := range docs {
		out[i] = docs[i].Document.Origin.Locator
	}
	return out
}

func TestFolderService_Sync(t *testing.T) {
	ctx := context.Background()

	t.Run("ingests new files once", func(t *testing.T) {
		h, folders := newFolderHarness(t)
		root := t.TempDir()
		a := filepath.Join(root, "arctic.pdf")
		b := filepath.Join(root, "reports", "sea-level.pdf")
		writePDF(t, a, "Arctic sea ice extent has declined sharply since 1979.")
		writePDF(t, b, "Global mean sea level rose about 20 centimetres since 1900.")
		require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), []byte("not a pdf"), 0o644))

		var seen int
		report, err := folders.Sync(ctx, filesystem.New(root), false, func(driving.IngestOutcome) { seen++ })
		require.NoError(t, err)
		require.Len(t, report.Ingested, 2)
		for _, o := range report.Ingested {
			assert.NoError(t, o.Err)
		}
		assert.Equal(t, 2, seen)
		assert.ElementsMatch(t, []string{a, b}, locators(t, h.kb))

		report, err = folders.Sync(ctx, filesystem.New(root), false, nil)
		require.NoError(t, err)
		assert.Empty(t, report.Ingested)
		assert.Equal(t, 2, report.Unchanged)
	})

	t.Run("prunes documents whose file is gone", func(t *testing.T) {
		h, folders := newFolderHarness(t)
		root := t.TempDir()
		keep := filepath.Join(root, "keep.pdf")
		gone := filepath.Join(root, "gone.pdf")
		writePDF(t, keep, "Permafrost thaw releases methane and carbon dioxide.")
		writePDF(t, gone, "Coral bleaching follows marine heatwaves.")

		_, err := folders.Sync(ctx, filesystem.New(root), false, nil)
		require.NoError(t, err)
		require.NoError(t, os.Remove(gone))

		report, err := folders.Sync(ctx, filesystem.New(root), false, nil)
		require.NoError(t, err)
		assert.Empty(t, report.Removed)
		assert.Len(t, locators(t, h.kb), 2)

		report, err = folders.Sync(ctx, filesystem.New(root), true, nil)
		require.NoError(t, err)
		assert.Len(t, report.Removed, 1)
		assert.Equal(t, []string{keep}, locators(t, h.kb))
	})

	t.Run("documents outside the root are untouched", func(t *testing.T) {
		h, folders := newFolderHarness(t)
		root := t.TempDir()
		_, err := h.ingest.Ingest(ctx, h.page("https://www.noaa.gov/", "NOAA", "ocean", "heat", "content"))
		require.NoError(t, err)
		elsewhere := filepath.Join(t.TempDir(), "elsewhere.pdf")
		writePDF(t, elsewhere, "Atlantic hurricanes intensify faster over warm water.")
		_, err = h.ingest.Ingest(ctx, domain.PDFSource(elsewhere, mustRead(t, elsewhere)))
		require.NoError(t, err)

		report, err := folders.Sync(ctx, filesystem.New(root), true, nil)
		require.NoError(t, err)
		assert.Empty(t, report.Removed)
		assert.ElementsMatch(t, []string{"https://www.noaa.gov/", elsewhere}, locators(t, h.kb))
	})

	t.Run("empty file is reported and others continue", func(t *testing.T) {
		h, folders := newFolderHarness(t)
		root := t.TempDir()
		writePDF(t, filepath.Join(root, "blank.pdf"), "   ")
		writePDF(t, filepath.Join(root, "ok.pdf"), "Glaciers lose mass every year.")

		report, err := folders.Sync(ctx, filesystem.New(root), false, nil)
		require.NoError(t, err)
		require.Len(t, report.Ingested, 2)
		assert.ErrorIs(t, report.Ingested[0].Err, domain.ErrEmptyContent)
		assert.NoError(t, report.Ingested[1].Err)
		assert.Len(t, locators(t, h.kb), 1)
	})

	t.Run("missing root", func(t *testing.T) {
		_, folders := newFolderHarness(t)

		_, err := folders.Sync(ctx, filesystem.New(filepath.Join(t.TempDir(), "nope")), false, nil)
		assert.Error(t, err)
	})
}

func TestFolderService_Watch(t *testing.T) {
	h, folders := newFolderHarness(t)
	root := "/papers"
	path := filepath.Join(root, "ice.pdf")
	src := &fakeFileSource{
		root:    root,
		files:   map[string]string{path: "Ice sheets in Greenland are losing mass."},
		changes: make(chan domain.FileChange, 4),
	}

	src.changes <- domain.FileChange{Type: domain.ChangeCreated, Path: path}
	src.changes <- domain.FileChange{Type: domain.ChangeUpdated, Path: path}
	src.changes <- domain.FileChange{Type: domain.ChangeCreated, Path: filepath.Join(root, "missing.pdf")}
	src.changes <- domain.FileChange{Type: domain.ChangeDeleted, Path: path}
	close(src.changes)

	var events []driving.FolderEvent
	err := folders.Watch(context.Background(), src, func(ev driving.FolderEvent) { events = append(events, ev) })
	assert.EqualError(t, err, "watcher stopped")
	require.Len(t, events, 4)
	assert.True(t, src.closed)

	created := events[0]
	require.NoError(t, created.Err)
	assert.NotEmpty(t, created.DocumentID)
	assert.Empty(t, created.Removed)

	updated := events[1]
	require.NoError(t, updated.Err)
	assert.NotEqual(t, created.DocumentID, updated.DocumentID)
	assert.Equal(t, []string{created.DocumentID}, updated.Removed)

	assert.ErrorIs(t, events[2].Err, os.ErrNotExist)

	deleted := events[3]
	require.NoError(t, deleted.Err)
	assert.Equal(t, []string{updated.DocumentID}, deleted.Removed)

	assert.Empty(t, locators(t, h.kb))
}
