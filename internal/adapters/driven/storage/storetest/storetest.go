// Package storetest holds behaviour tests shared by every
// driven.DocumentStore implementation.
package storetest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/kbase/internal/core/domain"
	"github.com/custodia-labs/kbase/internal/core/ports/driven"
)

// Fixture builds a document with n chunks and matching 2-d entries.
func Fixture(id string, n int) (*domain.Document, []domain.Chunk, []domain.IndexEntry) {
	doc := &domain.Document{
		ID:          id,
		Origin:      domain.Origin{Kind: domain.OriginWebPage, Locator: "https://example.com/" + id},
		SourceName:  "example.com",
		Title:       "Title " + id,
		RawText:     "raw text of " + id,
		Metadata:    map[string]any{"format": "html", "status_code": float64(200)},
		RetrievedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	chunks := make([]domain.Chunk, n)
	entries := make([]domain.IndexEntry, n)
	for i := range n {
		chunks[i] = domain.Chunk{
			ID:         fmt.Sprintf("%s-c%d", id, i),
			DocumentID: id,
			Text:       fmt.Sprintf("chunk %d of %s", i, id),
			Span:       domain.Span{Start: i * 10, End: i*10 + 12},
			Sequence:   i,
		}
		entries[i] = domain.NewIndexEntry(doc, chunks[i], []float32{float32(i), 0.5})
	}
	return doc, chunks, entries
}

// Run exercises store. newStore must return an empty store.
func Run(t *testing.T, newStore func(t *testing.T) driven.DocumentStore) {
	ctx := context.Background()

	t.Run("save and get", func(t *testing.T) {
		store := newStore(t)
		doc, chunks, entries := Fixture("doc-1", 3)
		require.NoError(t, store.Save(ctx, doc, chunks, entries))

		got, err := store.GetDocument(ctx, "doc-1")
		require.NoError(t, err)
		assert.Equal(t, doc.ID, got.ID)
		assert.Equal(t, doc.Origin, got.Origin)
		assert.Equal(t, doc.SourceName, got.SourceName)
		assert.Equal(t, doc.Title, got.Title)
		assert.Equal(t, doc.RawText, got.RawText)
		assert.Equal(t, "html", got.Metadata["format"])
		assert.True(t, doc.RetrievedAt.Equal(got.RetrievedAt))

		gotChunks, err := store.GetChunks(ctx, "doc-1")
		require.NoError(t, err)
		assert.Equal(t, chunks, gotChunks)
	})

	t.Run("duplicate save rejected", func(t *testing.T) {
		store := newStore(t)
		doc, chunks, entries := Fixture("doc-1", 1)
		require.NoError(t, store.Save(ctx, doc, chunks, entries))
		assert.ErrorIs(t, store.Save(ctx, doc, chunks, entries), domain.ErrInvalidInput)
	})

	t.Run("missing document", func(t *testing.T) {
		store := newStore(t)
		_, err := store.GetDocument(ctx, "missing")
		assert.ErrorIs(t, err, domain.ErrNotFound)
		_, err = store.GetChunks(ctx, "missing")
		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.ErrorIs(t, store.DeleteDocument(ctx, "missing"), domain.ErrNotFound)
	})

	t.Run("list oldest first", func(t *testing.T) {
		store := newStore(t)
		for i, id := range []string{"b", "a", "c"} {
			doc, chunks, entries := Fixture(id, i+1)
			require.NoError(t, store.Save(ctx, doc, chunks, entries))
		}

		list, err := store.ListDocuments(ctx)
		require.NoError(t, err)
		require.Len(t, list, 3)
		assert.Equal(t, "b", list[0].Document.ID)
		assert.Equal(t, 1, list[0].ChunkCount)
		assert.Equal(t, "a", list[1].Document.ID)
		assert.Equal(t, 2, list[1].ChunkCount)
		assert.Equal(t, "c", list[2].Document.ID)
		assert.Equal(t, 3, list[2].ChunkCount)
	})

	t.Run("entries in insertion order", func(t *testing.T) {
		store := newStore(t)
		d1, c1, e1 := Fixture("z", 2)
		d2, c2, e2 := Fixture("y", 2)
		require.NoError(t, store.Save(ctx, d1, c1, e1))
		require.NoError(t, store.Save(ctx, d2, c2, e2))

		entries, err := store.LoadEntries(ctx)
		require.NoError(t, err)
		require.Len(t, entries, 4)
		assert.Equal(t, []string{"z-c0", "z-c1", "y-c0", "y-c1"}, []string{
			entries[0].ChunkID, entries[1].ChunkID, entries[2].ChunkID, entries[3].ChunkID,
		})
		assert.Equal(t, e2[1].Vector, entries[3].Vector)
		assert.Equal(t, e2[1].Snapshot.Text, entries[3].Snapshot.Text)
		assert.Equal(t, e2[1].Snapshot.Span, entries[3].Snapshot.Span)
		assert.Equal(t, e2[1].Snapshot.Origin, entries[3].Snapshot.Origin)
		assert.True(t, e2[1].Snapshot.RetrievedAt.Equal(entries[3].Snapshot.RetrievedAt))
	})

	t.Run("delete removes exactly one document", func(t *testing.T) {
		store := newStore(t)
		d1, c1, e1 := Fixture("keep", 2)
		d2, c2, e2 := Fixture("drop", 3)
		require.NoError(t, store.Save(ctx, d1, c1, e1))
		require.NoError(t, store.Save(ctx, d2, c2, e2))

		require.NoError(t, store.DeleteDocument(ctx, "drop"))

		_, err := store.GetDocument(ctx, "drop")
		assert.ErrorIs(t, err, domain.ErrNotFound)

		entries, err := store.LoadEntries(ctx)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		for _, e := range entries {
			assert.Equal(t, "keep", e.DocumentID)
		}

		list, err := store.ListDocuments(ctx)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, "keep", list[0].Document.ID)
	})

	t.Run("space tag", func(t *testing.T) {
		store := newStore(t)
		space, err := store.Space(ctx)
		require.NoError(t, err)
		assert.True(t, space.IsZero())

		want := domain.EmbeddingSpace{Model: "hash-v1", Dimensions: 384}
		require.NoError(t, store.SetSpace(ctx, want))
		space, err = store.Space(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, space)
	})

	t.Run("clear", func(t *testing.T) {
		store := newStore(t)
		doc, chunks, entries := Fixture("doc", 2)
		require.NoError(t, store.Save(ctx, doc, chunks, entries))
		require.NoError(t, store.SetSpace(ctx, domain.EmbeddingSpace{Model: "m", Dimensions: 2}))

		require.NoError(t, store.Clear(ctx))

		list, err := store.ListDocuments(ctx)
		require.NoError(t, err)
		assert.Empty(t, list)
		entriesAfter, err := store.LoadEntries(ctx)
		require.NoError(t, err)
		assert.Empty(t, entriesAfter)
		space, err := store.Space(ctx)
		require.NoError(t, err)
		assert.True(t, space.IsZero())
	})
}
