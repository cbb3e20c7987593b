// Package bleve provides keyword search over chunk text using an in-memory
// bleve index.
//
// The index is rebuilt from the document store at startup, so nothing is
// written to disk.
package bleve

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	blevesearch "github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/custodia-labs/kbase/internal/core/domain"
	"github.com/custodia-labs/kbase/internal/core/ports/driven"
)

// Ensure Engine implements the interface.
var _ driven.SearchEngine = (*Engine)(nil)

const (
	fieldDocumentID = "document_id"
	fieldText       = "text"

	// deletePageSize bounds each lookup when deleting a document's chunks.
	deletePageSize = 1000
)

// chunkDoc is the indexed form of a chunk.
type chunkDoc struct {
	DocumentID string `json:"document_id"`
	Text       string `json:"text"`
}

// Engine is a bleve-backed driven.SearchEngine.
type Engine struct {
	mu    sync.RWMutex
	index blevesearch.Index
}

// New creates an empty in-memory engine.
func New() (*Engine, error) {
	idx, err := blevesearch.NewMemOnly(buildIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("create bleve index: %w", err)
	}
	return &Engine{index: idx}, nil
}

func buildIndexMapping() mapping.IndexMapping {
	indexMapping := blevesearch.NewIndexMapping()
	indexMapping.DefaultAnalyzer = "en"
	indexMapping.DefaultField = fieldText

	docMapping := blevesearch.NewDocumentMapping()

	textField := blevesearch.NewTextFieldMapping()
	textField.Store = false
	textField.Index = true
	docMapping.AddFieldMappingsAt(fieldText, textField)

	docField := blevesearch.NewTextFieldMapping()
	docField.Store = true
	docField.Index = true
	docField.Analyzer = "keyword"
	docMapping.AddFieldMappingsAt(fieldDocumentID, docField)

	indexMapping.DefaultMapping = docMapping
	return indexMapping
}

// Index adds or replaces chunks in one batch.
func (e *Engine) Index(ctx context.Context, chunks []domain.Chunk) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(chunks) == 0 {
		return nil
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.index == nil {
		return errors.New("bleve: engine is closed")
	}

	batch := e.index.NewBatch()
	for _, c := range chunks {
		if err := batch.Index(c.ID, chunkDoc{DocumentID: c.DocumentID, Text: c.Text}); err != nil {
			return fmt.Errorf("bleve: index chunk %s: %w", c.ID, err)
		}
	}
	if err := e.index.Batch(batch); err != nil {
		return fmt.Errorf("bleve: apply batch: %w", err)
	}
	return nil
}

// DeleteDocument removes every chunk belonging to documentID.
func (e *Engine) DeleteDocument(ctx context.Context, documentID string) error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.index == nil {
		return errors.New("bleve: engine is closed")
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		ids, err := e.findChunkIDs(documentID)
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		batch := e.index.NewBatch()
		for _, id := range ids {
			batch.Delete(id)
		}
		if err := e.index.Batch(batch); err != nil {
			return fmt.Errorf("bleve: delete document %s: %w", documentID, err)
		}
		if len(ids) < deletePageSize {
			return nil
		}
	}
}

func (e *Engine) findChunkIDs(documentID string) ([]string, error) {
	query := blevesearch.NewTermQuery(documentID)
	query.SetField(fieldDocumentID)
	req := blevesearch.NewSearchRequestOptions(query, deletePageSize, 0, false)
	req.Fields = []string{fieldDocumentID}

	res, err := e.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("bleve: find chunks of %s: %w", documentID, err)
	}
	ids := make([]string, 0, len(res.Hits))
	for _, hit := range res.Hits {
		if val, ok := hit.Fields[fieldDocumentID].(string); ok && val == documentID {
			ids = append(ids, hit.ID)
		}
	}
	return ids, nil
}

// Search runs a match query over chunk text.
func (e *Engine) Search(ctx context.Context, query string, limit int) ([]driven.SearchHit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	query = strings.TrimSpace(query)
	if query == "" || limit <= 0 {
		return nil, nil
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.index == nil {
		return nil, errors.New("bleve: engine is closed")
	}

	match := blevesearch.NewMatchQuery(query)
	match.SetField(fieldText)
	req := blevesearch.NewSearchRequestOptions(match, limit, 0, false)

	res, err := e.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("bleve: search: %w", err)
	}
	hits := make([]driven.SearchHit, 0, len(res.Hits))
	for _, hit := range res.Hits {
		hits = append(hits, driven.SearchHit{ChunkID: hit.ID, Score: hit.Score})
	}
	return hits, nil
}

// Count returns the number of indexed chunks.
func (e *Engine) Count() (uint64, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.index == nil {
		return 0, errors.New("bleve: engine is closed")
	}
	return e.index.DocCount()
}

// Reset replaces the index with an empty one.
func (e *Engine) Reset(context.Context) error {
	fresh, err := blevesearch.NewMemOnly(buildIndexMapping())
	if err != nil {
		return fmt.Errorf("create bleve index: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.index != nil {
		_ = e.index.Close()
	}
	e.index = fresh
	return nil
}

// Close releases the index.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.index == nil {
		return nil
	}
	err := e.index.Close()
	e.index = nil
	return err
}
