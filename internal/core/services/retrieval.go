package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/custodia-labs/kbase/internal/core/domain"
	"github.com/custodia-labs/kbase/internal/core/ports/driven"
	"github.com/custodia-labs/kbase/internal/core/ports/driving"
	"github.com/custodia-labs/kbase/internal/logger"
)

// Ensure RetrievalService implements the interface.
var _ driving.RetrievalService = (*RetrievalService)(nil)

const (
	// rrfK is the reciprocal rank fusion constant.
	rrfK = 60

	// candidateFactor widens keyword and hybrid candidate lists so that
	// filtering removed or low-scoring chunks still leaves k results.
	candidateFactor = 3
)

// scoredEntry holds an index entry and its score before conversion to a result.
type scoredEntry struct {
	entry domain.IndexEntry
	score float64
}

// RetrievalService answers queries against the knowledge base.
type RetrievalService struct {
	index    driven.VectorIndex
	search   driven.SearchEngine
	embedder driven.EmbeddingService
}

// NewRetrievalService creates a retrieval service. search may be nil, in which
// case keyword mode fails and hybrid mode degrades to semantic.
func NewRetrievalService(
	index driven.VectorIndex,
	search driven.SearchEngine,
	embedder driven.EmbeddingService,
) *RetrievalService {
	return &RetrievalService{
		index:    index,
		search:   search,
		embedder: embedder,
	}
}

// Retrieve returns at most opts.K results by descending score, ties by insertion order.
func (s *RetrievalService) Retrieve(
	ctx context.Context, query string, opts domain.RetrievalOptions,
) ([]domain.RetrievalResult, error) {
	if opts.K <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", domain.ErrConfig, opts.K)
	}
	mode := opts.Mode
	if mode == "" {
		mode = domain.RetrievalSemantic
	}
	if !mode.IsValid() {
		return nil, fmt.Errorf("%w: unknown retrieval mode %q", domain.ErrConfig, opts.Mode)
	}

	if s.index.Len() == 0 {
		logger.Debug("Empty index, returning no results")
		return []domain.RetrievalResult{}, nil
	}

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: empty query", domain.ErrInvalidInput)
	}

	if mode == domain.RetrievalHybrid && s.search == nil {
		logger.Warn("Keyword index unavailable, hybrid retrieval degrades to semantic")
		mode = domain.RetrievalSemantic
	}
	logger.Debug("Retrieve: query=%q k=%d mode=%s min_score=%g", query, opts.K, mode, opts.MinScore)

	var (
		scored []scoredEntry
		err    error
	)
	switch mode {
	case domain.RetrievalKeyword:
		scored, err = s.keyword(ctx, query, opts.K*candidateFactor)
	case domain.RetrievalHybrid:
		scored, err = s.hybrid(ctx, query, opts.K*candidateFactor)
	default:
		scored, err = s.semantic(ctx, query, opts.K)
	}
	if err != nil {
		logger.Warn("Retrieve failed: %v", err)
		return nil, err
	}

	results := make([]domain.RetrievalResult, 0, min(len(scored), opts.K))
	for _, se := range scored {
		if opts.MinScore != 0 && se.score < opts.MinScore {
			continue
		}
		results = append(results, domain.ResultFromEntry(se.entry, se.score))
		if len(results) == opts.K {
			break
		}
	}

	logger.Debug("Retrieve: %d results", len(results))
	return results, nil
}

// semantic embeds the query and runs a nearest-neighbour search.
func (s *RetrievalService) semantic(ctx context.Context, query string, k int) ([]scoredEntry, error) {
	if s.embedder == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}

	space := domain.EmbeddingSpace{Model: s.embedder.ModelName(), Dimensions: s.embedder.Dimensions()}
	if bound := s.index.Space(); !bound.IsZero() && bound != space {
		return nil, &domain.MismatchError{Index: bound, Query: space}
	}

	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	hits, err := s.index.Search(ctx, space, vec, k)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	out := make([]scoredEntry, len(hits))
	for i, h := range hits {
		out[i] = scoredEntry{entry: h.Entry, score: h.Score}
	}
	return out, nil
}

// keyword runs a BM25 search and keeps only chunks still in the vector index.
// Scores are divided by the best score so they fall in (0, 1].
func (s *RetrievalService) keyword(ctx context.Context, query string, limit int) ([]scoredEntry, error) {
	if s.search == nil {
		return nil, domain.ErrSearchUnavailable
	}

	hits, err := s.search.Search(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}
	if len(hits) == 0 {
		return nil, nil
	}

	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.ChunkID
	}
	entries := s.index.Lookup(ctx, ids)
	byChunk := make(map[string]domain.IndexEntry, len(entries))
	for _, e := range entries {
		byChunk[e.ChunkID] = e
	}

	best := hits[0].Score
	for _, h := range hits {
		best = max(best, h.Score)
	}

	out := make([]scoredEntry, 0, len(entries))
	for _, h := range hits {
		e, ok := byChunk[h.ChunkID]
		if !ok {
			continue
		}
		score := 1.0
		if best > 0 {
			score = h.Score / best
		}
		out = append(out, scoredEntry{entry: e, score: score})
	}
	sortScored(out)
	return out, nil
}

// hybrid fuses semantic and keyword rankings with reciprocal rank fusion.
func (s *RetrievalService) hybrid(ctx context.Context, query string, limit int) ([]scoredEntry, error) {
	semantic, err := s.semantic(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	keyword, err := s.keyword(ctx, query, limit)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		logger.Warn("Hybrid retrieval: keyword search failed, using semantic results only: %v", err)
		return semantic, nil
	}
	return reciprocalRankFusion(rrfK, semantic, keyword), nil
}

// reciprocalRankFusion merges ranked lists; each appearance at rank r adds 1/(k+r+1).
// Fused scores are divided by the best attainable sum, len(lists)/(k+1), so a
// chunk ranked first in every list scores 1 and every score is in (0, 1].
func reciprocalRankFusion(k int, lists ...[]scoredEntry) []scoredEntry {
	scores := make(map[string]float64)
	entries := make(map[string]domain.IndexEntry)
	for _, list := range lists {
		for rank, se := range list {
			scores[se.entry.ChunkID] += 1.0 / float64(k+rank+1)
			entries[se.entry.ChunkID] = se.entry
		}
	}

	ceiling := float64(len(lists)) / float64(k+1)
	out := make([]scoredEntry, 0, len(scores))
	for id, score := range scores {
		out = append(out, scoredEntry{entry: entries[id], score: score / ceiling})
	}
	sortScored(out)
	return out
}

// sortScored orders by descending score, then by insertion order.
func sortScored(s []scoredEntry) {
	slices.SortStableFunc(s, func(a, b scoredEntry) int {
		switch {
		case a.score > b.score:
			return -1
		case a.score < b.score:
			return 1
		case a.entry.Seq < b.entry.Seq:
			return -1
		case a.entry.Seq > b.entry.Seq:
			return 1
		default:
			return 0
		}
	})
}
