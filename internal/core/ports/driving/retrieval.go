package driving

import (
	"context"

	"github.com/custodia-labs/kbase/internal/core/domain"
)

// RetrievalService answers queries against the knowledge base.
type RetrievalService interface {
	// Retrieve returns at most opts.K results by descending score.
	// An empty index yields an empty result and no error.
	Retrieve(ctx context.Context, query string, opts domain.RetrievalOptions) ([]domain.RetrievalResult, error)
}

// CitationService turns retrieval results into human-readable references.
type CitationService interface {
	// Format renders a single result.
	Format(result domain.RetrievalResult) domain.Citation

	// FormatAll renders a result set, disambiguating documents that share a locator.
	FormatAll(results []domain.RetrievalResult) []domain.Citation

	// BuildContext renders the retrieved-knowledge block for a generator prompt.
	BuildContext(results []domain.RetrievalResult) domain.Context
}
