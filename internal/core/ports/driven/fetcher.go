package driven

import (
	"context"

	"github.com/custodia-labs/kbase/internal/core/domain"
)

// Fetcher retrieves a URL's body and content type.
//
// Errors: network failures match domain.ErrFetch, deadline expiry matches
// domain.ErrFetchTimeout, non-2xx responses are *domain.HTTPStatusError.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*domain.RawDocument, error)
}
