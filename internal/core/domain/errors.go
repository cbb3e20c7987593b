package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent ingestion and retrieval failures.
// Match them with errors.Is; adapters wrap them with context.
var (
	// ErrNotFound indicates a requested document does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid caller input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrFormat indicates a source could not be parsed.
	ErrFormat = errors.New("unparseable source")

	// ErrFetch indicates a network failure while fetching a URL.
	ErrFetch = errors.New("fetch failed")

	// ErrFetchTimeout indicates a fetch exceeded its deadline.
	// It also matches ErrFetch.
	ErrFetchTimeout = fmt.Errorf("%w: timed out", ErrFetch)

	// ErrHTTPStatus indicates a fetch completed with a non-2xx status.
	ErrHTTPStatus = errors.New("unexpected http status")

	// ErrEmptyContent indicates a source produced no text to index.
	ErrEmptyContent = errors.New("empty content")

	// ErrConfig indicates invalid chunking or retrieval parameters.
	ErrConfig = errors.New("invalid configuration")

	// ErrEmbeddingMismatch indicates the query and index vector spaces differ.
	ErrEmbeddingMismatch = errors.New("embedding space mismatch")

	// ErrEmbeddingUnavailable indicates the embedding service is not configured.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrSearchUnavailable indicates the keyword index is not configured.
	ErrSearchUnavailable = errors.New("keyword index unavailable")
)

// HTTPStatusError reports a non-2xx response. It matches ErrHTTPStatus.
type HTTPStatusError struct {
	URL        string
	StatusCode int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("%s: %s returned %d", ErrHTTPStatus, e.URL, e.StatusCode)
}

// Is reports whether target is ErrHTTPStatus.
func (e *HTTPStatusError) Is(target error) bool {
	return target == ErrHTTPStatus
}

// SourceError attaches the source locator and document ID to an ingestion failure.
type SourceError struct {
	Locator    string
	DocumentID string
	Err        error
}

func (e *SourceError) Error() string {
	if e.DocumentID != "" {
		return fmt.Sprintf("%s (document %s): %v", e.Locator, e.DocumentID, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Locator, e.Err)
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

// MismatchError details an embedding space mismatch. It matches ErrEmbeddingMismatch.
type MismatchError struct {
	Index EmbeddingSpace
	Query EmbeddingSpace
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("%s: index is %s, query is %s", ErrEmbeddingMismatch, e.Index, e.Query)
}

// Is reports whether target is ErrEmbeddingMismatch.
func (e *MismatchError) Is(target error) bool {
	return target == ErrEmbeddingMismatch
}
