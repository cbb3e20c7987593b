package driven

import (
	"context"

	"github.com/custodia-labs/kbase/internal/core/domain"
)

// Normaliser extracts plain text from raw bytes.
// Each normaliser handles specific MIME types (e.g., PDF, HTML).
type Normaliser interface {
	// SupportedMIMETypes returns the MIME types this normaliser handles.
	SupportedMIMETypes() []string

	// Priority returns the selection priority (higher = preferred).
	// Format-specific normalisers should return 50-89.
	// Fallback normalisers should return 1-9.
	Priority() int

	// Normalise extracts text from a raw document.
	// Unparseable input fails with domain.ErrFormat.
	Normalise(ctx context.Context, raw *domain.RawDocument) (*domain.NormaliseResult, error)
}

// NormaliserRegistry selects the appropriate normaliser for a document.
type NormaliserRegistry interface {
	// Normalise transforms a raw document using the best matching normaliser.
	// Unsupported MIME types fail with domain.ErrFormat.
	Normalise(ctx context.Context, raw *domain.RawDocument) (*domain.NormaliseResult, error)

	// Register adds a normaliser to the registry.
	Register(normaliser Normaliser)

	// SupportedMIMETypes returns all MIME types that can be normalised.
	SupportedMIMETypes() []string
}
