package services

import (
	"context"
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/kbase/internal/core/domain"
	"github.com/custodia-labs/kbase/internal/core/ports/driven"
	"github.com/custodia-labs/kbase/internal/logger"
)

const mimePDF = "application/pdf"

// LoaderService turns sources into Documents.
type LoaderService struct {
	fetcher  driven.Fetcher
	registry driven.NormaliserRegistry
	now      func() time.Time
}

// NewLoaderService creates a loader. The fetcher may be nil, in which case
// web sources fail with domain.ErrFetch.
func NewLoaderService(fetcher driven.Fetcher, registry driven.NormaliserRegistry) *LoaderService {
	return &LoaderService{
		fetcher:  fetcher,
		registry: registry,
		now:      time.Now,
	}
}

// Load fetches (for URLs) and normalises a source into a Document with a fresh ID.
// Errors are *domain.SourceError carrying the locator.
func (l *LoaderService) Load(ctx context.Context, source domain.Source) (*domain.Document, error) {
	doc, err := l.load(ctx, source)
	if err != nil {
		return nil, &domain.SourceError{Locator: source.Locator, Err: err}
	}
	return doc, nil
}

func (l *LoaderService) load(ctx context.Context, source domain.Source) (*domain.Document, error) {
	raw, err := l.raw(ctx, source)
	if err != nil {
		return nil, err
	}

	logger.Debug("Normalising %s (%s, %d bytes)", raw.Locator, raw.MIMEType, len(raw.Content))
	result, err := l.registry.Normalise(ctx, raw)
	if err != nil {
		return nil, err
	}

	text := strings.TrimSpace(result.Text)
	if text == "" {
		return nil, fmt.Errorf("%w: no text extracted", domain.ErrEmptyContent)
	}

	metadata := make(map[string]any, len(raw.Metadata)+len(result.Metadata)+1)
	maps.Copy(metadata, raw.Metadata)
	maps.Copy(metadata, result.Metadata)
	metadata["content_type"] = raw.MIMEType

	return &domain.Document{
		ID:          uuid.NewString(),
		Origin:      domain.Origin{Kind: source.Kind, Locator: source.Locator},
		SourceName:  source.DisplayName(),
		Title:       strings.TrimSpace(result.Title),
		RawText:     text,
		Metadata:    metadata,
		RetrievedAt: l.now().UTC(),
	}, nil
}

// raw obtains the source bytes. Only web sources perform network I/O.
func (l *LoaderService) raw(ctx context.Context, source domain.Source) (*domain.RawDocument, error) {
	switch source.Kind {
	case domain.OriginPDF:
		if len(source.Data) == 0 {
			return nil, fmt.Errorf("%w: empty pdf", domain.ErrFormat)
		}
		return &domain.RawDocument{
			Locator:  source.Locator,
			MIMEType: mimePDF,
			Content:  source.Data,
		}, nil

	case domain.OriginWebPage:
		if l.fetcher == nil {
			return nil, fmt.Errorf("%w: no fetcher configured", domain.ErrFetch)
		}
		logger.Debug("Fetching %s", source.Locator)
		return l.fetcher.Fetch(ctx, source.Locator)

	default:
		return nil, fmt.Errorf("%w: unknown source kind %q", domain.ErrInvalidInput, source.Kind)
	}
}
