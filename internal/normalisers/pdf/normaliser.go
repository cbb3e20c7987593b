package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/custodia-labs/kbase/internal/core/domain"
	"github.com/custodia-labs/kbase/internal/core/ports/driven"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// pdfMagic starts every PDF file.
var pdfMagic = []byte("%PDF-")

// maxTitleLength bounds titles taken from the first line of text.
const maxTitleLength = 200

// TextExtractor returns the text of each page of a PDF, in page order.
type TextExtractor interface {
	Extract(ctx context.Context, data []byte) ([]string, error)
}

// Normaliser handles PDF documents.
type Normaliser struct {
	extractor TextExtractor
}

// New creates a PDF normaliser backed by pdfcpu.
func New() *Normaliser {
	return NewWithExtractor(NewPdfcpuExtractor())
}

// NewWithExtractor creates a PDF normaliser with a custom extractor.
// Useful for testing.
func NewWithExtractor(extractor TextExtractor) *Normaliser {
	return &Normaliser{extractor: extractor}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{"application/pdf"}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 50
}

// Normalise extracts text from a PDF. Bytes that are not a parseable
// PDF fail with domain.ErrFormat.
func (n *Normaliser) Normalise(ctx context.Context, raw *domain.RawDocument) (*domain.NormaliseResult, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}
	if !bytes.HasPrefix(bytes.TrimLeft(raw.Content, "\x00\t\r\n "), pdfMagic) {
		return nil, fmt.Errorf("%w: missing %%PDF header", domain.ErrFormat)
	}

	pages, err := n.extractor.Extract(ctx, raw.Content)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if errors.Is(err, domain.ErrFormat) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrFormat, err)
	}

	text := strings.Join(pages, "\n\n")

	metadata := copyMetadata(raw.Metadata)
	if metadata == nil {
		metadata = make(map[string]any)
	}
	metadata["mime_type"] = "application/pdf"
	metadata["format"] = "pdf"
	metadata["page_count"] = len(pages)

	return &domain.NormaliseResult{
		Title:    extractTitle(text, raw.Locator),
		Text:     text,
		Metadata: metadata,
	}, nil
}

// extractTitle takes the first short non-empty line, falling back to the filename.
func extractTitle(content, locator string) string {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line != "" && len(line) <= maxTitleLength {
			return line
		}
	}

	if locator == "" {
		return ""
	}
	filename := filepath.Base(locator)
	filename = strings.TrimSuffix(filename, filepath.Ext(filename))
	filename = strings.ReplaceAll(filename, "_", " ")
	return strings.ReplaceAll(filename, "-", " ")
}

// copyMetadata creates a shallow copy of metadata.
func copyMetadata(src map[string]any) map[string]any {
	if src == nil {
		return nil
	}
	dst := make(map[string]any, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
