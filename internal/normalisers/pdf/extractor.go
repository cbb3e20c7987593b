package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/custodia-labs/kbase/internal/core/domain"
)

// PdfcpuExtractor extracts page text with pdfcpu.
type PdfcpuExtractor struct{}

// NewPdfcpuExtractor creates a pdfcpu-backed extractor.
func NewPdfcpuExtractor() *PdfcpuExtractor {
	return &PdfcpuExtractor{}
}

// Extract returns the text of each page. Shown strings are decoded through
// the ToUnicode map of the font selected on the page.
func (e *PdfcpuExtractor) Extract(ctx context.Context, data []byte) (pages []string, err error) {
	// pdfcpu panics on some malformed object graphs.
	defer func() {
		if r := recover(); r != nil {
			pages, err = nil, fmt.Errorf("%w: malformed pdf: %v", domain.ErrFormat, r)
		}
	}()

	pdfCtx, err := api.ReadContext(bytes.NewReader(data), model.NewDefaultConfiguration())
	if err != nil {
		return nil, fmt.Errorf("%w: read pdf: %v", domain.ErrFormat, err)
	}
	if root, err := pdfCtx.Pages(); err != nil || root == nil {
		return nil, fmt.Errorf("%w: missing page tree", domain.ErrFormat)
	}
	if err := pdfCtx.EnsurePageCount(); err != nil {
		return nil, fmt.Errorf("%w: page count: %v", domain.ErrFormat, err)
	}

	pages = make([]string, pdfCtx.PageCount)
	for pageNr := 1; pageNr <= pdfCtx.PageCount; pageNr++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		pageDict, _, attrs, err := pdfCtx.PageDict(pageNr, false)
		if err != nil {
			return nil, fmt.Errorf("%w: page %d: %v", domain.ErrFormat, pageNr, err)
		}
		content, err := pdfCtx.PageContent(pageDict, pageNr)
		if errors.Is(err, model.ErrNoContent) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%w: page %d content: %v", domain.ErrFormat, pageNr, err)
		}

		var resources types.Dict
		if attrs != nil {
			resources = attrs.Resources
		}
		pages[pageNr-1] = DecodeContentStream(content, pageFonts(pdfCtx.XRefTable, resources))
	}

	return pages, nil
}

// pageFonts resolves the fonts of a page's resource dictionary.
// Fonts that cannot be read are left out and decode as Latin-1.
func pageFonts(xref *model.XRefTable, resources types.Dict) map[string]*Font {
	fonts := make(map[string]*Font)
	if resources == nil {
		return fonts
	}
	o, found := resources.Find("Font")
	if !found {
		return fonts
	}
	fontDicts, err := xref.DereferenceDict(o)
	if err != nil || fontDicts == nil {
		return fonts
	}

	for name, ref := range fontDicts {
		d, err := xref.DereferenceDict(ref)
		if err != nil || d == nil {
			continue
		}
		font := &Font{CodeLength: 1}
		composite := false
		if subtype := d.Subtype(); subtype != nil && *subtype == "Type0" {
			composite = true
			font.CodeLength = 2
		}
		if o, ok := d.Find("ToUnicode"); ok {
			if cmap := toUnicodeStream(xref, o); cmap != nil {
				codeLength, mapping := ParseToUnicode(cmap)
				if composite {
					font.CodeLength = codeLength
				}
				font.ToUnicode = mapping
			}
		}
		fonts[name] = font
	}
	return fonts
}

func toUnicodeStream(xref *model.XRefTable, o types.Object) []byte {
	sd, _, err := xref.DereferenceStreamDict(o)
	if err != nil || sd == nil {
		return nil
	}
	if err := sd.Decode(); err != nil {
		return nil
	}
	return sd.Content
}
