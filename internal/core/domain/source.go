package domain

import (
	"net/url"
	"path/filepath"
	"strings"
)

// Source describes an input to be loaded into the knowledge base.
type Source struct {
	// Kind is the input kind.
	Kind OriginKind

	// Locator is the file path for PDFs or the URL for web pages.
	Locator string

	// Name overrides the default source name.
	Name string

	// Data holds PDF bytes. Unused for web pages.
	Data []byte
}

// PDFSource returns a Source for PDF bytes read from path.
func PDFSource(path string, data []byte) Source {
	return Source{Kind: OriginPDF, Locator: path, Data: data}
}

// URLSource returns a Source for a web page.
func URLSource(rawURL string) Source {
	return Source{Kind: OriginWebPage, Locator: rawURL}
}

// WithName returns a copy of the source with the display name set.
func (s Source) WithName(name string) Source {
	s.Name = strings.TrimSpace(name)
	return s
}

// DisplayName returns the explicit name, or the file basename for PDFs
// and the URL host for web pages.
func (s Source) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	switch s.Kind {
	case OriginPDF:
		if s.Locator == "" {
			return "upload.pdf"
		}
		return filepath.Base(s.Locator)
	case OriginWebPage:
		if u, err := url.Parse(s.Locator); err == nil && u.Host != "" {
			return u.Host
		}
	}
	return s.Locator
}

// CuratedSource is a named URL offered by the seed command.
type CuratedSource struct {
	Name string
	URL  string
}
