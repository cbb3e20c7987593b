package domain

import "time"

// OriginKind identifies the kind of input a document was loaded from.
type OriginKind string

const (
	// OriginPDF is a PDF byte stream, identified by a file path.
	OriginPDF OriginKind = "pdf"

	// OriginWebPage is a page fetched over HTTP(S), identified by its URL.
	OriginWebPage OriginKind = "web"
)

// IsValid returns true if the origin kind is recognised.
func (k OriginKind) IsValid() bool {
	return k == OriginPDF || k == OriginWebPage
}

// Label returns the human-readable name of the origin kind.
func (k OriginKind) Label() string {
	switch k {
	case OriginPDF:
		return "PDF"
	case OriginWebPage:
		return "Web Article"
	default:
		return "Unknown"
	}
}

// Origin records where a document came from.
type Origin struct {
	// Kind is the input kind.
	Kind OriginKind

	// Locator is the file path or URL.
	Locator string
}

// Document represents a loaded source.
// It is immutable once stored.
type Document struct {
	// ID is the unique identifier for the document.
	ID string

	// Origin is the kind and locator of the source.
	Origin Origin

	// SourceName is the display name (file basename or URL host by default).
	SourceName string

	// Title is the extracted title, if the source declares one.
	Title string

	// RawText is the full normalised text before chunking. Never empty.
	RawText string

	// Metadata contains loader-specific key-value pairs (page_count, content_type).
	Metadata map[string]any

	// RetrievedAt is when the source was loaded.
	RetrievedAt time.Time
}

// Span is a half-open [Start, End) range of rune offsets into a document's RawText.
type Span struct {
	Start int
	End   int
}

// Len returns the number of runes covered by the span.
func (s Span) Len() int {
	return s.End - s.Start
}

// Chunk represents a contiguous window of a document's text.
type Chunk struct {
	// ID is the unique identifier for the chunk.
	ID string

	// DocumentID links back to the Document the chunk was cut from.
	DocumentID string

	// Text is the window content. Never empty.
	Text string

	// Span locates the window in the document's RawText.
	Span Span

	// Sequence is the zero-based ordinal of the chunk within its document.
	Sequence int
}

// DocumentSummary is the listing view of a stored document.
type DocumentSummary struct {
	Document   Document
	ChunkCount int
}
