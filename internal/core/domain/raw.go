package domain

// RawDocument represents opaque bytes obtained for a source.
// It is the fetcher's output before normalisation.
type RawDocument struct {
	// Locator is the original location (file path or URL).
	Locator string

	// MIMEType is the content type (e.g., "application/pdf").
	MIMEType string

	// Content is the raw bytes.
	Content []byte

	// Metadata contains fetch-specific key-value pairs.
	Metadata map[string]any
}

// NormaliseResult is the text a normaliser extracted from a RawDocument.
type NormaliseResult struct {
	// Title is the extracted title, if any.
	Title string

	// Text is the plain text content.
	Text string

	// Metadata contains format-specific key-value pairs.
	Metadata map[string]any
}

// ChangeType represents the type of file change.
type ChangeType int

const (
	// ChangeCreated indicates a new file.
	ChangeCreated ChangeType = iota

	// ChangeUpdated indicates a modified file.
	ChangeUpdated

	// ChangeDeleted indicates a removed file.
	ChangeDeleted
)

// String returns the change type name.
func (c ChangeType) String() string {
	switch c {
	case ChangeCreated:
		return "created"
	case ChangeUpdated:
		return "updated"
	case ChangeDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// FileChange is a change event from a watched directory.
type FileChange struct {
	Type ChangeType
	Path string
}
