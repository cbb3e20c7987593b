package domain

// Citation is a human-readable reference to a retrieved chunk.
type Citation struct {
	// Origin is the source the chunk came from.
	Origin Origin

	// DocumentID identifies the cited document.
	DocumentID string

	// Label names the source, disambiguated within one result set.
	Label string

	// Excerpt is the chunk text, possibly truncated.
	Excerpt string

	// Truncated is true if Excerpt was cut and ends with an ellipsis.
	Truncated bool

	// Score is the retrieval score of the cited chunk.
	Score float64
}

// String renders the citation as `Label: "Excerpt"`.
func (c Citation) String() string {
	return c.Label + ": \"" + c.Excerpt + "\""
}

// Context is the retrieved-knowledge block handed to a downstream generator.
type Context struct {
	// Text is the rendered block, empty when nothing was retrieved.
	Text string

	// Sources lists the distinct source names used, in order of first use.
	Sources []string

	// Citations are the formatted references for the block.
	Citations []Citation
}
