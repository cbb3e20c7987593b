package domain

import "time"

// RetrievalMode defines how a query is matched against the index.
type RetrievalMode string

// Available retrieval modes.
const (
	// RetrievalSemantic ranks by vector similarity. Scores follow the
	// index Metric: [-1, 1] for cosine, (0, 1] for euclidean, unbounded for dot.
	RetrievalSemantic RetrievalMode = "semantic"

	// RetrievalKeyword ranks by BM25 over chunk text. Scores are relative to
	// the best hit of the query, in (0, 1].
	RetrievalKeyword RetrievalMode = "keyword"

	// RetrievalHybrid fuses semantic and keyword rankings by reciprocal rank.
	// Scores are in (0, 1]; 1 means ranked first by both.
	RetrievalHybrid RetrievalMode = "hybrid"
)

// IsValid returns true if the retrieval mode is recognised.
func (m RetrievalMode) IsValid() bool {
	switch m {
	case RetrievalSemantic, RetrievalKeyword, RetrievalHybrid:
		return true
	default:
		return false
	}
}

// RetrievalOptions configures a single query.
type RetrievalOptions struct {
	// K is the maximum number of results. Must be positive.
	K int

	// Mode selects the ranking strategy. Empty means semantic.
	Mode RetrievalMode

	// MinScore drops results scoring below it, on the scale of Mode.
	// Zero keeps everything.
	MinScore float64
}

// RetrievalResult is a scored chunk returned for a query.
type RetrievalResult struct {
	ChunkID     string
	DocumentID  string
	Score       float64
	Origin      Origin
	SourceName  string
	Title       string
	RetrievedAt time.Time
	Text        string
	Span        Span
	Sequence    int
}

// ResultFromEntry converts an index entry and its score into a result.
func ResultFromEntry(e IndexEntry, score float64) RetrievalResult {
	return RetrievalResult{
		ChunkID:     e.ChunkID,
		DocumentID:  e.DocumentID,
		Score:       score,
		Origin:      e.Snapshot.Origin,
		SourceName:  e.Snapshot.SourceName,
		Title:       e.Snapshot.Title,
		RetrievedAt: e.Snapshot.RetrievedAt,
		Text:        e.Snapshot.Text,
		Span:        e.Snapshot.Span,
		Sequence:    e.Snapshot.Sequence,
	}
}
