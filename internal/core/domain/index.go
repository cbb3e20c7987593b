package domain

import (
	"fmt"
	"time"
)

// EmbeddingSpace tags a vector space by the model that produced it and its dimensionality.
// Vectors from different spaces are never compared.
type EmbeddingSpace struct {
	Model      string
	Dimensions int
}

// IsZero returns true if the space has not been fixed yet.
func (s EmbeddingSpace) IsZero() bool {
	return s.Model == "" && s.Dimensions == 0
}

// String returns "model/dims".
func (s EmbeddingSpace) String() string {
	return fmt.Sprintf("%s/%d", s.Model, s.Dimensions)
}

// Metric selects how query and entry vectors are scored.
type Metric string

const (
	// MetricCosine scores by cosine similarity. Range [-1, 1].
	MetricCosine Metric = "cosine"

	// MetricDot scores by raw dot product. Unbounded; equals cosine for unit vectors.
	MetricDot Metric = "dot"

	// MetricEuclidean scores by 1/(1+d) where d is the L2 distance. Range (0, 1].
	MetricEuclidean Metric = "euclidean"
)

// IsValid returns true if the metric is recognised.
func (m Metric) IsValid() bool {
	switch m {
	case MetricCosine, MetricDot, MetricEuclidean:
		return true
	default:
		return false
	}
}

// Snapshot is the chunk metadata copied into an index entry so results
// can be rendered without reading the document store.
type Snapshot struct {
	Text        string
	Origin      Origin
	SourceName  string
	Title       string
	RetrievedAt time.Time
	Span        Span
	Sequence    int
}

// IndexEntry is one chunk's vector plus its metadata snapshot.
type IndexEntry struct {
	ChunkID    string
	DocumentID string
	Vector     []float32
	Snapshot   Snapshot

	// Seq is the global insertion order, used to break score ties.
	Seq uint64
}

// NewIndexEntry builds an entry for chunk from document doc.
func NewIndexEntry(doc *Document, chunk Chunk, vector []float32) IndexEntry {
	return IndexEntry{
		ChunkID:    chunk.ID,
		DocumentID: doc.ID,
		Vector:     vector,
		Snapshot: Snapshot{
			Text:        chunk.Text,
			Origin:      doc.Origin,
			SourceName:  doc.SourceName,
			Title:       doc.Title,
			RetrievedAt: doc.RetrievedAt,
			Span:        chunk.Span,
			Sequence:    chunk.Sequence,
		},
	}
}
