// Package chunker provides a sliding-window text chunker.
package chunker

import (
	"context"
	"fmt"
	"iter"
	"slices"
	"unicode"

	"github.com/google/uuid"

	"github.com/custodia-labs/kbase/internal/core/domain"
	"github.com/custodia-labs/kbase/internal/core/ports/driven"
)

// DefaultChunkSize is the default window size.
const DefaultChunkSize = 1000

// DefaultChunkOverlap is the default overlap between consecutive windows.
const DefaultChunkOverlap = 200

// Unit selects what chunk size and overlap count.
type Unit string

const (
	// UnitChars counts characters (runes).
	UnitChars Unit = "chars"

	// UnitTokens counts whitespace-delimited words.
	UnitTokens Unit = "tokens"
)

// chunkNamespace seeds deterministic chunk IDs.
var chunkNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("kbase:chunk"))

// Processor splits document text into overlapping windows.
// It implements the Chunker interface.
type Processor struct {
	chunkSize int
	overlap   int
	unit      Unit
}

var _ driven.Chunker = (*Processor)(nil)

// Option configures the chunker processor.
type Option func(*Processor)

// WithChunkSize sets the window size.
func WithChunkSize(size int) Option {
	return func(p *Processor) {
		p.chunkSize = size
	}
}

// WithOverlap sets the overlap between consecutive windows.
func WithOverlap(overlap int) Option {
	return func(p *Processor) {
		p.overlap = overlap
	}
}

// WithUnit sets what size and overlap count.
func WithUnit(unit Unit) Option {
	return func(p *Processor) {
		if unit != "" {
			p.unit = unit
		}
	}
}

// New creates a chunker with the given options.
// It fails with domain.ErrConfig unless 0 <= overlap < size.
func New(opts ...Option) (*Processor, error) {
	p := &Processor{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultChunkOverlap,
		unit:      UnitChars,
	}

	for _, opt := range opts {
		opt(p)
	}

	if err := Validate(p.chunkSize, p.overlap); err != nil {
		return nil, err
	}
	if p.unit != UnitChars && p.unit != UnitTokens {
		return nil, fmt.Errorf("%w: unknown chunk unit %q", domain.ErrConfig, p.unit)
	}

	return p, nil
}

// Validate checks chunk size and overlap.
func Validate(chunkSize, overlap int) error {
	if chunkSize <= 0 {
		return fmt.Errorf("%w: chunk size must be positive, got %d", domain.ErrConfig, chunkSize)
	}
	if overlap <= 0 {
		return fmt.Errorf("%w: overlap must be positive, got %d", domain.ErrConfig, overlap)
	}
	if overlap >= chunkSize {
		return fmt.Errorf("%w: overlap %d must be smaller than chunk size %d", domain.ErrConfig, overlap, chunkSize)
	}
	return nil
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "chunker"
}

// Size returns the configured window size.
func (p *Processor) Size() int { return p.chunkSize }

// Overlap returns the configured overlap.
func (p *Processor) Overlap() int { return p.overlap }

// Unit returns the configured unit.
func (p *Processor) Unit() Unit { return p.unit }

// Chunk splits the document text into chunks.
// Empty text produces no chunks.
func (p *Processor) Chunk(ctx context.Context, doc *domain.Document) ([]domain.Chunk, error) {
	if doc == nil {
		return nil, fmt.Errorf("%w: document is nil", domain.ErrInvalidInput)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return slices.Collect(p.All(doc)), nil
}

// All returns the document's chunks as a restartable sequence.
func (p *Processor) All(doc *domain.Document) iter.Seq[domain.Chunk] {
	return func(yield func(domain.Chunk) bool) {
		runes := []rune(doc.RawText)
		seq := 0
		for span := range Spans(runes, p.chunkSize, p.overlap, p.unit) {
			chunk := domain.Chunk{
				ID:         ChunkID(doc.ID, seq),
				DocumentID: doc.ID,
				Text:       string(runes[span.Start:span.End]),
				Span:       span,
				Sequence:   seq,
			}
			if !yield(chunk) {
				return
			}
			seq++
		}
	}
}

// Chunk splits doc with the given parameters in character units.
func Chunk(doc *domain.Document, chunkSize, overlap int) ([]domain.Chunk, error) {
	p, err := New(WithChunkSize(chunkSize), WithOverlap(overlap))
	if err != nil {
		return nil, err
	}
	return p.Chunk(context.Background(), doc)
}

// ChunkID returns the deterministic ID of a document's chunk.
func ChunkID(documentID string, sequence int) string {
	return uuid.NewSHA1(chunkNamespace, fmt.Appendf(nil, "%s/%d", documentID, sequence)).String()
}

// Spans yields the window spans over runes. Parameters must be valid.
func Spans(runes []rune, chunkSize, overlap int, unit Unit) iter.Seq[domain.Span] {
	bounds := charBounds(len(runes))
	if unit == UnitTokens {
		bounds = tokenBounds(runes)
	}
	units := len(bounds) - 1
	step := chunkSize - overlap

	return func(yield func(domain.Span) bool) {
		if units <= 0 {
			return
		}
		for start := 0; ; start += step {
			end := min(start+chunkSize, units)
			if !yield(domain.Span{Start: bounds[start], End: bounds[end]}) {
				return
			}
			if end == units {
				return
			}
		}
	}
}

// charBounds returns 0..n, one boundary per rune.
func charBounds(n int) []int {
	if n == 0 {
		return nil
	}
	bounds := make([]int, n+1)
	for i := range bounds {
		bounds[i] = i
	}
	return bounds
}

// tokenBounds returns the rune offset where each token starts, plus len(runes).
// A token is a word with its trailing whitespace; leading whitespace belongs
// to the first token so the tokens tile the text.
func tokenBounds(runes []rune) []int {
	var bounds []int
	inWord := false
	for i, r := range runes {
		space := unicode.IsSpace(r)
		if !space && !inWord {
			if len(bounds) == 0 {
				bounds = append(bounds, 0)
			} else {
				bounds = append(bounds, i)
			}
		}
		inWord = !space
	}
	if len(bounds) == 0 {
		return nil
	}
	return append(bounds, len(runes))
}
