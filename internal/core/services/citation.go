package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/custodia-labs/kbase/internal/core/domain"
	"github.com/custodia-labs/kbase/internal/core/ports/driving"
)

// Ensure CitationService implements the interface.
var _ driving.CitationService = (*CitationService)(nil)

// DefaultExcerptLength is the excerpt length in runes when none is configured.
const DefaultExcerptLength = 240

const ellipsis = "..."

// CitationService renders retrieval results as citations.
type CitationService struct {
	excerptLength int
}

// NewCitationService creates a citation formatter. Excerpts longer than
// excerptLength runes are cut and end with "...".
func NewCitationService(excerptLength int) *CitationService {
	if excerptLength <= 0 {
		excerptLength = DefaultExcerptLength
	}
	return &CitationService{excerptLength: excerptLength}
}

// Format renders a single result.
func (c *CitationService) Format(result domain.RetrievalResult) domain.Citation {
	excerpt, truncated := c.excerpt(result.Text)
	return domain.Citation{
		Origin:     result.Origin,
		DocumentID: result.DocumentID,
		Label:      baseLabel(result),
		Excerpt:    excerpt,
		Truncated:  truncated,
		Score:      result.Score,
	}
}

// FormatAll renders a result set. Distinct documents sharing a locator are
// told apart by retrieval time, then by "#n" in order of first appearance.
func (c *CitationService) FormatAll(results []domain.RetrievalResult) []domain.Citation {
	labels := disambiguate(results)
	out := make([]domain.Citation, len(results))
	for i, r := range results {
		out[i] = c.Format(r)
		out[i].Label = labels[r.DocumentID]
	}
	return out
}

// BuildContext renders the retrieved-knowledge block for a generator prompt.
func (c *CitationService) BuildContext(results []domain.RetrievalResult) domain.Context {
	if len(results) == 0 {
		return domain.Context{}
	}

	var (
		b       strings.Builder
		sources []string
		seen    = make(map[string]bool)
	)
	for i, r := range results {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "Source %d (%s):\n%s", i+1, r.SourceName, r.Text)
		if !seen[r.SourceName] {
			seen[r.SourceName] = true
			sources = append(sources, r.SourceName)
		}
	}

	return domain.Context{
		Text:      b.String(),
		Sources:   sources,
		Citations: c.FormatAll(results),
	}
}

func (c *CitationService) excerpt(text string) (string, bool) {
	collapsed := strings.Join(strings.Fields(text), " ")
	runes := []rune(collapsed)
	if len(runes) <= c.excerptLength {
		return collapsed, false
	}
	return strings.TrimRight(string(runes[:c.excerptLength]), " ") + ellipsis, true
}

func baseLabel(r domain.RetrievalResult) string {
	switch {
	case r.SourceName == "":
		return r.Origin.Locator
	case r.Origin.Locator == "" || r.Origin.Locator == r.SourceName:
		return r.SourceName
	default:
		return fmt.Sprintf("%s (%s)", r.SourceName, r.Origin.Locator)
	}
}

// disambiguate assigns each document in results a label unique within the set.
func disambiguate(results []domain.RetrievalResult) map[string]string {
	type docInfo struct {
		result domain.RetrievalResult
		order  int
	}

	var docs []docInfo
	seen := make(map[string]bool)
	byLocator := make(map[string][]int)
	for _, r := range results {
		if seen[r.DocumentID] {
			continue
		}
		seen[r.DocumentID] = true
		byLocator[r.Origin.Locator] = append(byLocator[r.Origin.Locator], len(docs))
		docs = append(docs, docInfo{result: r, order: len(docs)})
	}

	labels := make([]string, len(docs))
	for i, d := range docs {
		labels[i] = baseLabel(d.result)
	}

	for _, group := range byLocator {
		if len(group) < 2 {
			continue
		}
		stamps := make(map[string]int)
		for _, i := range group {
			stamps[stamp(docs[i].result.RetrievedAt)]++
		}
		for n, i := range group {
			ts := stamp(docs[i].result.RetrievedAt)
			labels[i] = fmt.Sprintf("%s, retrieved %s", labels[i], ts)
			if stamps[ts] > 1 {
				labels[i] = fmt.Sprintf("%s #%d", labels[i], n+1)
			}
		}
	}

	// Different locators can still render alike, e.g. a source name equal to
	// another document's locator. Suffix later duplicates by appearance order.
	used := make(map[string]bool, len(labels))
	for i := range labels {
		label := labels[i]
		for n := docs[i].order + 1; used[label]; n++ {
			label = fmt.Sprintf("%s #%d", labels[i], n)
		}
		labels[i] = label
		used[label] = true
	}

	out := make(map[string]string, len(docs))
	for i, d := range docs {
		out[d.result.DocumentID] = labels[i]
	}
	return out
}

func stamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
