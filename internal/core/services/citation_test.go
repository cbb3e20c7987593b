package services

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/kbase/internal/core/domain"
)

func result(docID, locator, text string, at time.Time) domain.RetrievalResult {
	return domain.RetrievalResult{
		ChunkID:     docID + "-chunk",
		DocumentID:  docID,
		Score:       0.5,
		Origin:      domain.Origin{Kind: domain.OriginWebPage, Locator: locator},
		SourceName:  "climate.nasa.gov",
		RetrievedAt: at,
		Text:        text,
	}
}

var (
	may1 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	may2 = time.Date(2024, 5, 2, 12, 0, 0, 0, time.UTC)
)

func TestCitationService_Format(t *testing.T) {
	c := NewCitationService(20)
	r := result("d1", "https://climate.nasa.gov/evidence/", "Short  text\n\nhere", may1)

	got := c.Format(r)
	assert.Equal(t, "climate.nasa.gov (https://climate.nasa.gov/evidence/)", got.Label)
	assert.Equal(t, "Short text here", got.Excerpt)
	assert.False(t, got.Truncated)
	assert.Equal(t, r.Origin, got.Origin)
	assert.Equal(t, "d1", got.DocumentID)
	assert.InDelta(t, 0.5, got.Score, 1e-12)
	assert.Equal(t, `climate.nasa.gov (https://climate.nasa.gov/evidence/): "Short text here"`, got.String())
}

func TestCitationService_Truncation(t *testing.T) {
	c := NewCitationService(10)

	got := c.Format(result("d1", "x", "ÄÖÜ äöü ßéè and more", may1))
	assert.True(t, got.Truncated)
	assert.True(t, strings.HasSuffix(got.Excerpt, "..."))
	assert.Equal(t, "ÄÖÜ äöü ßé...", got.Excerpt)

	exact := c.Format(result("d1", "x", "0123456789", may1))
	assert.False(t, exact.Truncated)
	assert.Equal(t, "0123456789", exact.Excerpt)
}

func TestCitationService_DefaultExcerptLength(t *testing.T) {
	c := NewCitationService(0)
	got := c.Format(result("d1", "x", strings.Repeat("a", DefaultExcerptLength+5), may1))
	assert.Len(t, got.Excerpt, DefaultExcerptLength+len("..."))
}

func TestCitationService_Labels(t *testing.T) {
	c := NewCitationService(100)
	pdf := domain.RetrievalResult{DocumentID: "p", Origin: domain.Origin{Kind: domain.OriginPDF, Locator: "spm.pdf"}, SourceName: "spm.pdf"}
	noName := domain.RetrievalResult{DocumentID: "n", Origin: domain.Origin{Locator: "https://x"}}

	assert.Equal(t, "spm.pdf", c.Format(pdf).Label)
	assert.Equal(t, "https://x", c.Format(noName).Label)
}

func TestCitationService_FormatAllSameURLDifferentTimes(t *testing.T) {
	c := NewCitationService(100)
	url := "https://climate.nasa.gov/evidence/"

	citations := c.FormatAll([]domain.RetrievalResult{
		result("old", url, "a", may1),
		result("new", url, "b", may2),
		result("old", url, "c", may1),
	})

	require.Len(t, citations, 3)
	assert.NotEqual(t, citations[0].Label, citations[1].Label)
	assert.Equal(t, citations[0].Label, citations[2].Label)
	assert.Contains(t, citations[0].Label, "2024-05-01T12:00:00Z")
	assert.Contains(t, citations[1].Label, "2024-05-02T12:00:00Z")
}

func TestCitationService_FormatAllSameURLSameTime(t *testing.T) {
	c := NewCitationService(100)
	url := "https://climate.nasa.gov/evidence/"

	citations := c.FormatAll([]domain.RetrievalResult{
		result("first", url, "a", may1),
		result("second", url, "b", may1),
	})

	assert.True(t, strings.HasSuffix(citations[0].Label, "#1"))
	assert.True(t, strings.HasSuffix(citations[1].Label, "#2"))
}

func TestCitationService_FormatAllLabelsUniquePerDocument(t *testing.T) {
	c := NewCitationService(100)
	results := []domain.RetrievalResult{
		{DocumentID: "a", SourceName: "report", Origin: domain.Origin{Locator: "report"}},
		{DocumentID: "b", SourceName: "report", Origin: domain.Origin{Locator: ""}},
		result("c", "https://u", "x", may1),
		result("d", "https://u", "x", may1),
		result("e", "https://v", "x", may2),
	}

	labels := make(map[string]string)
	for _, cit := range c.FormatAll(results) {
		if prev, ok := labels[cit.Label]; ok {
			assert.Equal(t, prev, cit.DocumentID, "label %q shared by two documents", cit.Label)
		}
		labels[cit.Label] = cit.DocumentID
	}
	assert.Len(t, labels, 5)
}

func TestCitationService_FormatAllDistinctURLsUnchanged(t *testing.T) {
	c := NewCitationService(100)
	citations := c.FormatAll([]domain.RetrievalResult{
		result("a", "https://a", "x", may1),
		result("b", "https://b", "x", may1),
	})
	assert.Equal(t, "climate.nasa.gov (https://a)", citations[0].Label)
	assert.Equal(t, "climate.nasa.gov (https://b)", citations[1].Label)
}

func TestCitationService_BuildContext(t *testing.T) {
	c := NewCitationService(100)

	empty := c.BuildContext(nil)
	assert.Empty(t, empty.Text)
	assert.Empty(t, empty.Sources)

	ctx := c.BuildContext([]domain.RetrievalResult{
		result("a", "https://a", "first chunk", may1),
		{DocumentID: "b", SourceName: "IPCC", Text: "second chunk"},
		result("c", "https://c", "third chunk", may1),
	})

	assert.Equal(t,
		"Source 1 (climate.nasa.gov):\nfirst chunk\n\nSource 2 (IPCC):\nsecond chunk\n\nSource 3 (climate.nasa.gov):\nthird chunk",
		ctx.Text)
	assert.Equal(t, []string{"climate.nasa.gov", "IPCC"}, ctx.Sources)
	assert.Len(t, ctx.Citations, 3)
}
