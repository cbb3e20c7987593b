package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/kbase/internal/core/domain"
)

var (
	searchK        int
	searchMode     string
	searchMinScore float64
	searchJSON     bool
	searchContext  bool
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Retrieve the passages most similar to a query",
	Long: `Embeds the query and returns the k most similar chunks with citations.

Modes:
  semantic  vector similarity (default)
  keyword   BM25 over chunk text
  hybrid    reciprocal rank fusion of both`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchK, "top-k", "k", 0, "maximum number of results (default from config)")
	searchCmd.Flags().StringVarP(&searchMode, "mode", "m", "", "semantic, keyword or hybrid (default from config)")
	searchCmd.Flags().Float64Var(&searchMinScore, "min-score", 0, "drop results scoring below this")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	searchCmd.Flags().BoolVar(&searchContext, "context", false, "print the context block for a generator prompt")
	rootCmd.AddCommand(searchCmd)
}

// searchResultJSON is the --json form of one result.
type searchResultJSON struct {
	Rank       int     `json:"rank"`
	Score      float64 `json:"score"`
	DocumentID string  `json:"document_id"`
	ChunkID    string  `json:"chunk_id"`
	Citation   string  `json:"citation"`
	Kind       string  `json:"kind"`
	Locator    string  `json:"locator"`
	Text       string  `json:"text"`
}

func runSearch(cmd *cobra.Command, args []string) error {
	if retrievalService == nil {
		return errors.New("retrieval service not configured")
	}

	opts := retrievalDefaults()
	if cmd.Flags().Changed("top-k") {
		opts.K = searchK
	}
	if searchMode != "" {
		opts.Mode = domain.RetrievalMode(strings.ToLower(searchMode))
	}
	if cmd.Flags().Changed("min-score") {
		opts.MinScore = searchMinScore
	}

	results, err := retrievalService.Retrieve(cmd.Context(), args[0], opts)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	// Fall back to plain source names when citations are unavailable.
	citations := make([]domain.Citation, len(results))
	if citationService != nil {
		citations = citationService.FormatAll(results)
	} else {
		for i, r := range results {
			citations[i] = domain.Citation{Label: r.SourceName, Excerpt: r.Text}
		}
	}

	switch {
	case searchJSON:
		return outputSearchJSON(cmd, results, citations)
	case searchContext:
		return outputSearchContext(cmd, results)
	default:
		return outputSearchTable(cmd, results, citations)
	}
}

func outputSearchJSON(cmd *cobra.Command, results []domain.RetrievalResult, citations []domain.Citation) error {
	out := make([]searchResultJSON, len(results))
	for i, r := range results {
		out[i] = searchResultJSON{
			Rank:       i + 1,
			Score:      r.Score,
			DocumentID: r.DocumentID,
			ChunkID:    r.ChunkID,
			Citation:   citations[i].Label,
			Kind:       string(r.Origin.Kind),
			Locator:    r.Origin.Locator,
			Text:       r.Text,
		}
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputSearchContext(cmd *cobra.Command, results []domain.RetrievalResult) error {
	if citationService == nil {
		return errors.New("citation service not configured")
	}
	block := citationService.BuildContext(results)
	if block.Text == "" {
		cmd.Println("No relevant passages found.")
		return nil
	}
	cmd.Println(block.Text)
	cmd.Println()
	cmd.Printf("Sources: %s\n", strings.Join(block.Sources, ", "))
	return nil
}

func outputSearchTable(cmd *cobra.Command, results []domain.RetrievalResult, citations []domain.Citation) error {
	if len(results) == 0 {
		cmd.Println("No results found.")
		return nil
	}

	cmd.Println("Results:")
	cmd.Println()
	for i := range results {
		cmd.Printf("  [%d] %s (%.3f)\n", i+1, citations[i].Label, results[i].Score)
		cmd.Printf("      %q\n", citations[i].Excerpt)
		cmd.Println()
	}
	return nil
}
