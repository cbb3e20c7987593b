package cli

import (
	"bufio"
	"errors"
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	showChunks bool
	clearYes   bool
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List loaded documents",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

var showCmd = &cobra.Command{
	Use:   "show [doc-id]",
	Short: "Show document details",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

var removeCmd = &cobra.Command{
	Use:     "remove [doc-id...]",
	Aliases: []string{"rm"},
	Short:   "Remove documents from the knowledge base",
	Long: `Removes each document together with its chunks and index entries.
Queries never see a partially removed document.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRemove,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarise the knowledge base",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every document",
	Long: `Deletes every document, chunk and index entry and unbinds the embedding
model, so the next ingestion may use a different one.`,
	Args:        cobra.NoArgs,
	Annotations: map[string]string{annotationSkipInit: "true"},
	RunE:        runClear,
}

func init() {
	showCmd.Flags().BoolVar(&showChunks, "chunks", false, "print every chunk")
	clearCmd.Flags().BoolVarP(&clearYes, "yes", "y", false, "do not ask for confirmation")

	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(removeCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(clearCmd)
}

func runList(cmd *cobra.Command, _ []string) error {
	if knowledgeBase == nil {
		return errors.New("knowledge base not configured")
	}

	docs, err := knowledgeBase.List(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}

	if len(docs) == 0 {
		cmd.Println("No documents loaded. Add one with: kbase add <file.pdf|url>")
		return nil
	}

	for i := range docs {
		d := &docs[i].Document
		cmd.Printf("  %s\n", d.ID)
		cmd.Printf("    Source:  %s (%s)\n", d.SourceName, d.Origin.Kind.Label())
		if d.Title != "" {
			cmd.Printf("    Title:   %s\n", d.Title)
		}
		cmd.Printf("    Locator: %s\n", d.Origin.Locator)
		cmd.Printf("    Chunks:  %d\n", docs[i].ChunkCount)
		cmd.Println()
	}

	cmd.Printf("Total: %d documents\n", len(docs))
	return nil
}

func runShow(cmd *cobra.Command, args []string) error {
	if knowledgeBase == nil {
		return errors.New("knowledge base not configured")
	}

	ctx := cmd.Context()
	doc, err := knowledgeBase.Get(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to get document: %w", err)
	}
	chunks, err := knowledgeBase.Chunks(ctx, doc.ID)
	if err != nil {
		return fmt.Errorf("failed to get chunks: %w", err)
	}

	cmd.Printf("Document: %s\n\n", doc.ID)
	cmd.Printf("  Source:    %s\n", doc.SourceName)
	cmd.Printf("  Kind:      %s\n", doc.Origin.Kind.Label())
	cmd.Printf("  Locator:   %s\n", doc.Origin.Locator)
	if doc.Title != "" {
		cmd.Printf("  Title:     %s\n", doc.Title)
	}
	cmd.Printf("  Retrieved: %s\n", doc.RetrievedAt.Local().Format("2006-01-02 15:04:05"))
	cmd.Printf("  Length:    %d characters\n", len([]rune(doc.RawText)))
	cmd.Printf("  Chunks:    %d\n", len(chunks))

	if len(doc.Metadata) > 0 {
		cmd.Println("\n  Metadata:")
		for _, k := range slices.Sorted(maps.Keys(doc.Metadata)) {
			cmd.Printf("    %s: %v\n", k, doc.Metadata[k])
		}
	}

	if showChunks {
		cmd.Println()
		for _, c := range chunks {
			cmd.Printf("--- chunk %d [%d:%d] ---\n", c.Sequence, c.Span.Start, c.Span.End)
			cmd.Println(c.Text)
		}
	}
	return nil
}

func runRemove(cmd *cobra.Command, args []string) error {
	if knowledgeBase == nil {
		return errors.New("knowledge base not configured")
	}

	var errs []error
	for _, id := range args {
		if err := knowledgeBase.Remove(cmd.Context(), id); err != nil {
			errs = append(errs, fmt.Errorf("failed to remove %s: %w", id, err))
			continue
		}
		cmd.Printf("Removed %s\n", id)
	}
	return errors.Join(errs...)
}

func runStats(cmd *cobra.Command, _ []string) error {
	if knowledgeBase == nil {
		return errors.New("knowledge base not configured")
	}

	stats, err := knowledgeBase.Stats(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to get stats: %w", err)
	}

	cmd.Println("Knowledge base:")
	cmd.Printf("  Documents: %d\n", stats.TotalDocuments)
	cmd.Printf("  Chunks:    %d\n", stats.TotalChunks)
	cmd.Printf("  Sources:   %d\n", stats.Sources)
	if !stats.Space.IsZero() {
		cmd.Printf("  Embedding: %s\n", stats.Space)
	}
	if len(stats.Kinds) > 0 {
		kinds := make([]string, len(stats.Kinds))
		for i, k := range stats.Kinds {
			kinds[i] = k.Label()
		}
		cmd.Printf("  Kinds:     %s\n", strings.Join(kinds, ", "))
	}
	for _, name := range stats.SourceList {
		cmd.Printf("    - %s\n", name)
	}
	return nil
}

func runClear(cmd *cobra.Command, _ []string) error {
	if knowledgeBase == nil {
		return errors.New("knowledge base not configured")
	}

	if !clearYes {
		if !term.IsTerminal(int(os.Stdin.Fd())) {
			return errors.New("refusing to clear without confirmation; pass --yes")
		}
		cmd.Print("Remove every document from the knowledge base? [y/N]: ")
		reader := bufio.NewReader(cmd.InOrStdin())
		answer, _ := reader.ReadString('\n')
		if a := strings.ToLower(strings.TrimSpace(answer)); a != "y" && a != "yes" {
			cmd.Println("Aborted.")
			return nil
		}
	}

	if err := knowledgeBase.Clear(cmd.Context()); err != nil {
		return fmt.Errorf("failed to clear knowledge base: %w", err)
	}
	cmd.Println("Knowledge base cleared.")
	return nil
}
