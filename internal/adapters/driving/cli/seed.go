package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/kbase/internal/adapters/driven/config/file"
	"github.com/custodia-labs/kbase/internal/core/domain"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load the curated source list",
	Long: `Fetches every [[sources]] entry of the config file concurrently.
Without a config file the built-in climate reading list is used.`,
	Args: cobra.NoArgs,
	RunE: runSeed,
}

func init() {
	rootCmd.AddCommand(seedCmd)
}

func runSeed(cmd *cobra.Command, _ []string) error {
	if ingestService == nil {
		return errors.New("ingest service not configured")
	}

	curated := file.DefaultSources
	if appConfig != nil {
		curated = appConfig.Sources
	}
	if len(curated) == 0 {
		cmd.Println("No curated sources configured.")
		return nil
	}

	sources := make([]domain.Source, len(curated))
	for i, s := range curated {
		sources[i] = domain.URLSource(s.URL).WithName(s.Name)
	}

	cmd.Printf("Loading %d curated sources...\n", len(sources))
	progress := newIngestProgress(cmd, len(sources), "seeding")
	outcomes := ingestService.IngestAll(cmd.Context(), sources, progress.Report)
	progress.Finish(outcomes)

	n := failures(outcomes)
	cmd.Printf("Loaded %d of %d sources.\n", len(outcomes)-n, len(outcomes))
	if n == len(outcomes) {
		return fmt.Errorf("all %d sources failed", n)
	}
	return nil
}
