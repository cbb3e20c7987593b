package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/kbase/internal/connectors/filesystem"
	"github.com/custodia-labs/kbase/internal/core/domain"
	"github.com/custodia-labs/kbase/internal/core/ports/driving"
)

var addName string

var addCmd = &cobra.Command{
	Use:   "add [file.pdf|directory|url...]",
	Short: "Load PDFs and web pages into the knowledge base",
	Long: `Loads each argument, splits it into chunks, embeds and indexes them.

Arguments may be PDF files, directories (every PDF under them is added
once) or http(s) URLs. Sources are processed concurrently; a failing
source does not stop the others.

Examples:
  kbase add ~/papers/ipcc-ar6.pdf
  kbase add https://climate.nasa.gov/evidence/ --name "NASA Evidence"
  kbase add ~/papers`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAdd,
}

func init() {
	addCmd.Flags().StringVarP(&addName, "name", "n", "", "source name (single source only)")
	rootCmd.AddCommand(addCmd)
}

func runAdd(cmd *cobra.Command, args []string) error {
	if ingestService == nil {
		return errors.New("ingest service not configured")
	}
	if addName != "" && len(args) > 1 {
		return fmt.Errorf("%w: --name applies to a single source", domain.ErrInvalidInput)
	}

	var (
		sources  []domain.Source
		outcomes []driving.IngestOutcome
	)
	for _, arg := range args {
		if isURL(arg) {
			sources = append(sources, domain.URLSource(arg).WithName(addName))
			continue
		}

		path, _ := filesystem.ResolvePath(arg)
		abs, err := filepath.Abs(path)
		if err != nil {
			return fmt.Errorf("failed to resolve %s: %w", arg, err)
		}
		info, err := os.Stat(abs)
		if err != nil {
			outcomes = append(outcomes, failedOutcome(cmd, abs, err))
			continue
		}
		if info.IsDir() {
			dirOutcomes, err := addDirectory(cmd, abs)
			if err != nil {
				return err
			}
			outcomes = append(outcomes, dirOutcomes...)
			continue
		}

		data, err := os.ReadFile(abs)
		if err != nil {
			outcomes = append(outcomes, failedOutcome(cmd, abs, err))
			continue
		}
		sources = append(sources, domain.PDFSource(abs, data).WithName(addName))
	}

	if len(sources) > 0 {
		progress := newIngestProgress(cmd, len(sources), "loading")
		results := ingestService.IngestAll(cmd.Context(), sources, progress.Report)
		progress.Finish(results)
		outcomes = append(outcomes, results...)
	}

	if n := failures(outcomes); n > 0 {
		return fmt.Errorf("%d of %d sources failed", n, len(outcomes))
	}
	return nil
}

func addDirectory(cmd *cobra.Command, dir string) ([]driving.IngestOutcome, error) {
	if folderService == nil {
		return nil, errors.New("folder service not configured")
	}

	src := newFileSource(dir)
	defer src.Close()

	report, err := folderService.Sync(cmd.Context(), src, false, func(o driving.IngestOutcome) {
		printOutcome(cmd.OutOrStdout(), o)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", dir, err)
	}
	if report.Unchanged > 0 {
		cmd.Printf("  %d files in %s already loaded\n", report.Unchanged, dir)
	}
	return report.Ingested, nil
}

func newFileSource(dir string) *filesystem.Connector {
	var opts []filesystem.Option
	if appConfig != nil {
		opts = append(opts,
			filesystem.WithInclude(appConfig.Watch.Include...),
			filesystem.WithExclude(appConfig.Watch.Exclude...),
		)
	}
	return filesystem.New(dir, opts...)
}

// failedOutcome records and prints a source that could not be read.
func failedOutcome(cmd *cobra.Command, path string, err error) driving.IngestOutcome {
	o := driving.IngestOutcome{
		Source: domain.PDFSource(path, nil),
		Err:    &domain.SourceError{Locator: path, Err: err},
	}
	printOutcome(cmd.OutOrStdout(), o)
	return o
}

func isURL(s string) bool {
	lower := strings.ToLower(s)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}
