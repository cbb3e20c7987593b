package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/kbase/internal/core/domain"
	"github.com/custodia-labs/kbase/internal/core/ports/driving"
)

var watchPrune bool

var watchCmd = &cobra.Command{
	Use:   "watch [directory]",
	Short: "Keep the knowledge base in step with a folder of PDFs",
	Long: `Adds every PDF under the directory that is not loaded yet, then watches
it: new files are added, changed files are reloaded and deleted files are
removed. Stops on Ctrl+C.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().BoolVar(&watchPrune, "prune", false, "remove documents whose file disappeared while not watching")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	if folderService == nil {
		return errors.New("folder service not configured")
	}

	dir, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", args[0], err)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", domain.ErrInvalidInput, dir)
	}

	src := newFileSource(dir)
	report, err := folderService.Sync(cmd.Context(), src, watchPrune, func(o driving.IngestOutcome) {
		printOutcome(cmd.OutOrStdout(), o)
	})
	if err != nil {
		return fmt.Errorf("initial sync failed: %w", err)
	}
	cmd.Printf("Synced %s: %d added, %d unchanged, %d removed\n",
		dir, len(report.Ingested)-failures(report.Ingested), report.Unchanged, len(report.Removed))

	cmd.Println("Watching for changes (Ctrl+C to stop)...")
	return folderService.Watch(cmd.Context(), src, func(ev driving.FolderEvent) {
		switch {
		case ev.Err != nil:
			cmd.Printf("  ✗ %s %s: %v\n", ev.Change.Type, filepath.Base(ev.Change.Path), ev.Err)
		case ev.Change.Type == domain.ChangeDeleted:
			cmd.Printf("  - %s (%d removed)\n", filepath.Base(ev.Change.Path), len(ev.Removed))
		default:
			cmd.Printf("  + %s %s\n", filepath.Base(ev.Change.Path), ev.DocumentID)
		}
	})
}
