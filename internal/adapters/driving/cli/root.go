// Package cli provides the kbase command-line interface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/kbase/internal/adapters/driven/config/file"
	"github.com/custodia-labs/kbase/internal/core/domain"
	"github.com/custodia-labs/kbase/internal/core/ports/driven"
	"github.com/custodia-labs/kbase/internal/core/ports/driving"
	"github.com/custodia-labs/kbase/internal/logger"
)

// Command annotations read by the root pre-run hook.
const (
	// annotationNoServices marks commands that never touch the knowledge base.
	annotationNoServices = "kbase.no-services"
	// annotationSkipInit marks commands that need services but must not
	// restore the knowledge base first.
	annotationSkipInit = "kbase.skip-init"
)

// version is set at build time.
var version = "dev"

var (
	verbose    bool
	configPath string
)

// Services wired by the bootstrap.
var (
	ingestService    driving.IngestService
	retrievalService driving.RetrievalService
	citationService  driving.CitationService
	knowledgeBase    driving.KnowledgeBaseService
	folderService    driving.FolderService
	configStore      driven.ConfigStore
	appConfig        *file.Config
	cleanup          func()
)

// Services is the set of ports the commands drive.
// Any field may be nil; commands that need it report it as not configured.
type Services struct {
	Ingest        driving.IngestService
	Retrieval     driving.RetrievalService
	Citations     driving.CitationService
	KnowledgeBase driving.KnowledgeBaseService
	Folders       driving.FolderService
	ConfigStore   driven.ConfigStore
	Config        *file.Config

	// Cleanup releases resources after the command ran.
	Cleanup func()
}

// Bootstrap builds the services from the config file at path.
// An empty path means the default location.
type Bootstrap func(ctx context.Context, path string) (*Services, error)

var bootstrap Bootstrap

// SetBootstrap installs the function that builds services before a command runs.
func SetBootstrap(b Bootstrap) {
	bootstrap = b
}

// SetServices installs services directly.
func SetServices(s *Services) {
	ingestService = s.Ingest
	retrievalService = s.Retrieval
	citationService = s.Citations
	knowledgeBase = s.KnowledgeBase
	folderService = s.Folders
	configStore = s.ConfigStore
	appConfig = s.Config
	cleanup = s.Cleanup
}

// SetVersion sets the version string reported by `kbase version`.
func SetVersion(v string) {
	version = v
}

var rootCmd = &cobra.Command{
	Use:   "kbase",
	Short: "Ingest documents and retrieve cited passages",
	Long: `kbase loads PDFs and web pages into a local knowledge base, splits them
into overlapping chunks, embeds them and answers queries with the most
similar passages and their citations.`,
	SilenceUsage:       true,
	PersistentPreRunE:  setupServices,
	PersistentPostRunE: teardownServices,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.kbase/config.toml)")
}

// Execute runs the root command until it finishes or the process is interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer teardownServices(nil, nil) //nolint:errcheck // never fails

	return rootCmd.ExecuteContext(ctx)
}

func setupServices(cmd *cobra.Command, _ []string) error {
	logger.SetVerbose(verbose)

	if cmd.Annotations[annotationNoServices] == "true" {
		return nil
	}

	if bootstrap != nil {
		services, err := bootstrap(cmd.Context(), configPath)
		if err != nil {
			return fmt.Errorf("failed to start: %w", err)
		}
		SetServices(services)
	}

	if knowledgeBase == nil || cmd.Annotations[annotationSkipInit] == "true" {
		return nil
	}
	if err := knowledgeBase.Init(cmd.Context()); err != nil {
		if errors.Is(err, domain.ErrEmbeddingMismatch) {
			return fmt.Errorf("%w\nthe stored index was built with another embedding model; run `kbase clear` or restore the previous [embedding] settings", err)
		}
		return fmt.Errorf("failed to initialise knowledge base: %w", err)
	}
	return nil
}

func teardownServices(_ *cobra.Command, _ []string) error {
	if cleanup != nil {
		cleanup()
		cleanup = nil
	}
	return nil
}

// retrievalDefaults returns the configured retrieval options.
func retrievalDefaults() domain.RetrievalOptions {
	if appConfig == nil {
		return domain.RetrievalOptions{K: 3, Mode: domain.RetrievalSemantic}
	}
	return domain.RetrievalOptions{
		K:        appConfig.Retrieval.TopK,
		Mode:     domain.RetrievalMode(appConfig.Retrieval.Mode),
		MinScore: appConfig.Retrieval.MinScore,
	}
}
