// Command kbase is a document ingestion and retrieval engine.
package main

import (
	"context"
	"os"

	"github.com/custodia-labs/kbase/internal/adapters/driving/cli"
	"github.com/custodia-labs/kbase/internal/app"
	"github.com/custodia-labs/kbase/internal/logger"
)

// version is set by -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cli.SetVersion(version)
	cli.SetBootstrap(bootstrap)

	// cobra has already printed the error.
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}

func bootstrap(_ context.Context, configPath string) (*cli.Services, error) {
	a, err := app.Load(configPath)
	if err != nil {
		return nil, err
	}

	return &cli.Services{
		Ingest:        a.Ingest,
		Retrieval:     a.Retrieval,
		Citations:     a.Citations,
		KnowledgeBase: a.KnowledgeBase,
		Folders:       a.Folders,
		ConfigStore:   a.ConfigStore,
		Config:        a.Config,
		Cleanup: func() {
			if err := a.Close(); err != nil {
				logger.Warn("shutdown: %v", err)
			}
		},
	}, nil
}
