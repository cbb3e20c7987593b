// Package app wires the adapters and services from a configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/custodia-labs/kbase/internal/adapters/driven/ai"
	"github.com/custodia-labs/kbase/internal/adapters/driven/config/file"
	"github.com/custodia-labs/kbase/internal/adapters/driven/search/bleve"
	"github.com/custodia-labs/kbase/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/kbase/internal/adapters/driven/storage/sqlite"
	vectormemory "github.com/custodia-labs/kbase/internal/adapters/driven/vectorindex/memory"
	"github.com/custodia-labs/kbase/internal/connectors/web"
	"github.com/custodia-labs/kbase/internal/core/domain"
	"github.com/custodia-labs/kbase/internal/core/ports/driven"
	"github.com/custodia-labs/kbase/internal/core/services"
	"github.com/custodia-labs/kbase/internal/logger"
	"github.com/custodia-labs/kbase/internal/normalisers"
	"github.com/custodia-labs/kbase/internal/postprocessors/chunker"
)

// App holds every wired component.
type App struct {
	Config      *file.Config
	ConfigStore *file.ConfigStore

	Store    driven.DocumentStore
	Index    *vectormemory.Index
	Search   *bleve.Engine
	Embedder driven.EmbeddingService

	KnowledgeBase *services.KnowledgeBase
	Ingest        *services.IngestService
	Retrieval     *services.RetrievalService
	Citations     *services.CitationService
	Folders       *services.FolderService

	closers []io.Closer
}

// Load reads the config file at path (default ~/.kbase/config.toml) and
// builds the application from it.
func Load(path string) (*App, error) {
	if path == "" {
		dir, err := file.DefaultDir()
		if err != nil {
			return nil, fmt.Errorf("failed to locate home directory: %w", err)
		}
		path = filepath.Join(dir, "config.toml")
	}

	cfg, err := file.Load(path)
	if err != nil {
		return nil, err
	}
	store, err := file.NewConfigStore(path)
	if err != nil {
		return nil, err
	}

	a, err := New(cfg)
	if err != nil {
		return nil, err
	}
	a.ConfigStore = store
	return a, nil
}

// New builds the application from cfg. Nothing is restored until
// KnowledgeBase.Init is called.
func New(cfg *file.Config) (*App, error) {
	a := &App{Config: cfg}

	if err := a.initStorage(); err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	if err := a.initServices(); err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	logger.Debug("app ready: embedding %s, metric %s, storage %q",
		a.KnowledgeBase.EmbedderSpace(), cfg.Retrieval.Metric, cfg.Storage.Path)
	return a, nil
}

// initStorage opens the document store and the indexes.
func (a *App) initStorage() error {
	if a.Config.Storage.Path == "" {
		a.Store = memory.NewDocumentStore()
	} else {
		store, err := sqlite.NewStore(a.Config.Storage.Path)
		if err != nil {
			return err
		}
		a.Store = store
		a.closers = append(a.closers, store)
	}

	index, err := vectormemory.New(vectormemory.WithMetric(domain.Metric(a.Config.Retrieval.Metric)))
	if err != nil {
		return err
	}
	a.Index = index
	a.closers = append(a.closers, index)

	search, err := bleve.New()
	if err != nil {
		return err
	}
	a.Search = search
	a.closers = append(a.closers, search)
	return nil
}

func (a *App) initServices() error {
	cfg := a.Config

	embedder, err := ai.CreateEmbeddingService(cfg.Embedding)
	if err != nil {
		return err
	}
	a.Embedder = embedder
	a.closers = append(a.closers, embedder)

	ch, err := chunker.New(
		chunker.WithChunkSize(cfg.Chunking.Size),
		chunker.WithOverlap(cfg.Chunking.Overlap),
		chunker.WithUnit(chunker.Unit(cfg.Chunking.Unit)),
	)
	if err != nil {
		return err
	}

	fetcher := web.NewFetcher(web.Config{
		Timeout:           cfg.Fetch.TimeoutDuration(),
		UserAgent:         cfg.Fetch.UserAgent,
		MaxBodyBytes:      cfg.Fetch.MaxBodyBytes,
		RequestsPerSecond: cfg.Fetch.RequestsPerSecond,
	})

	a.KnowledgeBase = services.NewKnowledgeBase(a.Store, a.Index, a.Search, embedder)
	loader := services.NewLoaderService(fetcher, normalisers.NewDefaultRegistry())
	a.Ingest = services.NewIngestService(loader, ch, embedder, a.KnowledgeBase)
	a.Retrieval = services.NewRetrievalService(a.Index, a.Search, embedder)
	a.Citations = services.NewCitationService(cfg.Retrieval.ExcerptLength)
	a.Folders = services.NewFolderService(a.Ingest, a.KnowledgeBase)
	return nil
}

// Init restores the knowledge base from the document store.
func (a *App) Init(ctx context.Context) error {
	return a.KnowledgeBase.Init(ctx)
}

// Close releases every resource in reverse order of creation.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
