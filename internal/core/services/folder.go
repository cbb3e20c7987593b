package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/custodia-labs/kbase/internal/core/domain"
	"github.com/custodia-labs/kbase/internal/core/ports/driven"
	"github.com/custodia-labs/kbase/internal/core/ports/driving"
	"github.com/custodia-labs/kbase/internal/logger"
)

// Ensure FolderService implements the interface.
var _ driving.FolderService = (*FolderService)(nil)

// FolderService mirrors a directory of PDFs into the knowledge base.
// Documents are matched to files by their locator, the file path.
type FolderService struct {
	ingest driving.IngestService
	kb     driving.KnowledgeBaseService
}

// NewFolderService creates a folder service.
func NewFolderService(ingest driving.IngestService, kb driving.KnowledgeBaseService) *FolderService {
	return &FolderService{ingest: ingest, kb: kb}
}

// Sync ingests every matching file without a document and optionally
// prunes documents whose file is gone.
func (s *FolderService) Sync(
	ctx context.Context,
	src driven.FileSource,
	prune bool,
	progress func(driving.IngestOutcome),
) (*driving.FolderReport, error) {
	paths, err := src.Scan(ctx)
	if err != nil {
		return nil, err
	}
	byPath, err := s.documentsUnder(ctx, src.Root())
	if err != nil {
		return nil, err
	}

	report := &driving.FolderReport{}
	var sources []domain.Source
	seen := make(map[string]bool, len(paths))
	for _, path := range paths {
		seen[path] = true
		if len(byPath[path]) > 0 {
			report.Unchanged++
			continue
		}
		data, err := src.ReadFile(path)
		if err != nil {
			outcome := driving.IngestOutcome{
				Source: domain.PDFSource(path, nil),
				Err:    &domain.SourceError{Locator: path, Err: err},
			}
			report.Ingested = append(report.Ingested, outcome)
			if progress != nil {
				progress(outcome)
			}
			continue
		}
		sources = append(sources, domain.PDFSource(path, data))
	}

	logger.Debug("folder sync %s: %d new, %d unchanged", src.Root(), len(sources), report.Unchanged)
	report.Ingested = append(report.Ingested, s.ingest.IngestAll(ctx, sources, progress)...)

	if !prune {
		return report, nil
	}
	var errs []error
	for path, ids := range byPath {
		if seen[path] {
			continue
		}
		if _, err := os.Stat(path); err == nil {
			continue
		}
		for _, id := range ids {
			if err := s.kb.Remove(ctx, id); err != nil && !errors.Is(err, domain.ErrNotFound) {
				errs = append(errs, err)
				continue
			}
			report.Removed = append(report.Removed, id)
		}
	}
	return report, errors.Join(errs...)
}

// Watch ingests created files, replaces updated ones and removes deleted
// ones until ctx is cancelled. A failed change is reported and skipped.
func (s *FolderService) Watch(ctx context.Context, src driven.FileSource, onEvent func(driving.FolderEvent)) error {
	changes, err := src.Watch(ctx)
	if err != nil {
		return err
	}
	defer src.Close()

	logger.Info("watching %s", src.Root())
	for change := range changes {
		ev := s.apply(ctx, src, change)
		if ev.Err != nil {
			logger.Warn("%s %s: %v", change.Type, change.Path, ev.Err)
		}
		if onEvent != nil {
			onEvent(ev)
		}
	}
	if ctx.Err() != nil {
		return nil
	}
	return errors.New("watcher stopped")
}

func (s *FolderService) apply(ctx context.Context, src driven.FileSource, change domain.FileChange) driving.FolderEvent {
	ev := driving.FolderEvent{Change: change}

	previous, err := s.documentsAt(ctx, change.Path)
	if err != nil {
		ev.Err = err
		return ev
	}

	if change.Type != domain.ChangeDeleted {
		data, err := src.ReadFile(change.Path)
		if err != nil {
			ev.Err = &domain.SourceError{Locator: change.Path, Err: err}
			return ev
		}
		doc, err := s.ingest.Ingest(ctx, domain.PDFSource(change.Path, data))
		if err != nil {
			// The previous version stays searchable.
			ev.Err = err
			return ev
		}
		ev.DocumentID = doc.ID
	}

	var errs []error
	for _, id := range previous {
		if err := s.kb.Remove(ctx, id); err != nil && !errors.Is(err, domain.ErrNotFound) {
			errs = append(errs, err)
			continue
		}
		ev.Removed = append(ev.Removed, id)
	}
	ev.Err = errors.Join(errs...)
	return ev
}

// documentsUnder maps file paths under root to the IDs of PDF documents
// loaded from them.
func (s *FolderService) documentsUnder(ctx context.Context, root string) (map[string][]string, error) {
	docs, err := s.kb.List(ctx)
	if err != nil {
		return nil, err
	}

	prefix := filepath.Clean(root) + string(filepath.Separator)
	byPath := make(map[string][]string)
	for i := range docs {
		d := &docs[i].Document
		if d.Origin.Kind != domain.OriginPDF || !strings.HasPrefix(d.Origin.Locator, prefix) {
			continue
		}
		byPath[d.Origin.Locator] = append(byPath[d.Origin.Locator], d.ID)
	}
	return byPath, nil
}

func (s *FolderService) documentsAt(ctx context.Context, path string) ([]string, error) {
	byPath, err := s.documentsUnder(ctx, filepath.Dir(path))
	if err != nil {
		return nil, err
	}
	return byPath[path], nil
}
