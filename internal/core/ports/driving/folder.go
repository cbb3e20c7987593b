package driving

import (
	"context"

	"github.com/custodia-labs/kbase/internal/core/domain"
	"github.com/custodia-labs/kbase/internal/core/ports/driven"
)

// FolderService keeps the knowledge base in step with a directory of PDFs.
type FolderService interface {
	// Sync ingests files not yet in the knowledge base and, when prune is
	// set, removes documents whose file under the root no longer exists.
	Sync(ctx context.Context, src driven.FileSource, prune bool, progress func(IngestOutcome)) (*FolderReport, error)

	// Watch applies file changes until ctx is cancelled. onEvent, if
	// non-nil, is called once per applied change.
	Watch(ctx context.Context, src driven.FileSource, onEvent func(FolderEvent)) error
}

// FolderReport summarises a Sync.
type FolderReport struct {
	// Ingested holds one outcome per new file, in scan order.
	Ingested []IngestOutcome
	// Removed lists the IDs of pruned documents.
	Removed []string
	// Unchanged counts files already present.
	Unchanged int
}

// FolderEvent is the result of applying one file change.
type FolderEvent struct {
	Change     domain.FileChange
	DocumentID string
	Removed    []string
	Err        error
}
