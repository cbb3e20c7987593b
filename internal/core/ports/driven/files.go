package driven

import (
	"context"

	"github.com/custodia-labs/kbase/internal/core/domain"
)

// FileSource is a local directory of PDF files that can be scanned and watched.
type FileSource interface {
	// Root returns the directory path.
	Root() string

	// Scan returns every matching file path in lexical order.
	Scan(ctx context.Context) ([]string, error)

	// Matches reports whether a path is one the source would return.
	Matches(path string) bool

	// ReadFile returns a matching file's bytes.
	ReadFile(path string) ([]byte, error)

	// Watch emits changes until ctx is cancelled, then closes the channel.
	Watch(ctx context.Context) (<-chan domain.FileChange, error)

	// Close stops any active watch.
	Close() error
}
