// Package domain defines the core entities of the knowledge base.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Document: A loaded source with its normalised text
//   - Chunk: A contiguous window of a document's text
//   - IndexEntry: A chunk's vector plus a metadata snapshot
//   - RetrievalResult: A scored chunk returned for a query
//   - Citation: A human-readable reference to a retrieved chunk
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
