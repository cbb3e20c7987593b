// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the application to function:
//
//   - Normaliser: Extracts plain text from raw bytes (PDF, HTML, text)
//   - NormaliserRegistry: Selects the normaliser for a MIME type
//   - Fetcher: Retrieves web pages over HTTP(S)
//   - Chunker: Splits document text into overlapping windows
//   - EmbeddingService: Turns text into vectors
//   - VectorIndex: Stores entries and answers nearest-neighbour queries
//   - DocumentStore: Document, chunk and entry persistence
//   - FileSource: Local directory scanning and watching (directory ingestion only)
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - SearchEngine: BM25 keyword search (bleve). Without it keyword and hybrid
//     retrieval are unavailable.
//   - ConfigStore: Flat key access to the configuration file.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter, connector, or normaliser package
package driven
