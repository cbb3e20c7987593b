// Package sqlite provides a SQLite-backed driven.DocumentStore.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that
// requires no CGO. Documents, chunks and index entries live in one database
// so a knowledge base survives restarts; the vector and keyword indexes are
// rebuilt from it at startup.
//
// # Schema
//
// The schema is managed through versioned migrations embedded from the
// migrations/ directory (NNN_name.up.sql).
//
// # Data Location
//
// By default, the database is stored at ~/.kbase/kbase.db.
//
// # Thread Safety
//
// All operations are thread-safe. The store relies on SQLite in WAL mode with
// a busy timeout; Save and DeleteDocument each run in one transaction.
package sqlite
