package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/kbase/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/kbase/internal/core/domain"
	"github.com/custodia-labs/kbase/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.DocumentStore = (*Store)(nil)

const (
	metaSpaceModel      = "space.model"
	metaSpaceDimensions = "space.dimensions"
)

// Store is a SQLite implementation of driven.DocumentStore.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore opens or creates the database at path.
// If path is empty, defaults to ~/.kbase/kbase.db.
func NewStore(path string) (*Store, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		path = filepath.Join(home, ".kbase", "kbase.db")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	// Pragmas in the DSN apply to every pooled connection.
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// One writer at a time; avoids SQLITE_BUSY on read-to-write upgrades.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, path: path}
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys fs.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			upFiles = append(upFiles, entry.Name())
		}
	}
	slices.Sort(upFiles)

	for _, name := range upFiles {
		// "001_init.up.sql" -> 1
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}
	return nil
}

// Save stores a document with its chunks and entries in one transaction.
func (s *Store) Save(ctx context.Context, doc *domain.Document, chunks []domain.Chunk, entries []domain.IndexEntry) error {
	if doc == nil || doc.ID == "" {
		return fmt.Errorf("%w: document without ID", domain.ErrInvalidInput)
	}

	metadataJSON, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("marshalling metadata: %w", err)
	}
	if string(metadataJSON) == "null" {
		metadataJSON = []byte("{}")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var exists int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents WHERE id = ?", doc.ID).Scan(&exists); err != nil {
		return fmt.Errorf("checking document: %w", err)
	}
	if exists > 0 {
		return fmt.Errorf("%w: document %s already stored", domain.ErrInvalidInput, doc.ID)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO documents (id, kind, locator, source_name, title, raw_text, metadata, retrieved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, doc.ID, string(doc.Origin.Kind), doc.Origin.Locator, doc.SourceName, doc.Title,
		doc.RawText, string(metadataJSON), doc.RetrievedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("saving document: %w", err)
	}

	chunkStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, document_id, sequence, text, span_start, span_end)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing chunk statement: %w", err)
	}
	defer chunkStmt.Close()

	for _, c := range chunks {
		if _, err := chunkStmt.ExecContext(ctx, c.ID, doc.ID, c.Sequence, c.Text, c.Span.Start, c.Span.End); err != nil {
			return fmt.Errorf("saving chunk: %w", err)
		}
	}

	entryStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO entries (chunk_id, document_id, vector) VALUES (?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing entry statement: %w", err)
	}
	defer entryStmt.Close()

	for _, e := range entries {
		if _, err := entryStmt.ExecContext(ctx, e.ChunkID, doc.ID, float32SliceToBytes(e.Vector)); err != nil {
			return fmt.Errorf("saving entry: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

const documentColumns = `id, kind, locator, source_name, title, raw_text, metadata, retrieved_at`

// GetDocument retrieves a document by ID.
func (s *Store) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = ?`, id)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: document %s", domain.ErrNotFound, id)
	}
	return doc, err
}

// GetChunks retrieves all chunks for a document in sequence order.
func (s *Store) GetChunks(ctx context.Context, documentID string) ([]domain.Chunk, error) {
	if err := s.requireDocument(ctx, documentID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, sequence, text, span_start, span_end
		FROM chunks WHERE document_id = ?
		ORDER BY sequence
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var chunks []domain.Chunk //nolint:prealloc // size unknown from query
	for rows.Next() {
		var c domain.Chunk
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Sequence, &c.Text, &c.Span.Start, &c.Span.End); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}
	return chunks, nil
}

// ListDocuments returns every document with its chunk count, oldest first.
func (s *Store) ListDocuments(ctx context.Context) ([]domain.DocumentSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT d.id, d.kind, d.locator, d.source_name, d.title, d.raw_text, d.metadata, d.retrieved_at,
		       (SELECT COUNT(*) FROM chunks c WHERE c.document_id = d.id)
		FROM documents d
		ORDER BY d.seq
	`)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var out []domain.DocumentSummary //nolint:prealloc // size unknown from query
	for rows.Next() {
		var count int
		doc, err := scanDocumentFields(rows.Scan, &count)
		if err != nil {
			return nil, err
		}
		out = append(out, domain.DocumentSummary{Document: *doc, ChunkCount: count})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}
	return out, nil
}

// LoadEntries returns every stored entry in insertion order, with snapshots
// rebuilt from the chunk and document rows.
func (s *Store) LoadEntries(ctx context.Context) ([]domain.IndexEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT e.chunk_id, e.document_id, e.vector,
		       c.text, c.sequence, c.span_start, c.span_end,
		       d.kind, d.locator, d.source_name, d.title, d.retrieved_at
		FROM entries e
		JOIN chunks c ON c.id = e.chunk_id
		JOIN documents d ON d.id = e.document_id
		ORDER BY e.seq
	`)
	if err != nil {
		return nil, fmt.Errorf("querying entries: %w", err)
	}
	defer rows.Close()

	var out []domain.IndexEntry //nolint:prealloc // size unknown from query
	for rows.Next() {
		var (
			e           domain.IndexEntry
			vector      []byte
			kind        string
			retrievedAt string
		)
		if err := rows.Scan(&e.ChunkID, &e.DocumentID, &vector,
			&e.Snapshot.Text, &e.Snapshot.Sequence, &e.Snapshot.Span.Start, &e.Snapshot.Span.End,
			&kind, &e.Snapshot.Origin.Locator, &e.Snapshot.SourceName, &e.Snapshot.Title, &retrievedAt); err != nil {
			return nil, fmt.Errorf("scanning entry: %w", err)
		}
		e.Vector = bytesToFloat32Slice(vector)
		e.Snapshot.Origin.Kind = domain.OriginKind(kind)
		if e.Snapshot.RetrievedAt, err = time.Parse(time.RFC3339Nano, retrievedAt); err != nil {
			return nil, fmt.Errorf("parsing retrieved_at: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating entries: %w", err)
	}
	return out, nil
}

// DeleteDocument removes a document, its chunks and its entries in one transaction.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, q := range []string{
		"DELETE FROM entries WHERE document_id = ?",
		"DELETE FROM chunks WHERE document_id = ?",
	} {
		if _, err := tx.ExecContext(ctx, q, id); err != nil {
			return fmt.Errorf("deleting document %s: %w", id, err)
		}
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting document %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: document %s", domain.ErrNotFound, id)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Space returns the persisted embedding space tag.
func (s *Store) Space(ctx context.Context) (domain.EmbeddingSpace, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT key, value FROM kb_meta WHERE key IN (?, ?)",
		metaSpaceModel, metaSpaceDimensions)
	if err != nil {
		return domain.EmbeddingSpace{}, fmt.Errorf("querying space: %w", err)
	}
	defer rows.Close()

	var space domain.EmbeddingSpace
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return domain.EmbeddingSpace{}, fmt.Errorf("scanning space: %w", err)
		}
		switch key {
		case metaSpaceModel:
			space.Model = value
		case metaSpaceDimensions:
			if space.Dimensions, err = strconv.Atoi(value); err != nil {
				return domain.EmbeddingSpace{}, fmt.Errorf("parsing space dimensions: %w", err)
			}
		}
	}
	return space, rows.Err()
}

// SetSpace persists the embedding space tag.
func (s *Store) SetSpace(ctx context.Context, space domain.EmbeddingSpace) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for key, value := range map[string]string{
		metaSpaceModel:      space.Model,
		metaSpaceDimensions: strconv.Itoa(space.Dimensions),
	} {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO kb_meta (key, value) VALUES (?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value
		`, key, value); err != nil {
			return fmt.Errorf("saving %s: %w", key, err)
		}
	}
	return tx.Commit()
}

// Clear removes every document and the space tag.
func (s *Store) Clear(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, table := range []string{"entries", "chunks", "documents", "kb_meta"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clearing %s: %w", table, err)
		}
	}
	return tx.Commit()
}

func (s *Store) requireDocument(ctx context.Context, id string) error {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents WHERE id = ?", id).Scan(&n); err != nil {
		return fmt.Errorf("checking document: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: document %s", domain.ErrNotFound, id)
	}
	return nil
}

// ==================== Helper Functions ====================

// float32SliceToBytes converts a []float32 to a byte slice for storage.
func float32SliceToBytes(floats []float32) []byte {
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice converts a byte slice back to []float32.
func bytesToFloat32Slice(data []byte) []float32 {
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}

// scanDocument scans a single document row.
func scanDocument(row *sql.Row) (*domain.Document, error) {
	return scanDocumentFields(row.Scan)
}

// scanDocumentFields scans documentColumns followed by any extra destinations.
func scanDocumentFields(scan func(dest ...any) error, extra ...any) (*domain.Document, error) {
	var (
		doc          domain.Document
		kind         string
		metadataJSON string
		retrievedAt  string
	)
	dest := append([]any{&doc.ID, &kind, &doc.Origin.Locator, &doc.SourceName, &doc.Title,
		&doc.RawText, &metadataJSON, &retrievedAt}, extra...)
	if err := scan(dest...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning document: %w", err)
	}

	doc.Origin.Kind = domain.OriginKind(kind)
	if metadataJSON != "" {
		if err := json.Unmarshal([]byte(metadataJSON), &doc.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshalling metadata: %w", err)
		}
	}
	t, err := time.Parse(time.RFC3339Nano, retrievedAt)
	if err != nil {
		return nil, fmt.Errorf("parsing retrieved_at: %w", err)
	}
	doc.RetrievedAt = t
	return &doc, nil
}
