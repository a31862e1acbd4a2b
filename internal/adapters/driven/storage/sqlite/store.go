package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/notedex/notedex/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/notedex/notedex/internal/core/domain"
	"github.com/notedex/notedex/internal/core/ports/driven"
	"github.com/notedex/notedex/internal/logger"
)

// Ensure Store implements the interface.
var _ driven.CacheStore = (*Store)(nil)

// Store is the SQLite-backed cache store.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a store at the specified data directory.
// If dataDir is empty, defaults to ~/.notedex/data/cache.db.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".notedex", "data")
	}

	// Ensure directory exists
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "cache.db")

	// Open database with WAL mode for better concurrency
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	// Run migrations
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
func (s *Store) migrate(fsys embed.FS) error {
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
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue // Skip files that don't match pattern
		}

		if version <= currentVersion {
			continue // Already applied
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

// ==================== Documents ====================

const documentColumns = `id, notebook_id, section_id, path, title, content,
	content_hash, remote_modified, last_synced, state`

// UpsertDocument stores or updates a document.
func (s *Store) UpsertDocument(ctx context.Context, doc *domain.Document) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (id, notebook_id, section_id, path, title, content,
			content_hash, remote_modified, last_synced, state)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			notebook_id = excluded.notebook_id,
			section_id = excluded.section_id,
			path = excluded.path,
			title = excluded.title,
			content = excluded.content,
			content_hash = excluded.content_hash,
			remote_modified = excluded.remote_modified,
			last_synced = excluded.last_synced,
			state = excluded.state
	`, doc.ID, doc.NotebookID, doc.SectionID, doc.Path, doc.Title, doc.Content,
		doc.ContentHash, doc.RemoteModified.UTC(), doc.LastSynced.UTC(), string(doc.State))

	if err != nil {
		return fmt.Errorf("saving document: %w", err)
	}
	return nil
}

// GetDocument retrieves a document by id, including tombstones.
func (s *Store) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+documentColumns+" FROM documents WHERE id = ?", id)
	return scanDocumentRow(row)
}

// ListByBranch returns all documents in a section ordered by path.
func (s *Store) ListByBranch(ctx context.Context, branchID string) ([]domain.Document, error) {
	return s.queryDocuments(ctx,
		"SELECT "+documentColumns+" FROM documents WHERE section_id = ? ORDER BY path", branchID)
}

// ListStale returns searchable documents last synced before the cutoff.
func (s *Store) ListStale(ctx context.Context, olderThan time.Time) ([]domain.Document, error) {
	return s.queryDocuments(ctx,
		"SELECT "+documentColumns+` FROM documents
		 WHERE last_synced < ? AND state IN ('fresh', 'stale')
		 ORDER BY last_synced`, olderThan.UTC())
}

// ListRecentlyModified returns searchable documents, newest remote
// modification first.
func (s *Store) ListRecentlyModified(ctx context.Context, limit int) ([]domain.Document, error) {
	if limit <= 0 {
		limit = 10
	}
	return s.queryDocuments(ctx,
		"SELECT "+documentColumns+` FROM documents
		 WHERE state IN ('fresh', 'stale')
		 ORDER BY remote_modified DESC, id LIMIT ?`, limit)
}

// AllDocuments returns every non-deleted document.
func (s *Store) AllDocuments(ctx context.Context) ([]domain.Document, error) {
	return s.queryDocuments(ctx,
		"SELECT "+documentColumns+" FROM documents WHERE state != 'deleted'")
}

// MarkDeleted soft-deletes a document and drops its chunks. The
// tombstone keeps the hierarchy position and hash for future diffing.
func (s *Store) MarkDeleted(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx,
		"UPDATE documents SET state = 'deleted', content = '' WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("marking deleted: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("marking deleted: %w", err)
	}
	if affected == 0 {
		return domain.ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE document_id = ?", id); err != nil {
		return fmt.Errorf("deleting chunks: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func (s *Store) queryDocuments(ctx context.Context, query string, args ...any) ([]domain.Document, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.Document //nolint:prealloc // size unknown from query
	for rows.Next() {
		doc, err := scanDocumentRows(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}
	return docs, nil
}

// ==================== Chunks ====================

// GetChunks retrieves all chunks for a document in position order.
func (s *Store) GetChunks(ctx context.Context, documentID string) ([]domain.Chunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, position, start_offset, end_offset, content, embedding, state
		FROM chunks WHERE document_id = ?
		ORDER BY position
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var chunks []domain.Chunk //nolint:prealloc // size unknown from query
	for rows.Next() {
		chunk, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, *chunk)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}
	return chunks, nil
}

// GetChunk retrieves one chunk by id.
func (s *Store) GetChunk(ctx context.Context, id string) (*domain.Chunk, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, document_id, position, start_offset, end_offset, content, embedding, state
		FROM chunks WHERE id = ?
	`, id)

	var chunk domain.Chunk
	var embeddingBlob []byte
	var state string
	if err := row.Scan(&chunk.ID, &chunk.DocumentID, &chunk.Position,
		&chunk.StartOffset, &chunk.EndOffset, &chunk.Content, &embeddingBlob, &state); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning chunk: %w", err)
	}
	chunk.Embedding = bytesToFloat32Slice(embeddingBlob)
	chunk.State = domain.ChunkState(state)
	return &chunk, nil
}

// ReplaceChunks atomically swaps a document's chunk set. The delete and
// inserts share one transaction, so concurrent readers observe either
// the previous set or the new one.
func (s *Store) ReplaceChunks(ctx context.Context, documentID string, chunks []domain.Chunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE document_id = ?", documentID); err != nil {
		return fmt.Errorf("deleting old chunks: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, document_id, position, start_offset, end_offset, content, embedding, state)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, chunk := range chunks {
		if chunk.DocumentID != documentID {
			return fmt.Errorf("%w: chunk %s belongs to document %s",
				domain.ErrInvalidInput, chunk.ID, chunk.DocumentID)
		}
		embeddingBlob := float32SliceToBytes(chunk.Embedding)
		if _, err := stmt.ExecContext(ctx, chunk.ID, chunk.DocumentID, chunk.Position,
			chunk.StartOffset, chunk.EndOffset, chunk.Content, embeddingBlob,
			string(chunk.State)); err != nil {
			return fmt.Errorf("saving chunk: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// ==================== Sync Cursors ====================

// GetSyncCursor retrieves the cursor for a branch.
func (s *Store) GetSyncCursor(ctx context.Context, branchID string) (*domain.SyncCursor, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT branch_id, token, checkpoint, generation, partial
		FROM sync_cursors WHERE branch_id = ?
	`, branchID)

	var cursor domain.SyncCursor
	var checkpoint sql.NullTime
	var partial int
	if err := row.Scan(&cursor.BranchID, &cursor.Token, &checkpoint,
		&cursor.Generation, &partial); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning sync cursor: %w", err)
	}

	if checkpoint.Valid {
		cursor.Checkpoint = checkpoint.Time
	}
	cursor.Partial = partial != 0
	return &cursor, nil
}

// SetSyncCursor stores a cursor, enforcing monotonic generation advance.
// A regressing write means a racing sync already moved the branch
// forward; the attempt is dropped and logged, never surfaced.
func (s *Store) SetSyncCursor(ctx context.Context, cursor domain.SyncCursor) error {
	partial := 0
	if cursor.Partial {
		partial = 1
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_cursors (branch_id, token, checkpoint, generation, partial)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(branch_id) DO UPDATE SET
			token = excluded.token,
			checkpoint = excluded.checkpoint,
			generation = excluded.generation,
			partial = excluded.partial
		WHERE excluded.generation > sync_cursors.generation
	`, cursor.BranchID, cursor.Token, cursor.Checkpoint.UTC(), cursor.Generation, partial)
	if err != nil {
		return fmt.Errorf("saving sync cursor: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("saving sync cursor: %w", err)
	}
	if affected == 0 {
		logger.Warn("dropped sync cursor regression for branch %s (generation %d)",
			cursor.BranchID, cursor.Generation)
	}
	return nil
}

// ==================== Helper Functions ====================

// float32SliceToBytes converts a []float32 to a byte slice for storage.
func float32SliceToBytes(floats []float32) []byte {
	if len(floats) == 0 {
		return nil
	}
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice converts a byte slice back to []float32.
func bytesToFloat32Slice(data []byte) []float32 {
	if len(data) == 0 {
		return nil
	}
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocumentRow(row *sql.Row) (*domain.Document, error) {
	doc, err := scanDocumentFrom(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return doc, nil
}

func scanDocumentRows(rows *sql.Rows) (*domain.Document, error) {
	return scanDocumentFrom(rows)
}

func scanDocumentFrom(scanner rowScanner) (*domain.Document, error) {
	var doc domain.Document
	var state string
	var remoteModified, lastSynced sql.NullTime

	if err := scanner.Scan(&doc.ID, &doc.NotebookID, &doc.SectionID, &doc.Path,
		&doc.Title, &doc.Content, &doc.ContentHash,
		&remoteModified, &lastSynced, &state); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning document: %w", err)
	}

	if remoteModified.Valid {
		doc.RemoteModified = remoteModified.Time
	}
	if lastSynced.Valid {
		doc.LastSynced = lastSynced.Time
	}
	doc.State = domain.DocState(state)
	return &doc, nil
}

func scanChunk(rows *sql.Rows) (*domain.Chunk, error) {
	var chunk domain.Chunk
	var embeddingBlob []byte
	var state string

	if err := rows.Scan(&chunk.ID, &chunk.DocumentID, &chunk.Position,
		&chunk.StartOffset, &chunk.EndOffset, &chunk.Content, &embeddingBlob, &state); err != nil {
		return nil, fmt.Errorf("scanning chunk: %w", err)
	}

	chunk.Embedding = bytesToFloat32Slice(embeddingBlob)
	chunk.State = domain.ChunkState(state)
	return &chunk, nil
}
