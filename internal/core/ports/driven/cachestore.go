package driven

import (
	"context"
	"time"

	"github.com/notedex/notedex/internal/core/domain"
)

// CacheStore persists normalised documents, their chunks and sync
// cursors. Backed by SQLite. Mutated only by the sync engine; read
// concurrently by the search planner.
type CacheStore interface {
	// UpsertDocument stores or updates a document atomically.
	UpsertDocument(ctx context.Context, doc *domain.Document) error

	// GetDocument retrieves a document by id, including tombstones.
	GetDocument(ctx context.Context, id string) (*domain.Document, error)

	// ListByBranch returns all documents in a section, ordered by path.
	ListByBranch(ctx context.Context, branchID string) ([]domain.Document, error)

	// ListStale returns searchable documents last synced before the cutoff.
	ListStale(ctx context.Context, olderThan time.Time) ([]domain.Document, error)

	// ListRecentlyModified returns searchable documents ordered by
	// descending remote-modified timestamp.
	ListRecentlyModified(ctx context.Context, limit int) ([]domain.Document, error)

	// AllDocuments returns every non-deleted document; used to rebuild
	// the in-memory indexes at startup.
	AllDocuments(ctx context.Context) ([]domain.Document, error)

	// MarkDeleted soft-deletes a document, keeping it as a tombstone.
	MarkDeleted(ctx context.Context, id string) error

	// GetChunks retrieves all chunks for a document in position order.
	GetChunks(ctx context.Context, documentID string) ([]domain.Chunk, error)

	// GetChunk retrieves one chunk by id.
	GetChunk(ctx context.Context, id string) (*domain.Chunk, error)

	// ReplaceChunks atomically swaps a document's chunk set. Readers
	// observe either the old set or the new set, never a mix.
	ReplaceChunks(ctx context.Context, documentID string, chunks []domain.Chunk) error

	// GetSyncCursor retrieves the cursor for a branch.
	// Returns ErrNotFound for a branch never synced.
	GetSyncCursor(ctx context.Context, branchID string) (*domain.SyncCursor, error)

	// SetSyncCursor stores a cursor. An attempt to regress the
	// generation is dropped and logged, not returned as an error: it
	// means a racing sync already advanced the branch and the newer
	// value wins.
	SetSyncCursor(ctx context.Context, cursor domain.SyncCursor) error

	// Close releases the underlying database.
	Close() error
}
