package driving

import (
	"context"

	"github.com/notedex/notedex/internal/core/domain"
)

// DocumentService exposes cached documents to callers for citation and
// browsing. Served entirely from the local cache, no remote calls.
type DocumentService interface {
	// Get retrieves a document by id. Tombstoned documents return ErrNotFound.
	Get(ctx context.Context, id string) (*domain.Document, error)

	// ListRecentlyModified returns searchable documents ordered by
	// descending remote-modified timestamp. Best effort.
	ListRecentlyModified(ctx context.Context, limit int) ([]domain.Document, error)
}
