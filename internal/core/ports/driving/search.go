package driving

import (
	"context"

	"github.com/notedex/notedex/internal/core/domain"
)

// SearchService answers queries over the cached document set,
// escalating to the remote store when the local view is insufficient.
type SearchService interface {
	// Search returns ranked results within the options' latency budget.
	// Empty query text fails with ErrInvalidQuery.
	Search(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.SearchResult, error)
}
