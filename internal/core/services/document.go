package services

import (
	"context"
	"fmt"

	"github.com/notedex/notedex/internal/core/domain"
	"github.com/notedex/notedex/internal/core/ports/driven"
	"github.com/notedex/notedex/internal/core/ports/driving"
)

// Ensure DocumentService implements the interface.
var _ driving.DocumentService = (*DocumentService)(nil)

// DocumentService serves cached documents for citation and browsing.
// It never touches the network.
type DocumentService struct {
	cache driven.CacheStore
}

// NewDocumentService creates a document service.
func NewDocumentService(cache driven.CacheStore) *DocumentService {
	return &DocumentService{cache: cache}
}

// Get retrieves a document by id. Tombstones are hidden: a deleted
// page reads as not found.
func (s *DocumentService) Get(ctx context.Context, id string) (*domain.Document, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: empty document id", domain.ErrInvalidInput)
	}
	doc, err := s.cache.GetDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.State == domain.DocStateDeleted {
		return nil, fmt.Errorf("%w: document %s is deleted", domain.ErrNotFound, id)
	}
	return doc, nil
}

// ListRecentlyModified returns searchable documents ordered by
// descending remote-modified timestamp, best effort from the cache.
func (s *DocumentService) ListRecentlyModified(ctx context.Context, limit int) ([]domain.Document, error) {
	if limit <= 0 {
		limit = 10
	}
	return s.cache.ListRecentlyModified(ctx, limit)
}
