package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/notedex/notedex/internal/core/domain"
	"github.com/notedex/notedex/internal/core/ports/driven"
	"github.com/notedex/notedex/internal/logger"
)

// Ensure CacheStore implements the interface.
var _ driven.CacheStore = (*CacheStore)(nil)

// CacheStore is an in-memory implementation of driven.CacheStore,
// used as a test double for the sync and search services.
type CacheStore struct {
	mu        sync.RWMutex
	documents map[string]domain.Document
	chunks    map[string][]domain.Chunk
	cursors   map[string]domain.SyncCursor
}

// NewCacheStore creates a new in-memory cache store.
func NewCacheStore() *CacheStore {
	return &CacheStore{
		documents: make(map[string]domain.Document),
		chunks:    make(map[string][]domain.Chunk),
		cursors:   make(map[string]domain.SyncCursor),
	}
}

// UpsertDocument stores or updates a document.
func (s *CacheStore) UpsertDocument(_ context.Context, doc *domain.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.documents[doc.ID] = *doc
	return nil
}

// GetDocument retrieves a document by ID, including tombstones.
func (s *CacheStore) GetDocument(_ context.Context, id string) (*domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.documents[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &doc, nil
}

// ListByBranch returns documents in a section, ordered by path.
func (s *CacheStore) ListByBranch(_ context.Context, branchID string) ([]domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []domain.Document
	for id := range s.documents {
		doc := s.documents[id]
		if doc.SectionID == branchID {
			result = append(result, doc)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Path < result[j].Path })
	return result, nil
}

// ListStale returns searchable documents last synced before the cutoff.
func (s *CacheStore) ListStale(_ context.Context, olderThan time.Time) ([]domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []domain.Document
	for id := range s.documents {
		doc := s.documents[id]
		if doc.Searchable() && doc.LastSynced.Before(olderThan) {
			result = append(result, doc)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// ListRecentlyModified returns searchable documents by descending
// remote-modified timestamp.
func (s *CacheStore) ListRecentlyModified(_ context.Context, limit int) ([]domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []domain.Document
	for id := range s.documents {
		doc := s.documents[id]
		if doc.Searchable() {
			result = append(result, doc)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].RemoteModified.Equal(result[j].RemoteModified) {
			return result[i].RemoteModified.After(result[j].RemoteModified)
		}
		return result[i].ID < result[j].ID
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// AllDocuments returns every non-deleted document.
func (s *CacheStore) AllDocuments(_ context.Context) ([]domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []domain.Document
	for id := range s.documents {
		doc := s.documents[id]
		if doc.State != domain.DocStateDeleted {
			result = append(result, doc)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// MarkDeleted soft-deletes a document and removes its chunks.
func (s *CacheStore) MarkDeleted(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.documents[id]
	if !ok {
		return domain.ErrNotFound
	}
	doc.State = domain.DocStateDeleted
	doc.Content = ""
	s.documents[id] = doc
	delete(s.chunks, id)
	return nil
}

// GetChunks retrieves all chunks for a document in position order.
func (s *CacheStore) GetChunks(_ context.Context, documentID string) ([]domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored, ok := s.chunks[documentID]
	if !ok {
		return nil, nil
	}
	result := make([]domain.Chunk, len(stored))
	copy(result, stored)
	sort.Slice(result, func(i, j int) bool { return result[i].Position < result[j].Position })
	return result, nil
}

// GetChunk retrieves a specific chunk by ID.
func (s *CacheStore) GetChunk(_ context.Context, id string) (*domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, chunks := range s.chunks {
		for _, chunk := range chunks {
			if chunk.ID == id {
				return &chunk, nil
			}
		}
	}
	return nil, domain.ErrNotFound
}

// ReplaceChunks swaps a document's chunk set under the write lock.
func (s *CacheStore) ReplaceChunks(_ context.Context, documentID string, chunks []domain.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := make([]domain.Chunk, len(chunks))
	copy(stored, chunks)
	s.chunks[documentID] = stored
	return nil
}

// GetSyncCursor retrieves the cursor for a branch.
func (s *CacheStore) GetSyncCursor(_ context.Context, branchID string) (*domain.SyncCursor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cursor, ok := s.cursors[branchID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &cursor, nil
}

// SetSyncCursor stores a cursor, dropping generation regressions.
func (s *CacheStore) SetSyncCursor(_ context.Context, cursor domain.SyncCursor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.cursors[cursor.BranchID]; ok && cursor.Generation <= existing.Generation {
		logger.Warn("dropped sync cursor regression for branch %s (generation %d <= %d)",
			cursor.BranchID, cursor.Generation, existing.Generation)
		return nil
	}
	s.cursors[cursor.BranchID] = cursor
	return nil
}

// Close is a no-op for the in-memory store.
func (s *CacheStore) Close() error {
	return nil
}
