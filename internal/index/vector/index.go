package vector

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/notedex/notedex/internal/core/domain"
	"github.com/notedex/notedex/internal/core/ports/driven"
)

// Ensure Index implements the interface.
var _ driven.VectorIndex = (*Index)(nil)

type entry struct {
	documentID string
	embedding  []float32
}

// Index is a brute-force cosine similarity index over chunk
// embeddings. Linear scan is adequate at personal-knowledge-base
// scale (tens of thousands of chunks).
type Index struct {
	mu      sync.RWMutex
	entries map[string]entry           // chunkID -> vector
	byDoc   map[string]map[string]bool // documentID -> chunkIDs
}

// NewIndex creates an empty vector index.
func NewIndex() *Index {
	return &Index{
		entries: make(map[string]entry),
		byDoc:   make(map[string]map[string]bool),
	}
}

// Add inserts or replaces the vector for a chunk.
func (ix *Index) Add(_ context.Context, documentID, chunkID string, embedding []float32) error {
	if chunkID == "" || documentID == "" {
		return domain.ErrInvalidInput
	}
	if len(embedding) == 0 {
		return fmt.Errorf("%w: empty embedding for chunk %s", domain.ErrInvalidInput, chunkID)
	}

	vec := make([]float32, len(embedding))
	copy(vec, embedding)

	ix.mu.Lock()
	defer ix.mu.Unlock()

	if old, ok := ix.entries[chunkID]; ok && old.documentID != documentID {
		delete(ix.byDoc[old.documentID], chunkID)
	}
	ix.entries[chunkID] = entry{documentID: documentID, embedding: vec}
	chunks, ok := ix.byDoc[documentID]
	if !ok {
		chunks = make(map[string]bool)
		ix.byDoc[documentID] = chunks
	}
	chunks[chunkID] = true
	return nil
}

// RemoveDocument drops every vector belonging to a document.
func (ix *Index) RemoveDocument(_ context.Context, documentID string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	for chunkID := range ix.byDoc[documentID] {
		delete(ix.entries, chunkID)
	}
	delete(ix.byDoc, documentID)
	return nil
}

// Size returns the number of indexed chunks.
func (ix *Index) Size() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.entries)
}

// Search finds the k nearest chunks by cosine similarity. Vectors
// whose dimensions do not match the query are skipped.
func (ix *Index) Search(_ context.Context, query []float32, k int) ([]driven.VectorHit, error) {
	if len(query) == 0 {
		return nil, fmt.Errorf("%w: empty query vector", domain.ErrInvalidInput)
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	hits := make([]driven.VectorHit, 0, len(ix.entries))
	for chunkID, e := range ix.entries {
		sim, ok := cosineSimilarity(query, e.embedding)
		if !ok {
			continue
		}
		hits = append(hits, driven.VectorHit{
			ChunkID:    chunkID,
			DocumentID: e.documentID,
			Similarity: sim,
		})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Similarity != hits[j].Similarity {
			return hits[i].Similarity > hits[j].Similarity
		}
		return hits[i].ChunkID < hits[j].ChunkID
	})

	if k > 0 && len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// cosineSimilarity returns the similarity of two vectors, or false on
// dimension mismatch or a zero-magnitude vector.
func cosineSimilarity(a, b []float32) (float64, bool) {
	if len(a) != len(b) {
		return 0, false
	}
	var dot, normA, normB float64
	for i := range a {
		va := float64(a[i])
		vb := float64(b[i])
		dot += va * vb
		normA += va * va
		normB += vb * vb
	}
	if normA == 0 || normB == 0 {
		return 0, false
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), true
}
