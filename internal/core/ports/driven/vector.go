package driven

import "context"

// VectorIndex provides semantic similarity search over chunk embeddings.
type VectorIndex interface {
	// Add inserts or replaces the vector for a chunk.
	Add(ctx context.Context, documentID, chunkID string, embedding []float32) error

	// RemoveDocument drops every vector belonging to a document.
	RemoveDocument(ctx context.Context, documentID string) error

	// Search finds the k nearest chunks by cosine similarity.
	Search(ctx context.Context, query []float32, k int) ([]VectorHit, error)
}

// VectorHit is one similarity search result.
type VectorHit struct {
	// ChunkID is the matched chunk.
	ChunkID string

	// DocumentID is the chunk's owning document.
	DocumentID string

	// Similarity is the cosine similarity (-1 to 1, higher is better).
	Similarity float64
}
