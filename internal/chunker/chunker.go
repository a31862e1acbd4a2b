// Package chunker provides deterministic fixed-size text chunking.
// Chunk identity is derived from the owning document's id, content hash
// and the chunk position, so identical content always reproduces the
// identical chunk set.
package chunker

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/notedex/notedex/internal/core/domain"
)

// DefaultChunkSize is the default number of bytes per chunk.
const DefaultChunkSize = 1000

// DefaultChunkOverlap is the default number of overlapping bytes.
const DefaultChunkOverlap = 200

// chunkNamespace scopes the v5 UUIDs used for chunk identity.
var chunkNamespace = uuid.MustParse("91f7d1f0-3c55-4fbb-92c9-6d2f1de81b0a")

// Chunker splits document content into overlapping fixed-size chunks.
type Chunker struct {
	chunkSize int
	overlap   int
}

// Option configures the chunker.
type Option func(*Chunker)

// WithChunkSize sets the chunk size in bytes.
func WithChunkSize(size int) Option {
	return func(c *Chunker) {
		if size > 0 {
			c.chunkSize = size
		}
	}
}

// WithOverlap sets the overlap between chunks in bytes.
func WithOverlap(overlap int) Option {
	return func(c *Chunker) {
		if overlap >= 0 {
			c.overlap = overlap
		}
	}
}

// New creates a new chunker with the given options.
func New(opts ...Option) *Chunker {
	c := &Chunker{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultChunkOverlap,
	}

	for _, opt := range opts {
		opt(c)
	}

	// Ensure overlap doesn't exceed chunk size
	if c.overlap >= c.chunkSize {
		c.overlap = c.chunkSize / 4
	}

	return c
}

// Split derives the chunk set for a document's current content.
// Empty content produces no chunks.
func (c *Chunker) Split(doc *domain.Document) []domain.Chunk {
	if doc.Content == "" {
		return nil
	}

	content := doc.Content
	contentLen := len(content)

	estimated := (contentLen / (c.chunkSize - c.overlap)) + 1
	chunks := make([]domain.Chunk, 0, estimated)

	position := 0
	start := 0

	for start < contentLen {
		end := start + c.chunkSize
		if end > contentLen {
			end = contentLen
		}

		chunks = append(chunks, domain.Chunk{
			ID:          ChunkID(doc.ID, doc.ContentHash, position),
			DocumentID:  doc.ID,
			Position:    position,
			StartOffset: start,
			EndOffset:   end,
			Content:     content[start:end],
			State:       domain.ChunkStateOK,
		})
		position++

		start += c.chunkSize - c.overlap
	}

	return chunks
}

// ChunkID returns the deterministic id for one chunk of a document.
func ChunkID(documentID, contentHash string, position int) string {
	name := fmt.Sprintf("%s|%s|%d", documentID, contentHash, position)
	return uuid.NewSHA1(chunkNamespace, []byte(name)).String()
}
