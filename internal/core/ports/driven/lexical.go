package driven

import (
	"context"

	"github.com/notedex/notedex/internal/core/domain"
)

// LexicalIndex provides full-text search over cached documents.
// Term-frequency ranked, with positional postings for phrase queries.
type LexicalIndex interface {
	// IndexDocument replaces all postings for the document's id.
	// Concurrent queries see either the old or the new posting set.
	IndexDocument(ctx context.Context, doc *domain.Document) error

	// RemoveDocument drops all postings for a document id.
	RemoveDocument(ctx context.Context, documentID string) error

	// Query evaluates a term expression and returns ranked hits.
	// Supports plain terms, "quoted phrases" and trailing-star prefixes.
	Query(ctx context.Context, expr string, limit int) ([]LexicalHit, error)
}

// LexicalHit is one ranked full-text match.
type LexicalHit struct {
	// DocumentID is the matched document.
	DocumentID string

	// Score is the term-frequency score, higher is better.
	Score float64
}
