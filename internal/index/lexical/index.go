package lexical

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/notedex/notedex/internal/core/domain"
	"github.com/notedex/notedex/internal/core/ports/driven"
)

// Ensure Index implements the interface.
var _ driven.LexicalIndex = (*Index)(nil)

// docEntry holds everything needed to rank and unindex one document.
type docEntry struct {
	length   int // total token count, for TF normalisation
	modified time.Time
	terms    map[string][]int // term -> ordered positions
}

// Index is an in-memory positional inverted index. It is rebuilt from
// the cache store at startup and maintained incrementally by the sync
// engine.
type Index struct {
	mu       sync.RWMutex
	postings map[string]map[string][]int // term -> documentID -> positions
	docs     map[string]docEntry
}

// NewIndex creates an empty lexical index.
func NewIndex() *Index {
	return &Index{
		postings: make(map[string]map[string][]int),
		docs:     make(map[string]docEntry),
	}
}

// IndexDocument replaces all postings for the document's id. The new
// posting set is built outside the lock; the swap itself happens under
// the write lock so queries see either the old or the new set.
func (ix *Index) IndexDocument(_ context.Context, doc *domain.Document) error {
	if doc == nil || doc.ID == "" {
		return domain.ErrInvalidInput
	}

	tokens := tokenise(doc.Title + "\n" + doc.Content)
	terms := make(map[string][]int)
	for _, tok := range tokens {
		terms[tok.term] = append(terms[tok.term], tok.position)
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	ix.removeLocked(doc.ID)
	ix.docs[doc.ID] = docEntry{
		length:   len(tokens),
		modified: doc.RemoteModified,
		terms:    terms,
	}
	for term, positions := range terms {
		byDoc, ok := ix.postings[term]
		if !ok {
			byDoc = make(map[string][]int)
			ix.postings[term] = byDoc
		}
		byDoc[doc.ID] = positions
	}
	return nil
}

// RemoveDocument drops all postings for a document id. Unknown ids
// are a no-op.
func (ix *Index) RemoveDocument(_ context.Context, documentID string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.removeLocked(documentID)
	return nil
}

func (ix *Index) removeLocked(documentID string) {
	entry, ok := ix.docs[documentID]
	if !ok {
		return
	}
	for term := range entry.terms {
		byDoc := ix.postings[term]
		delete(byDoc, documentID)
		if len(byDoc) == 0 {
			delete(ix.postings, term)
		}
	}
	delete(ix.docs, documentID)
}

// Size returns the number of indexed documents.
func (ix *Index) Size() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.docs)
}

// Query evaluates a term expression and returns ranked hits. Clauses
// are conjunctive: every term, prefix and phrase must match. Ranking
// is by length-normalised term frequency; ties break by newer
// remote-modified timestamp, then by id.
func (ix *Index) Query(_ context.Context, expr string, limit int) ([]driven.LexicalHit, error) {
	clauses, err := parseQuery(expr)
	if err != nil {
		return nil, err
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	// occurrences accumulates per-document match counts across clauses.
	var occurrences map[string]int
	for _, c := range clauses {
		matches := ix.evaluateLocked(c)
		if len(matches) == 0 {
			return nil, nil
		}
		if occurrences == nil {
			occurrences = matches
			continue
		}
		for id := range occurrences {
			count, ok := matches[id]
			if !ok {
				delete(occurrences, id)
				continue
			}
			occurrences[id] += count
		}
		if len(occurrences) == 0 {
			return nil, nil
		}
	}

	hits := make([]driven.LexicalHit, 0, len(occurrences))
	for id, count := range occurrences {
		entry := ix.docs[id]
		score := float64(count)
		if entry.length > 0 {
			score /= float64(entry.length)
		}
		hits = append(hits, driven.LexicalHit{DocumentID: id, Score: score})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		mi := ix.docs[hits[i].DocumentID].modified
		mj := ix.docs[hits[j].DocumentID].modified
		if !mi.Equal(mj) {
			return mi.After(mj)
		}
		return hits[i].DocumentID < hits[j].DocumentID
	})

	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// evaluateLocked returns documentID -> occurrence count for one clause.
// Callers hold at least the read lock.
func (ix *Index) evaluateLocked(c clause) map[string]int {
	switch c.kind {
	case clauseTerm:
		byDoc, ok := ix.postings[c.term]
		if !ok {
			return nil
		}
		matches := make(map[string]int, len(byDoc))
		for id, positions := range byDoc {
			matches[id] = len(positions)
		}
		return matches

	case clausePrefix:
		matches := make(map[string]int)
		for term, byDoc := range ix.postings {
			if !strings.HasPrefix(term, c.term) {
				continue
			}
			for id, positions := range byDoc {
				matches[id] += len(positions)
			}
		}
		return matches

	case clausePhrase:
		return ix.phraseLocked(c.terms)
	}
	return nil
}

// phraseLocked counts occurrences where the phrase terms appear at
// consecutive positions.
func (ix *Index) phraseLocked(terms []string) map[string]int {
	first, ok := ix.postings[terms[0]]
	if !ok {
		return nil
	}

	matches := make(map[string]int)
	for id, starts := range first {
		count := 0
		for _, start := range starts {
			if ix.phraseAtLocked(id, terms, start) {
				count++
			}
		}
		if count > 0 {
			matches[id] = count
		}
	}
	return matches
}

func (ix *Index) phraseAtLocked(documentID string, terms []string, start int) bool {
	for offset, term := range terms[1:] {
		byDoc, ok := ix.postings[term]
		if !ok {
			return false
		}
		positions, ok := byDoc[documentID]
		if !ok {
			return false
		}
		want := start + offset + 1
		i := sort.SearchInts(positions, want)
		if i >= len(positions) || positions[i] != want {
			return false
		}
	}
	return true
}
