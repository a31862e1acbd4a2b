package domain

import "time"

// Provenance tags where a search result came from.
type Provenance string

const (
	// ProvenanceLexical marks results from the local inverted index.
	ProvenanceLexical Provenance = "local-lexical"

	// ProvenanceSemantic marks results from the local vector index.
	ProvenanceSemantic Provenance = "local-semantic"

	// ProvenanceRemote marks results from a remote fallback fetch.
	ProvenanceRemote Provenance = "remote-fallback"
)

// SearchOptions configures a search query.
type SearchOptions struct {
	// Limit is the maximum number of results. Defaults to 10.
	Limit int

	// BranchID scopes the query to one section. Empty searches everything.
	BranchID string

	// Deadline bounds the whole query including any remote fallback leg.
	// Zero means no budget beyond the caller's context.
	Deadline time.Duration
}

// SearchResult is a single ranked hit.
type SearchResult struct {
	// Document is the matched document.
	Document Document

	// Chunk is the best matching chunk, nil for document-level hits.
	Chunk *Chunk

	// Score is the merged relevance score, higher is better.
	Score float64

	// Provenance records which engine produced the hit. It is carried
	// for observability and never used for ranking.
	Provenance Provenance

	// Highlights contains up to three snippets with matched terms.
	Highlights []string
}
