package domain

import "time"

// DocState tracks the sync lifecycle of a cached document.
type DocState string

const (
	// DocStateFresh means the local copy matches the last known remote state.
	DocStateFresh DocState = "fresh"

	// DocStateStale means the remote copy is known or suspected to be newer.
	DocStateStale DocState = "stale"

	// DocStateDeleted means the page no longer exists remotely.
	// The document is kept as a tombstone and excluded from query results.
	DocStateDeleted DocState = "deleted"

	// DocStateError means the last sync attempt for this document failed
	// (malformed content, indexing failure). Retried on the next cycle.
	DocStateError DocState = "error"
)

// Document is the canonical local representation of one remote page
// after normalisation. It is owned by the cache store and mutated only
// by the sync engine.
type Document struct {
	// ID is the stable remote identifier of the page.
	ID string

	// NotebookID is the remote identifier of the owning notebook.
	NotebookID string

	// SectionID is the remote identifier of the owning section.
	// Sections are the unit of independent sync (a "branch").
	SectionID string

	// Path is the human-readable ancestry: notebook/section/title.
	Path string

	// Title is the page title.
	Title string

	// Content is the canonical plain text after normalisation.
	Content string

	// ContentHash is the sha256 hex fingerprint of Content.
	// It addresses the derived chunk set and embeddings.
	ContentHash string

	// RemoteModified is the last-modified timestamp reported by the remote store.
	RemoteModified time.Time

	// LastSynced is when this document was last reconciled with the remote store.
	LastSynced time.Time

	// State is the sync lifecycle state.
	State DocState
}

// Searchable reports whether the document may appear in query results.
func (d *Document) Searchable() bool {
	return d.State == DocStateFresh || d.State == DocStateStale
}

// ChunkState tracks whether a chunk has a usable embedding.
type ChunkState string

const (
	// ChunkStateOK means the chunk is fully indexed.
	ChunkStateOK ChunkState = "ok"

	// ChunkStateEmbeddingError means embedding generation failed after
	// retries. The chunk stays reachable via lexical search only.
	ChunkStateEmbeddingError ChunkState = "embedding-error"
)

// Chunk is a bounded span of a document's canonical text, the unit of
// semantic embedding. A document's content hash uniquely determines its
// chunk set: chunk IDs are derived from (document id, content hash,
// position), so re-normalising identical input reproduces identical chunks.
type Chunk struct {
	// ID is the deterministic chunk identifier.
	ID string

	// DocumentID links to the owning Document. A chunk never outlives it.
	DocumentID string

	// Position is the ordinal position within the document.
	Position int

	// StartOffset and EndOffset delimit the span in the document content,
	// in bytes.
	StartOffset int
	EndOffset   int

	// Content is the text of this span.
	Content string

	// Embedding is the vector representation, nil until generated.
	Embedding []float32

	// State records whether the embedding is usable.
	State ChunkState
}
