package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidQuery indicates an unusable search query (e.g. empty text).
	// Rejected immediately; the caller's fault.
	ErrInvalidQuery = errors.New("invalid query")

	// ErrRateLimited indicates the remote API rate budget was exhausted
	// before the caller's deadline. Retry later; surfaced to the sync
	// scheduler as a backoff signal, not fatal.
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrUnauthorized indicates the bearer credential was rejected after
	// one silent refresh attempt.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrMalformedContent indicates a raw page payload could not be parsed.
	// Recorded per document and skipped; sync continues.
	ErrMalformedContent = errors.New("malformed content")

	// ErrEmbeddingFailed indicates embedding generation failed after retries.
	// The chunk is excluded from semantic queries but stays lexical-searchable.
	ErrEmbeddingFailed = errors.New("embedding failed")

	// ErrPaginationCeiling indicates the flat whole-hierarchy listing was
	// rejected because the branch count exceeds the server-side ceiling.
	// Triggers per-branch fallback enumeration; never surfaced to callers.
	ErrPaginationCeiling = errors.New("pagination ceiling exceeded")

	// ErrPartialSync indicates a branch pass completed with deferred work.
	// A warning, not an error: queries against the branch fall back to the
	// remote store more eagerly.
	ErrPartialSync = errors.New("partial sync result")

	// ErrSyncInProgress indicates a sync is already running for a branch.
	ErrSyncInProgress = errors.New("sync in progress")

	// ErrEmbeddingUnavailable indicates no embedding service is configured.
	// Semantic search is disabled.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")
)
