package driving

import "context"

// SyncOrchestrator reconciles the local cache with the remote store.
type SyncOrchestrator interface {
	// SyncBranch runs one sync pass for a single branch.
	// Returns ErrPartialSync when the pass completed with deferred work.
	SyncBranch(ctx context.Context, branchID string) error

	// SyncAll discovers the hierarchy and syncs every branch, bounded
	// by the configured worker pool.
	SyncAll(ctx context.Context) error

	// Status reports progress for a branch sync in flight.
	Status(ctx context.Context, branchID string) (*SyncStatus, error)
}

// SyncStatus describes a branch sync in progress.
type SyncStatus struct {
	// BranchID identifies the branch.
	BranchID string

	// Running is true while a pass is active.
	Running bool

	// DocumentsProcessed counts pages upserted or tombstoned this pass.
	DocumentsProcessed int

	// ErrorCount counts per-document failures this pass.
	ErrorCount int
}
