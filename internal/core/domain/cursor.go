package domain

import "time"

// SyncCursor records the last successful sync checkpoint for one branch.
// Generation only ever advances within a branch; the cache store drops
// attempts to regress it.
type SyncCursor struct {
	// BranchID is the section this cursor belongs to.
	BranchID string

	// Token is the remote continuation token to resume enumeration from.
	// Empty means the branch was fully enumerated.
	Token string

	// Checkpoint is when the branch last completed a sync pass.
	Checkpoint time.Time

	// Generation increases by one on every completed pass.
	Generation uint64

	// Partial marks a branch whose last pass was cut short (error
	// threshold, branch ceiling). Queries against a partial branch
	// escalate to remote fallback more eagerly.
	Partial bool
}

// Advance returns a copy of the cursor moved to the next generation.
func (c SyncCursor) Advance(token string, partial bool, now time.Time) SyncCursor {
	return SyncCursor{
		BranchID:   c.BranchID,
		Token:      token,
		Checkpoint: now,
		Generation: c.Generation + 1,
		Partial:    partial,
	}
}

// FreshAt reports whether the cursor is complete and checkpointed
// within the freshness window ending at now.
func (c SyncCursor) FreshAt(now time.Time, window time.Duration) bool {
	if c.Partial {
		return false
	}
	return now.Sub(c.Checkpoint) <= window
}
