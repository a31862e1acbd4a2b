package driven

import (
	"context"

	"github.com/notedex/notedex/internal/core/domain"
)

// RemoteStore is the read-only client for the remote notebook API.
// It is the only port that talks to the network. All calls share one
// process-wide rate budget: a call that would exceed it suspends the
// caller until capacity is available, or fails with ErrRateLimited if
// the caller's deadline elapses first.
type RemoteStore interface {
	// FetchHierarchy returns the notebook/section tree.
	FetchHierarchy(ctx context.Context) (*domain.Hierarchy, error)

	// EnumerateAll lists page stubs across the whole hierarchy through
	// the flat endpoint. Returns ErrPaginationCeiling when the remote
	// store rejects the listing for having too many branches; callers
	// then enumerate branch by branch instead.
	EnumerateAll(ctx context.Context, pageToken string) (*RemoteBatch, error)

	// EnumerateBranch lists page stubs for one branch, newest first.
	EnumerateBranch(ctx context.Context, branchID, pageToken string) (*RemoteBatch, error)

	// FetchPage fetches one raw page payload by id.
	// Returns ErrNotFound if the page no longer exists.
	FetchPage(ctx context.Context, id string) (*domain.RawPage, error)
}

// RemoteBatch is one page of an enumeration.
type RemoteBatch struct {
	// Stubs are the listing entries in this batch.
	Stubs []domain.PageStub

	// NextToken continues the enumeration; empty means done.
	NextToken string
}
