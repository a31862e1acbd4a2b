package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notedex/notedex/internal/core/ports/driving"
)

// countingOrchestrator records SyncAll invocations.
type countingOrchestrator struct {
	mu    sync.Mutex
	count int
	err   error
}

var _ driving.SyncOrchestrator = (*countingOrchestrator)(nil)

func (o *countingOrchestrator) SyncAll(context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.count++
	return o.err
}

func (o *countingOrchestrator) SyncBranch(context.Context, string) error { return nil }
func (o *countingOrchestrator) RebuildIndexes(context.Context) error     { return nil }

func (o *countingOrchestrator) Status(_ context.Context, branchID string) (*driving.SyncStatus, error) {
	return &driving.SyncStatus{BranchID: branchID}, nil
}

func (o *countingOrchestrator) passes() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.count
}

func TestSchedulerRunsImmediatePassAndTicks(t *testing.T) {
	orch := &countingOrchestrator{}
	sched := NewScheduler(20*time.Millisecond, orch)

	done := make(chan error, 1)
	go func() { done <- sched.Start(context.Background()) }()

	require.Eventually(t, func() bool {
		return orch.passes() >= 3
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, sched.Stop())
	assert.NoError(t, <-done)
}

func TestSchedulerStopsOnContextCancel(t *testing.T) {
	orch := &countingOrchestrator{}
	sched := NewScheduler(time.Hour, orch)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sched.Start(ctx) }()

	require.Eventually(t, func() bool {
		return orch.passes() == 1
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestSchedulerLogsPassErrors(t *testing.T) {
	// A failing pass must not stop the loop.
	orch := &countingOrchestrator{err: errors.New("rate limited upstream")}
	sched := NewScheduler(20*time.Millisecond, orch)

	done := make(chan error, 1)
	go func() { done <- sched.Start(context.Background()) }()

	require.Eventually(t, func() bool {
		return orch.passes() >= 2
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, sched.Stop())
	assert.NoError(t, <-done)
}

func TestSchedulerStopIdempotent(t *testing.T) {
	sched := NewScheduler(time.Hour, &countingOrchestrator{})
	assert.NoError(t, sched.Stop())
	assert.NoError(t, sched.Stop())
}
