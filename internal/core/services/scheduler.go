package services

import (
	"context"
	"sync"
	"time"

	"github.com/notedex/notedex/internal/core/ports/driving"
	"github.com/notedex/notedex/internal/logger"
)

// Ensure Scheduler implements the interface.
var _ driving.Scheduler = (*Scheduler)(nil)

// Scheduler runs SyncAll on a fixed interval in the background.
// Rate-limit errors from a pass are logged, not escalated: the next
// tick retries naturally after the limiter has recovered.
type Scheduler struct {
	interval time.Duration
	syncOrch driving.SyncOrchestrator

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewScheduler creates a scheduler.
func NewScheduler(interval time.Duration, syncOrch driving.SyncOrchestrator) *Scheduler {
	return &Scheduler{
		interval: interval,
		syncOrch: syncOrch,
	}
}

// Start begins the scheduler loop. Blocks until Stop is called or the
// context is cancelled. An immediate pass runs on startup.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.mu.Unlock()

	s.runPass(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.stopCh:
			return nil
		case <-ticker.C:
			s.runPass(ctx)
		}
	}
}

// Stop gracefully shuts down, waiting for an in-flight pass.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
	return nil
}

// runPass executes one sync pass synchronously with respect to the
// loop, tracked so Stop can wait for it.
func (s *Scheduler) runPass(ctx context.Context) {
	s.wg.Add(1)
	defer s.wg.Done()

	started := time.Now()
	if err := s.syncOrch.SyncAll(ctx); err != nil {
		logger.Warn("Scheduled sync finished with errors after %v: %v",
			time.Since(started).Round(time.Millisecond), err)
		return
	}
	logger.Info("Scheduled sync completed in %v", time.Since(started).Round(time.Millisecond))
}
