package driving

import "context"

// Scheduler runs background sync on a fixed interval.
type Scheduler interface {
	// Start begins the scheduler loop. Blocks until Stop is called or
	// the context is cancelled.
	Start(ctx context.Context) error

	// Stop gracefully shuts down, waiting for an in-flight pass.
	Stop() error
}
