package domain

import "time"

// Default tuning constants. The freshness window and minimum-local-result
// threshold are deliberately conservative: escalating to the remote store
// too eagerly only costs rate budget, answering from a stale cache costs
// correctness.
const (
	DefaultFreshnessWindow    = 15 * time.Minute
	DefaultMinLocalResults    = 5
	DefaultMaxBranchesPerSync = 20
	DefaultSyncWorkers        = 4
	DefaultBranchErrorLimit   = 10
	DefaultSyncInterval       = 30 * time.Minute
	DefaultRequestsPerSecond  = 2.0
	DefaultRequestBurst       = 4
	DefaultChunkSize          = 1000
	DefaultChunkOverlap       = 200
)

// Settings holds runtime configuration, loaded from the TOML config
// store with these defaults filled in.
type Settings struct {
	// RemoteBaseURL is the base URL of the remote notebook API.
	RemoteBaseURL string

	// FreshnessWindow is how long a branch cursor counts as fresh.
	FreshnessWindow time.Duration

	// MinLocalResults is the merged-result count below which a query
	// escalates to remote fallback.
	MinLocalResults int

	// MaxBranchesPerSync caps branches walked in one per-branch fallback
	// pass; the remainder is deferred to the next cycle and flagged partial.
	MaxBranchesPerSync int

	// SyncWorkers bounds concurrent branch sync workers.
	SyncWorkers int

	// BranchErrorLimit is the per-branch document failure count above
	// which the branch pass stops and is marked partial.
	BranchErrorLimit int

	// SyncInterval is the background scheduler period.
	SyncInterval time.Duration

	// RequestsPerSecond and RequestBurst parameterise the shared
	// remote-call token bucket.
	RequestsPerSecond float64
	RequestBurst      int

	// ChunkSize and ChunkOverlap parameterise document chunking, in bytes.
	ChunkSize    int
	ChunkOverlap int
}

// DefaultSettings returns settings with all defaults applied.
func DefaultSettings() Settings {
	return Settings{
		FreshnessWindow:    DefaultFreshnessWindow,
		MinLocalResults:    DefaultMinLocalResults,
		MaxBranchesPerSync: DefaultMaxBranchesPerSync,
		SyncWorkers:        DefaultSyncWorkers,
		BranchErrorLimit:   DefaultBranchErrorLimit,
		SyncInterval:       DefaultSyncInterval,
		RequestsPerSecond:  DefaultRequestsPerSecond,
		RequestBurst:       DefaultRequestBurst,
		ChunkSize:          DefaultChunkSize,
		ChunkOverlap:       DefaultChunkOverlap,
	}
}

// Normalise fills zero values with defaults so a partially populated
// config file still yields a usable configuration.
func (s Settings) Normalise() Settings {
	def := DefaultSettings()
	if s.FreshnessWindow <= 0 {
		s.FreshnessWindow = def.FreshnessWindow
	}
	if s.MinLocalResults <= 0 {
		s.MinLocalResults = def.MinLocalResults
	}
	if s.MaxBranchesPerSync <= 0 {
		s.MaxBranchesPerSync = def.MaxBranchesPerSync
	}
	if s.SyncWorkers <= 0 {
		s.SyncWorkers = def.SyncWorkers
	}
	if s.BranchErrorLimit <= 0 {
		s.BranchErrorLimit = def.BranchErrorLimit
	}
	if s.SyncInterval <= 0 {
		s.SyncInterval = def.SyncInterval
	}
	if s.RequestsPerSecond <= 0 {
		s.RequestsPerSecond = def.RequestsPerSecond
	}
	if s.RequestBurst <= 0 {
		s.RequestBurst = def.RequestBurst
	}
	if s.ChunkSize <= 0 {
		s.ChunkSize = def.ChunkSize
	}
	if s.ChunkOverlap < 0 || s.ChunkOverlap >= s.ChunkSize {
		s.ChunkOverlap = s.ChunkSize / 5
	}
	return s
}
