package file

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/notedex/notedex/internal/core/domain"
	"github.com/notedex/notedex/internal/core/ports/driven"
)

// Ensure SettingsStore implements the interface.
var _ driven.SettingsStore = (*SettingsStore)(nil)

// fileSettings is the on-disk TOML shape. Durations are written as
// strings in Go duration syntax ("15m", "1h30m").
type fileSettings struct {
	Remote struct {
		BaseURL           string  `toml:"base_url,omitempty"`
		RequestsPerSecond float64 `toml:"requests_per_second,omitempty"`
		RequestBurst      int     `toml:"request_burst,omitempty"`
	} `toml:"remote"`

	Sync struct {
		FreshnessWindow    string `toml:"freshness_window,omitempty"`
		Interval           string `toml:"interval,omitempty"`
		Workers            int    `toml:"workers,omitempty"`
		MaxBranchesPerPass int    `toml:"max_branches_per_pass,omitempty"`
		BranchErrorLimit   int    `toml:"branch_error_limit,omitempty"`
	} `toml:"sync"`

	Search struct {
		MinLocalResults int `toml:"min_local_results,omitempty"`
	} `toml:"search"`

	Chunking struct {
		Size    int `toml:"size,omitempty"`
		Overlap int `toml:"overlap,omitempty"`
	} `toml:"chunking"`
}

// SettingsStore is a file-based implementation of driven.SettingsStore
// using TOML. Settings are stored in a single file within the notedex
// config directory.
type SettingsStore struct {
	mu       sync.Mutex
	filePath string
}

// NewSettingsStore creates a TOML-based settings store.
// If configDir is empty, defaults to ~/.notedex/config.toml.
func NewSettingsStore(configDir string) (*SettingsStore, error) {
	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		configDir = filepath.Join(home, ".notedex")
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return nil, err
	}

	return &SettingsStore{
		filePath: filepath.Join(configDir, "config.toml"),
	}, nil
}

// Load reads settings from the TOML file. A missing file yields the
// defaults; a present file has its absent fields defaulted.
func (s *SettingsStore) Load() (domain.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return domain.DefaultSettings(), nil
		}
		return domain.Settings{}, err
	}

	var raw fileSettings
	if err := toml.Unmarshal(data, &raw); err != nil {
		return domain.Settings{}, fmt.Errorf("parse %s: %w", s.filePath, err)
	}

	settings := domain.Settings{
		RemoteBaseURL:      raw.Remote.BaseURL,
		RequestsPerSecond:  raw.Remote.RequestsPerSecond,
		RequestBurst:       raw.Remote.RequestBurst,
		SyncWorkers:        raw.Sync.Workers,
		MaxBranchesPerSync: raw.Sync.MaxBranchesPerPass,
		BranchErrorLimit:   raw.Sync.BranchErrorLimit,
		MinLocalResults:    raw.Search.MinLocalResults,
		ChunkSize:          raw.Chunking.Size,
		ChunkOverlap:       raw.Chunking.Overlap,
	}
	if settings.FreshnessWindow, err = parseDuration(raw.Sync.FreshnessWindow); err != nil {
		return domain.Settings{}, fmt.Errorf("sync.freshness_window: %w", err)
	}
	if settings.SyncInterval, err = parseDuration(raw.Sync.Interval); err != nil {
		return domain.Settings{}, fmt.Errorf("sync.interval: %w", err)
	}

	return settings.Normalise(), nil
}

// Save persists settings to the TOML file with restricted permissions.
func (s *SettingsStore) Save(settings domain.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var raw fileSettings
	raw.Remote.BaseURL = settings.RemoteBaseURL
	raw.Remote.RequestsPerSecond = settings.RequestsPerSecond
	raw.Remote.RequestBurst = settings.RequestBurst
	raw.Sync.FreshnessWindow = settings.FreshnessWindow.String()
	raw.Sync.Interval = settings.SyncInterval.String()
	raw.Sync.Workers = settings.SyncWorkers
	raw.Sync.MaxBranchesPerPass = settings.MaxBranchesPerSync
	raw.Sync.BranchErrorLimit = settings.BranchErrorLimit
	raw.Search.MinLocalResults = settings.MinLocalResults
	raw.Chunking.Size = settings.ChunkSize
	raw.Chunking.Overlap = settings.ChunkOverlap

	data, err := toml.Marshal(raw)
	if err != nil {
		return err
	}
	return os.WriteFile(s.filePath, data, 0600)
}

// Path returns the settings file path.
func (s *SettingsStore) Path() string {
	return s.filePath
}

func parseDuration(v string) (time.Duration, error) {
	if v == "" {
		return 0, nil
	}
	return time.ParseDuration(v)
}
