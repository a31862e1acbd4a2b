package driven

import "github.com/notedex/notedex/internal/core/domain"

// SettingsStore loads and persists runtime configuration.
type SettingsStore interface {
	// Load reads settings, applying defaults for absent values.
	Load() (domain.Settings, error)

	// Save persists settings.
	Save(settings domain.Settings) error
}
