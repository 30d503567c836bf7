package driving

import "github.com/custodia-labs/gspace/internal/core/domain"

// SettingsService manages application settings.
type SettingsService interface {
	// Get retrieves current application settings, with defaults for unset keys.
	Get() (*domain.AppSettings, error)

	// Save persists application settings.
	Save(settings *domain.AppSettings) error

	// SetTokenBackend updates the token storage backend.
	SetTokenBackend(backend domain.TokenBackend) error

	// SetCredentialsPath updates the credentials file path.
	SetCredentialsPath(path string) error

	// GetDefaults returns default settings.
	GetDefaults() domain.AppSettings
}
