package services

import (
	"fmt"
	"sort"
	"time"

	"github.com/custodia-labs/gspace/internal/core/domain"
	"github.com/custodia-labs/gspace/internal/core/ports/driven"
	"github.com/custodia-labs/gspace/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keyCredentialsPath   = "auth.credentials_path"
	keyAuthType          = "auth.type"
	keyAuthScopes        = "auth.scopes"
	keyCallbackPort      = "auth.callback_port"
	keySubject           = "auth.subject"
	keyTokenBackend      = "tokens.backend"
	keyTokenDir          = "tokens.dir"
	keyTokenUser         = "tokens.user"
	keyAutoRefresh       = "tokens.auto_refresh"
	keyRetryMax          = "retry.max_retries"
	keyRetryBaseDelay    = "retry.base_delay"
	keyRetryMaxDelay     = "retry.max_delay"
	keyRetryStrategy     = "retry.strategy"
	keyRetryJitter       = "retry.jitter"
	keyWebhookAddr       = "webhook.addr"
	keyWebhookToken      = "webhook.verification_token"
	keyWebhookRPM        = "webhook.requests_per_minute"
	rateLimitKeyPrefix   = "rate_limits."
	rateLimitRPSSuffix   = ".requests_per_second"
	rateLimitBurstSuffix = ".burst"
)

// SettingsService manages application settings.
type SettingsService struct {
	configStore driven.ConfigStore
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore) *SettingsService {
	return &SettingsService{configStore: configStore}
}

// Get retrieves current application settings. Unset or invalid keys take
// their default values.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	defaults := domain.DefaultAppSettings()

	settings := &domain.AppSettings{
		Auth: domain.AuthSettings{
			CredentialsPath: s.configStore.GetString(keyCredentialsPath),
			Type:            s.getAuthType(defaults.Auth.Type),
			Scopes:          s.configStore.GetStringSlice(keyAuthScopes),
			CallbackPort:    s.getInt(keyCallbackPort, defaults.Auth.CallbackPort),
			Subject:         s.configStore.GetString(keySubject),
		},
		Tokens: domain.TokenSettings{
			Backend:     s.getTokenBackend(defaults.Tokens.Backend),
			Dir:         s.configStore.GetString(keyTokenDir),
			User:        s.getString(keyTokenUser, defaults.Tokens.User),
			AutoRefresh: s.getBool(keyAutoRefresh, defaults.Tokens.AutoRefresh),
		},
		RateLimits: make(map[string]domain.RateLimitSettings, len(defaults.RateLimits)),
		Retry: domain.RetrySettings{
			MaxRetries: s.getInt(keyRetryMax, defaults.Retry.MaxRetries),
			BaseDelay:  s.getDuration(keyRetryBaseDelay, defaults.Retry.BaseDelay),
			MaxDelay:   s.getDuration(keyRetryMaxDelay, defaults.Retry.MaxDelay),
			Strategy:   s.getString(keyRetryStrategy, defaults.Retry.Strategy),
			Jitter:     s.getBool(keyRetryJitter, defaults.Retry.Jitter),
		},
		Webhook: domain.WebhookSettings{
			Addr:              s.getString(keyWebhookAddr, defaults.Webhook.Addr),
			VerificationToken: s.configStore.GetString(keyWebhookToken),
			RequestsPerMinute: s.getInt(keyWebhookRPM, defaults.Webhook.RequestsPerMinute),
		},
	}

	for service, limit := range defaults.RateLimits {
		prefix := rateLimitKeyPrefix + service
		settings.RateLimits[service] = domain.RateLimitSettings{
			RequestsPerSecond: s.getFloat(prefix+rateLimitRPSSuffix, limit.RequestsPerSecond),
			Burst:             s.getInt(prefix+rateLimitBurstSuffix, limit.Burst),
		}
	}

	return settings, nil
}

// Save persists application settings.
func (s *SettingsService) Save(settings *domain.AppSettings) error {
	if !settings.Tokens.Backend.IsValid() {
		return fmt.Errorf("%w: token backend %q", domain.ErrInvalidInput, settings.Tokens.Backend)
	}

	values := []struct {
		key   string
		value any
	}{
		{keyCredentialsPath, settings.Auth.CredentialsPath},
		{keyAuthType, string(settings.Auth.Type)},
		{keyCallbackPort, settings.Auth.CallbackPort},
		{keySubject, settings.Auth.Subject},
		{keyTokenBackend, settings.Tokens.Backend.String()},
		{keyTokenDir, settings.Tokens.Dir},
		{keyTokenUser, settings.Tokens.User},
		{keyAutoRefresh, settings.Tokens.AutoRefresh},
		{keyRetryMax, settings.Retry.MaxRetries},
		{keyRetryBaseDelay, settings.Retry.BaseDelay.String()},
		{keyRetryMaxDelay, settings.Retry.MaxDelay.String()},
		{keyRetryStrategy, settings.Retry.Strategy},
		{keyRetryJitter, settings.Retry.Jitter},
		{keyWebhookAddr, settings.Webhook.Addr},
		{keyWebhookRPM, settings.Webhook.RequestsPerMinute},
	}
	if len(settings.Auth.Scopes) > 0 {
		values = append(values, struct {
			key   string
			value any
		}{keyAuthScopes, settings.Auth.Scopes})
	}
	// Never overwrite a stored token with an empty one.
	if settings.Webhook.VerificationToken != "" {
		values = append(values, struct {
			key   string
			value any
		}{keyWebhookToken, settings.Webhook.VerificationToken})
	}

	services := make([]string, 0, len(settings.RateLimits))
	for service := range settings.RateLimits {
		services = append(services, service)
	}
	sort.Strings(services)
	for _, service := range services {
		limit := settings.RateLimits[service]
		prefix := rateLimitKeyPrefix + service
		if err := s.configStore.Set(prefix+rateLimitRPSSuffix, limit.RequestsPerSecond); err != nil {
			return fmt.Errorf("save %s rate limit: %w", service, err)
		}
		if err := s.configStore.Set(prefix+rateLimitBurstSuffix, limit.Burst); err != nil {
			return fmt.Errorf("save %s burst: %w", service, err)
		}
	}

	for _, v := range values {
		if err := s.configStore.Set(v.key, v.value); err != nil {
			return fmt.Errorf("save %s: %w", v.key, err)
		}
	}

	return s.configStore.Save()
}

// SetTokenBackend updates the token storage backend.
func (s *SettingsService) SetTokenBackend(backend domain.TokenBackend) error {
	if !backend.IsValid() {
		return fmt.Errorf("%w: token backend %q", domain.ErrInvalidInput, backend)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}
	settings.Tokens.Backend = backend
	return s.Save(settings)
}

// SetCredentialsPath updates the credentials file path.
func (s *SettingsService) SetCredentialsPath(path string) error {
	if path == "" {
		return fmt.Errorf("%w: credentials path is empty", domain.ErrInvalidInput)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}
	settings.Auth.CredentialsPath = path
	return s.Save(settings)
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

// Helper methods for reading config with defaults.

func (s *SettingsService) getString(key, defaultVal string) string {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getInt(key string, defaultVal int) int {
	val := s.configStore.GetInt(key)
	if val == 0 {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getFloat(key string, defaultVal float64) float64 {
	val := s.configStore.GetFloat(key)
	if val <= 0 {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getBool(key string, defaultVal bool) bool {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetBool(key)
}

func (s *SettingsService) getDuration(key string, defaultVal time.Duration) time.Duration {
	val := s.configStore.GetDuration(key)
	if val <= 0 {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getAuthType(defaultVal domain.AuthType) domain.AuthType {
	val := s.configStore.GetString(keyAuthType)
	if val == "" {
		return defaultVal
	}
	authType, err := domain.ParseAuthType(val)
	if err != nil {
		return defaultVal
	}
	return authType
}

func (s *SettingsService) getTokenBackend(defaultVal domain.TokenBackend) domain.TokenBackend {
	val := s.configStore.GetString(keyTokenBackend)
	if val == "" {
		return defaultVal
	}
	backend := domain.TokenBackend(val)
	if !backend.IsValid() {
		return defaultVal
	}
	return backend
}
