package domain

import "time"

const unknownDescription = "Unknown"

// TokenBackend selects where OAuth2 tokens are persisted.
type TokenBackend string

// Available token backends.
const (
	// TokenBackendEncrypted stores one encrypted file per user.
	TokenBackendEncrypted TokenBackend = "encrypted"

	// TokenBackendFile stores one plain JSON file per user.
	TokenBackendFile TokenBackend = "file"

	// TokenBackendSQLite stores tokens in a SQLite database.
	TokenBackendSQLite TokenBackend = "sqlite"

	// TokenBackendMemory keeps tokens for the lifetime of the process.
	TokenBackendMemory TokenBackend = "memory"
)

// IsValid returns true if the backend is recognised.
func (b TokenBackend) IsValid() bool {
	switch b {
	case TokenBackendEncrypted, TokenBackendFile, TokenBackendSQLite, TokenBackendMemory:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (b TokenBackend) String() string {
	return string(b)
}

// Description returns a human-readable description of the backend.
func (b TokenBackend) Description() string {
	switch b {
	case TokenBackendEncrypted:
		return "Encrypted files (PBKDF2 + XChaCha20-Poly1305)"
	case TokenBackendFile:
		return "Plain JSON files"
	case TokenBackendSQLite:
		return "SQLite database"
	case TokenBackendMemory:
		return "In-memory (not persisted)"
	default:
		return unknownDescription
	}
}

// AllTokenBackends returns all available token backends.
func AllTokenBackends() []TokenBackend {
	return []TokenBackend{
		TokenBackendEncrypted,
		TokenBackendFile,
		TokenBackendSQLite,
		TokenBackendMemory,
	}
}

// AuthSettings holds authentication configuration.
type AuthSettings struct {
	// CredentialsPath is the OAuth client or service account JSON file.
	CredentialsPath string

	// Type selects OAuth2 or service account authentication.
	Type AuthType

	// Scopes are scope URLs or service names, mapped by MapScopes.
	Scopes []string

	// CallbackPort is the local port of the OAuth2 redirect listener.
	CallbackPort int

	// Subject is the user impersonated by a service account with
	// domain-wide delegation. Empty disables impersonation.
	Subject string
}

// TokenSettings holds token storage configuration.
type TokenSettings struct {
	// Backend selects the storage implementation.
	Backend TokenBackend

	// Dir is where file based backends keep their data.
	// Empty means the backend default under the config directory.
	Dir string

	// User is the key tokens are stored under.
	User string

	// AutoRefresh refreshes expired access tokens on demand.
	AutoRefresh bool
}

// RateLimitSettings holds per-service request budgets.
type RateLimitSettings struct {
	// RequestsPerSecond is the sustained rate.
	RequestsPerSecond float64

	// Burst is the number of requests allowed at once.
	Burst int
}

// RetrySettings holds retry behaviour for API calls.
type RetrySettings struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Strategy   string
	Jitter     bool
}

// WebhookSettings holds the webhook receiver configuration.
type WebhookSettings struct {
	// Addr is the listen address of the receiver.
	Addr string

	// VerificationToken is the HMAC key for X-Goog-Signature.
	// Empty disables verification.
	VerificationToken string

	// RequestsPerMinute limits deliveries per client IP.
	RequestsPerMinute int
}

// AppSettings holds all application settings.
type AppSettings struct {
	Auth       AuthSettings
	Tokens     TokenSettings
	RateLimits map[string]RateLimitSettings
	Retry      RetrySettings
	Webhook    WebhookSettings
}

// DefaultCallbackPort is the redirect port of the OAuth2 installed-app flow.
const DefaultCallbackPort = 8080

// DefaultRateLimits returns the per-service request budgets.
func DefaultRateLimits() map[string]RateLimitSettings {
	return map[string]RateLimitSettings{
		"gmail":    {RequestsPerSecond: 2, Burst: 5},
		"drive":    {RequestsPerSecond: 8, Burst: 10},
		"calendar": {RequestsPerSecond: 5, Burst: 10},
		"sheets":   {RequestsPerSecond: 5, Burst: 10},
		"docs":     {RequestsPerSecond: 5, Burst: 10},
	}
}

// DefaultAppSettings returns settings with sensible defaults.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		Auth: AuthSettings{
			Type:         AuthTypeOAuth2,
			CallbackPort: DefaultCallbackPort,
		},
		Tokens: TokenSettings{
			Backend:     TokenBackendEncrypted,
			User:        DefaultUserID,
			AutoRefresh: true,
		},
		RateLimits: DefaultRateLimits(),
		Retry: RetrySettings{
			MaxRetries: 3,
			BaseDelay:  time.Second,
			MaxDelay:   60 * time.Second,
			Strategy:   "exponential",
			Jitter:     true,
		},
		Webhook: WebhookSettings{
			Addr:              "127.0.0.1:8090",
			RequestsPerMinute: 600,
		},
	}
}
