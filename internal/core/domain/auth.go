package domain

import (
	"fmt"
	"strings"
	"time"
)

// AuthType selects how the client authenticates against Google.
type AuthType string

// Supported authentication types.
const (
	// AuthTypeOAuth2 runs the installed-app OAuth2 flow for a user.
	AuthTypeOAuth2 AuthType = "OAuth2"

	// AuthTypeServiceAccount signs JWTs with a service account key.
	AuthTypeServiceAccount AuthType = "service_account"
)

// ParseAuthType validates an auth type name. An empty name means OAuth2.
func ParseAuthType(s string) (AuthType, error) {
	switch AuthType(s) {
	case "", AuthTypeOAuth2:
		return AuthTypeOAuth2, nil
	case AuthTypeServiceAccount:
		return AuthTypeServiceAccount, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedAuthType, s)
	}
}

// DefaultUserID is the token key used when no user is specified.
const DefaultUserID = "default"

// TokenRecord holds the OAuth2 tokens stored for one user.
type TokenRecord struct {
	// AccessToken is the bearer token for API access.
	AccessToken string `json:"access_token"`
	// RefreshToken is used to obtain new access tokens.
	RefreshToken string `json:"refresh_token,omitempty"`
	// TokenType is typically "Bearer".
	TokenType string `json:"token_type,omitempty"`
	// ExpiresAt is when the access token expires. Zero means unknown.
	ExpiresAt time.Time `json:"expires_at,omitempty"`
	// CreatedAt is when the record was first saved.
	CreatedAt time.Time `json:"created_at"`
	// AdditionalData carries provider extras such as the granted scope.
	AdditionalData map[string]any `json:"additional_data,omitempty"`
}

// IsExpired reports whether the access token has expired at now.
// A record without an expiry never expires.
func (r *TokenRecord) IsExpired(now time.Time) bool {
	if r.ExpiresAt.IsZero() {
		return false
	}
	return !now.Before(r.ExpiresAt)
}

// HasRefreshToken reports whether the record can be refreshed.
func (r *TokenRecord) HasRefreshToken() bool {
	return r.RefreshToken != ""
}

// TokenInfo summarises a stored token without exposing secrets.
type TokenInfo struct {
	UserID          string         `json:"user_id"`
	HasAccessToken  bool           `json:"has_access_token"`
	HasRefreshToken bool           `json:"has_refresh_token"`
	IsExpired       bool           `json:"is_expired"`
	TimeUntilExpiry time.Duration  `json:"time_until_expiry"`
	CreatedAt       time.Time      `json:"created_at"`
	ExpiresAt       time.Time      `json:"expires_at,omitempty"`
	AdditionalData  map[string]any `json:"additional_data,omitempty"`
}

// UserInfo is the profile returned by the OAuth2 userinfo endpoint.
type UserInfo struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	Name          string `json:"name"`
	GivenName     string `json:"given_name"`
	FamilyName    string `json:"family_name"`
	Picture       string `json:"picture"`
	Locale        string `json:"locale"`
	HostedDomain  string `json:"hd,omitempty"`
}

// ValidateUserID rejects IDs that cannot be used as a storage key.
// Stores map IDs onto file names, so separators and dot segments are refused.
func ValidateUserID(userID string) error {
	switch {
	case strings.TrimSpace(userID) == "":
		return fmt.Errorf("%w: empty user id", ErrInvalidInput)
	case userID == "." || userID == "..":
		return fmt.Errorf("%w: user id %q", ErrInvalidInput, userID)
	case strings.ContainsAny(userID, `/\`+"\x00"):
		return fmt.Errorf("%w: user id %q contains a path separator", ErrInvalidInput, userID)
	}
	return nil
}
