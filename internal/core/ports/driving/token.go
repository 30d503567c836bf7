package driving

import (
	"context"

	"github.com/custodia-labs/gspace/internal/core/domain"
)

// TokenService manages stored OAuth2 tokens for users.
type TokenService interface {
	// SaveTokens stores tokens for a user, stamping CreatedAt when unset.
	SaveTokens(ctx context.Context, userID string, record domain.TokenRecord) error

	// LoadTokens returns the stored tokens for a user.
	LoadTokens(ctx context.Context, userID string) (*domain.TokenRecord, error)

	// GetValidAccessToken returns a non-expired access token,
	// refreshing it when allowed.
	GetValidAccessToken(ctx context.Context, userID string) (string, error)

	// RevokeTokens revokes and deletes the tokens of a user.
	RevokeTokens(ctx context.Context, userID string) error

	// ListUsers returns the users with stored tokens.
	ListUsers(ctx context.Context) ([]string, error)

	// IsTokenValid reports whether a usable access token can be produced.
	IsTokenValid(ctx context.Context, userID string) bool

	// GetTokenInfo summarises the stored tokens of a user.
	GetTokenInfo(ctx context.Context, userID string) (*domain.TokenInfo, error)

	// CleanupExpiredTokens removes tokens that can no longer be used
	// and returns how many users were removed.
	CleanupExpiredTokens(ctx context.Context) (int, error)
}
