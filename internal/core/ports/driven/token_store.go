package driven

import (
	"context"

	"github.com/custodia-labs/gspace/internal/core/domain"
)

// TokenStore persists OAuth2 tokens keyed by user ID.
// Implementations must reject user IDs refused by domain.ValidateUserID.
type TokenStore interface {
	// Save stores tokens for a user. Creates if new, replaces if exists.
	Save(ctx context.Context, userID string, record domain.TokenRecord) error

	// Load retrieves tokens for a user.
	// Returns domain.ErrNotFound if none are stored.
	Load(ctx context.Context, userID string) (*domain.TokenRecord, error)

	// Delete removes tokens for a user. Deleting a missing user is not an error.
	Delete(ctx context.Context, userID string) error

	// List returns the IDs of all users with stored tokens, sorted.
	List(ctx context.Context) ([]string, error)
}
