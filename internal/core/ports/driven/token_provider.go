package driven

import (
	"context"

	"github.com/custodia-labs/gspace/internal/core/domain"
)

// TokenRefresher obtains a new access token from a refresh token.
// The returned record keeps the old refresh token when the server
// does not rotate it.
type TokenRefresher interface {
	Refresh(ctx context.Context, refreshToken string) (*domain.TokenRecord, error)
}

// TokenRevoker revokes an access or refresh token at the authorization server.
type TokenRevoker interface {
	Revoke(ctx context.Context, token string) error
}
