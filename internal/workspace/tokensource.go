package workspace

import (
	"context"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/custodia-labs/gspace/internal/core/domain"
)

// TokenProvider returns a usable token record for a user.
// services.TokenManager satisfies it.
type TokenProvider interface {
	ValidToken(ctx context.Context, userID string) (*domain.TokenRecord, error)
}

// StoreTokenSource adapts a TokenProvider to oauth2.TokenSource so Google
// API clients draw tokens from the token store. Tokens are cached until
// refreshBuffer before expiry.
type StoreTokenSource struct {
	provider      TokenProvider
	userID        string
	ctx           context.Context
	refreshBuffer time.Duration
	now           func() time.Time

	mu     sync.RWMutex
	cached *oauth2.Token
}

// NewStoreTokenSource creates a token source for userID. ctx bounds the
// refreshes triggered through Token.
func NewStoreTokenSource(ctx context.Context, provider TokenProvider, userID string) *StoreTokenSource {
	return &StoreTokenSource{
		provider:      provider,
		userID:        userID,
		ctx:           ctx,
		refreshBuffer: time.Minute,
		now:           time.Now,
	}
}

func (s *StoreTokenSource) fresh(tok *oauth2.Token) bool {
	if tok == nil || tok.AccessToken == "" {
		return false
	}
	return tok.Expiry.IsZero() || s.now().Add(s.refreshBuffer).Before(tok.Expiry)
}

// Token implements oauth2.TokenSource.
func (s *StoreTokenSource) Token() (*oauth2.Token, error) {
	// Fast path: check cache with read lock
	s.mu.RLock()
	if s.fresh(s.cached) {
		tok := *s.cached
		s.mu.RUnlock()
		return &tok, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	// Double-check after acquiring write lock
	if s.fresh(s.cached) {
		tok := *s.cached
		return &tok, nil
	}

	record, err := s.provider.ValidToken(s.ctx, s.userID)
	if err != nil {
		return nil, err
	}

	tokenType := record.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}
	s.cached = &oauth2.Token{
		AccessToken:  record.AccessToken,
		RefreshToken: record.RefreshToken,
		TokenType:    tokenType,
		Expiry:       record.ExpiresAt,
	}
	tok := *s.cached
	return &tok, nil
}

// Invalidate drops the cached token so the next call asks the provider.
func (s *StoreTokenSource) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cached = nil
}
