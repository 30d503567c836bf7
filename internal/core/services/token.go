package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/custodia-labs/gspace/internal/core/domain"
	"github.com/custodia-labs/gspace/internal/core/ports/driven"
	"github.com/custodia-labs/gspace/internal/core/ports/driving"
	"github.com/custodia-labs/gspace/internal/logger"
)

// Ensure TokenManager implements the interface.
var _ driving.TokenService = (*TokenManager)(nil)

// expiryDelta treats tokens this close to expiry as expired, so a token is
// never handed out moments before Google rejects it.
const expiryDelta = 10 * time.Second

// TokenManager stores OAuth2 tokens per user and refreshes them on demand.
type TokenManager struct {
	store       driven.TokenStore
	autoRefresh bool
	now         func() time.Time

	mu        sync.RWMutex
	refresher driven.TokenRefresher
	revoker   driven.TokenRevoker

	// refreshMu serialises refreshes so concurrent callers share one result.
	refreshMu sync.Mutex
}

// TokenManagerOption configures a TokenManager.
type TokenManagerOption func(*TokenManager)

// WithRefresher sets the refresher used for expired tokens.
func WithRefresher(r driven.TokenRefresher) TokenManagerOption {
	return func(m *TokenManager) { m.refresher = r }
}

// WithRevoker sets the revoker used by RevokeTokens.
func WithRevoker(r driven.TokenRevoker) TokenManagerOption {
	return func(m *TokenManager) { m.revoker = r }
}

// WithAutoRefresh enables or disables refreshing expired tokens. Enabled by default.
func WithAutoRefresh(enabled bool) TokenManagerOption {
	return func(m *TokenManager) { m.autoRefresh = enabled }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) TokenManagerOption {
	return func(m *TokenManager) { m.now = now }
}

// NewTokenManager creates a token manager over store.
func NewTokenManager(store driven.TokenStore, opts ...TokenManagerOption) *TokenManager {
	m := &TokenManager{
		store:       store,
		autoRefresh: true,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SetRefresher replaces the refresher. The OAuth2 client configuration is
// only known once credentials are loaded, after the manager was built.
func (m *TokenManager) SetRefresher(r driven.TokenRefresher) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refresher = r
}

// SetRevoker replaces the revoker.
func (m *TokenManager) SetRevoker(r driven.TokenRevoker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.revoker = r
}

func (m *TokenManager) deps() (driven.TokenRefresher, driven.TokenRevoker) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.refresher, m.revoker
}

// SaveTokens stores tokens for a user. CreatedAt is stamped when unset.
func (m *TokenManager) SaveTokens(ctx context.Context, userID string, record domain.TokenRecord) error {
	if record.CreatedAt.IsZero() {
		record.CreatedAt = m.now().UTC()
	}
	if err := m.store.Save(ctx, userID, record); err != nil {
		return fmt.Errorf("save tokens for %q: %w", userID, err)
	}
	logger.Debug("Tokens saved for user %s", userID)
	return nil
}

// LoadTokens returns the stored tokens for a user.
func (m *TokenManager) LoadTokens(ctx context.Context, userID string) (*domain.TokenRecord, error) {
	record, err := m.store.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	return record, nil
}

// GetValidAccessToken returns an access token that is not about to expire.
// Expired tokens are refreshed when auto-refresh is on and a refresher and
// refresh token are available; otherwise domain.ErrAuthExpired is returned.
func (m *TokenManager) GetValidAccessToken(ctx context.Context, userID string) (string, error) {
	record, err := m.validRecord(ctx, userID)
	if err != nil {
		return "", err
	}
	return record.AccessToken, nil
}

// ValidToken is GetValidAccessToken returning the whole record,
// so callers can see the expiry.
func (m *TokenManager) ValidToken(ctx context.Context, userID string) (*domain.TokenRecord, error) {
	return m.validRecord(ctx, userID)
}

func (m *TokenManager) validRecord(ctx context.Context, userID string) (*domain.TokenRecord, error) {
	record, err := m.store.Load(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("%w: no tokens for %q", domain.ErrAuthRequired, userID)
	}
	if err != nil {
		return nil, err
	}
	if record.AccessToken == "" && !record.HasRefreshToken() {
		return nil, fmt.Errorf("%w: no access token for %q", domain.ErrAuthRequired, userID)
	}
	if record.AccessToken != "" && !m.expired(record) {
		return record, nil
	}
	if !m.autoRefresh {
		logger.Warn("Access token expired for user %s", userID)
		return nil, fmt.Errorf("%w: user %q", domain.ErrAuthExpired, userID)
	}
	return m.refresh(ctx, userID, false)
}

// ForceRefresh exchanges the refresh token for a new access token even when
// the current one is still valid.
func (m *TokenManager) ForceRefresh(ctx context.Context, userID string) (*domain.TokenRecord, error) {
	return m.refresh(ctx, userID, true)
}

func (m *TokenManager) expired(record *domain.TokenRecord) bool {
	return record.IsExpired(m.now().Add(expiryDelta))
}

func (m *TokenManager) refresh(ctx context.Context, userID string, force bool) (*domain.TokenRecord, error) {
	m.refreshMu.Lock()
	defer m.refreshMu.Unlock()

	// Another caller may have refreshed while we waited.
	record, err := m.store.Load(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("%w: no tokens for %q", domain.ErrAuthRequired, userID)
	}
	if err != nil {
		return nil, err
	}
	if !force && record.AccessToken != "" && !m.expired(record) {
		return record, nil
	}

	refresher, _ := m.deps()
	if refresher == nil || !record.HasRefreshToken() {
		logger.Warn("Access token expired for user %s and cannot be refreshed", userID)
		return nil, fmt.Errorf("%w: user %q", domain.ErrAuthExpired, userID)
	}

	logger.Debug("Refreshing access token for user %s", userID)
	fresh, err := refresher.Refresh(ctx, record.RefreshToken)
	if err != nil {
		return nil, fmt.Errorf("refresh tokens for %q: %w", userID, err)
	}

	fresh.CreatedAt = record.CreatedAt
	if fresh.RefreshToken == "" {
		fresh.RefreshToken = record.RefreshToken
	}
	if len(record.AdditionalData) > 0 {
		merged := make(map[string]any, len(record.AdditionalData)+len(fresh.AdditionalData))
		for k, v := range record.AdditionalData {
			merged[k] = v
		}
		for k, v := range fresh.AdditionalData {
			merged[k] = v
		}
		fresh.AdditionalData = merged
	}
	if err := m.SaveTokens(ctx, userID, *fresh); err != nil {
		return nil, err
	}
	return fresh, nil
}

// RevokeTokens revokes the user's tokens at Google when a revoker is set,
// then deletes them locally. A failed remote revoke is logged, not returned,
// since the token may already be invalid.
func (m *TokenManager) RevokeTokens(ctx context.Context, userID string) error {
	record, err := m.store.Load(ctx, userID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}

	_, revoker := m.deps()
	if record != nil && revoker != nil {
		token := record.RefreshToken
		if token == "" {
			token = record.AccessToken
		}
		if token != "" {
			if err := revoker.Revoke(ctx, token); err != nil {
				logger.Warn("Remote revoke failed for user %s: %v", userID, err)
			}
		}
	}

	if err := m.store.Delete(ctx, userID); err != nil {
		return fmt.Errorf("delete tokens for %q: %w", userID, err)
	}
	logger.Debug("Tokens revoked and deleted for user %s", userID)
	return nil
}

// ListUsers returns the users with stored tokens.
func (m *TokenManager) ListUsers(ctx context.Context) ([]string, error) {
	return m.store.List(ctx)
}

// IsTokenValid reports whether a usable access token can be produced.
func (m *TokenManager) IsTokenValid(ctx context.Context, userID string) bool {
	_, err := m.validRecord(ctx, userID)
	return err == nil
}

// GetTokenInfo summarises the stored tokens of a user.
func (m *TokenManager) GetTokenInfo(ctx context.Context, userID string) (*domain.TokenInfo, error) {
	record, err := m.store.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := m.now()
	info := &domain.TokenInfo{
		UserID:          userID,
		HasAccessToken:  record.AccessToken != "",
		HasRefreshToken: record.HasRefreshToken(),
		IsExpired:       record.IsExpired(now),
		CreatedAt:       record.CreatedAt,
		ExpiresAt:       record.ExpiresAt,
		AdditionalData:  record.AdditionalData,
	}
	if !record.ExpiresAt.IsZero() && record.ExpiresAt.After(now) {
		info.TimeUntilExpiry = record.ExpiresAt.Sub(now)
	}
	return info, nil
}

// CleanupExpiredTokens revokes the tokens of every user whose tokens can no
// longer produce an access token. Users whose check fails for other reasons,
// such as a network error during refresh, are kept.
func (m *TokenManager) CleanupExpiredTokens(ctx context.Context) (int, error) {
	users, err := m.store.List(ctx)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, userID := range users {
		_, err := m.validRecord(ctx, userID)
		if err == nil {
			continue
		}
		if !errors.Is(err, domain.ErrAuthExpired) && !errors.Is(err, domain.ErrAuthRequired) {
			logger.Warn("Skipping cleanup for user %s: %v", userID, err)
			continue
		}
		if err := m.RevokeTokens(ctx, userID); err != nil {
			return removed, err
		}
		removed++
	}
	logger.Debug("Cleaned up %d users with unusable tokens", removed)
	return removed, nil
}
