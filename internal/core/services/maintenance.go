package services

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/custodia-labs/gspace/internal/core/domain"
	"github.com/custodia-labs/gspace/internal/logger"
)

// Defaults for the token maintenance loop.
const (
	DefaultMaintenanceInterval = 15 * time.Minute
	DefaultRefreshWindow       = 10 * time.Minute
)

// MaintenanceResult summarises one maintenance pass.
type MaintenanceResult struct {
	StartedAt time.Time
	EndedAt   time.Time
	Refreshed int
	Removed   int
	Failed    int
}

// TokenMaintainer keeps stored tokens fresh in long running processes such
// as the webhook receiver. Each pass refreshes tokens close to expiry and
// optionally removes users whose tokens can no longer be used.
type TokenMaintainer struct {
	tokens        *TokenManager
	interval      time.Duration
	refreshWindow time.Duration
	cleanup       bool
	now           func() time.Time
	log           zerolog.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	last    *MaintenanceResult
}

// MaintainerOption configures a TokenMaintainer.
type MaintainerOption func(*TokenMaintainer)

// WithInterval sets the time between passes.
func WithInterval(d time.Duration) MaintainerOption {
	return func(m *TokenMaintainer) {
		if d > 0 {
			m.interval = d
		}
	}
}

// WithRefreshWindow sets how close to expiry a token is refreshed.
func WithRefreshWindow(d time.Duration) MaintainerOption {
	return func(m *TokenMaintainer) {
		if d > 0 {
			m.refreshWindow = d
		}
	}
}

// WithCleanup enables removal of unusable tokens after each pass.
func WithCleanup(enabled bool) MaintainerOption {
	return func(m *TokenMaintainer) { m.cleanup = enabled }
}

// NewTokenMaintainer creates a maintainer for tokens.
func NewTokenMaintainer(tokens *TokenManager, opts ...MaintainerOption) *TokenMaintainer {
	m := &TokenMaintainer{
		tokens:        tokens,
		interval:      DefaultMaintenanceInterval,
		refreshWindow: DefaultRefreshWindow,
		now:           time.Now,
		log:           logger.WithComponent("gspace.token_maintainer"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start runs a pass immediately and then every interval.
// It blocks until Stop is called or ctx is cancelled.
func (m *TokenMaintainer) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return nil
	}
	m.running = true
	m.stopCh = make(chan struct{})
	stopCh := m.stopCh
	m.mu.Unlock()

	m.RunOnce(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.markStopped()
			return ctx.Err()
		case <-stopCh:
			return nil
		case <-ticker.C:
			m.RunOnce(ctx)
		}
	}
}

// Stop ends a running Start loop.
func (m *TokenMaintainer) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return
	}
	m.running = false
	close(m.stopCh)
}

func (m *TokenMaintainer) markStopped() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.running = false
}

// LastResult returns the outcome of the most recent pass, or nil.
func (m *TokenMaintainer) LastResult() *MaintenanceResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.last == nil {
		return nil
	}
	r := *m.last
	return &r
}

// RunOnce performs a single maintenance pass.
func (m *TokenMaintainer) RunOnce(ctx context.Context) MaintenanceResult {
	result := MaintenanceResult{StartedAt: m.now()}

	users, err := m.tokens.ListUsers(ctx)
	if err != nil {
		m.log.Error().Err(err).Msg("Failed to list token users")
		result.Failed++
	}

	for _, userID := range users {
		info, err := m.tokens.GetTokenInfo(ctx, userID)
		if err != nil {
			m.log.Warn().Err(err).Str("user", userID).Msg("Failed to read token info")
			result.Failed++
			continue
		}
		if !m.dueForRefresh(info) {
			continue
		}
		if _, err := m.tokens.ForceRefresh(ctx, userID); err != nil {
			m.log.Warn().Err(err).Str("user", userID).Msg("Token refresh failed")
			result.Failed++
			continue
		}
		result.Refreshed++
	}

	if m.cleanup {
		removed, err := m.tokens.CleanupExpiredTokens(ctx)
		if err != nil {
			m.log.Error().Err(err).Msg("Token cleanup failed")
			result.Failed++
		}
		result.Removed = removed
	}

	result.EndedAt = m.now()
	m.log.Debug().
		Int("refreshed", result.Refreshed).
		Int("removed", result.Removed).
		Int("failed", result.Failed).
		Msg("Token maintenance pass complete")

	m.mu.Lock()
	m.last = &result
	m.mu.Unlock()
	return result
}

func (m *TokenMaintainer) dueForRefresh(info *domain.TokenInfo) bool {
	if !info.HasRefreshToken || info.ExpiresAt.IsZero() {
		return false
	}
	return info.ExpiresAt.Before(m.now().Add(m.refreshWindow))
}
